package capture

import (
	"encoding/binary"
	"fmt"
	"time"
)

const wavHeaderSize = 44

// EncodeWAV wraps little-endian PCM16 bytes in a canonical 44-byte WAV
// header.
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}

	const bitsPerSample = 16
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	out := make([]byte, wavHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[wavHeaderSize:], pcm)

	return out, nil
}

// DecodeWAV extracts PCM16 bytes and the sample rate from WAV data produced
// by EncodeWAV. Only 16-bit PCM is accepted.
func DecodeWAV(data []byte) ([]byte, int, error) {
	if len(data) < wavHeaderSize {
		return nil, 0, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("invalid WAV file: missing RIFF/WAVE markers")
	}
	if string(data[12:16]) != "fmt " {
		return nil, 0, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}
	if string(data[36:40]) != "data" {
		return nil, 0, fmt.Errorf("invalid WAV file: missing data chunk")
	}

	if format := binary.LittleEndian.Uint16(data[20:22]); format != 1 {
		return nil, 0, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", format)
	}
	if bits := binary.LittleEndian.Uint16(data[34:36]); bits != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", bits)
	}

	sampleRate := int(binary.LittleEndian.Uint32(data[24:28]))
	if sampleRate <= 0 {
		return nil, 0, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	dataSize := int(binary.LittleEndian.Uint32(data[40:44]))
	if dataSize <= 0 || wavHeaderSize+dataSize > len(data) {
		return nil, 0, fmt.Errorf("data chunk size %d exceeds available bytes %d", dataSize, len(data)-wavHeaderSize)
	}

	pcm := make([]byte, dataSize)
	copy(pcm, data[wavHeaderSize:wavHeaderSize+dataSize])
	return pcm, sampleRate, nil
}

// PCMDuration converts a PCM byte count to playback duration for the format.
func PCMDuration(bytes int, format Format) time.Duration {
	rate := format.BytesPerSecond()
	if rate <= 0 || bytes <= 0 {
		return 0
	}
	return time.Duration(float64(bytes) / float64(rate) * float64(time.Second))
}
