package capture

import (
	"context"
	"fmt"
	"time"
)

// Format describes the PCM format a source must deliver: little-endian
// 16-bit samples at the given rate.
type Format struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
}

// Validate checks the format is something the pipeline can process.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels != 1 {
		return fmt.Errorf("unsupported channel count: %d (only mono is supported)", f.Channels)
	}
	return nil
}

// BytesPerSecond returns the PCM data rate for the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Source acquires an audio input device. Open returns ErrDeviceUnavailable
// when no input device exists and ErrPermissionDenied when the platform
// refuses access.
type Source interface {
	Open(ctx context.Context, format Format) (Stream, error)
}

// Stream delivers raw PCM frames from an open device. The Frames channel
// closes when the device stops producing, either after Close or on device
// loss.
type Stream interface {
	Frames() <-chan []byte
	Close() error
}

// MemorySource replays a fixed PCM recording as if it were a live device.
// It backs tests and the demo mode of the CLI.
type MemorySource struct {
	pcm       []byte
	frameSize int
	interval  time.Duration
	loop      bool
	openErr   error
}

// MemoryOption configures a MemorySource.
type MemoryOption func(*MemorySource)

// WithFrameInterval paces frame delivery. Zero (the default) delivers as
// fast as the consumer reads.
func WithFrameInterval(d time.Duration) MemoryOption {
	return func(s *MemorySource) { s.interval = d }
}

// WithLoop replays the recording from the start after it is exhausted.
func WithLoop() MemoryOption {
	return func(s *MemorySource) { s.loop = true }
}

// WithOpenError makes Open fail with the given error. Tests use this to
// simulate missing devices and denied permissions.
func WithOpenError(err error) MemoryOption {
	return func(s *MemorySource) { s.openErr = err }
}

// NewMemorySource creates a source that replays pcm in frames of frameSize
// bytes.
func NewMemorySource(pcm []byte, frameSize int, opts ...MemoryOption) *MemorySource {
	if frameSize <= 0 {
		frameSize = 320
	}
	s := &MemorySource{pcm: pcm, frameSize: frameSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open starts frame delivery on a fresh stream.
func (s *MemorySource) Open(ctx context.Context, format Format) (Stream, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	ms := &memoryStream{
		frames: make(chan []byte, 16),
		cancel: cancel,
	}

	go ms.run(streamCtx, s.pcm, s.frameSize, s.interval, s.loop)
	return ms, nil
}

type memoryStream struct {
	frames chan []byte
	cancel context.CancelFunc
}

func (ms *memoryStream) Frames() <-chan []byte { return ms.frames }

func (ms *memoryStream) Close() error {
	ms.cancel()
	return nil
}

func (ms *memoryStream) run(ctx context.Context, pcm []byte, frameSize int, interval time.Duration, loop bool) {
	defer close(ms.frames)

	var ticker *time.Ticker
	if interval > 0 {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	for {
		for off := 0; off < len(pcm); off += frameSize {
			end := off + frameSize
			if end > len(pcm) {
				end = len(pcm)
			}
			frame := make([]byte, end-off)
			copy(frame, pcm[off:end])

			if ticker != nil {
				select {
				case <-ticker.C:
				case <-ctx.Done():
					return
				}
			}

			select {
			case ms.frames <- frame:
			case <-ctx.Done():
				return
			}
		}
		if !loop || len(pcm) == 0 {
			return
		}
	}
}
