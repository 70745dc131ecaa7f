package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/kaivalyagandhi/catchup-app-sub002/internal/capture"
)

// newSource picks the audio input for a recording: a raw PCM file or stdin
// via --input, or the synthetic demo signal via --demo. Platform microphone
// capture is delegated to an external producer piping PCM in; the frame
// format is 16-bit little-endian mono at the configured sample rate.
func newSource(input string, demo bool, format capture.Format) (capture.Source, error) {
	switch {
	case demo:
		frameSize := format.SampleRate / 50 * 2 // 20ms frames
		return capture.NewMemorySource(demoPCM(format.SampleRate), frameSize,
			capture.WithFrameInterval(20*time.Millisecond),
			capture.WithLoop(),
		), nil
	case input == "-":
		return &readerSource{r: os.Stdin}, nil
	case input != "":
		f, err := os.Open(input)
		if err != nil {
			return nil, fmt.Errorf("open input %s: %w", input, err)
		}
		return &readerSource{r: f}, nil
	default:
		return nil, fmt.Errorf("no audio input: pass --input FILE ('-' reads PCM from stdin) or --demo")
	}
}

// readerSource adapts an io.ReadCloser of raw PCM16 into a capture source.
type readerSource struct {
	r io.ReadCloser
}

func (s *readerSource) Open(ctx context.Context, format capture.Format) (capture.Stream, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format: %w", err)
	}

	frameSize := format.SampleRate / 50 * 2 // 20ms frames
	rs := &readerStream{
		r:      s.r,
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	go rs.run(ctx, frameSize)
	return rs, nil
}

type readerStream struct {
	r      io.ReadCloser
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

func (rs *readerStream) Frames() <-chan []byte { return rs.frames }

// Close stops delivery and closes the reader, which unblocks an in-flight
// read on pipes and stdin.
func (rs *readerStream) Close() error {
	rs.once.Do(func() {
		close(rs.done)
		rs.r.Close()
	})
	return nil
}

func (rs *readerStream) run(ctx context.Context, frameSize int) {
	defer close(rs.frames)

	buf := make([]byte, frameSize)
	for {
		n, err := io.ReadFull(rs.r, buf)
		if n > 0 {
			frame := make([]byte, n)
			copy(frame, buf[:n])
			select {
			case rs.frames <- frame:
			case <-rs.done:
				return
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			// EOF ends the recording; the capture manager reports the
			// stream loss and the note resolves from what was captured.
			return
		}
	}
}

// demoPCM synthesizes a few seconds of speech-shaped audio: tone bursts with
// varying pitch and amplitude separated by short gaps. Looped by the memory
// source, it exercises the level meter and keeps the session streaming.
func demoPCM(sampleRate int) []byte {
	type segment struct {
		freq float64 // Hz, 0 means silence
		amp  float64
		dur  float64 // seconds
	}
	segments := []segment{
		{220, 0.30, 0.40},
		{330, 0.22, 0.35},
		{0, 0, 0.25},
		{196, 0.28, 0.50},
		{262, 0.18, 0.30},
		{0, 0, 0.40},
		{294, 0.26, 0.45},
	}

	var pcm []byte
	for _, seg := range segments {
		samples := int(seg.dur * float64(sampleRate))
		for i := 0; i < samples; i++ {
			var v float64
			if seg.freq > 0 {
				t := float64(i) / float64(sampleRate)
				// Slow amplitude wobble so the meter moves.
				env := 0.75 + 0.25*math.Sin(2*math.Pi*3*t)
				v = seg.amp * env * math.Sin(2*math.Pi*seg.freq*t)
			}
			s := int16(v * 32767)
			pcm = append(pcm, byte(s), byte(s>>8))
		}
	}
	return pcm
}
