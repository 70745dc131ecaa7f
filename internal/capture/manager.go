package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kaivalyagandhi/catchup-app-sub002/internal/level"
)

// Capture errors surfaced to callers.
var (
	ErrDeviceUnavailable      = errors.New("audio device unavailable")
	ErrPermissionDenied       = errors.New("audio capture permission denied")
	ErrInvalidStateTransition = errors.New("invalid capture state transition")
)

// State represents the capture lifecycle.
type State int

const (
	StateIdle State = iota
	StateRecording
	StatePaused
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Config contains capture settings.
type Config struct {
	Format        Format
	ChunkInterval time.Duration
}

// DefaultConfig returns 16kHz mono capture with 100ms chunks.
func DefaultConfig() Config {
	return Config{
		Format:        Format{SampleRate: 16000, Channels: 1},
		ChunkInterval: 100 * time.Millisecond,
	}
}

// Validate checks the capture settings.
func (c Config) Validate() error {
	if err := c.Format.Validate(); err != nil {
		return err
	}
	if c.ChunkInterval <= 0 {
		return fmt.Errorf("chunk interval must be positive, got %s", c.ChunkInterval)
	}
	return nil
}

// Event is implemented by everything the manager emits on Events().
type Event interface {
	isEvent()
}

// ChunkEvent carries one streamable audio chunk. Seq starts at 1 and is
// strictly increasing for the lifetime of the manager.
type ChunkEvent struct {
	Seq      uint64
	Data     []byte
	Captured time.Time
}

// LevelEvent carries the most recent frame measurement, emitted at chunk
// cadence while recording.
type LevelEvent struct {
	Measurement level.Measurement
	At          time.Time
}

// AlertEvent carries an input-level warning from the monitor.
type AlertEvent struct {
	Alert level.Alert
}

// ErrorEvent reports a mid-capture fault, such as the device disappearing.
type ErrorEvent struct {
	Err error
}

func (ChunkEvent) isEvent() {}
func (LevelEvent) isEvent() {}
func (AlertEvent) isEvent() {}
func (ErrorEvent) isEvent() {}

// Artifact is the complete recording produced by Stop.
type Artifact struct {
	ID         string        `json:"id"`
	Data       []byte        `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Duration   time.Duration `json:"duration"`
	CapturedAt time.Time     `json:"captured_at"`
}

// Manager owns one capture lifecycle. It is not reusable: once stopped a new
// Manager must be created for the next recording.
type Manager struct {
	cfg     Config
	source  Source
	monitor *level.Monitor
	logger  *slog.Logger

	state      State
	stream     Stream
	events     chan Event
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	startedAt  time.Time
	endedAt    time.Time
	pausedTime time.Duration
	pausedAt   time.Time

	// Pump-owned buffers. The pump goroutine is the only writer while it
	// runs; Stop drains them after the pump has exited.
	pending  []byte
	recorded []byte
	seq      uint64

	// Statistics
	framesRead    uint64
	chunksEmitted uint64
	bytesRecorded uint64

	mu sync.Mutex
}

// CaptureStats is a snapshot of capture activity.
type CaptureStats struct {
	State         string        `json:"state"`
	FramesRead    uint64        `json:"frames_read"`
	ChunksEmitted uint64        `json:"chunks_emitted"`
	BytesRecorded uint64        `json:"bytes_recorded"`
	Recorded      time.Duration `json:"recorded"`
	StartedAt     time.Time     `json:"started_at"`
}

// NewManager creates a capture manager around the given source and level
// monitor.
func NewManager(cfg Config, source Source, monitor *level.Monitor, logger *slog.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid capture config: %w", err)
	}
	if source == nil {
		return nil, fmt.Errorf("source must not be nil")
	}
	if monitor == nil {
		return nil, fmt.Errorf("level monitor must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		cfg:     cfg,
		source:  source,
		monitor: monitor,
		logger:  logger,
		state:   StateIdle,
		events:  make(chan Event, 256),
	}, nil
}

// Events returns the manager's event stream. The channel closes after Stop
// has drained the final chunk.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start opens the device and begins recording. Only valid from idle.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateIdle {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidStateTransition, state)
	}
	m.mu.Unlock()

	stream, err := m.source.Open(ctx, m.cfg.Format)
	if err != nil {
		if errors.Is(err, ErrDeviceUnavailable) || errors.Is(err, ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.state = StateRecording
	m.stream = stream
	m.cancel = cancel
	m.startedAt = time.Now()
	m.mu.Unlock()

	m.wg.Add(1)
	go m.pump(pumpCtx, stream)

	m.logger.Info("Capture started",
		slog.Int("sample_rate", m.cfg.Format.SampleRate),
		slog.Duration("chunk_interval", m.cfg.ChunkInterval))

	return nil
}

// Pause suspends chunk delivery and level analysis without releasing the
// device. Only valid while recording.
func (m *Manager) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateRecording {
		return fmt.Errorf("%w: cannot pause while %s", ErrInvalidStateTransition, m.state)
	}
	m.state = StatePaused
	m.pausedAt = time.Now()

	m.logger.Info("Capture paused")
	return nil
}

// Resume continues recording after a pause.
func (m *Manager) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePaused {
		return fmt.Errorf("%w: cannot resume while %s", ErrInvalidStateTransition, m.state)
	}
	m.state = StateRecording
	if !m.pausedAt.IsZero() {
		m.pausedTime += time.Since(m.pausedAt)
		m.pausedAt = time.Time{}
	}

	m.logger.Info("Capture resumed")
	return nil
}

// Stop tears down the stream, releases the device, and returns the complete
// recording as a WAV artifact. Valid from recording or paused; stopped is
// terminal.
func (m *Manager) Stop() (*Artifact, error) {
	m.mu.Lock()
	if m.state != StateRecording && m.state != StatePaused {
		state := m.state
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot stop while %s", ErrInvalidStateTransition, state)
	}
	m.state = StateStopped
	m.endedAt = time.Now()
	cancel := m.cancel
	stream := m.stream
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	if err := stream.Close(); err != nil {
		m.logger.Warn("Failed to close capture stream", slog.String("error", err.Error()))
	}

	// The pump has exited; flush the partial chunk so the session sees
	// every frame that made it into the artifact. The artifact below is
	// complete either way.
	if len(m.pending) > 0 {
		m.mu.Lock()
		m.seq++
		seq := m.seq
		m.chunksEmitted++
		m.mu.Unlock()
		select {
		case m.events <- ChunkEvent{Seq: seq, Data: m.pending, Captured: time.Now()}:
		default:
			m.logger.Warn("Event buffer full, final chunk not streamed",
				slog.Int("bytes", len(m.pending)))
		}
		m.pending = nil
	}
	close(m.events)

	if len(m.recorded) == 0 {
		m.logger.Warn("Capture stopped with no audio recorded")
		return &Artifact{
			ID:         uuid.NewString(),
			SampleRate: m.cfg.Format.SampleRate,
			CapturedAt: m.startedAt,
		}, nil
	}

	wav, err := EncodeWAV(m.recorded, m.cfg.Format.SampleRate, m.cfg.Format.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifact: %w", err)
	}

	duration := PCMDuration(len(m.recorded), m.cfg.Format)
	m.logger.Info("Capture stopped",
		slog.Duration("recorded", duration),
		slog.Uint64("chunks", m.chunksEmitted))

	return &Artifact{
		ID:         uuid.NewString(),
		Data:       wav,
		SampleRate: m.cfg.Format.SampleRate,
		Duration:   duration,
		CapturedAt: m.startedAt,
	}, nil
}

// GetStats returns a snapshot of capture activity.
func (m *Manager) GetStats() CaptureStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return CaptureStats{
		State:         m.state.String(),
		FramesRead:    m.framesRead,
		ChunksEmitted: m.chunksEmitted,
		BytesRecorded: m.bytesRecorded,
		Recorded:      PCMDuration(int(m.bytesRecorded), m.cfg.Format),
		StartedAt:     m.startedAt,
	}
}

// pump moves frames from the stream into the pending chunk and artifact
// buffers and cuts a chunk every ChunkInterval.
func (m *Manager) pump(ctx context.Context, stream Stream) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.ChunkInterval)
	defer ticker.Stop()

	frames := stream.Frames()
	var lastMeasurement level.Measurement
	deviceLost := false

	for {
		select {
		case <-ctx.Done():
			return

		case frame, ok := <-frames:
			if !ok {
				// Device stopped producing before Stop was called.
				if !deviceLost {
					deviceLost = true
					frames = nil
					if m.State() != StateStopped {
						m.emit(ctx, ErrorEvent{Err: fmt.Errorf("%w: input stream ended", ErrDeviceUnavailable)})
					}
				}
				continue
			}
			if m.State() != StateRecording {
				continue
			}

			m.mu.Lock()
			m.framesRead++
			m.bytesRecorded += uint64(len(frame))
			m.mu.Unlock()

			m.pending = append(m.pending, frame...)
			m.recorded = append(m.recorded, frame...)

			lastMeasurement = level.Measure(frame)
			for _, alert := range m.monitor.Observe(lastMeasurement, time.Now()) {
				m.logger.Warn("Input level alert",
					slog.String("kind", alert.Kind.String()),
					slog.Float64("level", alert.Level))
				m.emit(ctx, AlertEvent{Alert: alert})
			}

		case <-ticker.C:
			if m.State() != StateRecording {
				continue
			}

			m.emit(ctx, LevelEvent{Measurement: lastMeasurement, At: time.Now()})

			if len(m.pending) == 0 {
				continue
			}
			chunk := m.pending
			m.pending = nil

			m.mu.Lock()
			m.seq++
			seq := m.seq
			m.chunksEmitted++
			m.mu.Unlock()

			m.emit(ctx, ChunkEvent{Seq: seq, Data: chunk, Captured: time.Now()})
		}
	}
}

// emit delivers an event unless the pump is shutting down.
func (m *Manager) emit(ctx context.Context, ev Event) {
	select {
	case m.events <- ev:
	case <-ctx.Done():
	}
}
