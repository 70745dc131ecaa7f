package indicator

import (
	"log/slog"

	"github.com/kaivalyagandhi/catchup-app-sub002/internal/level"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/session"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/transcript"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/wire"
)

// Presenter abstracts the display layer so the terminal UI, the headless
// log presenter, and test fakes can all receive the same recording events.
// Calls arrive from the recorder's event pump goroutine; implementations
// must not block for long.
type Presenter interface {
	RecordingStarted()
	RecordingPaused()
	RecordingResumed()
	RecordingStopped()

	// LevelChanged reports the most recent input measurement at chunk
	// cadence while recording.
	LevelChanged(meas level.Measurement)

	// Warning reports a throttled input-level alert (silence, low level,
	// clipping).
	Warning(alert level.Alert)

	// ConnectionChanged reports a session connection transition. Attempt
	// is non-zero only while reconnecting.
	ConnectionChanged(state session.State, attempt int)

	// TranscriptUpdated delivers the full rendered document after any
	// fragment change.
	TranscriptUpdated(doc []transcript.Fragment)

	// ProposalsUpdated delivers the current per-contact enrichment
	// proposals after any suggestion change.
	ProposalsUpdated(proposals []wire.ContactProposal)

	// SurfaceError reports a user-visible failure. Fatal errors end the
	// session; non-fatal ones degrade it (buffering, retrying, local
	// fallback).
	SurfaceError(message string, fatal bool)
}

// Nop discards every event. It is the recorder's default when no presenter
// is supplied.
type Nop struct{}

func (Nop) RecordingStarted()                       {}
func (Nop) RecordingPaused()                        {}
func (Nop) RecordingResumed()                       {}
func (Nop) RecordingStopped()                       {}
func (Nop) LevelChanged(level.Measurement)          {}
func (Nop) Warning(level.Alert)                     {}
func (Nop) ConnectionChanged(session.State, int)    {}
func (Nop) TranscriptUpdated([]transcript.Fragment) {}
func (Nop) ProposalsUpdated([]wire.ContactProposal) {}
func (Nop) SurfaceError(string, bool)               {}

var _ Presenter = Nop{}

// Log renders events as structured log lines. It backs headless runs
// (record --no-tui) where the terminal UI would be in the way.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a slog-backed presenter. A nil logger falls back to
// slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) RecordingStarted() { l.logger.Info("Recording started") }
func (l *Log) RecordingPaused()  { l.logger.Info("Recording paused") }
func (l *Log) RecordingResumed() { l.logger.Info("Recording resumed") }
func (l *Log) RecordingStopped() { l.logger.Info("Recording stopped") }

func (l *Log) LevelChanged(meas level.Measurement) {
	l.logger.Debug("Input level",
		slog.Float64("rms", meas.RMS),
		slog.Float64("peak", meas.Peak),
	)
}

func (l *Log) Warning(alert level.Alert) {
	l.logger.Warn("Input warning",
		slog.String("kind", alert.Kind.String()),
		slog.Float64("level", alert.Level),
		slog.Duration("sustained", alert.Sustained),
	)
}

func (l *Log) ConnectionChanged(state session.State, attempt int) {
	if attempt > 0 {
		l.logger.Info("Connection state changed",
			slog.String("state", state.String()),
			slog.Int("attempt", attempt),
		)
		return
	}
	l.logger.Info("Connection state changed", slog.String("state", state.String()))
}

func (l *Log) TranscriptUpdated(doc []transcript.Fragment) {
	l.logger.Debug("Transcript updated", slog.Int("fragments", len(doc)))
}

func (l *Log) ProposalsUpdated(proposals []wire.ContactProposal) {
	l.logger.Info("Enrichment proposals updated", slog.Int("contacts", len(proposals)))
}

func (l *Log) SurfaceError(message string, fatal bool) {
	if fatal {
		l.logger.Error("Session error", slog.String("message", message))
		return
	}
	l.logger.Warn("Session error", slog.String("message", message))
}

var _ Presenter = (*Log)(nil)
