package tui

import (
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/level"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/session"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/transcript"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/wire"
)

// StartedMsg is sent when capture begins.
type StartedMsg struct{}

// PausedMsg is sent when capture pauses.
type PausedMsg struct{}

// ResumedMsg is sent when capture resumes.
type ResumedMsg struct{}

// StoppedMsg is sent when the recording ends.
type StoppedMsg struct{}

// LevelMsg carries the latest input level measurement.
type LevelMsg struct {
	Meas level.Measurement
}

// WarningMsg carries a throttled input-level alert.
type WarningMsg struct {
	Alert level.Alert
}

// ConnectionMsg reports a session connection transition. Attempt is non-zero
// only while reconnecting.
type ConnectionMsg struct {
	State   session.State
	Attempt int
}

// TranscriptMsg carries the full rendered transcript after a fragment change.
type TranscriptMsg struct {
	Doc []transcript.Fragment
}

// ProposalsMsg carries the current enrichment proposals.
type ProposalsMsg struct {
	Proposals []wire.ContactProposal
}

// SessionErrorMsg carries a user-visible failure. Fatal errors exit the UI.
type SessionErrorMsg struct {
	Message string
	Fatal   bool
}

// clearWarningMsg clears a transient warning after a timeout.
type clearWarningMsg struct{}

// tickMsg advances the elapsed-time display.
type tickMsg struct{}
