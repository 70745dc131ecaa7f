package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kaivalyagandhi/catchup-app-sub002/internal/indicator"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/level"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/session"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/transcript"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/wire"
)

// Presenter forwards recorder events into a running bubbletea program as
// typed messages. It starts detached so the recorder can be constructed
// before the program exists; Attach binds the program once it is running.
// Events arriving before Attach are dropped. Program.Send is safe from any
// goroutine, so recorder pump goroutines call this directly.
type Presenter struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

// NewPresenter creates a detached presenter.
func NewPresenter() *Presenter {
	return &Presenter{}
}

// Attach binds the program that will receive events.
func (p *Presenter) Attach(prog *tea.Program) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.send = prog.Send
}

func (p *Presenter) dispatch(msg tea.Msg) {
	p.mu.Lock()
	send := p.send
	p.mu.Unlock()
	if send != nil {
		send(msg)
	}
}

func (p *Presenter) RecordingStarted() { p.dispatch(StartedMsg{}) }
func (p *Presenter) RecordingPaused()  { p.dispatch(PausedMsg{}) }
func (p *Presenter) RecordingResumed() { p.dispatch(ResumedMsg{}) }
func (p *Presenter) RecordingStopped() { p.dispatch(StoppedMsg{}) }

func (p *Presenter) LevelChanged(meas level.Measurement) {
	p.dispatch(LevelMsg{Meas: meas})
}

func (p *Presenter) Warning(alert level.Alert) {
	p.dispatch(WarningMsg{Alert: alert})
}

func (p *Presenter) ConnectionChanged(state session.State, attempt int) {
	p.dispatch(ConnectionMsg{State: state, Attempt: attempt})
}

func (p *Presenter) TranscriptUpdated(doc []transcript.Fragment) {
	p.dispatch(TranscriptMsg{Doc: doc})
}

func (p *Presenter) ProposalsUpdated(proposals []wire.ContactProposal) {
	p.dispatch(ProposalsMsg{Proposals: proposals})
}

func (p *Presenter) SurfaceError(message string, fatal bool) {
	p.dispatch(SessionErrorMsg{Message: message, Fatal: fatal})
}

var _ indicator.Presenter = (*Presenter)(nil)
