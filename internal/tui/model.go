package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kaivalyagandhi/catchup-app-sub002/internal/level"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/session"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/transcript"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/wire"

	tea "github.com/charmbracelet/bubbletea"
)

// Controller is the subset of recorder control the view drives. Stop is
// deliberately absent: quitting the UI hands control back to the command,
// which stops the recorder and prints the outcome.
type Controller interface {
	Pause() error
	Resume() error
}

// Model is the root bubbletea model for the recording view.
type Model struct {
	ctrl Controller

	// Recording state
	recording bool
	paused    bool
	elapsed   time.Duration

	// Connection state
	connState   session.State
	connAttempt int

	// Transcript and enrichment
	doc       []transcript.Fragment
	proposals []wire.ContactProposal

	// Input level
	meas level.Measurement

	// Warning and error lines
	warning  string
	errorMsg string
	fatal    bool

	// UI state
	width  int
	height int
}

// New creates a recording view driving the given controller.
func New(ctrl Controller) Model {
	return Model{ctrl: ctrl, connState: session.StateDisconnected}
}

// Init starts the elapsed-time ticker.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd fires once a second to advance the elapsed-time display.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// clearWarningCmd fires after a delay to clear transient warnings.
func clearWarningCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return clearWarningMsg{}
	})
}

// pauseCmd pauses capture via the controller.
func pauseCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.Pause(); err != nil {
			return SessionErrorMsg{Message: err.Error()}
		}
		return nil
	}
}

// resumeCmd resumes capture via the controller.
func resumeCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.Resume(); err != nil {
			return SessionErrorMsg{Message: err.Error()}
		}
		return nil
	}
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case StartedMsg:
		m.recording = true
		m.paused = false
		return m, nil

	case PausedMsg:
		m.paused = true
		return m, nil

	case ResumedMsg:
		m.paused = false
		return m, nil

	case StoppedMsg:
		m.recording = false
		m.paused = false
		return m, nil

	case LevelMsg:
		m.meas = msg.Meas
		return m, nil

	case WarningMsg:
		m.warning = formatAlert(msg.Alert)
		return m, clearWarningCmd()

	case ConnectionMsg:
		m.connState = msg.State
		m.connAttempt = msg.Attempt
		return m, nil

	case TranscriptMsg:
		m.doc = msg.Doc
		return m, nil

	case ProposalsMsg:
		m.proposals = msg.Proposals
		return m, nil

	case SessionErrorMsg:
		m.errorMsg = msg.Message
		if msg.Fatal {
			m.fatal = true
			return m, tea.Quit
		}
		return m, nil

	case clearWarningMsg:
		m.warning = ""
		return m, nil

	case tickMsg:
		if m.recording && !m.paused {
			m.elapsed += time.Second
		}
		return m, tickCmd()
	}

	return m, nil
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "s", "S", "ctrl+c":
		return m, tea.Quit

	case " ":
		if !m.recording || m.ctrl == nil {
			return m, nil
		}
		if m.paused {
			return m, resumeCmd(m.ctrl)
		}
		return m, pauseCmd(m.ctrl)
	}

	return m, nil
}

// formatAlert renders an input-level alert as a one-line warning.
func formatAlert(alert level.Alert) string {
	switch alert.Kind {
	case level.KindSilence:
		return fmt.Sprintf("no input detected for %s", alert.Sustained.Round(time.Second))
	case level.KindLowLevel:
		return "input level is very low"
	case level.KindClipping:
		return "input is clipping"
	default:
		return alert.String()
	}
}

// View renders the full recording view.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, dividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderTranscript())
	sections = append(sections, dividerStyle.Render(strings.Repeat("─", m.width)))

	if m.warning != "" {
		sections = append(sections, warningStyle.Render("▲ ")+m.warning)
	}
	if m.errorMsg != "" {
		sections = append(sections, errorStyle.Render("Error: ")+m.errorMsg)
	}

	sections = append(sections, m.renderProposals())
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	return titleStyle.Render("CATCHUP VOICE") + dimStyle.Render(" — voice note")
}

func (m Model) renderStatusBar() string {
	var dot string
	switch {
	case m.recording && m.paused:
		dot = pausedDotStyle.Render("‖ PAUSED")
	case m.recording:
		dot = recordingDotStyle.Render("● REC")
	default:
		dot = idleDotStyle.Render("○ IDLE")
	}

	elapsed := elapsedStyle.Render(formatElapsed(m.elapsed))

	var meter string
	if m.recording && !m.paused {
		meter = "  " + renderLevelMeter(m.meas)
	}

	return dot + " " + elapsed + meter + "  " + m.renderConnection()
}

func (m Model) renderConnection() string {
	switch m.connState {
	case session.StateConnected:
		return connectedStyle.Render("▸ connected")
	case session.StateConnecting:
		return connectingStyle.Render("▸ connecting")
	case session.StateReconnecting:
		return connectingStyle.Render(fmt.Sprintf("▸ reconnecting (attempt %d) — buffering", m.connAttempt))
	default:
		return disconnectedStyle.Render("▸ offline")
	}
}

// renderLevelMeter draws an 8-cell bar. Fill maps the RMS reading onto a
// rough dB scale so conversational levels register; the top cells go red
// when the peak approaches full scale.
func renderLevelMeter(meas level.Measurement) string {
	const barLen = 8

	fill := 0.0
	if meas.RMS > 0 {
		db := 20 * math.Log10(meas.RMS)
		fill = (db + 60) / 60
	}
	if fill < 0 {
		fill = 0
	}
	if fill > 1 {
		fill = 1
	}
	filled := int(fill * barLen)
	if filled > barLen {
		filled = barLen
	}

	clipping := meas.Peak >= 0.99

	var bar string
	for i := 0; i < barLen; i++ {
		if i < filled {
			pct := float64(i) / float64(barLen)
			switch {
			case clipping && pct > 0.8:
				bar += levelRedStyle.Render("█")
			case pct > 0.6:
				bar += levelYellowStyle.Render("█")
			default:
				bar += levelGreenStyle.Render("█")
			}
		} else {
			bar += levelGrayStyle.Render("░")
		}
	}
	return dimStyle.Render("LVL") + " " + bar
}

func (m Model) renderTranscript() string {
	height := m.transcriptVisibleLines()

	var lines []string
	if len(m.doc) == 0 {
		lines = append(lines, "")
		if m.recording {
			lines = append(lines, dimStyle.Render("  Listening..."))
		} else {
			lines = append(lines, dimStyle.Render("  Waiting for audio"))
		}
	} else {
		textWidth := m.width - 4
		if textWidth < 10 {
			textWidth = 10
		}
		for _, f := range m.doc {
			lines = append(lines, renderFragment(f, textWidth)...)
		}
	}

	// Live tail: keep the newest lines visible.
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

// renderFragment wraps one fragment into display lines. Finalized text is
// styled by confidence tier, interim text renders provisional with a cursor,
// and pause markers become a divider.
func renderFragment(f transcript.Fragment, width int) []string {
	if f.Kind == transcript.FragmentPause {
		return []string{pauseMarkerStyle.Render("  ── paused ──")}
	}

	text := f.Text
	style := tierHighStyle
	if f.Kind == transcript.FragmentInterim {
		text += "▌"
		style = interimStyle
	} else {
		switch f.Tier() {
		case transcript.TierMedium:
			style = tierMediumStyle
		case transcript.TierLow:
			style = tierLowStyle
		}
	}

	var lines []string
	for _, wl := range wrapText(text, width) {
		lines = append(lines, "  "+style.Render(wl))
	}
	return lines
}

func (m Model) renderProposals() string {
	if len(m.proposals) == 0 {
		return dimStyle.Render("No enrichment suggestions yet")
	}
	suggestions := 0
	for _, p := range m.proposals {
		suggestions += len(p.Suggestions)
	}
	return proposalStyle.Render(fmt.Sprintf("Enrichment: %d suggestion(s) across %d contact(s)", suggestions, len(m.proposals)))
}

func (m Model) renderFooter() string {
	var parts []string

	if m.recording {
		if m.paused {
			parts = append(parts, footerKeyStyle.Render("Space")+footerDescStyle.Render(" Resume"))
		} else {
			parts = append(parts, footerKeyStyle.Render("Space")+footerDescStyle.Render(" Pause"))
		}
		parts = append(parts, footerKeyStyle.Render("s")+footerDescStyle.Render(" Stop & save"))
	}
	parts = append(parts, footerKeyStyle.Render("q")+footerDescStyle.Render(" Quit"))

	return strings.Join(parts, "  ")
}

func (m Model) transcriptVisibleLines() int {
	if m.height == 0 {
		return 16
	}
	// Reserve: header(1) + status(1) + dividers(2) + proposals(1) + footer(1) + slack
	reserved := 8
	visible := m.height - reserved
	if visible < 4 {
		visible = 4
	}
	return visible
}

// Helpers

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	min := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, min, sec)
	}
	return fmt.Sprintf("%02d:%02d", min, sec)
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if lipgloss.Width(current)+1+lipgloss.Width(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		} else {
			lines = append(lines, "")
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
