package tui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the recording view.
var (
	colorRed       = lipgloss.Color("#FF0000")
	colorGreen     = lipgloss.Color("#00FF00")
	colorYellow    = lipgloss.Color("#FFFF00")
	colorCyan      = lipgloss.Color("#00FFFF")
	colorGray      = lipgloss.Color("#666666")
	colorDimGray   = lipgloss.Color("#444444")
	colorLightGray = lipgloss.Color("#999999")
	colorWhite     = lipgloss.Color("#FFFFFF")
)

// Base styles reused by the view renderers.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	recordingDotStyle = lipgloss.NewStyle().
				Foreground(colorRed).
				Bold(true)

	pausedDotStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	idleDotStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	elapsedStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	connectedStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	connectingStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	disconnectedStyle = lipgloss.NewStyle().
				Foreground(colorRed)

	// Confidence tiers for finalized transcript text.
	tierHighStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	tierMediumStyle = lipgloss.NewStyle().
			Foreground(colorLightGray)

	tierLowStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			Italic(true)

	interimStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	pauseMarkerStyle = lipgloss.NewStyle().
				Foreground(colorDimGray)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	proposalStyle = lipgloss.NewStyle().
			Foreground(colorCyan)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	dividerStyle = lipgloss.NewStyle().
			Foreground(colorDimGray)

	levelGreenStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	levelYellowStyle = lipgloss.NewStyle().
				Foreground(colorYellow)

	levelRedStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	levelGrayStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	footerDescStyle = lipgloss.NewStyle().
			Foreground(colorGray)
)
