package tui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the UI.
var (
	ColorTeal    = lipgloss.Color("#2AA198")
	ColorRed     = lipgloss.Color("#FF4444")
	ColorGreen   = lipgloss.Color("#04B575")
	ColorYellow  = lipgloss.Color("#FFCC00")
	ColorGray    = lipgloss.Color("#888888")
	ColorDimGray = lipgloss.Color("#444444")
	ColorWhite   = lipgloss.Color("#FAFAFA")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite).
			Background(ColorTeal).
			Padding(0, 1)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorTeal).
			Bold(true)

	CoachLabelStyle = lipgloss.NewStyle().
			Foreground(ColorTeal).
			Bold(true)

	CandidateLabelStyle = lipgloss.NewStyle().
				Foreground(ColorYellow).
				Bold(true)

	PendingStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Italic(true)

	ExpressionStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Italic(true)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorTeal).
			Padding(0, 1)

	ScoreStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	CardHeadingStyle = lipgloss.NewStyle().
				Foreground(ColorWhite).
				Bold(true)

	RecordingStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorTeal)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)
)
