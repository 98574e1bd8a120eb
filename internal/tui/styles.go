package tui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorIndigo = lipgloss.Color("#6366F1")
	ColorRed    = lipgloss.Color("#EF4444")
	ColorGreen  = lipgloss.Color("#22C55E")
	ColorYellow = lipgloss.Color("#EAB308")
	ColorGray   = lipgloss.Color("#666666")
	ColorWhite  = lipgloss.Color("#FFFFFF")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite).
			Background(ColorIndigo).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorIndigo).
			Bold(true)

	WordStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DiagramStyle = lipgloss.NewStyle().
			Foreground(ColorIndigo).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(0, 2)

	RecordingStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	PassStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	FailStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)
)
