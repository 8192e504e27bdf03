package styles

import "github.com/charmbracelet/lipgloss"

var (
	TITLE = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7d56f4"))

	SYSTEM = lipgloss.NewStyle().
		Italic(true).
		Foreground(lipgloss.Color("#888888"))

	TICKET = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#ffb454"))

	NICKNAME = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#28a745"))

	ERROR = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#ee4b2b"))

	DIRECT = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#28a745"))

	RELAY = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#ffb454"))

	UNKNOWN = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888"))

	SELECTED = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7d56f4"))

	COMPLETE = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#28a745"))

	FAILED = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#ee4b2b"))
)
