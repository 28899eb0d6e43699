package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	liveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	offlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	iterationTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("75"))

	modelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	scoreStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	finalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("42")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// statusColor maps a session status to its indicator color.
func statusColor(status string) lipgloss.Color {
	switch status {
	case "running":
		return lipgloss.Color("42")
	case "paused":
		return lipgloss.Color("214")
	case "completed":
		return lipgloss.Color("75")
	case "stopped":
		return lipgloss.Color("241")
	case "error":
		return lipgloss.Color("196")
	default:
		return lipgloss.Color("241")
	}
}
