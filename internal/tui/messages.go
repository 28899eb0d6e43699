package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// tickMsg is sent periodically to refresh the view from the session store
type tickMsg time.Time

// errMsg wraps a command failure for display in the UI
type errMsg struct {
	err error
}

// tick returns a command that sends a tickMsg after a short delay.
// This drives the periodic re-render while events stream into the store.
func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
