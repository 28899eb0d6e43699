// Package tui renders a live view of one reasoning session: status,
// connectivity, the iteration log with rotating role assignments, and the
// final output. It reads store snapshots on a short tick rather than
// subscribing to the store directly, so a burst of streamed chunks costs one
// re-render instead of one per event.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/reasonloop/internal/api"
	"github.com/Iron-Ham/reasonloop/internal/session"
	"github.com/Iron-Ham/reasonloop/internal/util"
)

const (
	commandTimeout = 10 * time.Second
	previewLen     = 400
)

// Model is the bubbletea model for watching a session.
type Model struct {
	store  *session.Store
	client *api.Client

	spin     spinner.Model
	width    int
	height   int
	err      error
	quitting bool
}

// New creates a watch model over the given store. The client may be nil for
// a read-only view of a historical session.
func New(store *session.Store, client *api.Client) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{store: store, client: client, spin: s}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, tick())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.quitting {
			return m, nil
		}
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case errMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "p":
		return m, m.command(func(ctx context.Context, id string) error {
			return m.client.Pause(ctx, id)
		})
	case "r":
		return m, m.command(func(ctx context.Context, id string) error {
			return m.client.Resume(ctx, id)
		})
	case "s":
		return m, m.command(func(ctx context.Context, id string) error {
			return m.client.Stop(ctx, id)
		})
	}
	return m, nil
}

// command runs one session command in the background, surfacing failures as
// an errMsg. The store handles the optimistic transition and its rollback.
func (m Model) command(fn func(context.Context, string) error) tea.Cmd {
	if m.client == nil {
		return nil
	}
	id := m.store.SessionID()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := fn(ctx, id); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sess := m.store.Snapshot()
	var b strings.Builder

	b.WriteString(titleStyle.Render("ReasonLoop"))
	b.WriteString("  ")
	b.WriteString(headerStyle.Render(sess.ID))
	b.WriteString("\n")
	if sess.Task != "" {
		task := headerStyle.Render(sess.Task)
		if m.width > 0 {
			task = util.TruncateANSI(task, m.width)
		}
		b.WriteString(task)
		b.WriteString("\n")
	}
	b.WriteString(m.statusLine(sess))
	b.WriteString("\n\n")

	for _, it := range sess.Iterations {
		b.WriteString(m.iterationView(it))
		b.WriteString("\n")
	}

	if sess.Status == session.StatusCompleted && sess.FinalOutput != "" {
		header := fmt.Sprintf("Final output (score %.1f)", sess.FinalScore)
		b.WriteString(finalStyle.Render(scoreStyle.Render(header) + "\n" + sess.FinalOutput))
		b.WriteString("\n")
	}
	if sess.LastError != "" {
		b.WriteString(errorStyle.Render("session error: " + sess.LastError))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("command failed: " + m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("p pause • r resume • s stop • q quit"))
	return b.String()
}

// statusLine renders the status dot, the status word, and the connectivity
// indicator. Connectivity loss is informational, never an error.
func (m Model) statusLine(sess session.Session) string {
	dot := lipgloss.NewStyle().Foreground(statusColor(string(sess.Status))).Render("●")
	line := fmt.Sprintf("%s %s", dot, sess.Status)

	if sess.Status == session.StatusRunning || sess.Status == session.StatusPaused {
		if m.store.Connected() {
			line += "  " + liveStyle.Render("live")
		} else {
			line += "  " + offlineStyle.Render("not live")
		}
	}
	return line
}

func (m Model) iterationView(it *session.Iteration) string {
	var b strings.Builder

	title := fmt.Sprintf("Iteration %d", it.Number)
	if it.Number < 0 {
		title = "Council"
	}
	b.WriteString(iterationTitleStyle.Render(title))

	if it.GenerationModel != "" {
		b.WriteString("  ")
		b.WriteString(modelStyle.Render(fmt.Sprintf("%s → %s", it.GenerationModel, it.CritiqueModel)))
	}
	switch {
	case it.IsGenerating:
		b.WriteString("  " + m.spin.View() + "generating")
	case it.IsCritiquing:
		b.WriteString("  " + m.spin.View() + "critiquing")
	}
	b.WriteString("\n")

	if it.Generation != "" {
		b.WriteString(util.TruncateString(it.Generation, previewLen))
		b.WriteString("\n")
	}
	if it.Critique != nil {
		b.WriteString(scoreStyle.Render(fmt.Sprintf("score %.1f", it.Critique.Score)))
		if len(it.Critique.Suggestions) > 0 {
			b.WriteString(modelStyle.Render("  " + it.Critique.Suggestions[0]))
		}
		b.WriteString("\n")
	}
	return b.String()
}
