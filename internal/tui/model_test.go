package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/reasonloop/internal/protocol"
	"github.com/Iron-Ham/reasonloop/internal/session"
)

func seededStore(t *testing.T, events ...string) *session.Store {
	t.Helper()
	store := session.NewStore(nil, nil)
	store.Begin("s1", "task", session.Config{
		GeneratorModel: "model-a",
		CriticModel:    "model-b",
		RefinerModel:   "model-c",
	})
	for _, raw := range events {
		ev, err := protocol.Decode([]byte(raw))
		if err != nil {
			t.Fatalf("Decode(%s): %v", raw, err)
		}
		store.Apply(ev)
	}
	return store
}

func TestModel_ViewShowsSessionState(t *testing.T) {
	store := seededStore(t,
		`{"type":"session_started","session_id":"s1","iteration":0}`,
		`{"type":"generation_start","session_id":"s1","iteration":0}`,
		`{"type":"generation_chunk","session_id":"s1","iteration":0,"content":"Once upon"}`,
	)
	store.SetConnected(true)

	view := New(store, nil).View()
	for _, want := range []string{"s1", "running", "live", "Iteration 0", "model-a", "model-b", "Once upon", "generating"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModel_ViewShowsNotLiveIndicator(t *testing.T) {
	store := seededStore(t, `{"type":"session_started","session_id":"s1","iteration":0}`)

	view := New(store, nil).View()
	if !strings.Contains(view, "not live") {
		t.Errorf("view must flag a disconnected running session:\n%s", view)
	}
}

func TestModel_ViewShowsFinalOutput(t *testing.T) {
	store := seededStore(t,
		`{"type":"session_started","session_id":"s1","iteration":0}`,
		`{"type":"generation_start","session_id":"s1","iteration":0}`,
		`{"type":"generation_complete","session_id":"s1","iteration":0,"content":"Hello"}`,
		`{"type":"session_complete","session_id":"s1","iteration":0,"content":"Hello","score":8.5}`,
	)

	view := New(store, nil).View()
	for _, want := range []string{"completed", "Final output (score 8.5)", "Hello"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "not live") {
		t.Error("finished sessions carry no connectivity indicator")
	}
}

func TestModel_ViewShowsCouncilAndError(t *testing.T) {
	store := seededStore(t,
		`{"type":"generation_start","session_id":"s1","iteration":-1}`,
		`{"type":"session_error","session_id":"s1","iteration":-1,"content":"quota exceeded"}`,
	)

	view := New(store, nil).View()
	if !strings.Contains(view, "Council") {
		t.Errorf("view must name the council pre-phase:\n%s", view)
	}
	if !strings.Contains(view, "quota exceeded") {
		t.Errorf("view must surface the session error:\n%s", view)
	}
}

func TestModel_QuitKeys(t *testing.T) {
	store := seededStore(t)
	m := New(store, nil)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q must produce a quit command")
	}
	if msg := cmd(); msg != tea.Quit() {
		t.Errorf("expected tea.Quit, got %v", msg)
	}
	if updated.(Model).View() != "" {
		t.Error("view must be empty while quitting")
	}
}

func TestModel_CommandKeysWithoutClientAreNoops(t *testing.T) {
	store := seededStore(t, `{"type":"session_started","session_id":"s1","iteration":0}`)
	m := New(store, nil)

	for _, key := range []rune{'p', 'r', 's'} {
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{key}})
		if cmd != nil {
			t.Errorf("key %q without a client must be a no-op", key)
		}
	}
}

func TestModel_ErrMsgIsDisplayed(t *testing.T) {
	store := seededStore(t)
	m := New(store, nil)

	updated, _ := m.Update(errMsg{err: errors.New("pause rejected")})
	view := updated.(Model).View()
	if !strings.Contains(view, "command failed: pause rejected") {
		t.Errorf("view must surface command failures:\n%s", view)
	}
}
