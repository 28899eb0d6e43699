package session

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/reasonloop/internal/errors"
	"github.com/Iron-Ham/reasonloop/internal/protocol"
)

func testSession(id string) Session {
	return Session{
		ID:     id,
		Task:   "summarize the report",
		Status: StatusCompleted,
		Config: testConfig,
		Iterations: []*Iteration{
			{
				Number:          0,
				Generation:      "final text",
				GenerationModel: "model-a",
				CritiqueModel:   "model-b",
				Critique: &protocol.Critique{
					Strengths:   []string{"clear"},
					Weaknesses:  []string{"terse"},
					Suggestions: []string{"expand"},
					Score:       7.5,
					RawCritique: "raw",
				},
			},
		},
		FinalOutput: "final text",
		FinalScore:  7.5,
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 1, 2, 3, 9, 5, 0, time.UTC),
	}
}

func TestHistory_SaveAndLoad(t *testing.T) {
	h, err := NewHistory(t.TempDir())
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}

	want := testSession("abc123")
	if err := h.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := h.Load("abc123")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch\ngot:  %+v\nwant: %+v", got, want)
	}
}

func TestHistory_SaveRejectsEmptyID(t *testing.T) {
	h, err := NewHistory(t.TempDir())
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}

	if err := h.Save(Session{}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Save with empty id = %v, want ErrInvalidInput", err)
	}
}

func TestHistory_LoadMissing(t *testing.T) {
	h, err := NewHistory(t.TempDir())
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}

	if _, err := h.Load("ghost"); !errors.Is(err, errors.ErrSessionNotFound) {
		t.Errorf("Load missing = %v, want ErrSessionNotFound", err)
	}
}

func TestHistory_LoadCorrupted(t *testing.T) {
	dir := t.TempDir()
	h, err := NewHistory(dir)
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := h.Load("bad"); !errors.Is(err, errors.ErrSessionCorrupted) {
		t.Errorf("Load corrupted = %v, want ErrSessionCorrupted", err)
	}
}

func TestHistory_LoadIDMismatch(t *testing.T) {
	dir := t.TempDir()
	h, err := NewHistory(dir)
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}

	sess := testSession("real-id")
	if err := h.Save(sess); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Rename the file so its name no longer matches the embedded id.
	if err := os.Rename(filepath.Join(dir, "real-id.json"), filepath.Join(dir, "other-id.json")); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	if _, err := h.Load("other-id"); !errors.Is(err, errors.ErrSessionCorrupted) {
		t.Errorf("Load with id mismatch = %v, want ErrSessionCorrupted", err)
	}
}

func TestHistory_List(t *testing.T) {
	dir := t.TempDir()
	h, err := NewHistory(dir)
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}

	older := testSession("older")
	older.UpdatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := testSession("newer")
	newer.UpdatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	newer.Task = strings.Repeat("x", 150)

	for _, sess := range []Session{older, newer} {
		if err := h.Save(sess); err != nil {
			t.Fatalf("Save(%s): %v", sess.ID, err)
		}
	}
	// A corrupted file must be skipped, not fail the listing.
	if err := os.WriteFile(filepath.Join(dir, "junk.json"), []byte("nope"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	summaries, err := h.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].ID != "newer" || summaries[1].ID != "older" {
		t.Errorf("summaries must be most recent first, got %s, %s", summaries[0].ID, summaries[1].ID)
	}
	if len(summaries[0].Task) != 100 {
		t.Errorf("task summary must be truncated to 100 chars, got %d", len(summaries[0].Task))
	}
	if summaries[0].Iterations != 1 || summaries[0].FinalScore != 7.5 {
		t.Errorf("summary fields = %+v", summaries[0])
	}
}

func TestHistory_DeleteAndExists(t *testing.T) {
	h, err := NewHistory(t.TempDir())
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}

	sess := testSession("doomed")
	if err := h.Save(sess); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !h.Exists("doomed") {
		t.Error("Exists should be true after Save")
	}

	if err := h.Delete("doomed"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if h.Exists("doomed") {
		t.Error("Exists should be false after Delete")
	}
	if err := h.Delete("doomed"); !errors.Is(err, errors.ErrSessionNotFound) {
		t.Errorf("Delete missing = %v, want ErrSessionNotFound", err)
	}
}
