package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Iron-Ham/reasonloop/internal/errors"
	"github.com/Iron-Ham/reasonloop/internal/util"
)

// taskSummaryLen bounds the task text carried in listing summaries.
const taskSummaryLen = 100

// History persists finished sessions as JSON files, one per session id, so
// they can be listed and reloaded after the process exits. Writes are atomic;
// a crash mid-save never leaves a half-written session on disk.
type History struct {
	dir string
	mu  sync.RWMutex
}

// Summary is the listing view of a persisted session.
type Summary struct {
	ID         string  `json:"id"`
	Task       string  `json:"task"`
	Status     Status  `json:"status"`
	Iterations int     `json:"iterations"`
	FinalScore float64 `json:"final_score"`
	UpdatedAt  string  `json:"updated_at"`
}

// NewHistory creates a History rooted at dir, creating it if absent.
func NewHistory(dir string) (*History, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &History{dir: dir}, nil
}

// Dir returns the directory sessions are persisted under.
func (h *History) Dir() string {
	return h.dir
}

// Save persists a session, replacing any previous record for its id.
func (h *History) Save(sess Session) error {
	if sess.ID == "" {
		return errors.NewValidationError("session id cannot be empty").WithField("id")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return atomicWriteFile(h.path(sess.ID), data, 0644)
}

// Load retrieves a persisted session by id.
func (h *History) Load(id string) (Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := os.ReadFile(h.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, errors.NewNotFoundError("session", id)
		}
		return Session{}, fmt.Errorf("failed to read session file: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, errors.NewSessionError("failed to decode session file", errors.ErrSessionCorrupted).
			WithSessionID(id)
	}
	if sess.ID != id {
		return Session{}, errors.NewSessionError(
			fmt.Sprintf("session file id mismatch (file: %s)", sess.ID), errors.ErrSessionCorrupted).
			WithSessionID(id)
	}
	return sess, nil
}

// List returns summaries for all persisted sessions, most recent first.
// Corrupted files are skipped rather than failing the listing.
func (h *History) List() ([]Summary, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries, err := os.ReadDir(h.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var summaries []Summary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(h.dir, entry.Name()))
		if err != nil {
			continue
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil || sess.ID == "" {
			continue
		}
		summaries = append(summaries, Summary{
			ID:         sess.ID,
			Task:       util.TruncateString(sess.Task, taskSummaryLen),
			Status:     sess.Status,
			Iterations: len(sess.Iterations),
			FinalScore: sess.FinalScore,
			UpdatedAt:  sess.UpdatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt > summaries[j].UpdatedAt
	})
	return summaries, nil
}

// Delete removes a persisted session.
func (h *History) Delete(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.Remove(h.path(id)); err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError("session", id)
		}
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// Exists reports whether a session with the given id is persisted.
func (h *History) Exists(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, err := os.Stat(h.path(id))
	return err == nil
}

func (h *History) path(id string) string {
	return filepath.Join(h.dir, id+".json")
}

// atomicWriteFile writes data to a file atomically by writing to a temporary
// file first, then renaming. This ensures the target file is never in a
// partially-written state.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
