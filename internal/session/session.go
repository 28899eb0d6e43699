// Package session holds the canonical state of a reasoning session and the
// reducer that applies inbound protocol events to it. The Store is the single
// writer: the connection manager feeds it decoded events, the command client
// records optimistic transitions on it, and the TUI and CLI read snapshots
// from it. A History complements the Store with file-backed persistence of
// finished sessions.
package session

import (
	"time"

	"github.com/Iron-Ham/reasonloop/internal/protocol"
	"github.com/Iron-Ham/reasonloop/internal/rotation"
)

// Status represents the lifecycle state of a session.
type Status string

const (
	// StatusIdle means the session exists locally but has not been submitted.
	StatusIdle Status = "idle"
	// StatusRunning means the reasoning loop is executing iterations.
	StatusRunning Status = "running"
	// StatusPaused means the loop is suspended and can be resumed.
	StatusPaused Status = "paused"
	// StatusCompleted means the loop finished successfully. Terminal.
	StatusCompleted Status = "completed"
	// StatusStopped means the user stopped the loop. Terminal.
	StatusStopped Status = "stopped"
	// StatusError means the server reported a failure. Terminal.
	StatusError Status = "error"
)

// Terminal reports whether the status ends the session for its id.
// A new task submission always creates a fresh session id.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusStopped || s == StatusError
}

// Valid reports whether the status is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusRunning, StatusPaused, StatusCompleted, StatusStopped, StatusError:
		return true
	}
	return false
}

// Config is the per-session reasoning configuration. It is frozen once the
// session starts, because the rotation computed from the model roster must
// stay consistent with what the server is using.
type Config struct {
	GeneratorModel string  `json:"generator_model"`
	CriticModel    string  `json:"critic_model"`
	RefinerModel   string  `json:"refiner_model"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	MaxIterations  int     `json:"max_iterations"`
	ScoreThreshold float64 `json:"score_threshold"`
	OutputLength   string  `json:"output_length"`
	Mode           string  `json:"mode"`
}

// Roster returns the fixed three-model lineup in rotation order.
func (c Config) Roster() rotation.Roster {
	return rotation.Roster{c.GeneratorModel, c.CriticModel, c.RefinerModel}
}

// Iteration is one generate -> critique -> refine round within a session.
// Number -1 is the council pre-phase, which sits outside the rotation.
type Iteration struct {
	Number          int                `json:"number"`
	Generation      string             `json:"generation"`
	GenerationModel string             `json:"generation_model"`
	CritiqueModel   string             `json:"critique_model"`
	Critique        *protocol.Critique `json:"critique,omitempty"`

	// IsGenerating and IsCritiquing are transient sub-phase flags. At most
	// one is true at any time across the whole session.
	IsGenerating bool `json:"is_generating"`
	IsCritiquing bool `json:"is_critiquing"`
}

// Clone returns a deep copy of the iteration.
func (it *Iteration) Clone() *Iteration {
	if it == nil {
		return nil
	}
	out := *it
	if it.Critique != nil {
		c := *it.Critique
		c.Strengths = append([]string(nil), it.Critique.Strengths...)
		c.Weaknesses = append([]string(nil), it.Critique.Weaknesses...)
		c.Suggestions = append([]string(nil), it.Critique.Suggestions...)
		out.Critique = &c
	}
	return &out
}

// Session is the root aggregate, one per task submission.
type Session struct {
	ID     string `json:"id"`
	Task   string `json:"task"`
	Status Status `json:"status"`
	Config Config `json:"config"`

	// Iterations is ordered by arrival. The council pre-phase (number -1),
	// when present, is first.
	Iterations []*Iteration `json:"iterations"`

	// CurrentIteration is the number of the iteration currently receiving
	// events. Meaningless unless HasCurrent is true.
	CurrentIteration int  `json:"current_iteration"`
	HasCurrent       bool `json:"has_current"`

	// FinalOutput and FinalScore are set exactly once, on terminal success.
	FinalOutput string  `json:"final_output,omitempty"`
	FinalScore  float64 `json:"final_score,omitempty"`

	// LastError holds the message from a session_error event.
	LastError string `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IterationByNumber returns the iteration with the given number, or nil.
func (s *Session) IterationByNumber(n int) *Iteration {
	for _, it := range s.Iterations {
		if it.Number == n {
			return it
		}
	}
	return nil
}

// Current returns the iteration currently receiving events, or nil if no
// iteration is open.
func (s *Session) Current() *Iteration {
	if !s.HasCurrent {
		return nil
	}
	return s.IterationByNumber(s.CurrentIteration)
}

// Clone returns a deep copy of the session, safe for the caller to hold
// while the store keeps mutating.
func (s *Session) Clone() Session {
	out := *s
	if s.Iterations != nil {
		out.Iterations = make([]*Iteration, len(s.Iterations))
		for i, it := range s.Iterations {
			out.Iterations[i] = it.Clone()
		}
	}
	return out
}
