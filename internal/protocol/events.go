// Package protocol defines the inbound event protocol for a reasoning
// session's streaming channel. Each message on the channel is one JSON
// envelope; Decode turns an envelope into a concrete typed event so that
// consumers dispatch on Go types rather than string comparisons, and adding
// a new event type is a compile-time decision.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/Iron-Ham/reasonloop/internal/errors"
)

// Wire values for the event "type" field.
const (
	TypeSessionStarted     = "session_started"
	TypeGenerationStart    = "generation_start"
	TypeGenerationChunk    = "generation_chunk"
	TypeGenerationComplete = "generation_complete"
	TypeCritiqueStart      = "critique_start"
	TypeCritiqueChunk      = "critique_chunk"
	TypeCritiqueComplete   = "critique_complete"
	TypeIterationComplete  = "iteration_complete"
	TypeSessionComplete    = "session_complete"
	TypeSessionStopped     = "session_stopped"
	TypeSessionPaused      = "session_paused"
	TypeSessionResumed     = "session_resumed"
	TypeSessionError       = "session_error"
)

// CouncilIteration is the reserved iteration index for the council pre-phase.
// Council events accumulate into a pseudo-iteration that is outside the
// role rotation.
const CouncilIteration = -1

// Critique is the structured result produced by the critic model.
type Critique struct {
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	Suggestions []string `json:"suggestions"`
	Score       float64  `json:"score"`
	RawCritique string   `json:"raw_critique"`
}

// Event is the interface implemented by all inbound events.
type Event interface {
	// EventType returns the wire identifier for this event.
	EventType() string

	// SessionID returns the session this event belongs to.
	SessionID() string

	// Iteration returns the iteration index the event refers to.
	// CouncilIteration (-1) denotes the council pre-phase.
	Iteration() int

	// Timestamp returns the server-side emission time, zero if absent
	// or unparseable.
	Timestamp() time.Time

	// Terminal reports whether this event ends the session, meaning the
	// connection's next close must be treated as intentional.
	Terminal() bool
}

// meta provides the common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type meta struct {
	eventType string
	sessionID string
	iteration int
	timestamp time.Time
}

func (m meta) EventType() string    { return m.eventType }
func (m meta) SessionID() string    { return m.sessionID }
func (m meta) Iteration() int       { return m.iteration }
func (m meta) Timestamp() time.Time { return m.timestamp }
func (m meta) Terminal() bool       { return false }

// -----------------------------------------------------------------------------
// Event Variants
// -----------------------------------------------------------------------------

// SessionStarted confirms that the server accepted the session and the
// reasoning loop is running.
type SessionStarted struct{ meta }

// GenerationStart opens a new iteration for generation output.
type GenerationStart struct{ meta }

// GenerationChunk carries an incremental piece of generation text for
// responsive display. Chunks accumulate; they never replace.
type GenerationChunk struct {
	meta
	Content string
}

// GenerationComplete carries the authoritative final generation text.
// It supersedes whatever was accumulated from chunks.
type GenerationComplete struct {
	meta
	Content string
}

// CritiqueStart marks the beginning of the critique sub-phase.
type CritiqueStart struct{ meta }

// CritiqueChunk carries an incremental piece of raw critique text. The
// structured critique cannot be partially rendered, so chunks are only
// buffered, never committed.
type CritiqueChunk struct {
	meta
	Content string
}

// CritiqueComplete carries the parsed, structured critique.
type CritiqueComplete struct {
	meta
	Score    float64
	Critique *Critique
}

// IterationComplete re-asserts the full iteration result. It covers servers
// that do not emit the finer-grained events and must be idempotent with them.
// Score stays a pointer: the reducer requires both the critique payload and
// an explicit score before committing the re-assertion.
type IterationComplete struct {
	meta
	Content  string
	Score    *float64
	Critique *Critique
}

// SessionComplete carries the final output and score. Terminal.
type SessionComplete struct {
	meta
	Content string
	Score   float64
}

func (SessionComplete) Terminal() bool { return true }

// SessionStopped reports that the user stopped the session. Terminal.
type SessionStopped struct {
	meta
	Content string
}

func (SessionStopped) Terminal() bool { return true }

// SessionPaused reports that the server paused the reasoning loop.
type SessionPaused struct{ meta }

// SessionResumed reports that the server resumed the reasoning loop.
type SessionResumed struct{ meta }

// SessionError reports a server-side failure. Terminal.
type SessionError struct {
	meta
	Message string
}

func (SessionError) Terminal() bool { return true }

// Unknown is returned for event types this client does not recognize.
// Consumers must leave state untouched when they receive one; this keeps
// the protocol forward-compatible.
type Unknown struct {
	meta
	WireType string
}

// -----------------------------------------------------------------------------
// Decoding
// -----------------------------------------------------------------------------

// envelope mirrors the wire format of one streamed message.
type envelope struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Iteration int       `json:"iteration"`
	Content   string    `json:"content"`
	Score     *float64  `json:"score"`
	Critique  *Critique `json:"critique"`
	Timestamp string    `json:"timestamp"`
}

// Decode parses one streamed message into a typed event.
// A message that is not valid JSON (or not an object) yields a ProtocolError
// wrapping ErrMalformedEvent; callers log and drop it. A structurally valid
// message with an unrecognized type decodes to Unknown.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.NewProtocolError("failed to decode event envelope", errors.ErrMalformedEvent).
			WithEventType(env.Type)
	}
	if env.Type == "" {
		return nil, errors.NewProtocolError("event has no type", errors.ErrMalformedEvent)
	}

	m := meta{
		eventType: env.Type,
		sessionID: env.SessionID,
		iteration: env.Iteration,
		timestamp: parseTimestamp(env.Timestamp),
	}

	switch env.Type {
	case TypeSessionStarted:
		return SessionStarted{m}, nil
	case TypeGenerationStart:
		return GenerationStart{m}, nil
	case TypeGenerationChunk:
		return GenerationChunk{meta: m, Content: env.Content}, nil
	case TypeGenerationComplete:
		return GenerationComplete{meta: m, Content: env.Content}, nil
	case TypeCritiqueStart:
		return CritiqueStart{m}, nil
	case TypeCritiqueChunk:
		return CritiqueChunk{meta: m, Content: env.Content}, nil
	case TypeCritiqueComplete:
		return CritiqueComplete{meta: m, Score: scoreOrZero(env.Score), Critique: env.Critique}, nil
	case TypeIterationComplete:
		return IterationComplete{meta: m, Content: env.Content, Score: env.Score, Critique: env.Critique}, nil
	case TypeSessionComplete:
		return SessionComplete{meta: m, Content: env.Content, Score: scoreOrZero(env.Score)}, nil
	case TypeSessionStopped:
		return SessionStopped{meta: m, Content: env.Content}, nil
	case TypeSessionPaused:
		return SessionPaused{m}, nil
	case TypeSessionResumed:
		return SessionResumed{m}, nil
	case TypeSessionError:
		return SessionError{meta: m, Message: env.Content}, nil
	default:
		return Unknown{meta: m, WireType: env.Type}, nil
	}
}

// scoreOrZero defaults an absent score to 0 (spec'd behavior for
// session_complete without a score).
func scoreOrZero(s *float64) float64 {
	if s == nil {
		return 0
	}
	return *s
}

// parseTimestamp accepts RFC 3339 with or without sub-second precision.
// The backend emits ISO 8601; anything unparseable becomes the zero time
// rather than an error, because timestamps are informational only.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
