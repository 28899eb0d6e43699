// Package event defines notification types for decoupling components in
// ReasonLoop. The session store publishes these when its state changes so
// the TUI and CLI can react without polling and without a direct dependency
// on the store.
package event

import "time"

// Event is the interface that all notifications must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "session.status_changed").
	EventType() string

	// Timestamp returns when the notification was published.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// Status mirrors session.Status for decoupling; the store translates when
// publishing so subscribers need not import the session package.
type Status string

// -----------------------------------------------------------------------------
// Session Notifications
// -----------------------------------------------------------------------------

// StatusChangedEvent is published when the session status transitions,
// whether server-confirmed or locally optimistic.
type StatusChangedEvent struct {
	baseEvent
	SessionID  string // Session whose status changed
	Previous   Status // Status before the transition
	Current    Status // Status after the transition
	Optimistic bool   // True for locally triggered transitions awaiting server confirmation
}

// NewStatusChangedEvent creates a StatusChangedEvent.
func NewStatusChangedEvent(sessionID string, previous, current Status, optimistic bool) StatusChangedEvent {
	return StatusChangedEvent{
		baseEvent:  newBaseEvent("session.status_changed"),
		SessionID:  sessionID,
		Previous:   previous,
		Current:    current,
		Optimistic: optimistic,
	}
}

// IterationUpdatedEvent is published whenever an iteration receives new
// content: an opened sub-phase, a streamed chunk, or a committed critique.
type IterationUpdatedEvent struct {
	baseEvent
	SessionID string // Owning session
	Iteration int    // Iteration number, -1 for the council pre-phase
}

// NewIterationUpdatedEvent creates an IterationUpdatedEvent.
func NewIterationUpdatedEvent(sessionID string, iteration int) IterationUpdatedEvent {
	return IterationUpdatedEvent{
		baseEvent: newBaseEvent("session.iteration_updated"),
		SessionID: sessionID,
		Iteration: iteration,
	}
}

// SessionResetEvent is published when the store is cleared for a new or
// different session.
type SessionResetEvent struct {
	baseEvent
	SessionID string // New session id, empty if simply cleared
}

// NewSessionResetEvent creates a SessionResetEvent.
func NewSessionResetEvent(sessionID string) SessionResetEvent {
	return SessionResetEvent{
		baseEvent: newBaseEvent("session.reset"),
		SessionID: sessionID,
	}
}

// -----------------------------------------------------------------------------
// Connection Notifications
// -----------------------------------------------------------------------------

// ConnectivityChangedEvent is published when the streaming channel opens or
// closes. Loss of connectivity is an indicator, never a session error.
type ConnectivityChangedEvent struct {
	baseEvent
	SessionID string // Session the connection is bound to
	Live      bool   // True while the channel is open
}

// NewConnectivityChangedEvent creates a ConnectivityChangedEvent.
func NewConnectivityChangedEvent(sessionID string, live bool) ConnectivityChangedEvent {
	return ConnectivityChangedEvent{
		baseEvent: newBaseEvent("connection.state_changed"),
		SessionID: sessionID,
		Live:      live,
	}
}
