// Package errors provides centralized error definitions and error handling
// utilities for ReasonLoop. It defines domain-specific errors, semantic error
// types, error constructors with context wrapping, and classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - SessionError: errors related to reasoning session state
//   - ConnectionError: errors related to the streaming transport
//   - ProtocolError: errors related to inbound event decoding
//
// Semantic errors represent common conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewSessionError("failed to apply event", errors.ErrSessionTerminal)
//	err = err.WithSessionID("abc123")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrSessionNotFound) { ... }
//
//	var connErr *errors.ConnectionError
//	if errors.As(err, &connErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Session-related sentinel errors
var (
	// ErrSessionNotFound indicates that a session could not be found.
	ErrSessionNotFound = New("session not found")
	// ErrSessionTerminal indicates that a session has reached a terminal status
	// and can no longer accept transitions.
	ErrSessionTerminal = New("session is in a terminal state")
	// ErrSessionCorrupted indicates that persisted session data is corrupted.
	ErrSessionCorrupted = New("session data corrupted")
)

// Connection-related sentinel errors
var (
	// ErrConnectionClosed indicates that the transport is not open.
	ErrConnectionClosed = New("connection closed")
)

// Protocol-related sentinel errors
var (
	// ErrMalformedEvent indicates that an inbound message could not be decoded.
	ErrMalformedEvent = New("malformed event")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// SessionError represents errors related to reasoning session state.
//
// Example:
//
//	err := errors.NewSessionError("cannot resume", errors.ErrSessionTerminal)
//	err = err.WithSessionID("abc123")
//	fmt.Println(err) // "session error [session=abc123]: cannot resume: session is in a terminal state"
type SessionError struct {
	baseError
	SessionID string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{message: message, cause: cause},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *SessionError) WithSessionID(id string) *SessionError {
	e.SessionID = id
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	prefix := "session error"
	if e.SessionID != "" {
		prefix = fmt.Sprintf("session error [session=%s]", e.SessionID)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SessionError) Is(target error) bool {
	if _, ok := target.(*SessionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ConnectionError represents errors related to the streaming transport.
// Transport failures are transient by default: the connection manager
// recovers them with bounded reconnection, so they are never surfaced as a
// terminal session error.
type ConnectionError struct {
	baseError
	SessionID string
	Endpoint  string
}

// NewConnectionError creates a new ConnectionError. Connection errors are
// retryable unless overridden.
func NewConnectionError(message string, cause error) *ConnectionError {
	return &ConnectionError{
		baseError: baseError{message: message, cause: cause, retryable: true},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *ConnectionError) WithSessionID(id string) *ConnectionError {
	e.SessionID = id
	return e
}

// WithEndpoint adds the endpoint URL to the error context.
func (e *ConnectionError) WithEndpoint(url string) *ConnectionError {
	e.Endpoint = url
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ConnectionError) WithRetryable(r bool) *ConnectionError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *ConnectionError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.Endpoint != "" {
		parts = append(parts, fmt.Sprintf("endpoint=%s", e.Endpoint))
	}

	prefix := "connection error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("connection error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ConnectionError) Is(target error) bool {
	if _, ok := target.(*ConnectionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ProtocolError represents errors related to inbound event decoding.
// Protocol errors are dropped with a log entry and are never fatal to the
// connection.
type ProtocolError struct {
	baseError
	EventType string
}

// NewProtocolError creates a new ProtocolError.
func NewProtocolError(message string, cause error) *ProtocolError {
	return &ProtocolError{
		baseError: baseError{message: message, cause: cause},
	}
}

// WithEventType adds the offending event type to the error context.
func (e *ProtocolError) WithEventType(t string) *ProtocolError {
	e.EventType = t
	return e
}

// Error returns the formatted error message.
func (e *ProtocolError) Error() string {
	prefix := "protocol error"
	if e.EventType != "" {
		prefix = fmt.Sprintf("protocol error [type=%s]", e.EventType)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ProtocolError) Is(target error) bool {
	if _, ok := target.(*ProtocolError); ok {
		return true
	}
	if errors.Is(target, ErrMalformedEvent) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("session", "abc123")
//	fmt.Println(err) // "session 'abc123' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message: fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if errors.Is(target, ErrSessionNotFound) && e.ResourceType == "session" {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{message: message},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// retryable is implemented by errors that know whether they are transient.
type retryable interface {
	IsRetryable() bool
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. Connection errors are retryable by default;
// session and protocol errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var r retryable
	if As(err, &r) {
		return r.IsRetryable()
	}
	return false
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with an additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to start session")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to load session %s", sessionID)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
