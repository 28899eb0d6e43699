// Package stream owns the WebSocket connection that delivers reasoning
// events for one session. The Manager guarantees at most one open or
// connecting transport at any time, rebinds cleanly when the target session
// changes, and recovers unintentional drops with bounded linear-backoff
// reconnection. Decoded events are handed to a Sink strictly in delivery
// order.
package stream

import (
	"context"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Iron-Ham/reasonloop/internal/errors"
	"github.com/Iron-Ham/reasonloop/internal/logging"
	"github.com/Iron-Ham/reasonloop/internal/protocol"
	"github.com/Iron-Ham/reasonloop/internal/session"
)

const (
	// DefaultMaxReconnectAttempts bounds automatic recovery after an
	// unintentional close.
	DefaultMaxReconnectAttempts = 3

	// DefaultReconnectBackoff is the linear backoff base: the n-th attempt
	// waits n times this long (1s, 2s, 3s).
	DefaultReconnectBackoff = time.Second

	defaultHandshakeTimeout = 10 * time.Second
)

// Sink receives the manager's output: decoded events in delivery order and
// connectivity flips. Status gates reconnection; only a session still
// believed to be running is worth re-dialing for.
type Sink interface {
	Apply(protocol.Event)
	SetConnected(live bool)
	Status() session.Status
}

// Options configures a Manager.
type Options struct {
	// BaseURL is the server root, e.g. "ws://localhost:8000". Plain http
	// and https schemes are accepted and translated.
	BaseURL string

	// MaxReconnectAttempts overrides the reconnection budget.
	// Zero means DefaultMaxReconnectAttempts.
	MaxReconnectAttempts int

	// ReconnectBackoff overrides the linear backoff base.
	// Zero means DefaultReconnectBackoff.
	ReconnectBackoff time.Duration

	// Dialer overrides the WebSocket dialer.
	Dialer *websocket.Dialer
}

// Manager maintains one streaming connection per bound session id.
//
// The binding, the intentional-close flag, and the attempt counter are the
// shared state between user calls and transport callbacks; they are guarded
// by one mutex and always updated before the corresponding socket operation,
// so a close callback racing a rebind can never resurrect a superseded
// connection.
type Manager struct {
	mu   sync.Mutex
	opts Options
	sink Sink
	log  *logging.Logger

	conn               *websocket.Conn
	connectedSessionID string
	intentionalClose   bool
	reconnectAttempts  int
	reconnectTimer     *time.Timer

	// generation distinguishes the current connection from callbacks of
	// already-superseded ones.
	generation uint64
}

// NewManager creates a Manager dispatching to the given sink.
func NewManager(opts Options, sink Sink, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.NopLogger()
	}
	if opts.MaxReconnectAttempts == 0 {
		opts.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if opts.ReconnectBackoff == 0 {
		opts.ReconnectBackoff = DefaultReconnectBackoff
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout}
	}
	return &Manager{
		opts: opts,
		sink: sink,
		log:  log.WithComponent("stream"),
	}
}

// Connect binds the manager to a session id and opens its streaming channel.
// A connect for the already-bound id with a live or pending connection is a
// no-op. A connect for a different id force-closes the old connection,
// intentionally, before dialing the new one.
func (m *Manager) Connect(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.NewValidationError("session id cannot be empty").WithField("sessionID")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connectedSessionID == sessionID && (m.conn != nil || m.reconnectTimer != nil) {
		return nil
	}
	if m.connectedSessionID != "" && m.connectedSessionID != sessionID {
		m.closeLocked()
	}

	m.connectedSessionID = sessionID
	m.intentionalClose = false
	m.reconnectAttempts = 0

	return m.dialLocked(ctx, sessionID)
}

// Disconnect intentionally closes the connection and clears the binding.
// It is synchronous with respect to a subsequent Connect: no reconnection
// survives it.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.closeLocked()
	m.connectedSessionID = ""
	m.reconnectAttempts = 0
	m.mu.Unlock()

	m.sink.SetConnected(false)
}

// SessionID returns the currently bound session id, empty if none.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectedSessionID
}

// Connected reports whether a transport is currently open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// ReconnectAttempts returns how much of the reconnection budget is spent.
func (m *Manager) ReconnectAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnectAttempts
}

// -----------------------------------------------------------------------------
// Connection Lifecycle (callers hold m.mu)
// -----------------------------------------------------------------------------

// closeLocked marks the next close intentional, stops any pending
// reconnection, and closes the socket. The flag is set before the socket
// operation so the read loop's close handling observes it.
func (m *Manager) closeLocked() {
	m.intentionalClose = true
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	if m.conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = m.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = m.conn.Close()
		m.conn = nil
	}
}

// dialLocked opens the transport for the bound session. On failure the
// attempt is fed into the same reconnection policy as an unintentional
// close.
func (m *Manager) dialLocked(ctx context.Context, sessionID string) error {
	endpoint, err := endpointURL(m.opts.BaseURL, sessionID)
	if err != nil {
		return err
	}

	conn, _, err := m.opts.Dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		m.log.Warn("failed to open stream", "session_id", sessionID, "endpoint", endpoint, "error", err)
		m.scheduleReconnectLocked(sessionID)
		return errors.NewConnectionError("failed to open stream", err).
			WithSessionID(sessionID).
			WithEndpoint(endpoint)
	}

	m.conn = conn
	m.reconnectAttempts = 0
	m.generation++
	gen := m.generation

	m.log.Info("stream connected", "session_id", sessionID, "endpoint", endpoint)
	m.sink.SetConnected(true)

	go m.readLoop(conn, sessionID, gen)
	return nil
}

// scheduleReconnectLocked applies the recovery policy after a connection
// loss: reconnect only while the close was unintentional, the binding is
// unchanged, the session still looks running, and the attempt budget is not
// spent. The counter is incremented before the timer is armed.
func (m *Manager) scheduleReconnectLocked(sessionID string) {
	if m.intentionalClose || m.connectedSessionID != sessionID {
		return
	}
	if m.sink.Status() != session.StatusRunning {
		m.log.Debug("not reconnecting, session not running", "session_id", sessionID)
		return
	}
	if m.reconnectAttempts >= m.opts.MaxReconnectAttempts {
		m.log.Warn("reconnect attempts exhausted", "session_id", sessionID,
			"attempts", m.reconnectAttempts)
		return
	}

	m.reconnectAttempts++
	delay := time.Duration(m.reconnectAttempts) * m.opts.ReconnectBackoff
	m.log.Info("scheduling reconnect", "session_id", sessionID,
		"attempt", m.reconnectAttempts, "delay", delay)

	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.redial(sessionID)
	})
}

// redial runs a scheduled reconnection attempt, re-checking that the
// binding still holds.
func (m *Manager) redial(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reconnectTimer = nil
	if m.intentionalClose || m.connectedSessionID != sessionID || m.conn != nil {
		return
	}
	_ = m.dialLocked(context.Background(), sessionID)
}

// -----------------------------------------------------------------------------
// Read Loop
// -----------------------------------------------------------------------------

// readLoop consumes messages until the connection drops. Malformed messages
// are logged and dropped, never fatal. Events bound to another session id
// are rejected. Terminal events mark the next close intentional before they
// are dispatched, so the server closing the channel afterwards does not
// trigger reconnection.
func (m *Manager) readLoop(conn *websocket.Conn, sessionID string, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(sessionID, gen, err)
			return
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			m.log.Warn("dropping malformed event", "session_id", sessionID, "error", err)
			continue
		}
		if id := ev.SessionID(); id != "" && id != sessionID {
			m.log.Warn("dropping event for different session",
				"bound_session", sessionID, "event_session", id, "type", ev.EventType())
			continue
		}

		if ev.Terminal() {
			m.mu.Lock()
			if m.connectedSessionID == sessionID {
				m.intentionalClose = true
			}
			m.mu.Unlock()
		}

		m.sink.Apply(ev)
	}
}

// handleClose reacts to the transport dropping. Stale generations are
// ignored; the connection they belonged to was already superseded, and its
// close must not flip the connectivity flag out from under the live one.
func (m *Manager) handleClose(sessionID string, gen uint64, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation {
		return
	}
	m.conn = nil
	m.sink.SetConnected(false)

	if m.intentionalClose {
		m.log.Debug("stream closed", "session_id", sessionID)
		return
	}

	m.log.Warn("stream closed unexpectedly", "session_id", sessionID, "error", cause)
	m.scheduleReconnectLocked(sessionID)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// endpointURL derives the per-session streaming endpoint from the server
// root, translating http schemes to their WebSocket equivalents.
func endpointURL(base, sessionID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.NewValidationError("invalid server URL").
			WithField("server_url").WithValue(base)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", errors.NewValidationError("server URL must be ws, wss, http or https").
			WithField("server_url").WithValue(base)
	}
	u.Path = path.Join(u.Path, "ws", "reasoning", sessionID)
	return u.String(), nil
}
