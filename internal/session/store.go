package session

import (
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/reasonloop/internal/errors"
	"github.com/Iron-Ham/reasonloop/internal/event"
	"github.com/Iron-Ham/reasonloop/internal/logging"
	"github.com/Iron-Ham/reasonloop/internal/protocol"
	"github.com/Iron-Ham/reasonloop/internal/rotation"
)

// Store holds one session and applies inbound events to it.
//
// All transitions are serialized under one mutex: the connection manager's
// read loop, the command client's optimistic transitions, and snapshot reads
// from the TUI never observe a half-applied event. The reducer itself is
// deterministic; replaying the same event sequence yields the same state.
//
// A Store is an explicit instance, created once per session lifecycle and
// injected into its consumers.
type Store struct {
	mu  sync.RWMutex
	log *logging.Logger
	bus *event.Bus

	sess      Session
	connected bool

	// critiqueBuf accumulates streamed raw critique text per iteration.
	// The structured critique is only committed on critique_complete.
	critiqueBuf map[int]*strings.Builder

	// confirmed is the last server-confirmed status, kept for rolling back
	// optimistic transitions when their command fails.
	confirmed  Status
	optimistic bool
}

// NewStore creates an empty Store. The bus may be nil, in which case no
// notifications are published.
func NewStore(bus *event.Bus, log *logging.Logger) *Store {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Store{
		log:         log.WithComponent("store"),
		bus:         bus,
		critiqueBuf: make(map[int]*strings.Builder),
	}
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Begin replaces the store's state with a fresh idle session. Call it when
// the server has issued a new session id for a submitted task.
func (s *Store) Begin(id, task string, cfg Config) {
	s.mu.Lock()
	now := time.Now()
	s.sess = Session{
		ID:        id,
		Task:      task,
		Status:    StatusIdle,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.confirmed = StatusIdle
	s.optimistic = false
	s.critiqueBuf = make(map[int]*strings.Builder)
	s.mu.Unlock()

	s.log.Info("session initialized", "session_id", id)
	s.publish(event.NewSessionResetEvent(id))
}

// Reset clears the store entirely.
func (s *Store) Reset() {
	s.mu.Lock()
	s.sess = Session{}
	s.confirmed = ""
	s.optimistic = false
	s.critiqueBuf = make(map[int]*strings.Builder)
	s.mu.Unlock()

	s.publish(event.NewSessionResetEvent(""))
}

// LoadHistorical replaces the store's state with a persisted session, for
// viewing finished runs. The loaded status counts as server-confirmed.
func (s *Store) LoadHistorical(sess Session) {
	s.mu.Lock()
	s.sess = sess.Clone()
	s.confirmed = sess.Status
	s.optimistic = false
	s.critiqueBuf = make(map[int]*strings.Builder)
	s.mu.Unlock()

	s.publish(event.NewSessionResetEvent(sess.ID))
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

// Snapshot returns a deep copy of the session, safe to hold while the store
// keeps mutating.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess.Clone()
}

// SessionID returns the current session id, empty if none.
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess.ID
}

// Status returns the current session status.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess.Status
}

// CritiqueBuffer returns the raw critique text streamed so far for an
// iteration. Empty once the structured critique is committed.
func (s *Store) CritiqueBuffer(iteration int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if buf, ok := s.critiqueBuf[iteration]; ok {
		return buf.String()
	}
	return ""
}

// Connected reports whether the streaming channel is live.
func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// -----------------------------------------------------------------------------
// Connectivity
// -----------------------------------------------------------------------------

// SetConnected flips the connectivity indicator. Loss of connectivity is
// never a session error; the status keeps its last observed value.
func (s *Store) SetConnected(live bool) {
	s.mu.Lock()
	if s.connected == live {
		s.mu.Unlock()
		return
	}
	s.connected = live
	id := s.sess.ID
	s.mu.Unlock()

	s.publish(event.NewConnectivityChangedEvent(id, live))
}

// -----------------------------------------------------------------------------
// Locally Triggered Transitions
// -----------------------------------------------------------------------------

// SetStatusOptimistic records a locally triggered status transition before
// the server confirms it: running on submit, paused/running around offline
// detection. The previous confirmed status is retained for rollback. Server
// events always override an optimistic status.
func (s *Store) SetStatusOptimistic(st Status) error {
	s.mu.Lock()
	if s.sess.Status.Terminal() {
		id := s.sess.ID
		s.mu.Unlock()
		return errors.NewSessionError("cannot transition status", errors.ErrSessionTerminal).
			WithSessionID(id)
	}
	if !s.optimistic {
		s.confirmed = s.sess.Status
	}
	prev := s.sess.Status
	s.sess.Status = st
	s.sess.UpdatedAt = time.Now()
	s.optimistic = true
	id := s.sess.ID
	s.mu.Unlock()

	s.log.Debug("optimistic status transition", "session_id", id, "from", prev, "to", st)
	s.publishStatus(id, prev, st, true)
	return nil
}

// ReopenOptimistic returns a finished session to running ahead of server
// confirmation. Only the retry command uses it: a retry continues on the
// same session id and channel, so the terminal guard does not apply.
func (s *Store) ReopenOptimistic() {
	s.mu.Lock()
	if !s.optimistic {
		s.confirmed = s.sess.Status
	}
	prev := s.sess.Status
	s.sess.Status = StatusRunning
	s.sess.UpdatedAt = time.Now()
	s.optimistic = true
	id := s.sess.ID
	s.mu.Unlock()

	s.log.Debug("session reopened for retry", "session_id", id)
	s.publishStatus(id, prev, StatusRunning, true)
}

// RollbackStatus undoes a pending optimistic transition after its command
// failed, restoring the last confirmed status. No-op if nothing is pending.
func (s *Store) RollbackStatus() {
	s.mu.Lock()
	if !s.optimistic {
		s.mu.Unlock()
		return
	}
	prev := s.sess.Status
	s.sess.Status = s.confirmed
	s.sess.UpdatedAt = time.Now()
	s.optimistic = false
	id := s.sess.ID
	cur := s.sess.Status
	s.mu.Unlock()

	s.log.Debug("optimistic status rolled back", "session_id", id, "from", prev, "to", cur)
	s.publishStatus(id, prev, cur, true)
}

// -----------------------------------------------------------------------------
// Reducer
// -----------------------------------------------------------------------------

// Apply folds one inbound event into the session state. Events that fail
// their precondition are logged and dropped; they never fail the stream.
// Unknown events leave the state untouched.
func (s *Store) Apply(ev protocol.Event) {
	if u, ok := ev.(protocol.Unknown); ok {
		s.log.Debug("ignoring unknown event type", "type", u.WireType)
		return
	}

	s.mu.Lock()
	var notes []event.Event
	defer func() {
		s.mu.Unlock()
		for _, n := range notes {
			s.publish(n)
		}
	}()

	// The connection manager already rejects stray events from superseded
	// sessions; this guard covers direct feeds and historical replays.
	if id := ev.SessionID(); id != "" {
		if s.sess.ID == "" {
			s.sess.ID = id
		} else if id != s.sess.ID {
			s.log.Warn("dropping event for different session",
				"event_session", id, "bound_session", s.sess.ID, "type", ev.EventType())
			return
		}
	}

	switch e := ev.(type) {
	case protocol.SessionStarted:
		if s.sess.Status != "" && s.sess.Status != StatusIdle && s.sess.Status != StatusRunning {
			s.log.Warn("session_started in unexpected status", "status", s.sess.Status)
			return
		}
		notes = s.confirmStatus(StatusRunning)

	case protocol.GenerationStart:
		it := s.openIteration(e.Iteration())
		s.clearPhaseFlags()
		it.IsGenerating = true
		s.touch()
		notes = append(notes, event.NewIterationUpdatedEvent(s.sess.ID, it.Number))

	case protocol.GenerationChunk:
		it := s.sess.Current()
		if it == nil {
			s.log.Warn("generation_chunk with no iteration open", "iteration", e.Iteration())
			return
		}
		it.Generation += e.Content
		s.touch()
		notes = append(notes, event.NewIterationUpdatedEvent(s.sess.ID, it.Number))

	case protocol.GenerationComplete:
		// The final content is authoritative and replaces any text
		// accumulated from chunks.
		it := s.openIteration(e.Iteration())
		it.Generation = e.Content
		it.IsGenerating = false
		s.touch()
		notes = append(notes, event.NewIterationUpdatedEvent(s.sess.ID, it.Number))

	case protocol.CritiqueStart:
		it := s.currentOrOpen(e.Iteration())
		s.clearPhaseFlags()
		it.IsCritiquing = true
		s.touch()
		notes = append(notes, event.NewIterationUpdatedEvent(s.sess.ID, it.Number))

	case protocol.CritiqueChunk:
		it := s.sess.Current()
		if it == nil {
			s.log.Warn("critique_chunk with no iteration open", "iteration", e.Iteration())
			return
		}
		buf, ok := s.critiqueBuf[it.Number]
		if !ok {
			buf = &strings.Builder{}
			s.critiqueBuf[it.Number] = buf
		}
		buf.WriteString(e.Content)
		s.touch()
		notes = append(notes, event.NewIterationUpdatedEvent(s.sess.ID, it.Number))

	case protocol.CritiqueComplete:
		if e.Critique == nil {
			s.log.Warn("critique_complete without critique payload", "iteration", e.Iteration())
			return
		}
		it := s.currentOrOpen(e.Iteration())
		if it.Generation == "" {
			s.log.Warn("critique_complete before any generation text", "iteration", it.Number)
			return
		}
		it.Critique = cloneCritique(e.Critique)
		it.IsCritiquing = false
		delete(s.critiqueBuf, it.Number)
		s.touch()
		notes = append(notes, event.NewIterationUpdatedEvent(s.sess.ID, it.Number))

	case protocol.IterationComplete:
		// Defensive re-assertion of the full iteration result; idempotent
		// with the finer-grained events. Requires both the critique payload
		// and an explicit score.
		if e.Critique == nil || e.Score == nil {
			s.log.Warn("iteration_complete without critique and score", "iteration", e.Iteration())
			return
		}
		it := s.openIteration(e.Iteration())
		if e.Content != "" {
			it.Generation = e.Content
		}
		it.Critique = cloneCritique(e.Critique)
		it.IsGenerating = false
		it.IsCritiquing = false
		delete(s.critiqueBuf, it.Number)
		s.touch()
		notes = append(notes, event.NewIterationUpdatedEvent(s.sess.ID, it.Number))

	case protocol.SessionComplete:
		s.sess.FinalOutput = e.Content
		s.sess.FinalScore = e.Score
		s.clearPhaseFlags()
		notes = s.confirmStatus(StatusCompleted)

	case protocol.SessionStopped:
		s.clearPhaseFlags()
		notes = s.confirmStatus(StatusStopped)

	case protocol.SessionPaused:
		notes = s.confirmStatus(StatusPaused)

	case protocol.SessionResumed:
		notes = s.confirmStatus(StatusRunning)

	case protocol.SessionError:
		s.sess.LastError = e.Message
		s.clearPhaseFlags()
		notes = s.confirmStatus(StatusError)

	default:
		s.log.Warn("no reducer case for event", "type", ev.EventType())
	}
}

// -----------------------------------------------------------------------------
// Reducer Internals (callers hold s.mu)
// -----------------------------------------------------------------------------

// openIteration finds or creates the iteration with the given number and
// marks it current. New iterations get their model assignments pre-filled
// from the rotation, so the UI can render roles before the server confirms
// them. The council pre-phase sits outside the rotation and gets none.
func (s *Store) openIteration(n int) *Iteration {
	it := s.sess.IterationByNumber(n)
	if it == nil {
		it = &Iteration{Number: n}
		if !rotation.Council(n) {
			assign := rotation.Rotate(s.sess.Config.Roster(), n)
			it.GenerationModel = assign.Generator
			it.CritiqueModel = assign.Critic
		}
		s.sess.Iterations = append(s.sess.Iterations, it)
	}
	s.sess.CurrentIteration = n
	s.sess.HasCurrent = true
	return it
}

// currentOrOpen returns the iteration currently receiving events, falling
// back to opening the one the event names when none is open.
func (s *Store) currentOrOpen(n int) *Iteration {
	if it := s.sess.Current(); it != nil {
		return it
	}
	return s.openIteration(n)
}

// clearPhaseFlags drops all transient sub-phase flags, preserving the
// invariant that at most one is set across the session.
func (s *Store) clearPhaseFlags() {
	for _, it := range s.sess.Iterations {
		it.IsGenerating = false
		it.IsCritiquing = false
	}
}

// confirmStatus records a server-confirmed status, clearing any pending
// optimistic transition. Returns the notifications to publish.
func (s *Store) confirmStatus(st Status) []event.Event {
	prev := s.sess.Status
	s.sess.Status = st
	s.confirmed = st
	s.optimistic = false
	s.touch()
	if prev == st {
		return nil
	}
	return []event.Event{event.NewStatusChangedEvent(s.sess.ID, event.Status(prev), event.Status(st), false)}
}

func (s *Store) touch() {
	s.sess.UpdatedAt = time.Now()
}

func cloneCritique(c *protocol.Critique) *protocol.Critique {
	out := *c
	out.Strengths = append([]string(nil), c.Strengths...)
	out.Weaknesses = append([]string(nil), c.Weaknesses...)
	out.Suggestions = append([]string(nil), c.Suggestions...)
	return &out
}

// -----------------------------------------------------------------------------
// Publishing
// -----------------------------------------------------------------------------

func (s *Store) publish(ev event.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

func (s *Store) publishStatus(id string, prev, cur Status, optimistic bool) {
	s.publish(event.NewStatusChangedEvent(id, event.Status(prev), event.Status(cur), optimistic))
}
