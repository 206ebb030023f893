// Package channel owns the bidirectional UI channel: the session registry,
// per-session sequence counters, and room-based fan-out.
package channel

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/lexdraft/lexdraft/internal/action"
)

// writeTimeout bounds a single broadcast write so one stuck subscriber
// cannot stall emission for the whole room.
const writeTimeout = 5 * time.Second

// Session is the registry record for one live UI participant.
type Session struct {
	ID           string
	UserID       string
	Room         string
	CreatedAt    time.Time
	LastActivity time.Time
	seq          uint64
}

// RoomFor derives the fan-out room for a session id. The mapping is
// deterministic so a reconnecting client lands in the same room.
func RoomFor(sessionID string) string {
	return "ui:" + sessionID
}

// Manager multiplexes UI sessions over named rooms. All state is in-memory;
// sessions do not survive a process restart.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	rooms    map[string]map[Subscriber]struct{}
	bySub    map[Subscriber]map[string]struct{}
}

// NewManager creates an empty channel manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[Subscriber]struct{}),
		bySub:    make(map[Subscriber]map[string]struct{}),
	}
}

// Join creates or resets the session record, subscribes sub to the
// session's room, and returns the room identifier. Re-joining with the
// same id resets the record (fresh creation time, sequence back to 0) but
// is otherwise idempotent.
func (m *Manager) Join(sessionID, userID string, sub Subscriber) string {
	room := RoomFor(sessionID)
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sessionID] = &Session{
		ID:           sessionID,
		UserID:       userID,
		Room:         room,
		CreatedAt:    now,
		LastActivity: now,
	}

	if sub != nil {
		if _, ok := m.rooms[room]; !ok {
			m.rooms[room] = make(map[Subscriber]struct{})
		}
		m.rooms[room][sub] = struct{}{}

		if _, ok := m.bySub[sub]; !ok {
			m.bySub[sub] = make(map[string]struct{})
		}
		m.bySub[sub][sessionID] = struct{}{}
	}

	slog.Info("UI session joined", "session_id", sessionID, "user_id", userID, "room", room)
	return room
}

// Leave deletes the session record, its sequence counter, and the room
// subscriptions. Unknown sessions are a no-op.
func (m *Manager) Leave(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(sessionID)
}

func (m *Manager) leaveLocked(sessionID string) {
	sess, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	delete(m.sessions, sessionID)

	for sub := range m.rooms[sess.Room] {
		if owned, ok := m.bySub[sub]; ok {
			delete(owned, sessionID)
			if len(owned) == 0 {
				delete(m.bySub, sub)
			}
		}
	}
	delete(m.rooms, sess.Room)
	slog.Info("UI session left", "session_id", sessionID, "room", sess.Room)
}

// OnDisconnect performs Leave for every session subscribed through the
// disconnecting transport.
func (m *Manager) OnDisconnect(sub Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owned, ok := m.bySub[sub]
	if !ok {
		return
	}
	for sessionID := range owned {
		m.leaveLocked(sessionID)
	}
	delete(m.bySub, sub)
}

// Has reports whether a session is currently joined.
func (m *Manager) Has(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[sessionID]
	return ok
}

// Snapshot returns a copy of the session record, or nil if unknown.
func (m *Manager) Snapshot(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	cp := *sess
	return &cp
}

// SessionCount returns the number of joined sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Emit stamps each action with the session's next sequence number (in
// array order) and the current timestamp, then broadcasts the batch to the
// session's room. Returns false without side effects if the session is
// unknown. Sequence assignment and broadcast happen under the manager
// lock so two concurrent emissions to the same session cannot interleave
// out of order.
func (m *Manager) Emit(sessionID string, actions []action.Action) bool {
	return m.emit(sessionID, func(sess *Session) ([]byte, error) {
		now := time.Now().UnixMilli()
		batch := make([]action.Action, len(actions))
		for i, a := range actions {
			sess.seq++
			a.Sequence = sess.seq
			a.Timestamp = now
			batch[i] = a
		}
		return json.Marshal(actionsEvent{Type: EventActions, Actions: batch})
	})
}

// EmitToolResult broadcasts a raw tool result to the session's room under
// the same sequencing discipline as Emit, as a distinct event type.
func (m *Manager) EmitToolResult(sessionID, tool string, result any) bool {
	return m.emit(sessionID, func(sess *Session) ([]byte, error) {
		sess.seq++
		return json.Marshal(toolResultEvent{
			Type:      EventToolResult,
			Tool:      tool,
			Result:    result,
			Timestamp: time.Now().UnixMilli(),
			Sequence:  sess.seq,
		})
	})
}

// Touch refreshes the session's last-activity timestamp (heartbeat).
func (m *Manager) Touch(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[sessionID]; ok {
		sess.LastActivity = time.Now()
	}
}

func (m *Manager) emit(sessionID string, build func(*Session) ([]byte, error)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		slog.Warn("emit to unknown session", "session_id", sessionID)
		return false
	}

	data, err := build(sess)
	if err != nil {
		slog.Error("failed to marshal channel event", "session_id", sessionID, "error", err)
		return false
	}
	sess.LastActivity = time.Now()

	for sub := range m.rooms[sess.Room] {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := sub.Send(ctx, data); err != nil {
			slog.Debug("channel write failed", "session_id", sessionID, "error", err)
		}
		cancel()
	}
	return true
}
