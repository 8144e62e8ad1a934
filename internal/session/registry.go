// internal/session/registry.go
package session

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks live connections and their room channel bindings.
// It provides thread-safe binding and per-room broadcast; it knows nothing
// about room semantics (that is the room service's job).
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session               // userID -> live connection
	rooms    map[uuid.UUID]map[uuid.UUID]*Session // roomID -> bound connections by userID
}

// NewRegistry initializes an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		rooms:    make(map[uuid.UUID]map[uuid.UUID]*Session),
	}
}

// Register records a newly accepted connection. A second connection for the
// same user replaces the first; the old session's pumps are cancelled.
func (r *Registry) Register(sess *Session) {
	r.mu.Lock()
	old, exists := r.sessions[sess.UserID]
	r.sessions[sess.UserID] = sess
	r.mu.Unlock()

	if exists && old != sess {
		log.Printf("Registry: user %s replaced an existing connection.", sess.UserID)
		if old.Cancel != nil {
			old.Cancel()
		}
	}
}

// Drop removes a connection and any room bindings it held. Called from the
// connection's cleanup path; it is a no-op for a session already replaced.
func (r *Registry) Drop(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[sess.UserID]; ok && cur == sess {
		delete(r.sessions, sess.UserID)
	}
	for roomID, conns := range r.rooms {
		if cur, ok := conns[sess.UserID]; ok && cur == sess {
			delete(conns, sess.UserID)
			if len(conns) == 0 {
				delete(r.rooms, roomID)
			}
		}
	}
}

// Get returns the live session for a user, if any.
func (r *Registry) Get(userID uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[userID]
	return sess, ok
}

// Bind attaches a session to a room's broadcast channel.
func (r *Registry) Bind(roomID uuid.UUID, sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns, ok := r.rooms[roomID]
	if !ok {
		conns = make(map[uuid.UUID]*Session)
		r.rooms[roomID] = conns
	}
	conns[sess.UserID] = sess
}

// Unbind detaches a user from a room's broadcast channel.
func (r *Registry) Unbind(roomID, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(conns, userID)
	if len(conns) == 0 {
		delete(r.rooms, roomID)
	}
}

// Broadcast writes an event to every connection bound to the room.
func (r *Registry) Broadcast(roomID uuid.UUID, v any) {
	r.mu.Lock()
	targets := make([]*Session, 0, len(r.rooms[roomID]))
	for _, sess := range r.rooms[roomID] {
		targets = append(targets, sess)
	}
	r.mu.Unlock()

	for _, sess := range targets {
		sess.Write(v)
	}
}
