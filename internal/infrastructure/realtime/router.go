package realtime

import (
	"sync"

	"github.com/gorilla/websocket"

	"changanet/internal/infrastructure/metrics"
)

// Router tracks the live websocket sessions of each user and fans frames out
// to all of them. Delivery is best effort: a user with no session simply
// receives nothing.
type Router struct {
	mu           sync.RWMutex
	sessions     map[string]*Connection            // sessionID -> connection
	userSessions map[string]map[string]*Connection // userID -> sessionID -> connection
}

// NewRouter constructs an initialized Router.
func NewRouter() *Router {
	return &Router{
		sessions:     make(map[string]*Connection),
		userSessions: make(map[string]map[string]*Connection),
	}
}

// Attach registers a connection and starts its write loop.
func (r *Router) Attach(conn *Connection) {
	r.mu.Lock()
	r.sessions[conn.ID] = conn
	byUser := r.userSessions[conn.UserID]
	if byUser == nil {
		byUser = make(map[string]*Connection)
		r.userSessions[conn.UserID] = byUser
	}
	byUser[conn.ID] = conn
	r.mu.Unlock()

	metrics.RecordConnectionOpened()
	conn.Start()
}

// Detach removes a connection if it is still tracked.
func (r *Router) Detach(conn *Connection) {
	r.mu.Lock()
	removed := r.detachLocked(conn.ID)
	r.mu.Unlock()
	if removed {
		metrics.RecordConnectionClosed()
	}
}

// NotifyUser delivers payload to every connection of userID and returns how
// many accepted it.
func (r *Router) NotifyUser(userID string, payload []byte) int {
	return r.notify(userID, "", payload)
}

// NotifyUserExcept is NotifyUser skipping one session, typically the one
// that originated the event.
func (r *Router) NotifyUserExcept(userID, sessionID string, payload []byte) int {
	return r.notify(userID, sessionID, payload)
}

// Sessions returns the number of live connections of userID.
func (r *Router) Sessions(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userSessions[userID])
}

// Close terminates all tracked connections and clears router state.
func (r *Router) Close() {
	r.mu.Lock()
	sessions := make([]*Connection, 0, len(r.sessions))
	for _, conn := range r.sessions {
		sessions = append(sessions, conn)
	}
	r.sessions = make(map[string]*Connection)
	r.userSessions = make(map[string]map[string]*Connection)
	r.mu.Unlock()

	for _, conn := range sessions {
		metrics.RecordConnectionClosed()
		conn.Close(websocket.CloseGoingAway, "server shutdown")
	}
}

func (r *Router) notify(userID, skipSession string, payload []byte) int {
	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.userSessions[userID]))
	for id, conn := range r.userSessions[userID] {
		if id == skipSession {
			continue
		}
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	// Send may close a slow connection, so it runs outside the lock.
	delivered := 0
	for _, conn := range targets {
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

func (r *Router) detachLocked(sessionID string) bool {
	conn, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	delete(r.sessions, sessionID)
	if byUser := r.userSessions[conn.UserID]; byUser != nil {
		delete(byUser, sessionID)
		if len(byUser) == 0 {
			delete(r.userSessions, conn.UserID)
		}
	}
	return true
}
