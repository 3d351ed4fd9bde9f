package notify

import (
	"log/slog"
	"sync"
)

// Registry tracks live subscriber sessions per user. It is purely ephemeral:
// nothing survives a restart, and pushing to a user with no sessions is a
// silent no-op.
//
// Concurrency guarantees:
// - Subscribe/Unsubscribe are safe under concurrent Push.
// - Push never blocks (drops under backpressure).
// - Push is panic-safe because Client.Send is never closed by the server.
type Registry struct {
	log     *slog.Logger
	metrics *Metrics

	mu       sync.RWMutex
	sessions map[string]map[string]*Client // user id -> session id -> client
}

// NewRegistry constructs a registry. A nil metrics disables counting.
func NewRegistry(log *slog.Logger, metrics *Metrics) *Registry {
	return &Registry{
		log:      log,
		metrics:  metrics,
		sessions: make(map[string]map[string]*Client),
	}
}

// Subscribe registers a client under its user id.
func (r *Registry) Subscribe(client *Client) {
	if r == nil || client == nil || client.UserID == "" || client.SessionID == "" {
		return
	}

	r.mu.Lock()
	byUser := r.sessions[client.UserID]
	if byUser == nil {
		byUser = make(map[string]*Client)
		r.sessions[client.UserID] = byUser
	}
	byUser[client.SessionID] = client
	r.mu.Unlock()

	r.metrics.subscriberAdd(1)
	r.log.Info("notify.subscribe", "user_id", client.UserID, "session_id", client.SessionID)
}

// Unsubscribe removes a session and signals shutdown for its client.
func (r *Registry) Unsubscribe(userID, sessionID string) {
	if r == nil || userID == "" || sessionID == "" {
		return
	}

	var cl *Client

	r.mu.Lock()
	if byUser := r.sessions[userID]; byUser != nil {
		cl = byUser[sessionID]
		delete(byUser, sessionID)
		if len(byUser) == 0 {
			delete(r.sessions, userID)
		}
	}
	r.mu.Unlock()

	// Signal client shutdown after removing from the registry.
	// This ordering avoids race windows where a pusher still holds a pointer
	// while the client goroutines are being torn down.
	if cl != nil {
		cl.Close()
		r.metrics.subscriberAdd(-1)
	}

	r.log.Info("notify.unsubscribe", "user_id", userID, "session_id", sessionID)
}

// Push fanouts an event to every live session of one user.
// Non-blocking: if a session queue is full or the client is shutting down,
// the event is dropped for that session.
func (r *Registry) Push(userID string, ev Event) {
	if r == nil || userID == "" {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cl := range r.sessions[userID] {
		if cl == nil {
			continue
		}

		select {
		case <-cl.Done():
			// Skip clients that are shutting down.
			continue
		default:
		}

		select {
		case cl.Send <- ev:
			r.metrics.pushDelivered(ev.Type)
		default:
			// Drop rather than block the producing mutation.
			r.metrics.pushDropped(ev.Type)
			r.log.Info("notify.push.drop", "user_id", userID, "session_id", cl.SessionID, "type", ev.Type)
		}
	}
}

// Subscribers reports how many live sessions a user currently has.
func (r *Registry) Subscribers(userID string) int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID])
}
