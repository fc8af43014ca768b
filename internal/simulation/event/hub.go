package event

import (
	"sync"
	"time"
)

// subscriptionBuffer is how many undelivered events a subscriber may hold
// before the hub drops it.
const subscriptionBuffer = 256

// Subscription is one observer's view of a session's event stream. Events
// arrive on C in publish order, starting from the moment the subscription
// was created. C is closed when the subscriber falls too far behind, the
// session closes, or Cancel is called.
type Subscription struct {
	C chan Event

	hub       *Hub
	sessionID string
	closed    bool
}

// Cancel detaches the subscription and closes its channel.
func (s *Subscription) Cancel() {
	if s == nil || s.hub == nil {
		return
	}
	s.hub.cancel(s)
}

// Hub fans simulation events out to per-session subscribers. Publish never
// blocks: a subscriber whose buffer is full is dropped rather than allowed
// to stall the session.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]map[*Subscription]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]map[*Subscription]struct{})}
}

// Subscribe attaches a new observer to a session's event stream. The
// subscription sees only events published after this call.
func (h *Hub) Subscribe(sessionID string) *Subscription {
	sub := &Subscription{
		C:         make(chan Event, subscriptionBuffer),
		hub:       h,
		sessionID: sessionID,
	}

	h.mu.Lock()
	subs, ok := h.sessions[sessionID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.sessions[sessionID] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Publish delivers an event to every subscriber of a session. Subscribers
// that cannot keep up are dropped. Event timestamps default to now.
func (h *Hub) Publish(sessionID, eventType string, data map[string]any) {
	evt := Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.sessions[sessionID] {
		select {
		case sub.C <- evt:
		default:
			h.dropLocked(sub)
		}
	}
}

// CloseSession closes every subscription on a session. Later publishes for
// the session go nowhere.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.sessions[sessionID] {
		h.dropLocked(sub)
	}
	delete(h.sessions, sessionID)
}

func (h *Hub) cancel(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(sub)
}

func (h *Hub) dropLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.C)
	if subs, ok := h.sessions[sub.sessionID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.sessions, sub.sessionID)
		}
	}
}
