package notify

import (
	"context"
	"sync"
)

// defaultBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts losing events rather than stalling runs.
const defaultBuffer = 256

// Hub is an in-process fan-out owned by whoever wires the orchestrator;
// there is no package-level singleton. The orchestrator publishes, any
// number of subscribers consume.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscription is one listener's buffered event channel.
type Subscription struct {
	C   chan Event
	hub *Hub
}

// Subscribe registers a new listener. Call Close when done.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{C: make(chan Event, defaultBuffer), hub: h}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.C)
	}
	h.mu.Unlock()
}

// Publish delivers the event to every current subscriber without
// blocking: a full subscriber channel drops the event for that
// subscriber only.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.C <- ev:
		default:
		}
	}
	return nil
}

var _ Notifier = (*Hub)(nil)
