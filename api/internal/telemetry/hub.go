package telemetry

import (
	"sync"

	"github.com/irgordon/threadvault/api/internal/core/domain"
)

// Hub fans unlock state events out to every connected viewer.
// It also remembers the latest event so late subscribers start from the current state.
type Hub struct {
	mu          sync.RWMutex
	subscribers []chan domain.StateEvent
	last        *domain.StateEvent
}

var _ domain.EventPublisher = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers a new listener. If an event has already been published it is queued first.
func (h *Hub) Subscribe() chan domain.StateEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan domain.StateEvent, 32) // Buffer so a slow viewer never blocks the orchestrator
	if h.last != nil {
		ch <- *h.last
	}
	h.subscribers = append(h.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a listener channel.
func (h *Hub) Unsubscribe(ch chan domain.StateEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, sub := range h.subscribers {
		if sub == ch {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Publish sends an event to all listeners without blocking.
func (h *Hub) Publish(event domain.StateEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = &event
	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default: // Drop for a full buffer; the next event carries the current state anyway
		}
	}
}

// Subscribers reports the number of active listeners.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
