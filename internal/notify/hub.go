package notify

import (
	"context"
	"sync"
)

// Hub is the in-process subscriber registry. An entry exists only while at
// least one waiter is attached and is removed on last unsubscribe, so the
// map never outgrows the set of tickets currently being watched.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[chan Event]struct{}),
	}
}

func (h *Hub) Subscribe(id string) (<-chan Event, func()) {
	ch := make(chan Event, 1)

	h.mu.Lock()
	set, ok := h.subs[id]
	if !ok {
		set = make(map[chan Event]struct{})
		h.subs[id] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[id]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, id)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *Hub) Publish(_ context.Context, id string, ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[id] {
		// Buffered by one; a waiter that already holds an undelivered
		// event does not need a second one, state is monotonic.
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Waiters reports how many subscribers are attached to id.
func (h *Hub) Waiters(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[id])
}
