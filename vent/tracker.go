package vent

import (
	"fmt"
	"sync"
)

// PendingRequestTracker correlates outbound requests with inbound responses
// by message id. One request may be in flight per id, and each is resolved
// at most once.
type PendingRequestTracker struct {
	mu      sync.Mutex
	pending map[string]chan Message
}

func NewPendingRequestTracker() *PendingRequestTracker {
	return &PendingRequestTracker{
		pending: make(map[string]chan Message),
	}
}

// Register reserves id and returns the channel the response will arrive on,
// plus a cancel func that releases the reservation if no response comes.
func (t *PendingRequestTracker) Register(id string) (<-chan Message, func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.pending[id]; exists {
		return nil, nil, fmt.Errorf("request %q already in flight", id)
	}

	ch := make(chan Message, 1)
	t.pending[id] = ch

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.pending, id)
	}
	return ch, cancel, nil
}

// Resolve delivers a response to the request registered under id. Returns
// false when no such request is pending (late or unsolicited response).
func (t *PendingRequestTracker) Resolve(id string, msg Message) bool {
	t.mu.Lock()
	ch, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	ch <- msg
	return true
}

// PendingCount returns the number of unresolved requests.
func (t *PendingRequestTracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
