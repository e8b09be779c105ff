// Package hub fans sync status changes out to any number of observers.
package hub

import (
	"slices"
	"sync"
	"time"
)

// Status is the state of the reconciliation state machine.
type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusSyncing Status = "SYNCING"
	StatusError   Status = "ERROR"
	// StatusOffline is reserved; no transition produces it yet.
	StatusOffline Status = "OFFLINE"
)

// State is what observers receive: the status and the time of the last
// successful reconciliation (nil if there never was one).
type State struct {
	Status   Status     `json:"status"`
	LastSync *time.Time `json:"lastSync"`
}

// Observer receives state updates. It runs on the publisher's goroutine and
// must not call Publish or Subscribe.
type Observer func(State)

type subscription struct {
	id uint64
	fn Observer
}

// Hub is a subscriber registry. Deliveries are synchronous and in
// subscription order.
type Hub struct {
	// emit serializes deliveries so an observer never sees an older state
	// after a newer one.
	emit sync.Mutex

	mu     sync.Mutex
	state  State
	nextID uint64
	subs   []subscription
}

// New creates a hub holding an initial state.
func New(initial State) *Hub {
	return &Hub{state: initial}
}

// Subscribe registers fn and immediately calls it with the current state.
// The returned function unsubscribes; calling it again is a no-op.
func (h *Hub) Subscribe(fn Observer) (unsubscribe func()) {
	h.emit.Lock()
	defer h.emit.Unlock()

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs = append(h.subs, subscription{id: id, fn: fn})
	current := h.state
	h.mu.Unlock()

	fn(current)

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.subs = slices.DeleteFunc(h.subs, func(s subscription) bool { return s.id == id })
	}
}

// Publish stores s as the current state and delivers it to every observer.
func (h *Hub) Publish(s State) {
	h.emit.Lock()
	defer h.emit.Unlock()

	h.mu.Lock()
	h.state = s
	subs := slices.Clone(h.subs)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.fn(s)
	}
}

// State returns the current state.
func (h *Hub) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Len returns the number of subscribed observers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
