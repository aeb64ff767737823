// Package event implements the single-topic event bus described in §6:
// a "clear_cache" event published on any structural dimension mutation,
// subscribed to by the per-dimension caches.
package event

import "sync"

// Name identifies an event topic. Only ClearCache is defined by the spec,
// but the bus is topic-generic the way the original menger.event module is.
type Name string

// ClearCache is published by Dimension on rename/reparent/delete/merge/prune
// (§4.2) and on successful Space.load (§4.3).
const ClearCache Name = "clear_cache"

// Bus is a process-local, non-persistent registry of callbacks per topic.
// A Bus is owned by a session (internal/backend.Session) so that
// subscriptions from one session's dimension caches never leak into
// another's.
type Bus struct {
	mu        sync.Mutex
	callbacks map[Name][]func()
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{callbacks: make(map[Name][]func())}
}

// Register adds callback to the list invoked when name is triggered. A nil
// callback is ignored.
func (b *Bus) Register(name Name, callback func()) {
	if callback == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callbacks[name] = append(b.callbacks[name], callback)
}

// Trigger invokes every callback registered for name, in registration order.
func (b *Bus) Trigger(name Name) {
	b.mu.Lock()
	callbacks := append([]func(){}, b.callbacks[name]...)
	b.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}
