package forest

import "sync"

// Guarded serializes access to a Store for adapters that serve concurrent
// callers. Every call runs to completion before the next one starts, so a
// caller only ever observes committed state.
type Guarded struct {
	mu    sync.Mutex
	store *Store
}

// NewGuarded wraps store.
func NewGuarded(store *Store) *Guarded {
	return &Guarded{store: store}
}

// Do runs fn with exclusive access to the store.
func (g *Guarded) Do(fn func(*Store) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return fn(g.store)
}
