package authsdk

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// InvalidationReason says which path detected the end of a session.
type InvalidationReason string

const (
	// ReasonExpired means the token was past its exp (or unreadable) before
	// a call was sent.
	ReasonExpired InvalidationReason = "expired"

	// ReasonUnauthorized means a server answered 401 to a call carrying the token.
	ReasonUnauthorized InvalidationReason = "unauthorized"
)

// Invalidation is delivered to subscribers once per session that ends
// through expiry or rejection. Explicit logouts are not broadcast.
type Invalidation struct {
	Reason InvalidationReason
	User   User
	At     time.Time
}

// Signal is a tiny observer list for session invalidations.
type Signal struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]func(Invalidation)
}

// NewSignal returns a Signal with no listeners.
func NewSignal() *Signal {
	return &Signal{listeners: make(map[uint64]func(Invalidation))}
}

// Subscribe registers fn and returns a function that unregisters it.
// The returned function is safe to call more than once.
func (s *Signal) Subscribe(fn func(Invalidation)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
		})
	}
}

// Broadcast calls every listener, in subscription order, on the calling
// goroutine. Listeners may subscribe or unsubscribe from inside the callback.
func (s *Signal) Broadcast(ev Invalidation) {
	s.mu.RLock()
	ids := slices.Sorted(maps.Keys(s.listeners))
	fns := make([]func(Invalidation), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Len reports how many listeners are registered.
func (s *Signal) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}
