// Package authstore holds the process-wide authentication state. Set is the
// only way to change it; every consumer reads snapshots or subscribes.
package authstore

import (
	"sync"

	"github.com/carboncopyrefi/frf-front/core"
)

// Listener is called with each new state, in order. Listeners must not call
// Set themselves.
type Listener func(core.AuthState)

// Store is a single shared cell of core.AuthState
type Store struct {
	mu        sync.Mutex
	state     core.AuthState
	listeners map[uint64]Listener
	nextID    uint64

	// notify serializes listener calls so they observe writes in order
	notify sync.Mutex
}

// New creates a store in the unauthenticated state
func New() *Store {
	return &Store{listeners: make(map[uint64]Listener)}
}

// State returns the current snapshot
func (s *Store) State() core.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Set replaces the state. An unauthenticated state always has no role, and
// an authenticated one always has a role. Listeners run only on change.
func (s *Store) Set(authenticated bool, role core.Role) core.AuthState {
	next := core.AuthState{Authenticated: authenticated, Role: role}.Normalize()

	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	changed := next != s.state
	s.state = next
	listeners := make([]Listener, 0, len(s.listeners))
	if changed {
		for _, l := range s.listeners {
			listeners = append(listeners, l)
		}
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return next
}

// Reset sets the unauthenticated state
func (s *Store) Reset() core.AuthState {
	return s.Set(false, core.RoleNone)
}

// Subscribe registers fn for future changes; the returned func removes it
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Updates delivers the current state followed by every change on a channel.
// Slow readers only ever miss intermediate states, never the latest one.
// The channel is closed by the returned cancel func.
func (s *Store) Updates() (<-chan core.AuthState, func()) {
	ch := make(chan core.AuthState, 1)
	var mu sync.Mutex
	closed := false

	push := func(st core.AuthState) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case <-ch:
		default:
		}
		ch <- st
	}

	s.notify.Lock()
	push(s.State())
	unsubscribe := s.Subscribe(push)
	s.notify.Unlock()

	return ch, func() {
		unsubscribe()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}
}
