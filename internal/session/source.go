// Package session connects the authentication collaborator to the
// aggregates.
//
// An IdentitySource holds the current identity (or none) and notifies
// subscribers when it changes. A Session subscribes to a source and forwards
// every change to its participants in registration order.
package session

import (
	"sync"

	"github.com/roach88/shopstate/internal/model"
)

// IdentitySource is the observable "current identity or none".
//
// Thread-safety: IdentitySource is safe for concurrent use. Subscribers are
// called outside the lock, in the order changes were made.
type IdentitySource struct {
	mu      sync.Mutex
	current model.Identity
	subs    map[int]func(model.Identity)
	order   []int
	nextID  int

	// deliverMu keeps notifications in Set order.
	deliverMu sync.Mutex
}

// NewIdentitySource creates a source with no identity.
func NewIdentitySource() *IdentitySource {
	return &IdentitySource{subs: make(map[int]func(model.Identity))}
}

// Current returns the current identity.
func (s *IdentitySource) Current() model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set reports a new identity. It returns false and notifies nobody when id
// equals the current identity.
func (s *IdentitySource) Set(id model.Identity) bool {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if normalize(id) == s.current {
		s.mu.Unlock()
		return false
	}
	s.current = normalize(id)
	subs := make([]func(model.Identity), 0, len(s.order))
	for _, k := range s.order {
		subs = append(subs, s.subs[k])
	}
	current := s.current
	s.mu.Unlock()

	for _, fn := range subs {
		fn(current)
	}
	return true
}

// SignOut is Set(model.NoIdentity).
func (s *IdentitySource) SignOut() bool {
	return s.Set(model.NoIdentity)
}

// Subscribe registers fn for identity changes. fn is not called with the
// current value. fn must not call Set.
func (s *IdentitySource) Subscribe(fn func(model.Identity)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			for i, k := range s.order {
				if k == id {
					s.order = append(s.order[:i:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

// normalize maps blank identities to NoIdentity.
func normalize(id model.Identity) model.Identity {
	if !id.Present() {
		return model.NoIdentity
	}
	return model.Identity(model.NormalizeKey(string(id)))
}
