package testutil

import (
	"context"
	"sync"

	"github.com/roach88/shopstate/internal/localstore"
)

// GatedBackend wraps a Backend so that the next Get after Hold blocks until
// Release. Entered is closed once the held Get is waiting.
//
// Thread-safety: GatedBackend is safe for concurrent use.
type GatedBackend struct {
	localstore.Backend

	mu      sync.Mutex
	held    bool
	entered chan struct{}
	release chan struct{}
}

// NewGatedBackend wraps inner.
func NewGatedBackend(inner localstore.Backend) *GatedBackend {
	return &GatedBackend{Backend: inner}
}

// Hold arms the gate for the next Get.
func (g *GatedBackend) Hold() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.held = true
	g.entered = make(chan struct{})
	g.release = make(chan struct{})
}

// Entered is closed when a Get is blocked on the gate.
func (g *GatedBackend) Entered() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.entered
}

// Release lets the blocked Get continue.
func (g *GatedBackend) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.release != nil {
		close(g.release)
		g.release = nil
	}
}

// Get blocks if the gate is armed, then delegates.
func (g *GatedBackend) Get(ctx context.Context, key string) (string, bool, error) {
	g.mu.Lock()
	wait := g.held
	entered, release := g.entered, g.release
	g.held = false
	g.mu.Unlock()

	if wait {
		close(entered)
		select {
		case <-release:
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
	return g.Backend.Get(ctx, key)
}
