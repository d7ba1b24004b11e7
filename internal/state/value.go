// Package state provides the reactive in-memory view that aggregates expose
// to the UI.
//
// Every write to a Value is a transform of the value current at the moment
// of the write. A caller that awaited I/O never writes back a copy captured
// before the I/O, so updates made in the meantime are folded in rather than
// lost.
package state

import (
	"slices"
	"sync"
)

// Value holds a T and notifies subscribers on every change.
//
// T should be treated as immutable: transforms return a new value instead of
// mutating the old one, and readers must not modify what Get returns.
//
// Thread-safety: Value is safe for concurrent use. Subscribers are called
// outside the value lock but serially and in version order; a change that is
// overtaken by a newer one before delivery is skipped. A subscriber must not
// call Update or Set on the same Value synchronously.
type Value[T any] struct {
	mu      sync.Mutex
	current T
	version int64
	clock   *Clock

	subMu   sync.Mutex
	subs    map[int]func(T)
	nextSub int

	deliverMu sync.Mutex
	delivered int64
}

// New creates a Value holding initial at version 0. A nil clock gives the
// Value its own.
func New[T any](initial T, clock *Clock) *Value[T] {
	if clock == nil {
		clock = NewClock()
	}
	return &Value[T]{
		current: initial,
		clock:   clock,
		subs:    make(map[int]func(T)),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Version returns the clock stamp of the last change, or 0 if unchanged.
func (v *Value[T]) Version() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.version
}

// Update replaces the value with fn(current) and returns the result. fn runs
// under the value lock and must not block.
func (v *Value[T]) Update(fn func(old T) T) T {
	v.mu.Lock()
	next := fn(v.current)
	v.current = next
	v.version = v.clock.Next()
	version := v.version
	v.mu.Unlock()

	v.notify(next, version)
	return next
}

// Set replaces the value unconditionally.
func (v *Value[T]) Set(next T) {
	v.Update(func(T) T { return next })
}

// Subscribe registers fn for future changes and returns a function that
// removes it.
func (v *Value[T]) Subscribe(fn func(T)) (cancel func()) {
	v.subMu.Lock()
	id := v.nextSub
	v.nextSub++
	v.subs[id] = fn
	v.subMu.Unlock()

	return func() {
		v.subMu.Lock()
		delete(v.subs, id)
		v.subMu.Unlock()
	}
}

func (v *Value[T]) notify(value T, version int64) {
	v.deliverMu.Lock()
	defer v.deliverMu.Unlock()

	if version <= v.delivered {
		return
	}
	v.delivered = version

	v.subMu.Lock()
	ids := make([]int, 0, len(v.subs))
	for id := range v.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, v.subs[id])
	}
	v.subMu.Unlock()

	for _, fn := range fns {
		fn(value)
	}
}
