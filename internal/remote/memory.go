package remote

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/shopstate/internal/model"
)

// Memory is an in-process FavoritesStore for tests and scenarios.
//
// Faults can be injected per operation. FailInsertAfter lets a batch insert
// succeed for a number of rows before failing, to exercise partial inserts.
//
// Thread-safety: Memory is safe for concurrent use.
type Memory struct {
	mu    sync.Mutex
	rows  map[model.Identity][]string
	fails map[string]error
	calls map[string]int

	insertsLeft int
	insertErr   error

	hook func(op string)
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		rows:        make(map[model.Identity][]string),
		fails:       make(map[string]error),
		calls:       make(map[string]int),
		insertsLeft: -1,
	}
}

// Seed stores product ids for an identity without counting a call.
func (m *Memory) Seed(id model.Identity, productIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range productIDs {
		p = model.NormalizeKey(p)
		if !slices.Contains(m.rows[id], p) {
			m.rows[id] = append(m.rows[id], p)
		}
	}
}

// Snapshot returns the stored product ids for an identity.
func (m *Memory) Snapshot(id model.Identity) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.rows[id])
}

// Fail makes op return err until called again with nil.
func (m *Memory) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fails, op)
		return
	}
	m.fails[op] = err
}

// FailInsertAfter lets n more rows be inserted, then fails every insert with
// err. A negative n disables the fault.
func (m *Memory) FailInsertAfter(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertsLeft = n
	m.insertErr = err
}

// Calls returns how many times op was invoked.
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// TotalCalls returns the number of invocations across all operations.
func (m *Memory) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// OnCall registers fn to run at the start of every operation, outside the
// lock. Tests use it to block or interleave.
func (m *Memory) OnCall(fn func(op string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = fn
}

// enter counts the call, runs the hook and returns any injected fault.
func (m *Memory) enter(op string) error {
	m.mu.Lock()
	m.calls[op]++
	hook := m.hook
	m.mu.Unlock()

	if hook != nil {
		hook(op)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fails[op]
}

func (m *Memory) List(ctx context.Context, id model.Identity) ([]model.FavoriteEntry, error) {
	if err := m.enter(OpList); err != nil {
		return nil, fail(OpList, id, err)
	}
	if !id.Present() {
		return nil, fail(OpList, id, ErrNoIdentity)
	}
	if err := ctx.Err(); err != nil {
		return nil, fail(OpList, id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return toEntries(slices.Clone(m.rows[id])), nil
}

func (m *Memory) InsertMany(ctx context.Context, id model.Identity, entries []model.FavoriteEntry) (InsertResult, error) {
	if err := m.enter(OpInsert); err != nil {
		return InsertResult{Inserted: []string{}, Duplicates: []string{}}, fail(OpInsert, id, err)
	}
	return insertEach(ctx, id, entries, func(ctx context.Context, productID string) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if slices.Contains(m.rows[id], productID) {
			return false, nil
		}
		if m.insertsLeft == 0 {
			return false, m.insertErr
		}
		if m.insertsLeft > 0 {
			m.insertsLeft--
		}
		m.rows[id] = append(m.rows[id], productID)
		return true, nil
	})
}

func (m *Memory) Delete(ctx context.Context, id model.Identity, productID string) error {
	if err := m.enter(OpDelete); err != nil {
		return fail(OpDelete, id, err)
	}
	if !id.Present() {
		return fail(OpDelete, id, ErrNoIdentity)
	}
	if err := ctx.Err(); err != nil {
		return fail(OpDelete, id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := model.NormalizeKey(productID)
	m.rows[id] = slices.DeleteFunc(m.rows[id], func(p string) bool { return p == key })
	return nil
}
