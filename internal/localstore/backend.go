package localstore

import (
	"context"
	"sync"

	"github.com/roach88/shopstate/internal/store"
)

// Fixed device storage keys.
const (
	CartKey      = "ando_cart"
	FavoritesKey = "ando_favorites"
)

// Backend persists raw serialised values under string keys.
type Backend interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// SQLiteBackend stores values in the device store's local_state table.
type SQLiteBackend struct {
	store *store.Store
}

// NewSQLiteBackend wraps an open device store.
func NewSQLiteBackend(s *store.Store) *SQLiteBackend {
	return &SQLiteBackend{store: s}
}

func (b *SQLiteBackend) Get(ctx context.Context, key string) (string, bool, error) {
	return b.store.GetLocal(ctx, key)
}

func (b *SQLiteBackend) Put(ctx context.Context, key, value string) error {
	return b.store.PutLocal(ctx, key, value)
}

func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	return b.store.DeleteLocal(ctx, key)
}

// MemoryBackend is an in-process Backend. Errors can be injected per
// operation to simulate quota or storage failures.
//
// Thread-safety: MemoryBackend is safe for concurrent use.
type MemoryBackend struct {
	mu        sync.Mutex
	values    map[string]string
	getErr    error
	putErr    error
	deleteErr error
	puts      int
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryBackend) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.values[key] = value
	m.puts++
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.values, key)
	return nil
}

// Seed stores a raw value directly, bypassing validation.
func (m *MemoryBackend) Seed(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Raw returns the stored value for key.
func (m *MemoryBackend) Raw(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

// Puts returns the number of successful Put calls.
func (m *MemoryBackend) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// FailGet makes Get return err until called again with nil.
func (m *MemoryBackend) FailGet(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// FailPut makes Put return err until called again with nil.
func (m *MemoryBackend) FailPut(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putErr = err
}

// FailDelete makes Delete return err until called again with nil.
func (m *MemoryBackend) FailDelete(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
}
