package localstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/shopstate/internal/metrics"
)

// errNotArray marks a value that is neither an array nor a legacy envelope.
var errNotArray = errors.New("value is not an array")

// Store is the LocalStateStore for one key.
//
// Thread-safety: Store holds no mutable state of its own; concurrency safety
// is that of the Backend.
type Store[T any] struct {
	backend Backend
	key     string
	codec   Codec[T]
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New creates a Store for key.
func New[T any](backend Backend, key string, codec Codec[T], opts ...Option) *Store[T] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T]{
		backend: backend,
		key:     key,
		codec:   codec,
		logger:  o.logger.With("key", key),
	}
}

// Key returns the storage key.
func (s *Store[T]) Key() string {
	return s.key
}

// Read returns the valid elements of the persisted collection. It never
// returns nil. A backend failure is logged and reads as empty.
func (s *Store[T]) Read(ctx context.Context) []T {
	items, err := s.Load(ctx)
	if err != nil {
		s.logger.Error("local read failed", "error", err)
		return []T{}
	}
	return items
}

// Load is Read, except that a backend failure is returned instead of
// being read as an empty collection. Corrupt values still self-heal.
func (s *Store[T]) Load(ctx context.Context) ([]T, error) {
	raw, found, err := s.backend.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}
	if !found {
		return []T{}, nil
	}

	elems, err := splitElements([]byte(raw), s.codec.Field)
	if err != nil {
		s.logger.Warn("discarding corrupt local value", "error", err)
		metrics.RecordSelfHeal(s.key)
		s.put(ctx, "[]")
		return []T{}, nil
	}

	items := make([]T, 0, len(elems))
	dropped := 0
	for i, elem := range elems {
		item, err := s.codec.decode(elem)
		if err != nil {
			s.logger.Warn("dropping invalid local element", "index", i, "error", err)
			dropped++
			continue
		}
		items = append(items, item)
	}

	if dropped > 0 {
		metrics.RecordSelfHeal(s.key)
		s.Write(ctx, items)
	}
	return items, nil
}

// Write persists the full collection. Failures are logged and swallowed; the
// previous value stays in place.
func (s *Store[T]) Write(ctx context.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		s.logger.Error("local write failed", "error", fmt.Errorf("encode: %w", err))
		metrics.RecordLocalWriteFailure(s.key)
		return
	}
	s.put(ctx, string(data))
}

// Clear removes the persisted value.
func (s *Store[T]) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear %s: %w", s.key, err)
	}
	return nil
}

func (s *Store[T]) put(ctx context.Context, value string) {
	if err := s.backend.Put(ctx, s.key, value); err != nil {
		s.logger.Error("local write failed", "error", err)
		metrics.RecordLocalWriteFailure(s.key)
	}
}

// splitElements returns the raw elements of a bare array or of the array at
// state.<field> in the legacy envelope.
func splitElements(raw []byte, field string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errNotArray
	}

	switch trimmed[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, fmt.Errorf("parse array: %w", err)
		}
		return elems, nil
	case '{':
		if field == "" {
			return nil, errNotArray
		}
		var envelope struct {
			State map[string]json.RawMessage `json:"state"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("parse envelope: %w", err)
		}
		inner, ok := envelope.State[field]
		if !ok {
			return nil, fmt.Errorf("envelope has no state.%s", field)
		}
		inner = bytes.TrimSpace(inner)
		if len(inner) == 0 || inner[0] != '[' {
			return nil, fmt.Errorf("state.%s: %w", field, errNotArray)
		}
		var elems []json.RawMessage
		if err := json.Unmarshal(inner, &elems); err != nil {
			return nil, fmt.Errorf("parse state.%s: %w", field, err)
		}
		return elems, nil
	default:
		return nil, errNotArray
	}
}
