// Package favorites is the favorites aggregate.
//
// While anonymous, favorites live in the device store. Once an identity is
// attached the remote store is authoritative: mutations update the reactive
// state first and then call the remote store, rolling back and notifying the
// user if the call fails. The anonymous favorites are merged by set union,
// inserting only the ids the remote store does not have yet.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/shopstate/internal/localstore"
	"github.com/roach88/shopstate/internal/metrics"
	"github.com/roach88/shopstate/internal/migration"
	"github.com/roach88/shopstate/internal/model"
	"github.com/roach88/shopstate/internal/remote"
	"github.com/roach88/shopstate/internal/state"
)

// Name identifies favorites in logs, metrics and the journal.
const Name = "favorites"

// ErrSuperseded is returned by a merge whose identity was lost before its
// result could be applied.
var ErrSuperseded = errors.New("favorites: identity changed before merge")

// State is what the UI observes.
type State struct {
	Identity model.Identity `json:"identity"`

	// Items is the local list while anonymous and the remote list, with
	// optimistic changes applied, once identified.
	Items []model.FavoriteEntry `json:"items"`

	// Pending holds anonymous favorites not merged yet.
	Pending []model.FavoriteEntry `json:"pending,omitempty"`

	Loading bool `json:"loading"`

	// dropped lists pending ids the user removed before the merge.
	dropped []string
}

// Visible returns Items followed by pending ids not in Items.
func (s State) Visible() []model.FavoriteEntry {
	return union(s.Items, s.Pending)
}

type opKind int

const (
	opAdd opKind = iota + 1
	opRemove
)

// Favorites is the favorites aggregate.
//
// Thread-safety: Favorites is safe for concurrent use.
type Favorites struct {
	local       *localstore.Store[model.FavoriteEntry]
	remote      remote.FavoritesStore
	state       *state.Value[State]
	coordinator *migration.Coordinator[model.FavoriteEntry]
	notifier    Notifier
	logger      *slog.Logger

	writeMu sync.Mutex

	// ops tracks remote calls in flight so a reload does not undo them.
	opsMu sync.Mutex
	ops   map[string]opKind
}

// Option configures Favorites.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	notifier  Notifier
	clock     *state.Clock
	migration []migration.Option
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithNotifier sets where notices go. Defaults to the logger.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithClock stamps state versions from a shared clock.
func WithClock(c *state.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithMigrationOptions passes options to the coordinator.
func WithMigrationOptions(opts ...migration.Option) Option {
	return func(o *options) {
		o.migration = append(o.migration, opts...)
	}
}

// New loads the anonymous favorites and returns the aggregate.
func New(ctx context.Context, local *localstore.Store[model.FavoriteEntry], rs remote.FavoritesStore, opts ...Option) *Favorites {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.notifier == nil {
		o.notifier = logNotifier{logger: o.logger}
	}

	f := &Favorites{
		local:    local,
		remote:   rs,
		notifier: o.notifier,
		logger:   o.logger.With("aggregate", Name),
		ops:      make(map[string]opKind),
	}
	f.state = state.New(State{Items: union(nil, local.Read(ctx))}, o.clock)

	migOpts := append([]migration.Option{migration.WithLogger(o.logger)}, o.migration...)
	f.coordinator = migration.New[model.FavoriteEntry](Name, local, target{f}, migOpts...)
	return f
}

// Name returns Name.
func (f *Favorites) Name() string {
	return Name
}

// OnIdentityChanged forwards an identity change to the coordinator.
func (f *Favorites) OnIdentityChanged(ctx context.Context, id model.Identity) error {
	return f.coordinator.OnIdentityChanged(ctx, id)
}

// Retry re-runs a failed migration.
func (f *Favorites) Retry(ctx context.Context) error {
	return f.coordinator.Retry(ctx)
}

// Migration returns the coordinator state.
func (f *Favorites) Migration() migration.Snapshot {
	return f.coordinator.Snapshot()
}

// State returns the current state.
func (f *Favorites) State() State {
	return f.state.Get()
}

// Version returns the state version.
func (f *Favorites) Version() int64 {
	return f.state.Version()
}

// Subscribe registers fn for state changes.
func (f *Favorites) Subscribe(fn func(State)) (cancel func()) {
	return f.state.Subscribe(fn)
}

// Items returns the visible favorites.
func (f *Favorites) Items() []model.FavoriteEntry {
	return f.state.Get().Visible()
}

// Count is the number of visible favorites.
func (f *Favorites) Count() int {
	return len(f.Items())
}

// Loading reports whether the remote list is being fetched.
func (f *Favorites) Loading() bool {
	return f.state.Get().Loading
}

// Has reports whether productID is a visible favorite.
func (f *Favorites) Has(productID string) bool {
	return contains(f.Items(), model.NormalizeKey(productID))
}

// Add favorites productID. Identified adds are optimistic; on remote
// failure the add is rolled back, a notice is shown and the *remote.Error
// is returned.
func (f *Favorites) Add(ctx context.Context, productID string) error {
	entry := model.NewFavorite(productID)
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	key := entry.Key()

	id := f.state.Get().Identity
	if !id.Present() {
		f.mutateLocal(ctx, func(s State) State {
			if !contains(s.Items, key) {
				s.Items = append(slices.Clone(s.Items), entry)
			}
			return s
		})
		return nil
	}

	f.beginOp(key, opAdd)
	defer f.endOp(key)

	added := false
	f.state.Update(func(s State) State {
		if s.Identity != id || contains(s.Visible(), key) {
			return s
		}
		added = true
		s.Items = append(slices.Clone(s.Items), entry)
		s.dropped = slices.DeleteFunc(slices.Clone(s.dropped), func(k string) bool { return k == key })
		return s
	})
	if !added {
		return nil
	}

	if _, err := f.remote.InsertMany(ctx, id, []model.FavoriteEntry{entry}); err != nil {
		f.rollback(id, func(s State) State {
			s.Items = removeKey(s.Items, key)
			return s
		})
		f.notifier.Notify(noticeAddFailed)
		f.logger.Warn("add favorite failed, rolled back", "identity", id, "key", key, "error", err)
		return err
	}
	f.notifier.Notify(noticeAdded)
	return nil
}

// Remove unfavorites productID, optimistically when identified.
func (f *Favorites) Remove(ctx context.Context, productID string) error {
	key := model.NormalizeKey(productID)

	id := f.state.Get().Identity
	if !id.Present() {
		f.mutateLocal(ctx, func(s State) State {
			s.Items = removeKey(s.Items, key)
			return s
		})
		return nil
	}

	f.beginOp(key, opRemove)
	defer f.endOp(key)

	var removed *model.FavoriteEntry
	var index int
	f.state.Update(func(s State) State {
		if s.Identity != id {
			return s
		}
		if contains(s.Pending, key) {
			s.Pending = removeKey(s.Pending, key)
			s.dropped = append(slices.Clone(s.dropped), key)
		}
		if i := indexOf(s.Items, key); i >= 0 {
			e := s.Items[i]
			removed, index = &e, i
			s.Items = removeKey(s.Items, key)
		}
		return s
	})
	if removed == nil {
		return nil
	}

	if err := f.remote.Delete(ctx, id, key); err != nil {
		entry := *removed
		f.rollback(id, func(s State) State {
			if !contains(s.Items, key) {
				s.Items = slices.Insert(slices.Clone(s.Items), min(index, len(s.Items)), entry)
			}
			return s
		})
		f.notifier.Notify(noticeRemoveFailed)
		f.logger.Warn("remove favorite failed, rolled back", "identity", id, "key", key, "error", err)
		return err
	}
	f.notifier.Notify(noticeRemoved)
	return nil
}

// Toggle removes productID if it is a favorite and adds it otherwise.
func (f *Favorites) Toggle(ctx context.Context, productID string) error {
	if f.Has(productID) {
		return f.Remove(ctx, productID)
	}
	return f.Add(ctx, productID)
}

// Refresh reloads the authoritative list. It is a no-op while anonymous.
func (f *Favorites) Refresh(ctx context.Context) error {
	id := f.state.Get().Identity
	if !id.Present() {
		return nil
	}
	return f.load(ctx, id)
}

func (f *Favorites) mutateLocal(ctx context.Context, fn func(State) State) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	next := f.state.Update(fn)
	if !next.Identity.Present() {
		f.local.Write(ctx, next.Items)
	}
}

// rollback undoes an optimistic change as a transform, unless the identity
// has changed since.
func (f *Favorites) rollback(id model.Identity, fn func(State) State) {
	f.state.Update(func(s State) State {
		if s.Identity != id {
			return s
		}
		return fn(s)
	})
	metrics.RecordRollback(Name)
}

// load fetches the remote list into Items.
func (f *Favorites) load(ctx context.Context, id model.Identity) error {
	f.setLoading(id, true)
	list, err := f.remote.List(ctx, id)
	if err != nil {
		f.setLoading(id, false)
		f.logger.Warn("load favorites failed", "identity", id, "error", err)
		return err
	}
	f.state.Update(func(s State) State {
		if s.Identity != id {
			return s
		}
		s.Items = f.reconcile(list, s.Items)
		s.Loading = false
		return s
	})
	return nil
}

func (f *Favorites) setLoading(id model.Identity, loading bool) {
	f.state.Update(func(s State) State {
		if s.Identity == id {
			s.Loading = loading
		}
		return s
	})
}

// reconcile applies in-flight optimistic changes to a freshly loaded list.
func (f *Favorites) reconcile(loaded, current []model.FavoriteEntry) []model.FavoriteEntry {
	f.opsMu.Lock()
	defer f.opsMu.Unlock()

	out := make([]model.FavoriteEntry, 0, len(loaded))
	for _, e := range loaded {
		if f.ops[e.Key()] == opRemove || contains(out, e.Key()) {
			continue
		}
		out = append(out, e)
	}
	for _, e := range current {
		if f.ops[e.Key()] == opAdd && !contains(out, e.Key()) {
			out = append(out, e)
		}
	}
	return out
}

func (f *Favorites) beginOp(key string, op opKind) {
	f.opsMu.Lock()
	defer f.opsMu.Unlock()
	f.ops[key] = op
}

func (f *Favorites) endOp(key string) {
	f.opsMu.Lock()
	defer f.opsMu.Unlock()
	delete(f.ops, key)
}

func (f *Favorites) clearOps() {
	f.opsMu.Lock()
	defer f.opsMu.Unlock()
	clear(f.ops)
}
