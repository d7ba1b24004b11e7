// Package cart is the cart aggregate.
//
// While anonymous, every mutation updates the reactive state and writes the
// full cart to the device store. Once an identity is attached the in-memory
// state is authoritative and nothing is written locally; the anonymous cart
// is merged into it by quantity sum, once per sign-in.
//
// Until that merge succeeds the anonymous lines stay visible as pending
// lines, so a failed migration only means the user keeps seeing their
// anonymous cart a little longer.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/shopstate/internal/localstore"
	"github.com/roach88/shopstate/internal/migration"
	"github.com/roach88/shopstate/internal/model"
	"github.com/roach88/shopstate/internal/state"
)

// Name identifies the cart in logs, metrics and the journal.
const Name = "cart"

// ErrSuperseded is returned by a merge whose identity was lost before the
// merge could be applied.
var ErrSuperseded = errors.New("cart: identity changed before merge")

// State is what the UI observes.
type State struct {
	Identity model.Identity `json:"identity"`

	// Lines is the local cart while anonymous and the authoritative
	// in-memory cart once identified.
	Lines []model.CartLine `json:"lines"`

	// Pending holds anonymous lines not merged yet. Empty while anonymous.
	Pending []model.CartLine `json:"pending,omitempty"`

	LastAdded  *model.CartLine `json:"last_added,omitempty"`
	DrawerOpen bool            `json:"drawer_open"`

	// promoted lists pending keys the user edited before the merge. Their
	// quantities already live in Lines, so the merge skips them.
	promoted []model.CartKey
}

// promote moves the pending line for key, if any, into Lines.
func (s State) promote(key model.CartKey) State {
	i := indexOf(s.Pending, key)
	if i < 0 {
		return s
	}
	s.Lines = Merge(s.Lines, s.Pending[i:i+1])
	s.Pending = without(s.Pending, key)
	s.promoted = append(slices.Clone(s.promoted), key)
	return s
}

// Items returns the lines the user sees: Lines with Pending folded in.
func (s State) Items() []model.CartLine {
	if len(s.Pending) == 0 {
		return model.CloneCartLines(s.Lines)
	}
	return Merge(s.Lines, s.Pending)
}

// Cart is the cart aggregate.
//
// Thread-safety: Cart is safe for concurrent use.
type Cart struct {
	local       *localstore.Store[model.CartLine]
	state       *state.Value[State]
	coordinator *migration.Coordinator[model.CartLine]
	logger      *slog.Logger

	// writeMu orders anonymous state updates with their local writes.
	writeMu sync.Mutex
}

// Option configures a Cart.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	clock     *state.Clock
	migration []migration.Option
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
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

// New loads the anonymous cart from local and returns the aggregate.
func New(ctx context.Context, local *localstore.Store[model.CartLine], opts ...Option) *Cart {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cart{
		local:  local,
		logger: o.logger.With("aggregate", Name),
	}
	c.state = state.New(State{Lines: Merge(nil, local.Read(ctx))}, o.clock)

	migOpts := append([]migration.Option{migration.WithLogger(o.logger)}, o.migration...)
	c.coordinator = migration.New[model.CartLine](Name, source{c}, target{c}, migOpts...)
	return c
}

// Name returns Name.
func (c *Cart) Name() string {
	return Name
}

// OnIdentityChanged forwards an identity change to the coordinator.
func (c *Cart) OnIdentityChanged(ctx context.Context, id model.Identity) error {
	return c.coordinator.OnIdentityChanged(ctx, id)
}

// Retry re-runs a failed migration.
func (c *Cart) Retry(ctx context.Context) error {
	return c.coordinator.Retry(ctx)
}

// Migration returns the coordinator state.
func (c *Cart) Migration() migration.Snapshot {
	return c.coordinator.Snapshot()
}

// State returns the current state.
func (c *Cart) State() State {
	return c.state.Get()
}

// Version returns the state version.
func (c *Cart) Version() int64 {
	return c.state.Version()
}

// Subscribe registers fn for state changes.
func (c *Cart) Subscribe(fn func(State)) (cancel func()) {
	return c.state.Subscribe(fn)
}

// Items returns the visible lines.
func (c *Cart) Items() []model.CartLine {
	return c.state.Get().Items()
}

// Has reports whether a line with key is visible.
func (c *Cart) Has(key model.CartKey) bool {
	return indexOf(c.Items(), normalizeKey(key)) >= 0
}

// TotalItems is the sum of visible quantities.
func (c *Cart) TotalItems() int {
	return totalQuantity(c.Items())
}

// TotalPrice is the sum of visible subtotals.
func (c *Cart) TotalPrice() float64 {
	return totalPrice(c.Items())
}

// CheckoutLines returns the lines handed to checkout. The device store is
// the source of truth until an identity is attached.
func (c *Cart) CheckoutLines(ctx context.Context) []model.CartLine {
	s := c.state.Get()
	if !s.Identity.Present() {
		return Merge(nil, c.local.Read(ctx))
	}
	return s.Items()
}

// Add adds line. A zero quantity means one. Adding an existing key
// increments its quantity. The line becomes LastAdded.
func (c *Cart) Add(ctx context.Context, line model.CartLine) error {
	if line.Quantity == 0 {
		line.Quantity = 1
	}
	line = line.Normalized()
	if err := line.Validate(); err != nil {
		return fmt.Errorf("add to cart: %w", err)
	}

	c.mutate(ctx, func(s State) State {
		s = s.promote(line.Key())
		s.Lines = Merge(s.Lines, []model.CartLine{line})
		added := line
		s.LastAdded = &added
		return s
	})
	return nil
}

// Remove deletes the line with key. Removing an absent key is a no-op.
func (c *Cart) Remove(ctx context.Context, key model.CartKey) {
	key = normalizeKey(key)
	c.mutate(ctx, func(s State) State {
		s = s.promote(key)
		s.Lines = without(s.Lines, key)
		return s
	})
}

// UpdateQuantity sets the visible quantity of key. A quantity of zero or
// less removes the line.
func (c *Cart) UpdateQuantity(ctx context.Context, key model.CartKey, qty int) {
	if qty <= 0 {
		c.Remove(ctx, key)
		return
	}
	key = normalizeKey(key)
	c.mutate(ctx, func(s State) State {
		s = s.promote(key)
		i := indexOf(s.Lines, key)
		if i < 0 {
			return s
		}
		lines := model.CloneCartLines(s.Lines)
		lines[i].Quantity = qty
		s.Lines = lines
		return s
	})
}

// Toggle removes the line if its key is visible and adds it otherwise.
func (c *Cart) Toggle(ctx context.Context, line model.CartLine) error {
	if c.Has(line.Key()) {
		c.Remove(ctx, line.Key())
		return nil
	}
	return c.Add(ctx, line)
}

// Clear empties the cart after checkout completes, including the device
// copy.
func (c *Cart) Clear(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.state.Update(func(s State) State {
		s.Lines = []model.CartLine{}
		s.Pending = nil
		s.promoted = nil
		return s
	})
	if err := c.local.Clear(ctx); err != nil {
		c.logger.Error("clear local cart failed", "error", err)
		return err
	}
	return nil
}

// ClearLastAdded resets LastAdded.
func (c *Cart) ClearLastAdded() {
	c.state.Update(func(s State) State {
		s.LastAdded = nil
		return s
	})
}

// OpenDrawer sets DrawerOpen.
func (c *Cart) OpenDrawer() {
	c.setDrawer(true)
}

// CloseDrawer clears DrawerOpen.
func (c *Cart) CloseDrawer() {
	c.setDrawer(false)
}

// DrawerOpen reports the drawer flag.
func (c *Cart) DrawerOpen() bool {
	return c.state.Get().DrawerOpen
}

// LastAdded returns the most recently added line, if any.
func (c *Cart) LastAdded() (model.CartLine, bool) {
	s := c.state.Get()
	if s.LastAdded == nil {
		return model.CartLine{}, false
	}
	return *s.LastAdded, true
}

func (c *Cart) setDrawer(open bool) {
	c.state.Update(func(s State) State {
		s.DrawerOpen = open
		return s
	})
}

// mutate applies fn and, while anonymous, persists the resulting lines.
func (c *Cart) mutate(ctx context.Context, fn func(State) State) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	next := c.state.Update(fn)
	if !next.Identity.Present() {
		c.local.Write(ctx, next.Lines)
	}
}

func without(lines []model.CartLine, key model.CartKey) []model.CartLine {
	if indexOf(lines, key) < 0 {
		return lines
	}
	out := make([]model.CartLine, 0, len(lines))
	for _, l := range lines {
		if l.Key() != key {
			out = append(out, l)
		}
	}
	return out
}

func normalizeKey(k model.CartKey) model.CartKey {
	return model.NewCartKey(k.ProductID, k.Size)
}
