package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/shopstate/internal/cart"
	"github.com/roach88/shopstate/internal/favorites"
	"github.com/roach88/shopstate/internal/localstore"
	"github.com/roach88/shopstate/internal/migration"
	"github.com/roach88/shopstate/internal/model"
	"github.com/roach88/shopstate/internal/remote"
	"github.com/roach88/shopstate/internal/session"
	"github.com/roach88/shopstate/internal/state"
	"github.com/roach88/shopstate/internal/store"
	"github.com/roach88/shopstate/internal/testutil"
)

// Harness holds the collaborators of one scenario run.
type Harness struct {
	store   *store.Store
	backend *localstore.SQLiteBackend
	remote  *remote.Memory
	tokens  *testutil.SequentialTokens
	logger  *slog.Logger

	// clock stamps trace events; versions shares one order across both
	// aggregates' state.
	clock    *state.Clock
	versions *state.Clock

	cartLocal *localstore.Store[model.CartLine]
	favLocal  *localstore.Store[model.FavoriteEntry]
	cart      *cart.Cart
	favorites *favorites.Favorites
	identity  *session.IdentitySource
	session   *session.Session

	result *Result

	// lastErr is the most recent error reported by the session binding.
	lastErr error

	// identities are the accounts the remote view reports.
	identities map[model.Identity]bool
}

// Option configures Run.
type Option func(*Harness)

// WithLogger sets the logger for the aggregates. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a scenario against a fresh in-memory device store and an
// in-memory remote store.
//
// Execution:
//  1. Run setup steps (seeding stores, injecting faults)
//  2. Create the aggregates, which load the seeded local values
//  3. Run flow steps, checking expect clauses
//  4. Capture final state views and evaluate assertions
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:      st,
		backend:    localstore.NewSQLiteBackend(st),
		remote:     remote.NewMemory(),
		tokens:     testutil.NewSequentialTokens(scenario.SessionPrefix),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:      state.NewClock(),
		versions:   state.NewClock(),
		result:     NewResult(),
		identities: make(map[model.Identity]bool),
	}
	for _, opt := range opts {
		opt(h)
	}

	ctx := context.Background()

	for i, step := range scenario.Setup {
		if err := setupActions[step.Action](ctx, h, args(step.Args)); err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, step.Action, err)
		}
	}

	h.build(ctx)

	for i, step := range scenario.Flow {
		h.invoke(ctx, i, step)
	}

	if err := h.captureState(ctx); err != nil {
		return nil, fmt.Errorf("failed to capture state: %w", err)
	}

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// build creates the aggregates over the seeded stores and binds them to a
// fresh identity source.
func (h *Harness) build(ctx context.Context) {
	migOpts := []migration.Option{
		migration.WithJournal(h.store),
		migration.WithTokens(h.tokens),
		migration.WithObserver(h.onMigration),
		migration.WithLogger(h.logger),
	}

	h.cartLocal = localstore.New(h.backend, localstore.CartKey, localstore.CartLines(), localstore.WithLogger(h.logger))
	h.favLocal = localstore.New(h.backend, localstore.FavoritesKey, localstore.Favorites(), localstore.WithLogger(h.logger))

	h.cart = cart.New(ctx, h.cartLocal,
		cart.WithLogger(h.logger),
		cart.WithClock(h.versions),
		cart.WithMigrationOptions(migOpts...))
	h.favorites = favorites.New(ctx, h.favLocal, h.remote,
		favorites.WithLogger(h.logger),
		favorites.WithClock(h.versions),
		favorites.WithNotifier(favorites.NotifierFunc(h.onNotice)),
		favorites.WithMigrationOptions(migOpts...))

	h.identity = session.NewIdentitySource()
	h.session = session.New([]session.Participant{h.cart, h.favorites}, session.WithLogger(h.logger))
	h.session.Bind(ctx, h.identity, func(err error) { h.lastErr = err })
}

func (h *Harness) invoke(ctx context.Context, index int, step FlowStep) {
	a := args(step.Args)
	h.trace(TraceEvent{Type: EventInvoke, Name: step.Invoke, Args: step.Args})

	err := flowActions[step.Invoke](ctx, h, a)

	done := TraceEvent{Type: EventComplete, Name: step.Invoke, Outcome: OutcomeOK}
	if err != nil {
		done.Outcome = OutcomeError
		done.Error = err.Error()
	}
	h.trace(done)

	if step.Expect == nil {
		return
	}
	if done.Outcome != step.Expect.Outcome {
		h.result.AddError(fmt.Sprintf("flow[%d] %s: expected outcome %s, got %s (%s)",
			index, step.Invoke, step.Expect.Outcome, done.Outcome, done.Error))
		return
	}
	if step.Expect.Error != "" && !containsString(done.Error, step.Expect.Error) {
		h.result.AddError(fmt.Sprintf("flow[%d] %s: expected error containing %q, got %q",
			index, step.Invoke, step.Expect.Error, done.Error))
	}
}

func (h *Harness) trace(ev TraceEvent) {
	ev.Seq = h.clock.Next()
	h.result.Trace = append(h.result.Trace, ev)
}

func (h *Harness) onMigration(ev migration.Event) {
	a := map[string]interface{}{
		"identity": string(ev.Identity),
		"phase":    string(ev.Phase),
	}
	if ev.Session != "" {
		a["session"] = ev.Session
	}
	if ev.Attempt > 0 {
		a["attempt"] = ev.Attempt
	}
	if ev.ItemCount > 0 {
		a["items"] = ev.ItemCount
	}
	if ev.Detail != "" {
		a["detail"] = ev.Detail
	}
	h.trace(TraceEvent{Type: EventMigration, Name: ev.Aggregate + "." + string(ev.Kind), Args: a})
}

func (h *Harness) onNotice(n favorites.Notice) {
	a := map[string]interface{}{}
	if n.Description != "" {
		a["description"] = n.Description
	}
	if n.Variant != "" {
		a["variant"] = n.Variant
	}
	if len(a) == 0 {
		a = nil
	}
	h.trace(TraceEvent{Type: EventNotice, Name: n.Title, Args: a})
}

// takeErr returns and clears the error reported by the session binding.
func (h *Harness) takeErr() error {
	err := h.lastErr
	h.lastErr = nil
	return err
}

// captureState builds the views final_state assertions run against.
func (h *Harness) captureState(ctx context.Context) error {
	cartState := h.cart.State()
	cartMig := h.cart.Migration()
	h.result.State["cart"] = map[string]interface{}{
		"identity":    string(cartState.Identity),
		"items":       cartView(h.cart.Items()),
		"total_items": h.cart.TotalItems(),
		"phase":       string(cartMig.Phase),
		"migrated":    cartMig.HasMigratedThisSession,
	}

	favState := h.favorites.State()
	favMig := h.favorites.Migration()
	h.result.State["favorites"] = map[string]interface{}{
		"identity": string(favState.Identity),
		"items":    stringsView(model.FavoriteKeys(h.favorites.Items())),
		"count":    h.favorites.Count(),
		"phase":    string(favMig.Phase),
		"migrated": favMig.HasMigratedThisSession,
	}

	h.result.State["local"] = map[string]interface{}{
		"cart":      cartView(h.cartLocal.Read(ctx)),
		"favorites": stringsView(model.FavoriteKeys(h.favLocal.Read(ctx))),
	}

	remoteView := map[string]interface{}{}
	for _, id := range h.seenIdentities() {
		remoteView[string(id)] = stringsView(h.remote.Snapshot(id))
	}
	h.result.State["remote"] = remoteView

	entries, err := h.store.ReadJournal(ctx, "")
	if err != nil {
		return err
	}
	events := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		events = append(events, e.Aggregate+"."+e.Event)
	}
	h.result.State["journal"] = map[string]interface{}{"events": events}
	return nil
}

// seenIdentities lists identities that were seeded or signed in, sorted.
func (h *Harness) seenIdentities() []model.Identity {
	out := make([]model.Identity, 0, len(h.identities))
	for id := range h.identities {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func cartView(lines []model.CartLine) []interface{} {
	out := make([]interface{}, 0, len(lines))
	for _, l := range lines {
		out = append(out, map[string]interface{}{
			"id":       l.ProductID,
			"size":     l.Size,
			"quantity": l.Quantity,
		})
	}
	return out
}

func stringsView(ids []string) []interface{} {
	out := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		out = append(out, id)
	}
	return out
}
