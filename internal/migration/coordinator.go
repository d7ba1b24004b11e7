package migration

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/shopstate/internal/metrics"
	"github.com/roach88/shopstate/internal/model"
	"github.com/roach88/shopstate/internal/store"
)

// Phase is the coordinator state.
type Phase string

const (
	PhaseAnonymous Phase = "anonymous"
	PhaseMigrating Phase = "migrating"
	PhaseMigrated  Phase = "migrated"
)

// Local is the anonymous collection being migrated.
// *localstore.Store satisfies it.
type Local[T any] interface {
	// Load returns the collection, or an error when the device store could
	// not be read. Corrupt values read as empty.
	Load(ctx context.Context) ([]T, error)
	Clear(ctx context.Context) error
}

// Target is the authoritative side of an aggregate.
type Target[T any] interface {
	// Attach is called once when an identity appears, before any merge.
	Attach(ctx context.Context, id model.Identity)

	// Merge folds local into the authoritative view for id. It must apply
	// the result as a transform of the state current at write time. A
	// non-nil error means nothing the caller can rely on was applied.
	Merge(ctx context.Context, id model.Identity, local []T) error

	// Reset is called when the identity is lost.
	Reset(ctx context.Context)
}

// Journal persists migration records. *store.Store satisfies it.
type Journal interface {
	WriteJournal(ctx context.Context, e store.JournalEntry) (bool, error)
}

// Snapshot is a point-in-time view of a coordinator.
type Snapshot struct {
	Aggregate              string         `json:"aggregate"`
	Phase                  Phase          `json:"phase"`
	Identity               model.Identity `json:"identity"`
	HasMigratedThisSession bool           `json:"has_migrated_this_session"`
	Session                string         `json:"session,omitempty"`
	Attempts               int            `json:"attempts"`
}

// Coordinator drives the one-shot merge for a single aggregate. Each
// instance carries its own flag; nothing is shared between aggregates.
//
// Thread-safety: Coordinator is safe for concurrent use. The lock guards
// transitions only and is never held across Local or Target calls.
type Coordinator[T any] struct {
	name    string
	local   Local[T]
	target  Target[T]
	journal Journal
	tokens  TokenGenerator
	observe func(Event)
	logger  *slog.Logger

	mu       sync.Mutex
	phase    Phase
	identity model.Identity
	migrated bool
	session  string
	attempts int
	cancel   context.CancelFunc
}

// Option configures a Coordinator.
type Option func(*config)

type config struct {
	journal  Journal
	tokens   TokenGenerator
	observer func(Event)
	logger   *slog.Logger
}

// WithJournal records every attempt. Journal failures are logged only.
func WithJournal(j Journal) Option {
	return func(c *config) {
		c.journal = j
	}
}

// WithTokens sets the session token generator. Defaults to UUIDv7Generator.
func WithTokens(g TokenGenerator) Option {
	return func(c *config) {
		c.tokens = g
	}
}

// WithObserver registers fn to receive every coordinator event. fn is
// called synchronously and must not call back into the coordinator.
func WithObserver(fn func(Event)) Option {
	return func(c *config) {
		c.observer = fn
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// New creates a coordinator in PhaseAnonymous.
func New[T any](name string, local Local[T], target Target[T], opts ...Option) *Coordinator[T] {
	cfg := config{
		tokens: UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Coordinator[T]{
		name:    name,
		local:   local,
		target:  target,
		journal: cfg.journal,
		tokens:  cfg.tokens,
		observe: cfg.observer,
		logger:  cfg.logger.With("aggregate", name),
		phase:   PhaseAnonymous,
	}
}

// Name returns the aggregate name.
func (c *Coordinator[T]) Name() string {
	return c.name
}

// Snapshot returns the current state.
func (c *Coordinator[T]) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Aggregate:              c.name,
		Phase:                  c.phase,
		Identity:               c.identity,
		HasMigratedThisSession: c.migrated,
		Session:                c.session,
		Attempts:               c.attempts,
	}
}

// OnIdentityChanged is the single entry point for identity changes.
//
//   - none to identity: attach the target and migrate
//   - identity to the same or another identity: ignored
//   - identity to none: reset to anonymous and clear the flag
//
// The returned error is a *Error when a migration was attempted and failed.
// Calls must not overlap; session.Session serialises them.
func (c *Coordinator[T]) OnIdentityChanged(ctx context.Context, id model.Identity) error {
	if !id.Present() {
		c.signOut(ctx)
		return nil
	}

	c.mu.Lock()
	if c.identity.Present() {
		current, phase := c.identity, c.phase
		c.mu.Unlock()
		if current != id {
			c.logger.Warn("identity changed without sign-out, ignoring",
				"identity", current, "new_identity", id)
		} else {
			c.logger.Debug("identity unchanged", "identity", id, "phase", phase)
		}
		c.emit(Event{Kind: EventIgnored, Phase: phase, Identity: id})
		return nil
	}
	c.identity = id
	c.session = c.tokens.Generate()
	c.attempts = 0
	c.migrated = false
	session := c.session
	c.mu.Unlock()

	c.logger.Info("identity attached", "identity", id, "session", session)
	c.target.Attach(ctx, id)
	if !c.current(session) {
		// Signed out while attaching; the reset may have run first.
		if !c.present() {
			c.target.Reset(ctx)
		}
		return nil
	}
	c.emit(Event{Kind: EventAttached, Phase: PhaseAnonymous, Identity: id, Session: session})

	return c.run(ctx)
}

// Retry re-runs a failed migration for the current identity. It is a no-op
// after a successful migration and while one is in flight.
func (c *Coordinator[T]) Retry(ctx context.Context) error {
	c.mu.Lock()
	present := c.identity.Present()
	c.mu.Unlock()
	if !present {
		return &Error{Code: ErrCodeNotIdentified, Aggregate: c.name, Err: errNotIdentified}
	}
	return c.run(ctx)
}

func (c *Coordinator[T]) signOut(ctx context.Context) {
	c.mu.Lock()
	if !c.identity.Present() {
		c.mu.Unlock()
		return
	}
	prev, session := c.identity, c.session
	c.identity = model.NoIdentity
	c.phase = PhaseAnonymous
	c.migrated = false
	c.session = ""
	c.attempts = 0
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.target.Reset(ctx)

	c.logger.Info("identity lost, reset to anonymous", "identity", prev, "session", session)
	c.emit(Event{Kind: EventReset, Phase: PhaseAnonymous, Identity: prev, Session: session})
}

// run performs one migration attempt.
func (c *Coordinator[T]) run(ctx context.Context) error {
	c.mu.Lock()
	if !c.identity.Present() {
		c.mu.Unlock()
		return &Error{Code: ErrCodeNotIdentified, Aggregate: c.name, Err: errNotIdentified}
	}
	if c.migrated || c.phase == PhaseMigrating {
		c.mu.Unlock()
		return nil
	}
	c.phase = PhaseMigrating
	c.attempts++
	id, session, attempt := c.identity, c.session, c.attempts
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	start := time.Now()
	ev := Event{Phase: PhaseMigrating, Identity: id, Session: session, Attempt: attempt}

	items, err := c.local.Load(runCtx)
	if err != nil {
		c.record(ctx, ev, EventStarted, "", "")
		if !c.finish(session, false) {
			return nil
		}
		ev.Phase = PhaseAnonymous
		c.record(ctx, ev, EventFailed, "", err.Error())
		metrics.RecordMigration(c.name, metrics.OutcomeFailed, time.Since(start))
		c.logger.Warn("migration failed, local collection unreadable",
			"identity", id, "session", session, "attempt", attempt, "error", err)
		return &Error{
			Code:      ErrCodeLocalRead,
			Aggregate: c.name,
			Identity:  id,
			Session:   session,
			Attempt:   attempt,
			Err:       err,
		}
	}
	ev.ItemCount = len(items)
	digest := c.digest(items)
	c.record(ctx, ev, EventStarted, digest, "")

	if len(items) == 0 {
		if !c.finish(session, true) {
			return nil
		}
		ev.Phase = PhaseMigrated
		c.record(ctx, ev, EventSkipped, digest, "local collection empty")
		metrics.RecordMigration(c.name, metrics.OutcomeEmpty, time.Since(start))
		c.logger.Info("migration skipped, nothing to merge", "identity", id, "session", session)
		return nil
	}

	if err := c.target.Merge(runCtx, id, items); err != nil {
		if !c.finish(session, false) {
			c.logger.Info("migration abandoned after identity loss", "session", session, "error", err)
			return nil
		}
		ev.Phase = PhaseAnonymous
		c.record(ctx, ev, EventFailed, digest, err.Error())
		metrics.RecordMigration(c.name, metrics.OutcomeFailed, time.Since(start))
		c.logger.Warn("migration failed, local data kept",
			"identity", id, "session", session, "attempt", attempt, "error", err)
		return &Error{
			Code:      ErrCodeMergeFailed,
			Aggregate: c.name,
			Identity:  id,
			Session:   session,
			Attempt:   attempt,
			Err:       err,
		}
	}

	if !c.current(session) {
		// Signed out while merging. The local copy stays for the next
		// sign-in.
		c.logger.Info("migration superseded by identity loss", "session", session)
		return nil
	}
	if err := c.local.Clear(ctx); err != nil {
		c.logger.Error("local clear failed after merge; next sign-in may merge again",
			"identity", id, "session", session, "error", err)
	}
	if !c.finish(session, true) {
		return nil
	}

	ev.Phase = PhaseMigrated
	c.record(ctx, ev, EventSucceeded, digest, "")
	metrics.RecordMigration(c.name, metrics.OutcomeSucceeded, time.Since(start))
	c.logger.Info("migration succeeded",
		"identity", id, "session", session, "attempt", attempt, "items", len(items))
	return nil
}

func (c *Coordinator[T]) present() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity.Present()
}

// current reports whether session is still the active session.
func (c *Coordinator[T]) current(session string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session == session && c.identity.Present()
}

// finish ends an attempt. It reports false when the session was replaced in
// the meantime, in which case nothing is changed.
func (c *Coordinator[T]) finish(session string, ok bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != session || !c.identity.Present() {
		return false
	}
	c.cancel = nil
	if ok {
		c.phase = PhaseMigrated
		c.migrated = true
	} else {
		c.phase = PhaseAnonymous
	}
	return true
}

func (c *Coordinator[T]) digest(items []T) string {
	d, err := model.SnapshotDigest(items)
	if err != nil {
		c.logger.Debug("snapshot digest unavailable", "error", err)
		return ""
	}
	return d
}
