package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/shopstate/internal/model"
)

// Participant is an aggregate that follows identity changes.
// *cart.Cart and *favorites.Favorites satisfy it.
type Participant interface {
	Name() string
	OnIdentityChanged(ctx context.Context, id model.Identity) error
	Retry(ctx context.Context) error
}

// Session forwards identity changes to its participants.
//
// Each participant has its own migration; a failure in one is logged and
// returned but never stops the others.
type Session struct {
	participants []Participant
	logger       *slog.Logger

	// mu serialises dispatch so participants see changes in order.
	mu sync.Mutex
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// New creates a session over participants, dispatched in the given order.
func New(participants []Participant, opts ...Option) *Session {
	s := &Session{
		participants: participants,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Participants returns the registered participants.
func (s *Session) Participants() []Participant {
	return s.participants
}

// IdentityChanged forwards id to every participant. The result joins every
// participant error, each prefixed with the participant name.
func (s *Session) IdentityChanged(ctx context.Context, id model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.each(func(p Participant) error {
		return p.OnIdentityChanged(ctx, id)
	}, "identity change failed", id)
}

// Retry re-runs failed migrations on every participant.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.each(func(p Participant) error {
		return p.Retry(ctx)
	}, "retry failed", model.NoIdentity)
}

func (s *Session) each(fn func(Participant) error, msg string, id model.Identity) error {
	var errs []error
	for _, p := range s.participants {
		if err := fn(p); err != nil {
			s.logger.Warn(msg, "aggregate", p.Name(), "identity", id, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Bind subscribes the session to src. Changes are dispatched with ctx and
// errors are passed to onErr when it is non-nil. The returned function
// unsubscribes.
func (s *Session) Bind(ctx context.Context, src *IdentitySource, onErr func(error)) (cancel func()) {
	return src.Subscribe(func(id model.Identity) {
		if err := s.IdentityChanged(ctx, id); err != nil && onErr != nil {
			onErr(err)
		}
	})
}
