package migration

import (
	"context"
	"errors"

	"github.com/roach88/shopstate/internal/model"
	"github.com/roach88/shopstate/internal/store"
)

var errNotIdentified = errors.New("no identity present")

// EventKind names a coordinator event.
type EventKind string

const (
	EventAttached  EventKind = "attached"
	EventIgnored   EventKind = "ignored"
	EventStarted   EventKind = store.JournalStarted
	EventSucceeded EventKind = store.JournalSucceeded
	EventFailed    EventKind = store.JournalFailed
	EventSkipped   EventKind = store.JournalSkipped
	EventReset     EventKind = "reset"
)

// Event is one step of the coordinator, delivered to observers.
type Event struct {
	Aggregate string         `json:"aggregate"`
	Kind      EventKind      `json:"kind"`
	Phase     Phase          `json:"phase"`
	Identity  model.Identity `json:"identity"`
	Session   string         `json:"session,omitempty"`
	Attempt   int            `json:"attempt,omitempty"`
	ItemCount int            `json:"item_count,omitempty"`
	Detail    string         `json:"detail,omitempty"`
}

func (c *Coordinator[T]) emit(ev Event) {
	if c.observe == nil {
		return
	}
	ev.Aggregate = c.name
	c.observe(ev)
}

// record emits ev as kind and appends it to the journal.
func (c *Coordinator[T]) record(ctx context.Context, ev Event, kind EventKind, digest, detail string) {
	ev.Kind = kind
	ev.Detail = detail
	c.emit(ev)

	if c.journal == nil {
		return
	}

	id, err := model.Digest(model.DomainJournal, map[string]any{
		"aggregate": c.name,
		"session":   ev.Session,
		"attempt":   ev.Attempt,
		"event":     string(kind),
	})
	if err != nil {
		c.logger.Error("journal id failed", "error", err)
		return
	}

	_, err = c.journal.WriteJournal(ctx, store.JournalEntry{
		ID:             id,
		Aggregate:      c.name,
		Identity:       string(ev.Identity),
		Session:        ev.Session,
		Attempt:        ev.Attempt,
		Event:          string(kind),
		ItemCount:      ev.ItemCount,
		SnapshotDigest: digest,
		Detail:         detail,
	})
	if err != nil {
		c.logger.Error("journal write failed", "event", kind, "session", ev.Session, "error", err)
	}
}
