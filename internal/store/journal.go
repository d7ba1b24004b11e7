package store

import (
	"context"
	"fmt"
)

// Journal events.
const (
	JournalStarted   = "started"
	JournalSucceeded = "succeeded"
	JournalFailed    = "failed"
	JournalSkipped   = "skipped"
)

// JournalEntry records one step of a migration attempt.
// ID is content-addressed by the caller; Seq is assigned by the store.
type JournalEntry struct {
	ID             string `json:"id"`
	Seq            int64  `json:"seq"`
	Aggregate      string `json:"aggregate"`
	Identity       string `json:"identity"`
	Session        string `json:"session"`
	Attempt        int    `json:"attempt"`
	Event          string `json:"event"`
	ItemCount      int    `json:"item_count"`
	SnapshotDigest string `json:"snapshot_digest"`
	Detail         string `json:"detail,omitempty"`
}

// WriteJournal appends an entry. Uses ON CONFLICT(id) DO NOTHING, so writing
// the same entry twice is a no-op and reports inserted=false.
func (s *Store) WriteJournal(ctx context.Context, e JournalEntry) (inserted bool, err error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO migration_journal
		(id, seq, aggregate, identity, session, attempt, event, item_count, snapshot_digest, detail)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM migration_journal), ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID,
		e.Aggregate,
		e.Identity,
		e.Session,
		e.Attempt,
		e.Event,
		e.ItemCount,
		e.SnapshotDigest,
		e.Detail,
	)
	if err != nil {
		return false, fmt.Errorf("write journal: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write journal: rows affected: %w", err)
	}
	return n > 0, nil
}

// ReadJournal returns entries for aggregate, or all entries when aggregate is
// empty. Returns an empty slice (not nil) when nothing matches.
func (s *Store) ReadJournal(ctx context.Context, aggregate string) ([]JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, aggregate, identity, session, attempt, event, item_count, snapshot_digest, detail
		FROM migration_journal
		WHERE ? = '' OR aggregate = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, aggregate, aggregate)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []JournalEntry{}
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(
			&e.ID, &e.Seq, &e.Aggregate, &e.Identity, &e.Session,
			&e.Attempt, &e.Event, &e.ItemCount, &e.SnapshotDigest, &e.Detail,
		); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}
