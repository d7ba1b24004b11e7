package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetLocal returns the raw value stored under key.
// found is false when no row exists.
func (s *Store) GetLocal(ctx context.Context, key string) (value string, found bool, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT value FROM local_state WHERE key = ?
	`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get local %q: %w", key, err)
	}
	return value, true, nil
}

// PutLocal replaces the value stored under key in a single statement, so a
// failed write leaves the previous value untouched.
func (s *Store) PutLocal(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO local_state (key, value, seq)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM local_state))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, seq = excluded.seq
	`, key, value)
	if err != nil {
		return fmt.Errorf("put local %q: %w", key, err)
	}
	return nil
}

// DeleteLocal removes key. Deleting a missing key is not an error.
func (s *Store) DeleteLocal(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete local %q: %w", key, err)
	}
	return nil
}

// LocalKeys lists stored keys in write order.
func (s *Store) LocalKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM local_state ORDER BY seq ASC, key COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list local keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan local key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate local keys: %w", err)
	}
	return keys, nil
}
