package store

import (
	"context"
	"fmt"
)

// ListFavorites returns the product ids favorited by userID in insertion order.
func (s *Store) ListFavorites(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id FROM favorites
		WHERE user_id = ?
		ORDER BY seq ASC, product_id COLLATE BINARY ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}
	return ids, nil
}

// InsertFavorite adds (userID, productID). A pair that already exists is left
// as is and reported with inserted=false.
func (s *Store) InsertFavorite(ctx context.Context, userID, productID string) (inserted bool, err error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO favorites (user_id, product_id, seq)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM favorites))
		ON CONFLICT(user_id, product_id) DO NOTHING
	`, userID, productID)
	if err != nil {
		return false, fmt.Errorf("insert favorite: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert favorite: rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteFavorite removes (userID, productID). Removing a missing pair is not an
// error.
func (s *Store) DeleteFavorite(ctx context.Context, userID, productID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM favorites WHERE user_id = ? AND product_id = ?
	`, userID, productID)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	return nil
}
