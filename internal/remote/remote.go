package remote

import (
	"context"
	"fmt"

	"github.com/roach88/shopstate/internal/model"
)

// FavoritesStore is the authoritative favorites collection, keyed by
// identity.
type FavoritesStore interface {
	// List returns the identity's favorites in insertion order.
	List(ctx context.Context, id model.Identity) ([]model.FavoriteEntry, error)

	// InsertMany adds entries for the identity. See the package docs for
	// partial-failure semantics.
	InsertMany(ctx context.Context, id model.Identity, entries []model.FavoriteEntry) (InsertResult, error)

	// Delete removes one favorite. Removing an absent favorite succeeds.
	Delete(ctx context.Context, id model.Identity, productID string) error
}

// InsertResult reports which product ids were stored and which were already
// present.
type InsertResult struct {
	Inserted   []string `json:"inserted"`
	Duplicates []string `json:"duplicates"`
}

// insertFunc inserts one normalised product id and reports whether a row was
// created.
type insertFunc func(ctx context.Context, productID string) (bool, error)

// insertEach drives InsertMany for adapters that insert row by row. Entries
// repeated within the batch count as duplicates.
func insertEach(ctx context.Context, id model.Identity, entries []model.FavoriteEntry, insert insertFunc) (InsertResult, error) {
	result := InsertResult{Inserted: []string{}, Duplicates: []string{}}
	if !id.Present() {
		return result, fail(OpInsert, id, ErrNoIdentity)
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return result, fail(OpInsert, id, err)
		}
		key := e.Key()
		if seen[key] {
			result.Duplicates = append(result.Duplicates, key)
			continue
		}
		seen[key] = true

		inserted, err := insert(ctx, key)
		if err != nil {
			return result, fail(OpInsert, id, fmt.Errorf("insert %q: %w", key, err))
		}
		if inserted {
			result.Inserted = append(result.Inserted, key)
		} else {
			result.Duplicates = append(result.Duplicates, key)
		}
	}
	return result, nil
}

func toEntries(ids []string) []model.FavoriteEntry {
	entries := make([]model.FavoriteEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, model.FavoriteEntry{ProductID: id})
	}
	return entries
}
