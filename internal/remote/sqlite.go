package remote

import (
	"context"

	"github.com/roach88/shopstate/internal/model"
	"github.com/roach88/shopstate/internal/store"
)

// SQLite stores favorites in the device store's favorites table.
type SQLite struct {
	store *store.Store
}

// NewSQLite wraps an open store.
func NewSQLite(s *store.Store) *SQLite {
	return &SQLite{store: s}
}

func (r *SQLite) List(ctx context.Context, id model.Identity) ([]model.FavoriteEntry, error) {
	if !id.Present() {
		return nil, fail(OpList, id, ErrNoIdentity)
	}
	ids, err := r.store.ListFavorites(ctx, string(id))
	if err != nil {
		return nil, fail(OpList, id, err)
	}
	return toEntries(ids), nil
}

func (r *SQLite) InsertMany(ctx context.Context, id model.Identity, entries []model.FavoriteEntry) (InsertResult, error) {
	return insertEach(ctx, id, entries, func(ctx context.Context, productID string) (bool, error) {
		return r.store.InsertFavorite(ctx, string(id), productID)
	})
}

func (r *SQLite) Delete(ctx context.Context, id model.Identity, productID string) error {
	if !id.Present() {
		return fail(OpDelete, id, ErrNoIdentity)
	}
	if err := r.store.DeleteFavorite(ctx, string(id), model.NormalizeKey(productID)); err != nil {
		return fail(OpDelete, id, err)
	}
	return nil
}
