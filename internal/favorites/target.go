package favorites

import (
	"context"
	"slices"

	"github.com/roach88/shopstate/internal/model"
)

// target is the favorites side of the migration; the remote store is
// authoritative.
type target struct {
	f *Favorites
}

// Attach parks the anonymous favorites as pending and loads the remote
// list. A failed load is logged; the merge lists again.
func (t target) Attach(ctx context.Context, id model.Identity) {
	t.f.writeMu.Lock()
	t.f.state.Update(func(s State) State {
		s.Identity = id
		s.Pending = union(s.Pending, s.Items)
		s.Items = []model.FavoriteEntry{}
		s.dropped = nil
		return s
	})
	t.f.writeMu.Unlock()

	_ = t.f.load(ctx, id)
}

// Merge inserts the local ids the remote store lacks, then reloads the
// authoritative list into the state. Ids the user removed from the pending
// set meanwhile are kept out of the result and deleted remotely if the
// merge already inserted them.
func (t target) Merge(ctx context.Context, id model.Identity, local []model.FavoriteEntry) error {
	f := t.f
	f.setLoading(id, true)
	defer f.setLoading(id, false)

	existing, err := f.remote.List(ctx, id)
	if err != nil {
		return err
	}

	dropped := f.state.Get().dropped
	missing := slices.DeleteFunc(Complement(existing, local), func(e model.FavoriteEntry) bool {
		return slices.Contains(dropped, e.Key())
	})
	if len(missing) > 0 {
		res, err := f.remote.InsertMany(ctx, id, missing)
		if err != nil {
			f.logger.Warn("favorites merge insert failed",
				"identity", id, "inserted", len(res.Inserted), "error", err)
			return err
		}
		f.logger.Info("favorites merged",
			"identity", id, "inserted", len(res.Inserted), "duplicates", len(res.Duplicates))
	}

	reloaded, err := f.remote.List(ctx, id)
	if err != nil {
		return err
	}

	var stale []string
	applied := false
	f.state.Update(func(s State) State {
		if s.Identity != id {
			return s
		}
		applied = true
		stale = nil
		items := f.reconcile(reloaded, s.Items)
		for _, key := range s.dropped {
			if contains(reloaded, key) {
				stale = append(stale, key)
			}
			items = removeKey(items, key)
		}
		s.Items = items
		s.Pending = nil
		s.dropped = nil
		return s
	})
	if !applied {
		return ErrSuperseded
	}

	for _, key := range stale {
		f.deleteStale(ctx, id, key)
	}
	return nil
}

// deleteStale removes an id the user dropped while the merge was writing
// it. On failure the id is shown again, like a failed Remove.
func (f *Favorites) deleteStale(ctx context.Context, id model.Identity, key string) {
	err := f.remote.Delete(ctx, id, key)
	if err == nil {
		return
	}
	f.rollback(id, func(s State) State {
		if !contains(s.Items, key) {
			s.Items = append(slices.Clone(s.Items), model.NewFavorite(key))
		}
		return s
	})
	f.notifier.Notify(noticeRemoveFailed)
	f.logger.Warn("remove favorite failed after merge, restored", "identity", id, "key", key, "error", err)
}

// Reset drops the identified view and reloads the anonymous favorites.
func (t target) Reset(ctx context.Context) {
	f := t.f
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	f.clearOps()
	items := union(nil, f.local.Read(ctx))
	f.state.Update(func(s State) State {
		return State{Items: items}
	})
}
