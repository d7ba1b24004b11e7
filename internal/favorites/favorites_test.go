package favorites

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shopstate/internal/localstore"
	"github.com/roach88/shopstate/internal/migration"
	"github.com/roach88/shopstate/internal/model"
	"github.com/roach88/shopstate/internal/remote"
	"github.com/roach88/shopstate/internal/testutil"
)

const alice = model.Identity("alice")

var errTimeout = errors.New("timeout")

type notices struct {
	mu   sync.Mutex
	list []Notice
}

func (n *notices) Notify(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.list = append(n.list, notice)
}

func (n *notices) last() Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.list) == 0 {
		return Notice{}
	}
	return n.list[len(n.list)-1]
}

type fixture struct {
	backend *localstore.MemoryBackend
	local   *localstore.Store[model.FavoriteEntry]
	remote  *remote.Memory
	notices *notices
	fav     *Favorites
}

func newFixture(t *testing.T, seed string) *fixture {
	t.Helper()
	backend := localstore.NewMemoryBackend()
	if seed != "" {
		backend.Seed(localstore.FavoritesKey, seed)
	}
	local := localstore.New(backend, localstore.FavoritesKey, localstore.Favorites())
	rs := remote.NewMemory()
	n := &notices{}
	fav := New(context.Background(), local, rs,
		WithNotifier(n),
		WithMigrationOptions(migration.WithTokens(testutil.NewSequentialTokens(""))))
	return &fixture{backend: backend, local: local, remote: rs, notices: n, fav: fav}
}

func keys(entries []model.FavoriteEntry) []string {
	return model.FavoriteKeys(entries)
}

func TestFavorites_LoadsFromLocal(t *testing.T) {
	f := newFixture(t, `["p1"," p2 ","p1",""]`)

	assert.Equal(t, []string{"p1", "p2"}, keys(f.fav.Items()))
	assert.Equal(t, 2, f.fav.Count())
	assert.True(t, f.fav.Has("p2"))
}

func TestFavorites_LegacyEnvelope(t *testing.T) {
	f := newFixture(t, `{"state":{"favorites":["p1","p2"]},"version":0}`)

	assert.Equal(t, []string{"p1", "p2"}, keys(f.fav.Items()))
}

func TestFavorites_AnonymousMutationsStayLocal(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	require.NoError(t, f.fav.Add(ctx, "p1"))
	require.NoError(t, f.fav.Add(ctx, "p2"))
	require.NoError(t, f.fav.Add(ctx, "p1"))
	require.NoError(t, f.fav.Toggle(ctx, "p2"))

	assert.Equal(t, []string{"p1"}, keys(f.fav.Items()))
	assert.Equal(t, []string{"p1"}, keys(f.local.Read(ctx)))
	assert.Equal(t, 0, f.remote.TotalCalls())
}

func TestFavorites_AddRejectsEmptyID(t *testing.T) {
	f := newFixture(t, "")

	err := f.fav.Add(context.Background(), "  ")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidFavorite)
	assert.Empty(t, f.fav.Items())
}

func TestFavorites_SignInUnion(t *testing.T) {
	f := newFixture(t, `["a","b"]`)
	f.remote.Seed(alice, "b", "c")
	ctx := context.Background()

	require.NoError(t, f.fav.OnIdentityChanged(ctx, alice))

	assert.Equal(t, []string{"b", "c", "a"}, f.remote.Snapshot(alice))
	assert.Equal(t, []string{"b", "c", "a"}, keys(f.fav.Items()))
	assert.Empty(t, f.fav.State().Pending)
	assert.False(t, f.fav.Loading())
	assert.Empty(t, f.local.Read(ctx))

	snap := f.fav.Migration()
	assert.Equal(t, migration.PhaseMigrated, snap.Phase)
	assert.True(t, snap.HasMigratedThisSession)
}

func TestFavorites_SignInEmptyRemoteKeepsLocal(t *testing.T) {
	f := newFixture(t, `["a"]`)

	require.NoError(t, f.fav.OnIdentityChanged(context.Background(), alice))

	assert.Equal(t, []string{"a"}, f.remote.Snapshot(alice))
	assert.Equal(t, []string{"a"}, keys(f.fav.Items()))
}

func TestFavorites_SignInEmptyLocalLoadsRemote(t *testing.T) {
	f := newFixture(t, "")
	f.remote.Seed(alice, "x", "y")

	require.NoError(t, f.fav.OnIdentityChanged(context.Background(), alice))

	assert.Equal(t, []string{"x", "y"}, keys(f.fav.Items()))
	assert.Equal(t, 0, f.remote.Calls(remote.OpInsert))
}

func TestFavorites_OneShotPerSession(t *testing.T) {
	f := newFixture(t, `["a"]`)
	ctx := context.Background()

	require.NoError(t, f.fav.OnIdentityChanged(ctx, alice))
	calls := f.remote.TotalCalls()

	require.NoError(t, f.fav.OnIdentityChanged(ctx, alice))
	require.NoError(t, f.fav.Retry(ctx))

	assert.Equal(t, calls, f.remote.TotalCalls())
}

func TestFavorites_FailedMergeKeepsLocal(t *testing.T) {
	f := newFixture(t, `["a","b"]`)
	f.remote.Fail(remote.OpList, errTimeout)
	ctx := context.Background()

	err := f.fav.OnIdentityChanged(ctx, alice)
	require.Error(t, err)
	assert.True(t, migration.IsMergeError(err))
	assert.True(t, remote.IsError(err))

	assert.Equal(t, []string{"a", "b"}, keys(f.local.Read(ctx)))
	assert.Equal(t, []string{"a", "b"}, keys(f.fav.Items()))
	assert.False(t, f.fav.Loading())
	assert.Equal(t, migration.PhaseAnonymous, f.fav.Migration().Phase)

	f.remote.Fail(remote.OpList, nil)
	require.NoError(t, f.fav.Retry(ctx))

	assert.Equal(t, []string{"a", "b"}, f.remote.Snapshot(alice))
	assert.Empty(t, f.local.Read(ctx))
}

func TestFavorites_PartialInsertRetryDoesNotDuplicate(t *testing.T) {
	f := newFixture(t, `["a","b","c"]`)
	f.remote.FailInsertAfter(1, errTimeout)
	ctx := context.Background()

	err := f.fav.OnIdentityChanged(ctx, alice)
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, f.remote.Snapshot(alice))
	assert.Equal(t, []string{"a", "b", "c"}, keys(f.fav.Items()))

	f.remote.FailInsertAfter(-1, nil)
	require.NoError(t, f.fav.Retry(ctx))

	assert.Equal(t, []string{"a", "b", "c"}, f.remote.Snapshot(alice))
	assert.Equal(t, []string{"a", "b", "c"}, keys(f.fav.Items()))
}

func TestFavorites_RemovePendingBeforeRetry(t *testing.T) {
	f := newFixture(t, `["a","b"]`)
	f.remote.Fail(remote.OpList, errTimeout)
	ctx := context.Background()

	require.Error(t, f.fav.OnIdentityChanged(ctx, alice))
	require.NoError(t, f.fav.Remove(ctx, "a"))
	assert.Equal(t, []string{"b"}, keys(f.fav.Items()))
	assert.Equal(t, 0, f.remote.Calls(remote.OpDelete))

	f.remote.Fail(remote.OpList, nil)
	require.NoError(t, f.fav.Retry(ctx))

	assert.Equal(t, []string{"b"}, f.remote.Snapshot(alice))
}

// removeOn removes productID the first time op is called n times.
func removeOn(t *testing.T, f *fixture, op string, n int, productID string) {
	t.Helper()
	done := false
	f.remote.OnCall(func(called string) {
		if done || called != op || f.remote.Calls(op) != n {
			return
		}
		done = true
		assert.NoError(t, f.fav.Remove(context.Background(), productID))
	})
}

func TestFavorites_RemovePendingDuringInsert(t *testing.T) {
	f := newFixture(t, `["p1","p2"]`)
	removeOn(t, f, remote.OpInsert, 1, "p1")
	ctx := context.Background()

	require.NoError(t, f.fav.OnIdentityChanged(ctx, alice))

	assert.Equal(t, []string{"p2"}, f.remote.Snapshot(alice))
	assert.Equal(t, []string{"p2"}, keys(f.fav.Items()))
	assert.False(t, f.fav.Has("p1"))
	assert.Equal(t, 1, f.remote.Calls(remote.OpDelete))
	assert.True(t, f.fav.Migration().HasMigratedThisSession)
	assert.Empty(t, f.local.Read(ctx))
}

func TestFavorites_RemovePendingDuringReload(t *testing.T) {
	f := newFixture(t, `["p1","p2"]`)
	// Lists: attach, merge, reload.
	removeOn(t, f, remote.OpList, 3, "p1")

	require.NoError(t, f.fav.OnIdentityChanged(context.Background(), alice))

	assert.Equal(t, []string{"p2"}, f.remote.Snapshot(alice))
	assert.Equal(t, []string{"p2"}, keys(f.fav.Items()))
}

func TestFavorites_RemoveDuringMergeDeleteFails(t *testing.T) {
	f := newFixture(t, `["p1","p2"]`)
	removeOn(t, f, remote.OpInsert, 1, "p1")
	f.remote.Fail(remote.OpDelete, errTimeout)

	require.NoError(t, f.fav.OnIdentityChanged(context.Background(), alice))

	assert.Equal(t, []string{"p1", "p2"}, f.remote.Snapshot(alice))
	assert.Equal(t, []string{"p2", "p1"}, keys(f.fav.Items()), "a failed delete shows the id again")
	assert.Equal(t, noticeRemoveFailed, f.notices.last())
}

func TestFavorites_ReAddPendingDuringMergeKeepsIt(t *testing.T) {
	f := newFixture(t, `["p1","p2"]`)
	done := false
	f.remote.OnCall(func(op string) {
		if done || op != remote.OpInsert {
			return
		}
		done = true
		ctx := context.Background()
		assert.NoError(t, f.fav.Remove(ctx, "p1"))
		assert.NoError(t, f.fav.Add(ctx, "p1"))
	})

	require.NoError(t, f.fav.OnIdentityChanged(context.Background(), alice))

	assert.ElementsMatch(t, []string{"p1", "p2"}, f.remote.Snapshot(alice))
	assert.ElementsMatch(t, []string{"p1", "p2"}, keys(f.fav.Items()))
	assert.Equal(t, 0, f.remote.Calls(remote.OpDelete))
}

func TestFavorites_LocalReadFailureIsRetried(t *testing.T) {
	f := newFixture(t, `["p1"]`)
	ctx := context.Background()
	f.backend.FailGet(errors.New("disk I/O error"))

	err := f.fav.OnIdentityChanged(ctx, alice)

	require.Error(t, err)
	assert.True(t, migration.IsLocalReadError(err))
	assert.False(t, f.fav.Migration().HasMigratedThisSession)
	assert.Empty(t, f.remote.Snapshot(alice))
	assert.Equal(t, []string{"p1"}, keys(f.fav.Items()), "parked ids stay visible")

	f.backend.FailGet(nil)
	require.NoError(t, f.fav.Retry(ctx))

	assert.Equal(t, []string{"p1"}, f.remote.Snapshot(alice))
	assert.Equal(t, []string{"p1"}, keys(f.fav.Items()))
	assert.Empty(t, f.fav.State().Pending)
	assert.True(t, f.fav.Migration().HasMigratedThisSession)
}

func TestFavorites_LoadingDuringMerge(t *testing.T) {
	f := newFixture(t, `["a"]`)
	var sawLoading []bool
	f.remote.OnCall(func(op string) {
		if op == remote.OpInsert {
			sawLoading = append(sawLoading, f.fav.Loading())
		}
	})

	require.NoError(t, f.fav.OnIdentityChanged(context.Background(), alice))

	assert.Equal(t, []bool{true}, sawLoading)
	assert.False(t, f.fav.Loading())
}

func signedIn(t *testing.T, f *fixture) {
	t.Helper()
	require.NoError(t, f.fav.OnIdentityChanged(context.Background(), alice))
}

func TestFavorites_IdentifiedAdd(t *testing.T) {
	f := newFixture(t, "")
	signedIn(t, f)

	require.NoError(t, f.fav.Add(context.Background(), "p1"))

	assert.Equal(t, []string{"p1"}, f.remote.Snapshot(alice))
	assert.Equal(t, []string{"p1"}, keys(f.fav.Items()))
	assert.Equal(t, "Added to favorites", f.notices.last().Title)
	assert.Empty(t, f.local.Read(context.Background()))
}

func TestFavorites_AddIsOptimistic(t *testing.T) {
	f := newFixture(t, "")
	signedIn(t, f)

	var visible bool
	f.remote.OnCall(func(op string) {
		if op == remote.OpInsert {
			visible = f.fav.Has("p1")
		}
	})

	require.NoError(t, f.fav.Add(context.Background(), "p1"))
	assert.True(t, visible)
}

func TestFavorites_AddFailureRollsBack(t *testing.T) {
	f := newFixture(t, "")
	signedIn(t, f)
	f.remote.Fail(remote.OpInsert, errTimeout)

	err := f.fav.Add(context.Background(), "p1")
	require.Error(t, err)
	assert.True(t, remote.IsError(err))

	assert.False(t, f.fav.Has("p1"))
	assert.Equal(t, noticeAddFailed, f.notices.last())
	assert.Equal(t, VariantDestructive, f.notices.last().Variant)
}

func TestFavorites_RemoveFailureRestoresPosition(t *testing.T) {
	f := newFixture(t, "")
	f.remote.Seed(alice, "a", "b", "c")
	signedIn(t, f)
	f.remote.Fail(remote.OpDelete, errTimeout)

	err := f.fav.Remove(context.Background(), "b")
	require.Error(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, keys(f.fav.Items()))
	assert.Equal(t, noticeRemoveFailed, f.notices.last())
}

func TestFavorites_IdentifiedToggle(t *testing.T) {
	f := newFixture(t, "")
	f.remote.Seed(alice, "a")
	signedIn(t, f)
	ctx := context.Background()

	require.NoError(t, f.fav.Toggle(ctx, "a"))
	require.NoError(t, f.fav.Toggle(ctx, "b"))

	assert.Equal(t, []string{"b"}, f.remote.Snapshot(alice))
	assert.Equal(t, []string{"b"}, keys(f.fav.Items()))
}

func TestFavorites_RefreshKeepsInFlightAdd(t *testing.T) {
	f := newFixture(t, "")
	f.remote.Seed(alice, "a")
	signedIn(t, f)
	ctx := context.Background()

	f.remote.OnCall(func(op string) {
		if op == remote.OpInsert {
			f.remote.OnCall(nil)
			require.NoError(t, f.fav.Refresh(ctx))
		}
	})

	require.NoError(t, f.fav.Add(ctx, "b"))
	assert.Equal(t, []string{"a", "b"}, keys(f.fav.Items()))
}

func TestFavorites_SignOutReloadsLocal(t *testing.T) {
	f := newFixture(t, `["a"]`)
	f.remote.Seed(alice, "z")
	ctx := context.Background()
	signedIn(t, f)

	require.NoError(t, f.fav.OnIdentityChanged(ctx, model.NoIdentity))

	st := f.fav.State()
	assert.Equal(t, model.NoIdentity, st.Identity)
	assert.Empty(t, f.fav.Items())
	assert.Equal(t, migration.PhaseAnonymous, f.fav.Migration().Phase)

	require.NoError(t, f.fav.Add(ctx, "q"))
	assert.Equal(t, []string{"q"}, keys(f.local.Read(ctx)))
	assert.Equal(t, []string{"z", "a"}, f.remote.Snapshot(alice))
}

func TestFavorites_RefreshAnonymousIsNoop(t *testing.T) {
	f := newFixture(t, "")

	require.NoError(t, f.fav.Refresh(context.Background()))
	assert.Equal(t, 0, f.remote.TotalCalls())
}
