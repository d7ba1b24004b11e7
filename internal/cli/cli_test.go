package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shopstate/internal/localstore"
	"github.com/roach88/shopstate/internal/store"
)

const scenariosDir = "../harness/testdata/scenarios"

// execute runs the root command with a clean configuration environment.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SHOPSTATE_REMOTE", "sqlite")
	t.Setenv("SHOPSTATE_LOG_LEVEL", "error")
	t.Setenv("SHOPSTATE_DB", filepath.Join(t.TempDir(), "default.db"))

	cmd := NewRootCommand()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "shopstate", cmd.Use)

	for _, name := range []string{"run", "test", "local", "journal", "favorites"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, "command %s should exist", name)
		assert.Equal(t, name, sub.Name())
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("env-file"))
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := execute(t, "journal", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootCommand_BadEnvFile(t *testing.T) {
	_, err := execute(t, "journal", "--env-file", filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestRunCommand_Passes(t *testing.T) {
	out, err := execute(t, "run", filepath.Join(scenariosDir, "favorites_union_merge.yaml"), "--metrics")
	require.NoError(t, err)

	assert.Contains(t, out, "Scenario: favorites_union_merge")
	assert.Contains(t, out, "favorites.succeeded")
	assert.Contains(t, out, "✓ PASS")
	assert.Contains(t, out, "shopstate_migration_attempts_total")
}

func TestRunCommand_JSON(t *testing.T) {
	out, err := execute(t, "run", filepath.Join(scenariosDir, "cart_merge_on_sign_in.yaml"), "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   runReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "cart_merge_on_sign_in", resp.Data.Scenario)
	require.NotNil(t, resp.Data.Result)
	assert.True(t, resp.Data.Result.Pass)
	assert.NotEmpty(t, resp.Data.Result.Trace)
}

func TestRunCommand_FailingScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: bad
description: "expects the wrong favorites"
flow:
  - invoke: favorites.add
    args: { id: a }
assertions:
  - type: final_state
    view: favorites
    expect: { items: [z] }
`), 0o644))

	out, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ FAIL")
	assert.Contains(t, out, "favorites.items")
}

func TestRunCommand_MissingScenario(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_AllScenariosPass(t *testing.T) {
	out, err := execute(t, "test", scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "0 failed")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := execute(t, "test", scenariosDir, "--filter", "cart_*", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "cart_merge_on_sign_in", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_GoldenLifecycle(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile(filepath.Join(scenariosDir, "favorites_add_rollback.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rollback.yaml"), src, 0o644))

	out, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "(golden updated)")

	goldenPath := filepath.Join(dir, "golden", "rollback.golden")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"favorites_add_rollback"`)

	_, err = execute(t, "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{}`), 0o644))
	out, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommand_EmptyDir(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func seedDB(t *testing.T, values map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "device.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()
	for k, v := range values {
		require.NoError(t, st.PutLocal(context.Background(), k, v))
	}
	return path
}

func TestLocalCommand_Show(t *testing.T) {
	db := seedDB(t, map[string]string{
		localstore.CartKey:      `[{"id":"p1","size":"M","color":"","name":"Tee","price":10,"image":"","quantity":2}]`,
		localstore.FavoritesKey: `["a","b"]`,
	})

	out, err := execute(t, "local", "show", "cart", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "cart (ando_cart): 1 item(s)")
	assert.Contains(t, out, "p1")

	out, err = execute(t, "local", "show", "favorites", "--db", db, "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Data struct {
			Items []string `json:"items"`
			Count int      `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"a", "b"}, resp.Data.Items)
	assert.Equal(t, 2, resp.Data.Count)
}

func TestLocalCommand_ShowHealsCorruptValue(t *testing.T) {
	db := seedDB(t, map[string]string{localstore.CartKey: `{broken`})

	out, err := execute(t, "local", "show", "cart", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "0 item(s)")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	raw, found, err := st.GetLocal(context.Background(), localstore.CartKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "[]", raw)
}

func TestLocalCommand_Clear(t *testing.T) {
	db := seedDB(t, map[string]string{localstore.FavoritesKey: `["a"]`})

	out, err := execute(t, "local", "clear", "favorites", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "cleared favorites")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	_, found, err := st.GetLocal(context.Background(), localstore.FavoritesKey)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLocalCommand_UnknownAggregate(t *testing.T) {
	_, err := execute(t, "local", "show", "orders", "--db", seedDB(t, nil))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestJournalCommand(t *testing.T) {
	db := seedDB(t, nil)

	out, err := execute(t, "journal", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No journal entries.")

	st, err := store.Open(db)
	require.NoError(t, err)
	for _, e := range []store.JournalEntry{
		{ID: "j1", Aggregate: "favorites", Identity: "alice", Session: "s1", Attempt: 1, Event: store.JournalStarted, ItemCount: 2},
		{ID: "j2", Aggregate: "favorites", Identity: "alice", Session: "s1", Attempt: 1, Event: store.JournalFailed, ItemCount: 2, Detail: "timeout"},
		{ID: "j3", Aggregate: "cart", Identity: "alice", Session: "s2", Attempt: 1, Event: store.JournalSkipped},
	} {
		_, err := st.WriteJournal(context.Background(), e)
		require.NoError(t, err)
	}
	require.NoError(t, st.Close())

	out, err = execute(t, "journal", "--db", db, "--aggregate", "favorites")
	require.NoError(t, err)
	assert.Contains(t, out, "started")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "timeout")
	assert.NotContains(t, out, "skipped")
}

func TestFavoritesCommand_SQLite(t *testing.T) {
	db := seedDB(t, nil)

	out, err := execute(t, "favorites", "add", "alice", "p1", "p2", "p1", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "inserted: [p1 p2]")
	assert.Contains(t, out, "already present: [p1]")

	out, err = execute(t, "favorites", "remove", "alice", "p1", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "alice (sqlite): 1 favorite(s)")

	out, err = execute(t, "favorites", "list", "alice", "--db", db, "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Data favoritesReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"p2"}, resp.Data.Favorites)
}

func TestFavoritesCommand_MemoryDriver(t *testing.T) {
	out, err := execute(t, "favorites", "list", "alice", "--driver", "memory")
	require.NoError(t, err)
	assert.Contains(t, out, "alice (memory): 0 favorite(s)")
}

func TestFavoritesCommand_Errors(t *testing.T) {
	_, err := execute(t, "favorites", "list", "  ", "--driver", "memory")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "favorites", "list", "alice", "--driver", "redis")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown remote driver "redis"`)

	_, err = execute(t, "favorites", "list", "alice", "--driver", "postgres")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHOPSTATE_REMOTE_DSN")
}
