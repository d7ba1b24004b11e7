package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestJournalEntry creates a journal entry with minimal required fields.
func createTestJournalEntry(id, aggregate, event string, attempt int) JournalEntry {
	return JournalEntry{
		ID:             id,
		Aggregate:      aggregate,
		Identity:       "user-1",
		Session:        "session-1",
		Attempt:        attempt,
		Event:          event,
		ItemCount:      1,
		SnapshotDigest: "digest",
	}
}
