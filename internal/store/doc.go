// Package store provides SQLite-backed persistence for shopstate.
//
// One database file holds three tables:
//   - local_state: device-local collections, one serialised value per key
//   - migration_journal: append-only record of migration attempts
//   - favorites: per-identity favorites when SQLite plays the remote backend
//
// # Conventions
//
// Ordering uses a seq INTEGER column assigned by the store (MAX(seq)+1 under
// the single connection), never timestamps. All list queries include
// ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Writes that may be repeated use ON CONFLICT DO NOTHING and report whether a
// row was inserted.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
