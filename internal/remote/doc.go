// Package remote implements the authoritative per-identity favorites store.
//
// Every adapter satisfies FavoritesStore:
//   - SQLite: the device store's favorites table (single-device deployments
//     and the CLI)
//   - Postgres: sqlx over lib/pq
//   - Firestore: one document per (identity, product) pair
//   - Memory: in-process, with fault injection for tests
//
// InsertMany is additive and not atomic across entries. Pairs that already
// exist are reported as duplicates, never stored twice. The first hard error
// stops the batch and is returned together with what was inserted so far.
//
// All failures are returned as *Error.
package remote
