// Package migration folds anonymous local state into the authoritative view
// when an identity appears.
//
// A Coordinator is the per-aggregate state machine:
//
//	anonymous --(identity appears)--> migrating --(merge succeeds)--> migrated
//	migrating --(merge fails)--> anonymous      // flag not set, retried later
//	migrated  --(identity disappears)--> anonymous
//
// The coordinator is driven explicitly through OnIdentityChanged and Retry.
// It never clears local data until the target has applied the merge, and it
// runs at most one successful merge per identity session. Each session gets
// a UUIDv7 token that ties together the journal records of its attempts.
//
// The merge policy itself belongs to the Target. Targets must apply their
// merge as a transform of their current state so that mutations made while
// the migration was in flight are kept.
package migration
