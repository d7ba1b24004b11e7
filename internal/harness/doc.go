// Package harness runs end-to-end scenarios against the cart and favorites
// aggregates.
//
// Each scenario gets a fresh in-memory device store, an in-memory remote
// favorites store with fault injection, and sequential session tokens, so
// traces are deterministic and can be compared against golden files.
//
// # Scenario Format
//
//	name: favorites_union_merge
//	description: "Anonymous favorites are unioned into the account"
//	setup:
//	  - action: local.seed
//	    args: { key: favorites, value: '["a","b"]' }
//	  - action: remote.seed
//	    args: { identity: alice, products: [b, c] }
//	flow:
//	  - invoke: sign_in
//	    args: { identity: alice }
//	    expect: { outcome: ok }
//	assertions:
//	  - type: trace_contains
//	    event: favorites.succeeded
//	    args: { identity: alice }
//	  - type: final_state
//	    view: remote
//	    expect: { alice: [b, c, a] }
//
// # Actions
//
// Setup: local.seed, remote.seed, remote.fail, remote.fail_insert_after.
//
// Flow: sign_in, sign_out, retry, cart.add, cart.remove,
// cart.update_quantity, cart.clear, favorites.add, favorites.remove,
// favorites.toggle, remote.fail, remote.recover, remote.fail_insert_after.
//
// # Trace
//
// Every flow step adds an invoke and a complete event. Coordinator events
// appear as "<aggregate>.<kind>" (favorites.started, cart.succeeded, ...)
// and user notices appear under their title.
//
// # Assertion Types
//
//   - trace_contains: an event with matching args (subset match)
//   - trace_order: events first occur in the given order
//   - trace_count: an event occurs exactly N times
//   - final_state: a view (cart, favorites, local, remote, journal) matches
//     the expected fields
package harness
