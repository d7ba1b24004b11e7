// Package testutil holds helpers shared by tests and the scenario harness:
// deterministic session tokens and a backend whose reads can be held open to
// interleave mutations with an in-flight migration.
package testutil
