package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Type: EventInvoke, Name: "sign_in", Args: map[string]interface{}{"identity": "alice"}, Seq: 1},
		{Type: EventMigration, Name: "favorites.started", Args: map[string]interface{}{"identity": "alice", "items": 2}, Seq: 2},
		{Type: EventMigration, Name: "favorites.succeeded", Args: map[string]interface{}{"identity": "alice", "items": 2}, Seq: 3},
		{Type: EventComplete, Name: "sign_in", Outcome: OutcomeOK, Seq: 4},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Event: "favorites.started", Args: map[string]interface{}{"items": 2}}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Event: "sign_in"}))

	err := assertTraceContains(trace, Assertion{Event: "favorites.started", Args: map[string]interface{}{"items": 3}})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "Full trace:")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Events: []string{"sign_in", "favorites.succeeded"}}))

	err := assertTraceOrder(trace, Assertion{Events: []string{"favorites.succeeded", "favorites.started"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertTraceOrder(trace, Assertion{Events: []string{"sign_in", "cart.started"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing event: cart.started")
}

func TestAssertTraceCount_IgnoresCompletions(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Event: "sign_in", Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Event: "cart.started", Count: 0}))
	assert.Error(t, assertTraceCount(trace, Assertion{Event: "sign_in", Count: 2}))
}

func TestAssertFinalState(t *testing.T) {
	state := map[string]interface{}{
		"cart": map[string]interface{}{
			"total_items": 3,
			"items":       []interface{}{map[string]interface{}{"id": "p1", "size": "M", "quantity": 3}},
		},
	}

	assert.NoError(t, assertFinalState(state, Assertion{View: "cart", Expect: map[string]interface{}{
		"total_items": 3,
		"items":       []interface{}{map[string]interface{}{"id": "p1", "size": "M", "quantity": 3}},
	}}))

	err := assertFinalState(state, Assertion{View: "cart", Expect: map[string]interface{}{"total_items": 4}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cart.total_items = 4")

	err = assertFinalState(state, Assertion{View: "cart", Expect: map[string]interface{}{"identity": "alice"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cart.identity = null")

	err = assertFinalState(state, Assertion{View: "journal", Expect: map[string]interface{}{"events": []interface{}{}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "view not captured")
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Event: "sign_in", Count: 1},
		{Type: AssertTraceCount, Event: "sign_out", Count: 1},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "assertions[1]")
}
