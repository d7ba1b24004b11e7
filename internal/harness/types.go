package harness

// Trace event types.
const (
	EventInvoke    = "invoke"
	EventComplete  = "complete"
	EventMigration = "migration"
	EventNotice    = "notice"
)

// TraceEvent is one entry of a scenario trace.
//
// Invocations and completions carry the flow action; migration events carry
// "<aggregate>.<kind>" (e.g. "favorites.succeeded"); notices carry the
// notice title.
type TraceEvent struct {
	Type    string                 `json:"type"`
	Name    string                 `json:"name"`
	Args    map[string]interface{} `json:"args,omitempty"`
	Outcome string                 `json:"outcome,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Seq     int64                  `json:"seq"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors holds failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds the final state views by name.
	State map[string]interface{} `json:"state,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]interface{}),
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
