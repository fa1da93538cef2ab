package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq        int            `json:"seq"`
	Phase      string         `json:"phase"` // "setup" or "flow"
	Store      string         `json:"store"`
	Op         string         `json:"op"`
	Key        string         `json:"key,omitempty"`
	Value      *string        `json:"value,omitempty"`
	Collection string         `json:"collection,omitempty"`
	Outcome    map[string]any `json:"outcome"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event, numbering it.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
