package harness

import "github.com/roach88/aircurve/internal/ir"

// TraceEvent is one recorded evaluation as seen by the harness.
type TraceEvent struct {
	Step      int         `json:"step"`
	Seq       int64       `json:"seq"`
	Machine   string      `json:"machine"`
	Entry     string      `json:"entry"`
	Args      ir.IRObject `json:"args"`
	Status    string      `json:"status"`
	Result    ir.IRObject `json:"result,omitempty"`
	ErrorCode string      `json:"error_code,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion holds.
	Pass bool `json:"pass"`

	// RunToken is the run every evaluation of the scenario was recorded under.
	RunToken string `json:"run_token"`

	// Trace contains the evaluations in step order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult(runToken string) *Result {
	return &Result{
		Pass:     true,
		RunToken: runToken,
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvaluationTrace appends a recorded evaluation to the trace.
func (r *Result) AddEvaluationTrace(step int, ev ir.Evaluation) {
	r.Trace = append(r.Trace, TraceEvent{
		Step:      step,
		Seq:       ev.Seq,
		Machine:   ev.Machine,
		Entry:     ev.Entry,
		Args:      ev.Args,
		Status:    ev.Outcome.Status,
		Result:    ev.Outcome.Result,
		ErrorCode: ev.Outcome.ErrorCode,
	})
}

// Event returns the trace event recorded for a step.
func (r *Result) Event(step int) (TraceEvent, bool) {
	for _, ev := range r.Trace {
		if ev.Step == step {
			return ev, true
		}
	}
	return TraceEvent{}, false
}
