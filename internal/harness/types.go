package harness

import (
	"github.com/roach88/formula/internal/engine"
	"github.com/roach88/formula/internal/ir"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	RunID  string       `json:"run_id,omitempty"`
	Status ir.RunStatus `json:"status,omitempty"`
	Steps  int64        `json:"steps"`

	// Trace holds one event per consumed command, in seq order.
	Trace []engine.TraceEvent `json:"trace"`

	// Final is the executor configuration when the run stopped.
	Final engine.Configuration `json:"final"`

	// Errors contains failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []engine.TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// MaxDepth returns the deepest checkpoint stack seen in the trace.
func (r *Result) MaxDepth() int {
	depth := 0
	for _, ev := range r.Trace {
		depth = max(depth, ev.Depth)
	}
	return depth
}
