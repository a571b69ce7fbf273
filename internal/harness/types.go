package harness

import (
	"github.com/roach88/colgraph/internal/engine"
	"github.com/roach88/colgraph/internal/optimizer"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Report describes what the optimizer changed.
	Report optimizer.Report `json:"report"`

	// Columns maps every input layer of the optimized graph to the columns
	// it reads.
	Columns map[string][]string `json:"columns"`

	// Outputs holds the values written to each sink, in partition order.
	Outputs map[string][]any `json:"outputs"`

	// Trace lists the tasks the evaluation executed, in execution order.
	Trace []engine.TraceEvent `json:"trace"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Columns: make(map[string][]string),
		Outputs: make(map[string][]any),
		Trace:   []engine.TraceEvent{},
		Errors:  []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
