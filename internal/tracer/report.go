package tracer

import (
	"slices"
	"sync"
)

// Report accumulates the columns touched on one mocked input.
// It is safe for concurrent use.
type Report struct {
	mu      sync.Mutex
	layer   string
	touched map[string]struct{}
}

// NewReport creates an empty report for the named input layer.
func NewReport(layer string) *Report {
	return &Report{layer: layer, touched: make(map[string]struct{})}
}

// Layer returns the name of the input layer the report belongs to.
func (r *Report) Layer() string { return r.layer }

// Touch records a data access on a leaf column. Repeated touches are no-ops.
func (r *Report) Touch(column string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched[column] = struct{}{}
}

// Touched returns the touched columns in sorted order.
func (r *Report) Touched() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.touched))
	for c := range r.touched {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}
