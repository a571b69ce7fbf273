package graph

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/colgraph/internal/ir"
	"github.com/roach88/colgraph/internal/tracer"
)

// IOSource produces the partitions of an input layer.
type IOSource interface {
	// Name identifies the source in task names and logs.
	Name() string

	// Form is the full record form of the stored data.
	Form() *tracer.Form

	// Partitions is the number of partitions the source is split into.
	Partitions() int

	// Read loads one partition restricted to the given leaf columns.
	// A nil column list reads everything.
	Read(ctx context.Context, partition int, columns []string) (any, error)
}

// InputLayer reads partitions from an IOSource, optionally restricted to a
// subset of columns.
type InputLayer struct {
	name        string
	annotations Annotations
	source      IOSource
	columns     []string
	projectable bool
	report      *tracer.Report

	tasks func() map[ir.Key]ir.Task
}

var (
	_ Projectable = (*InputLayer)(nil)
	_ Mockable    = (*InputLayer)(nil)
)

// InputOption configures an InputLayer.
type InputOption func(*InputLayer)

// WithColumns restricts the layer to the given columns.
func WithColumns(columns ...string) InputOption {
	return func(l *InputLayer) { l.columns = slices.Clone(columns) }
}

// NotProjectable makes the layer decline column projection.
func NotProjectable() InputOption {
	return func(l *InputLayer) { l.projectable = false }
}

// WithInputAnnotations attaches metadata to the layer.
func WithInputAnnotations(a Annotations) InputOption {
	return func(l *InputLayer) { l.annotations = a.Clone() }
}

// NewInput creates an input layer over src. By default the layer reads every
// column and supports projection.
func NewInput(name string, src IOSource, opts ...InputOption) *InputLayer {
	l := &InputLayer{name: name, source: src, projectable: true}
	for _, opt := range opts {
		opt(l)
	}
	l.tasks = sync.OnceValue(l.materialize)
	return l
}

func (l *InputLayer) Name() string             { return l.name }
func (l *InputLayer) Annotations() Annotations { return l.annotations }
func (l *InputLayer) NumPartitions() int       { return l.source.Partitions() }
func (l *InputLayer) IsProjectable() bool      { return l.projectable }
func (l *InputLayer) Source() IOSource         { return l.source }
func (l *InputLayer) IsMock() bool             { return l.report != nil }

func (l *InputLayer) Tasks() map[ir.Key]ir.Task {
	return l.tasks()
}

// Columns returns the columns the layer reads, or nil when it reads all.
func (l *InputLayer) Columns() []string { return slices.Clone(l.columns) }

// EffectiveColumns returns the columns read, resolving nil to every column
// of the source form.
func (l *InputLayer) EffectiveColumns() []string {
	if l.columns != nil {
		return slices.Clone(l.columns)
	}
	return l.source.Form().Columns()
}

// Form returns the form of the data this layer yields.
func (l *InputLayer) Form() *tracer.Form {
	if l.columns == nil {
		return l.source.Form()
	}
	return l.source.Form().Select(l.columns)
}

// MockWithState returns a copy whose tasks yield tracer arrays reporting into
// a fresh tracer.Report, which is also returned as the projection state.
func (l *InputLayer) MockWithState() (Layer, ProjectionState, error) {
	report := tracer.NewReport(l.name)
	m := l.clone()
	m.report = report
	return m, report, nil
}

// Mock returns a dataless copy whose touches are discarded. Inputs that
// decline projection are mocked this way so a dry run never reads data.
func (l *InputLayer) Mock() (Layer, error) {
	m, _, err := l.MockWithState()
	return m, err
}

// Project returns a non-mock copy restricted to the columns recorded in
// state, in source order. When nothing was touched the first column is kept
// so the input still yields the right number of rows.
func (l *InputLayer) Project(state ProjectionState) (Layer, error) {
	report, ok := state.(*tracer.Report)
	if !ok {
		return nil, invalid(ErrInvalidState, l.name, "projection state %T is not a tracer report", state)
	}
	if report.Layer() != l.name {
		return nil, invalid(ErrInvalidState, l.name, "projection state belongs to layer %q", report.Layer())
	}
	touched := make(map[string]bool)
	for _, c := range report.Touched() {
		touched[c] = true
	}
	available := l.EffectiveColumns()
	keep := make([]string, 0, len(available))
	for _, c := range available {
		if touched[c] {
			keep = append(keep, c)
		}
	}
	if len(keep) == 0 && len(available) > 0 {
		keep = append(keep, available[0])
	}
	p := l.clone()
	p.report = nil
	p.columns = keep
	return p, nil
}

func (l *InputLayer) clone() *InputLayer {
	c := &InputLayer{
		name:        l.name,
		annotations: l.annotations.Clone(),
		source:      l.source,
		columns:     slices.Clone(l.columns),
		projectable: l.projectable,
		report:      l.report,
	}
	c.tasks = sync.OnceValue(c.materialize)
	return c
}

func (l *InputLayer) materialize() map[ir.Key]ir.Task {
	read := ir.NewFunc("read-"+l.source.Name(), l.read)
	n := l.source.Partitions()
	out := make(map[ir.Key]ir.Task, n)
	for p := 0; p < n; p++ {
		out[ir.K(l.name, p)] = ir.NewTask(read, ir.Lit(p))
	}
	return out
}

func (l *InputLayer) read(ctx context.Context, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("read: want 1 arg, got %d", len(args))
	}
	p, ok := args[0].(int)
	if !ok {
		return nil, fmt.Errorf("read: partition must be an int, got %T", args[0])
	}
	if l.report != nil {
		return tracer.New(l.Form(), l.report), nil
	}
	return l.source.Read(ctx, p, l.columns)
}
