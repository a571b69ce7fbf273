package graph

import (
	"maps"

	"github.com/roach88/colgraph/internal/ir"
)

// OpaqueLayer holds an explicit task map. Its keys may belong to any layer
// name, which lets a plain task map be wrapped as a single-layer graph.
type OpaqueLayer struct {
	name        string
	annotations Annotations
	tasks       map[ir.Key]ir.Task
	touchAll    bool
}

var (
	_ Mockable   = (*OpaqueLayer)(nil)
	_ TouchAller = (*OpaqueLayer)(nil)
	_ TaskMapper = (*OpaqueLayer)(nil)
)

// OpaqueOption configures an OpaqueLayer.
type OpaqueOption func(*OpaqueLayer)

// WithOpaqueAnnotations attaches metadata to the layer.
func WithOpaqueAnnotations(a Annotations) OpaqueOption {
	return func(l *OpaqueLayer) { l.annotations = a.Clone() }
}

// OpaqueTouchAll marks every input of the layer as fully used.
func OpaqueTouchAll() OpaqueOption {
	return func(l *OpaqueLayer) { l.touchAll = true }
}

// NewOpaque wraps a copy of tasks as a layer.
func NewOpaque(name string, tasks map[ir.Key]ir.Task, opts ...OpaqueOption) *OpaqueLayer {
	l := &OpaqueLayer{name: name, tasks: maps.Clone(tasks)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *OpaqueLayer) Name() string              { return l.name }
func (l *OpaqueLayer) Annotations() Annotations  { return l.annotations }
func (l *OpaqueLayer) NumPartitions() int        { return len(l.tasks) }
func (l *OpaqueLayer) Tasks() map[ir.Key]ir.Task { return l.tasks }
func (l *OpaqueLayer) TouchAllInputs() bool      { return l.touchAll }

// Mock returns a copy with every mockable literal argument replaced.
func (l *OpaqueLayer) Mock() (Layer, error) {
	c := l.clone()
	for k, t := range c.tasks {
		c.tasks[k] = ir.Task{Func: t.Func, Args: mockArgs(t.Args)}
	}
	return c, nil
}

// MapTasks returns a copy with fn applied to every task.
func (l *OpaqueLayer) MapTasks(fn func(ir.Task) ir.Task) (Layer, error) {
	c := l.clone()
	for k, t := range c.tasks {
		c.tasks[k] = fn(t)
	}
	return c, nil
}

// restrict returns a copy holding only the given keys.
func (l *OpaqueLayer) restrict(keep map[ir.Key]bool) *OpaqueLayer {
	c := l.clone()
	for k := range c.tasks {
		if !keep[k] {
			delete(c.tasks, k)
		}
	}
	return c
}

func (l *OpaqueLayer) clone() *OpaqueLayer {
	return &OpaqueLayer{
		name:        l.name,
		annotations: l.annotations.Clone(),
		tasks:       maps.Clone(l.tasks),
		touchAll:    l.touchAll,
	}
}
