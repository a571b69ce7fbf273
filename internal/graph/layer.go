package graph

import (
	"maps"

	"github.com/roach88/colgraph/internal/ir"
)

// AnnotationOutput marks a layer whose result is an externally consumed
// output. Its inputs are treated as fully used during column projection.
const AnnotationOutput = "ak_output"

// Annotations is free-form layer metadata.
type Annotations map[string]any

// IsOutput reports whether the output annotation is present and truthy.
func (a Annotations) IsOutput() bool {
	v, ok := a[AnnotationOutput]
	if !ok {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case nil:
		return false
	case string:
		return x != ""
	default:
		return true
	}
}

// Clone returns a shallow copy.
func (a Annotations) Clone() Annotations {
	if a == nil {
		return nil
	}
	return maps.Clone(a)
}

// Layer is one named node of a Graph.
type Layer interface {
	// Name uniquely identifies the layer within its graph.
	Name() string

	// Annotations returns the layer metadata. Callers must not mutate it.
	Annotations() Annotations

	// NumPartitions is the number of output keys the layer produces.
	NumPartitions() int

	// Tasks materializes the layer into one task per output key.
	// The returned map is shared; callers must not mutate it.
	Tasks() map[ir.Key]ir.Task
}

// ProjectionState is the opaque per-input record produced by a mock and
// consumed by Project.
type ProjectionState any

// Projectable is implemented by input layers that can be narrowed to the
// columns a computation actually reads.
type Projectable interface {
	Layer

	// IsProjectable reports whether this particular layer supports
	// projection. Layers may implement the interface yet decline.
	IsProjectable() bool

	// MockWithState returns a dataless copy of the layer whose outputs
	// record touches into the returned state.
	MockWithState() (Layer, ProjectionState, error)

	// Project returns a copy of the layer narrowed to the columns recorded
	// in state.
	Project(state ProjectionState) (Layer, error)
}

// Mockable is implemented by layers that have a dataless counterpart.
type Mockable interface {
	Layer
	Mock() (Layer, error)
}

// TouchAller is implemented by layers that may require every input they
// receive to be treated as fully used.
type TouchAller interface {
	Layer
	TouchAllInputs() bool
}

// TaskMapper is implemented by layers whose output task can be rewritten.
type TaskMapper interface {
	Layer

	// MapTasks returns a copy of the layer with fn applied to the task(s)
	// producing its output.
	MapTasks(fn func(ir.Task) ir.Task) (Layer, error)
}

// Kind returns a short name for the concrete layer type.
func Kind(l Layer) string {
	switch l.(type) {
	case *InputLayer:
		return "input"
	case *BlockwiseLayer:
		return "blockwise"
	case *OpaqueLayer:
		return "opaque"
	default:
		return "custom"
	}
}
