package graph

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/colgraph/internal/ir"
	"github.com/roach88/colgraph/internal/tracer"
)

// Index describes one input slot of a blockwise layer.
//
// A partitioned slot reads partition i of the layer Name (or the io
// dependency registered under Name) for output partition i. A broadcast slot
// passes Value unchanged to every partition.
type Index struct {
	Name        string
	Partitioned bool
	Value       any
}

// Partitioned returns a slot reading the named layer partition by partition.
func Partitioned(name string) Index { return Index{Name: name, Partitioned: true} }

// Broadcast returns a slot passing v to every partition.
func Broadcast(v any) Index { return Index{Value: v} }

// Step is one task inside a blockwise subgraph. Step arguments use SlotRef
// for layer inputs and StepRef for earlier steps. TouchAll marks a step whose
// arguments all count as read; it survives fusion with the step.
type Step struct {
	Name     string
	Task     ir.Task
	TouchAll bool
}

// BlockwiseLayer applies the same subgraph to every partition. The last
// step produces the layer's output.
type BlockwiseLayer struct {
	name        string
	annotations Annotations
	partitions  int
	indices     []Index
	numBlocks   map[string]int
	ioDeps      map[string]map[int]any
	steps       []Step
	touchAll    bool

	tasks func() map[ir.Key]ir.Task
}

var (
	_ Mockable   = (*BlockwiseLayer)(nil)
	_ TouchAller = (*BlockwiseLayer)(nil)
	_ TaskMapper = (*BlockwiseLayer)(nil)
)

func (l *BlockwiseLayer) Name() string             { return l.name }
func (l *BlockwiseLayer) Annotations() Annotations { return l.annotations }
func (l *BlockwiseLayer) NumPartitions() int       { return l.partitions }
func (l *BlockwiseLayer) Tasks() map[ir.Key]ir.Task {
	return l.tasks()
}

// TouchAllInputs reports whether any step is marked touch-all.
func (l *BlockwiseLayer) TouchAllInputs() bool {
	return slices.ContainsFunc(l.steps, func(s Step) bool { return s.TouchAll })
}

// Indices returns a copy of the input slots.
func (l *BlockwiseLayer) Indices() []Index { return slices.Clone(l.indices) }

// NumBlocks returns a copy of the per-input partition counts.
func (l *BlockwiseLayer) NumBlocks() map[string]int { return maps.Clone(l.numBlocks) }

// IODeps returns a copy of the io dependency table.
func (l *BlockwiseLayer) IODeps() map[string]map[int]any {
	out := make(map[string]map[int]any, len(l.ioDeps))
	for k, v := range l.ioDeps {
		out[k] = maps.Clone(v)
	}
	return out
}

// Steps returns a copy of the subgraph steps in execution order.
func (l *BlockwiseLayer) Steps() []Step { return slices.Clone(l.steps) }

// OutputStep returns the name of the step producing the layer output.
func (l *BlockwiseLayer) OutputStep() string { return l.steps[len(l.steps)-1].Name }

// InputLayers returns the distinct layers this layer reads, in slot order.
func (l *BlockwiseLayer) InputLayers() []string {
	var out []string
	for _, idx := range l.indices {
		if !idx.Partitioned {
			continue
		}
		if _, io := l.ioDeps[idx.Name]; io {
			continue
		}
		if !slices.Contains(out, idx.Name) {
			out = append(out, idx.Name)
		}
	}
	return out
}

// Mock returns a copy with every mockable literal replaced by its dataless
// counterpart. The copy is always new, even when nothing was replaced.
func (l *BlockwiseLayer) Mock() (Layer, error) {
	b := l.ToBuilder()
	for i, idx := range b.l.indices {
		if m, ok := idx.Value.(tracer.Mocker); ok && !idx.Partitioned {
			b.l.indices[i].Value = m.Mock()
		}
	}
	for i, s := range b.l.steps {
		b.l.steps[i].Task.Args = mockArgs(s.Task.Args)
	}
	return b.Build()
}

// MapTasks returns a copy with fn applied to the output step.
func (l *BlockwiseLayer) MapTasks(fn func(ir.Task) ir.Task) (Layer, error) {
	b := l.ToBuilder()
	last := len(b.l.steps) - 1
	b.l.steps[last].Task = fn(b.l.steps[last].Task)
	return b.Build()
}

// MapTouchAllSteps returns a copy with fn applied to every touch-all step.
func (l *BlockwiseLayer) MapTouchAllSteps(fn func(ir.Task) ir.Task) (Layer, error) {
	b := l.ToBuilder()
	for i, s := range b.l.steps {
		if s.TouchAll {
			b.l.steps[i].Task = fn(s.Task)
		}
	}
	return b.Build()
}

// ToBuilder returns a builder seeded with a deep copy of the layer.
func (l *BlockwiseLayer) ToBuilder() *BlockwiseBuilder {
	c := &BlockwiseLayer{
		name:        l.name,
		annotations: l.annotations.Clone(),
		partitions:  l.partitions,
		indices:     slices.Clone(l.indices),
		numBlocks:   maps.Clone(l.numBlocks),
		ioDeps:      l.IODeps(),
		steps:       slices.Clone(l.steps),
		touchAll:    l.touchAll,
	}
	return &BlockwiseBuilder{l: c}
}

func (l *BlockwiseLayer) materialize() map[ir.Key]ir.Task {
	fn := l.subgraph()
	out := make(map[ir.Key]ir.Task, l.partitions)
	for p := 0; p < l.partitions; p++ {
		args := make([]ir.Arg, len(l.indices))
		for i, idx := range l.indices {
			args[i] = l.slotArg(idx, p)
		}
		out[ir.K(l.name, p)] = ir.Task{Func: fn, Args: args}
	}
	return out
}

func (l *BlockwiseLayer) slotArg(idx Index, p int) ir.Arg {
	if !idx.Partitioned {
		return ir.Lit(idx.Value)
	}
	if deps, ok := l.ioDeps[idx.Name]; ok {
		return ir.Lit(deps[p])
	}
	if nb, ok := l.numBlocks[idx.Name]; ok && nb == 1 {
		return ir.Ref(idx.Name, 0)
	}
	return ir.Ref(idx.Name, p)
}

// subgraph wraps the steps into one callable taking the resolved slots.
func (l *BlockwiseLayer) subgraph() ir.Func {
	steps := l.steps
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Task.Func.Name
	}
	return ir.NewFunc(strings.Join(names, "|"), func(ctx context.Context, args []any) (any, error) {
		r := &stepResolver{slots: args, results: make(map[string]any, len(steps))}
		var out any
		for _, s := range steps {
			vals, err := ir.ResolveAll(s.Task.Args, r)
			if err != nil {
				return nil, fmt.Errorf("step %q: %w", s.Name, err)
			}
			out, err = s.Task.Func.Call(ctx, vals)
			if err != nil {
				return nil, fmt.Errorf("step %q: %w", s.Name, err)
			}
			r.results[s.Name] = out
		}
		return out, nil
	})
}

type stepResolver struct {
	slots   []any
	results map[string]any
}

func (r *stepResolver) Slot(i int) (any, error) {
	if i < 0 || i >= len(r.slots) {
		return nil, fmt.Errorf("slot %d out of range (%d slots)", i, len(r.slots))
	}
	return r.slots[i], nil
}

func (r *stepResolver) Step(name string) (any, error) {
	v, ok := r.results[name]
	if !ok {
		return nil, fmt.Errorf("step %q has not run", name)
	}
	return v, nil
}

func (r *stepResolver) Partition(k ir.Key) (any, error) {
	return nil, fmt.Errorf("partition reference %s inside a blockwise subgraph", k)
}

func mockArgs(args []ir.Arg) []ir.Arg {
	return ir.MapArgs(args, func(a ir.Arg) ir.Arg {
		if lit, ok := a.(ir.Literal); ok {
			if m, ok := lit.Value.(tracer.Mocker); ok {
				return ir.Lit(m.Mock())
			}
		}
		return a
	})
}

// BlockwiseBuilder assembles a BlockwiseLayer. Setters return the builder
// for chaining; Build validates and freezes the result.
type BlockwiseBuilder struct {
	l *BlockwiseLayer
}

// NewBlockwise starts a layer with the given name and partition count.
func NewBlockwise(name string, partitions int) *BlockwiseBuilder {
	return &BlockwiseBuilder{l: &BlockwiseLayer{
		name:       name,
		partitions: partitions,
		numBlocks:  map[string]int{},
		ioDeps:     map[string]map[int]any{},
	}}
}

func (b *BlockwiseBuilder) Name(name string) *BlockwiseBuilder {
	b.l.name = name
	return b
}

func (b *BlockwiseBuilder) Partitions(n int) *BlockwiseBuilder {
	b.l.partitions = n
	return b
}

func (b *BlockwiseBuilder) Annotate(key string, value any) *BlockwiseBuilder {
	if b.l.annotations == nil {
		b.l.annotations = Annotations{}
	}
	b.l.annotations[key] = value
	return b
}

// Indices replaces the input slots.
func (b *BlockwiseBuilder) Indices(indices ...Index) *BlockwiseBuilder {
	b.l.indices = slices.Clone(indices)
	return b
}

// NumBlocks replaces the per-input partition counts.
func (b *BlockwiseBuilder) NumBlocks(nb map[string]int) *BlockwiseBuilder {
	b.l.numBlocks = maps.Clone(nb)
	return b
}

// IODeps replaces the io dependency table.
func (b *BlockwiseBuilder) IODeps(deps map[string]map[int]any) *BlockwiseBuilder {
	b.l.ioDeps = make(map[string]map[int]any, len(deps))
	for k, v := range deps {
		b.l.ioDeps[k] = maps.Clone(v)
	}
	return b
}

// IODep registers per-partition literal inputs under name. Slots naming it
// receive values[p] for partition p.
func (b *BlockwiseBuilder) IODep(name string, values map[int]any) *BlockwiseBuilder {
	b.l.ioDeps[name] = maps.Clone(values)
	return b
}

// Steps replaces the subgraph.
func (b *BlockwiseBuilder) Steps(steps ...Step) *BlockwiseBuilder {
	b.l.steps = slices.Clone(steps)
	return b
}

// Apply sets a single-step subgraph calling fn on every slot in order.
// The step is named after the layer.
func (b *BlockwiseBuilder) Apply(fn ir.Func) *BlockwiseBuilder {
	args := make([]ir.Arg, len(b.l.indices))
	for i := range b.l.indices {
		args[i] = ir.Slot(i)
	}
	b.l.steps = []Step{{Name: b.l.name, Task: ir.NewTask(fn, args...)}}
	return b
}

// TouchAll marks every step of the layer touch-all when the layer is built.
func (b *BlockwiseBuilder) TouchAll(v bool) *BlockwiseBuilder {
	b.l.touchAll = v
	return b
}

// Build validates the layer and returns it. The builder must not be reused.
func (b *BlockwiseBuilder) Build() (*BlockwiseLayer, error) {
	l := b.l
	if err := l.validate(); err != nil {
		return nil, err
	}
	if l.numBlocks == nil {
		l.numBlocks = map[string]int{}
	}
	if l.ioDeps == nil {
		l.ioDeps = map[string]map[int]any{}
	}
	if l.touchAll {
		for i := range l.steps {
			l.steps[i].TouchAll = true
		}
	}
	l.tasks = sync.OnceValue(l.materialize)
	return l, nil
}

func (l *BlockwiseLayer) validate() error {
	if l.name == "" {
		return invalid(ErrEmptyName, "", "blockwise layer name is required")
	}
	if l.partitions < 1 {
		return invalid(ErrInvalidPartitions, l.name, "partition count %d must be at least 1", l.partitions)
	}
	if len(l.steps) == 0 {
		return invalid(ErrInvalidSubgraph, l.name, "at least one step is required")
	}
	for _, idx := range l.indices {
		if idx.Partitioned && idx.Name == "" {
			return invalid(ErrInvalidSubgraph, l.name, "partitioned slot without a name")
		}
	}
	for name, deps := range l.ioDeps {
		for p := 0; p < l.partitions; p++ {
			if _, ok := deps[p]; !ok {
				return invalid(ErrIncompleteIODeps, l.name, "io dependency %q has no value for partition %d", name, p)
			}
		}
	}
	seen := make(map[string]bool, len(l.steps))
	for _, s := range l.steps {
		if s.Name == "" {
			return invalid(ErrInvalidSubgraph, l.name, "step name is required")
		}
		if seen[s.Name] {
			return invalid(ErrInvalidSubgraph, l.name, "duplicate step %q", s.Name)
		}
		var bad error
		ir.WalkArgs(s.Task.Args, func(a ir.Arg) {
			if bad != nil {
				return
			}
			switch v := a.(type) {
			case ir.SlotRef:
				if v.Index < 0 || v.Index >= len(l.indices) {
					bad = invalid(ErrInvalidSubgraph, l.name, "step %q reads slot %d of %d", s.Name, v.Index, len(l.indices))
				}
			case ir.StepRef:
				if !seen[v.Name] {
					bad = invalid(ErrInvalidSubgraph, l.name, "step %q reads unknown or later step %q", s.Name, v.Name)
				}
			case ir.PartitionRef:
				bad = invalid(ErrInvalidSubgraph, l.name, "step %q references partition %s directly", s.Name, v.Key)
			}
		})
		if bad != nil {
			return bad
		}
		seen[s.Name] = true
	}
	return nil
}
