// Package collection builds partitioned computations lazily. Each operation
// returns a new Collection whose graph extends its inputs' graphs by one
// layer; nothing is read or computed until Compute.
package collection

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/colgraph/internal/engine"
	"github.com/roach88/colgraph/internal/graph"
	"github.com/roach88/colgraph/internal/ir"
	"github.com/roach88/colgraph/internal/kernels"
	"github.com/roach88/colgraph/internal/optimizer"
	"github.com/roach88/colgraph/internal/tracer"
)

// Collection is a lazily built, partitioned array. Collections are
// immutable; operations never modify their receiver.
type Collection struct {
	name   string
	parts  int
	form   *tracer.Form
	layers map[string]graph.Layer
	deps   map[string][]string
	namer  Namer
}

// Option configures FromSource.
type Option func(*options)

type options struct {
	namer   Namer
	columns []string
	fixed   bool
}

// WithNamer sets the layer namer for the collection and everything derived
// from it.
//
// Default: UUIDNamer.
func WithNamer(n Namer) Option {
	return func(o *options) { o.namer = n }
}

// WithColumns restricts the input to the given columns up front.
func WithColumns(columns ...string) Option {
	return func(o *options) { o.columns = slices.Clone(columns) }
}

// NotProjectable makes the input layer decline column projection.
func NotProjectable() Option {
	return func(o *options) { o.fixed = true }
}

// FromSource starts a collection reading src.
func FromSource(src graph.IOSource, opts ...Option) *Collection {
	o := options{namer: UUIDNamer{}}
	for _, opt := range opts {
		opt(&o)
	}
	var inputOpts []graph.InputOption
	if o.columns != nil {
		inputOpts = append(inputOpts, graph.WithColumns(o.columns...))
	}
	if o.fixed {
		inputOpts = append(inputOpts, graph.NotProjectable())
	}
	name := o.namer.Name("from-" + src.Name())
	in := graph.NewInput(name, src, inputOpts...)
	return &Collection{
		name:   name,
		parts:  src.Partitions(),
		form:   in.Form(),
		layers: map[string]graph.Layer{name: in},
		deps:   map[string][]string{},
		namer:  o.namer,
	}
}

// Name returns the name of the layer producing this collection.
func (c *Collection) Name() string { return c.name }

// Partitions returns the partition count.
func (c *Collection) Partitions() int { return c.parts }

// Form returns the form of each partition.
func (c *Collection) Form() *tracer.Form { return c.form }

// Keys returns one key per partition.
func (c *Collection) Keys() []ir.Key {
	keys := make([]ir.Key, c.parts)
	for p := range keys {
		keys[p] = ir.K(c.name, p)
	}
	return keys
}

// Graph returns the layer graph producing this collection.
func (c *Collection) Graph() (*graph.Graph, error) {
	layers := make([]graph.Layer, 0, len(c.layers))
	for _, name := range slices.Sorted(maps.Keys(c.layers)) {
		layers = append(layers, c.layers[name])
	}
	return graph.New(layers, c.deps)
}

// Field selects a record field.
func (c *Collection) Field(name string) (*Collection, error) {
	sub, ok := c.form.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("collection %s has no field %q (form %s)", c.name, name, c.form)
	}
	return c.blockwise("field-"+name, sub, kernels.Field, graph.Broadcast(name))
}

// Map applies fn partition by partition. fn receives the partition followed
// by extra as broadcast literals and must return values of form out.
func (c *Collection) Map(prefix string, fn ir.Func, out *tracer.Form, extra ...any) (*Collection, error) {
	indices := make([]graph.Index, len(extra))
	for i, e := range extra {
		indices[i] = graph.Broadcast(e)
	}
	return c.blockwise(prefix, out, fn, indices...)
}

// Add adds two numeric collections elementwise.
func (c *Collection) Add(other *Collection) (*Collection, error) {
	if err := c.numeric("add"); err != nil {
		return nil, err
	}
	if err := other.numeric("add"); err != nil {
		return nil, err
	}
	if c.parts != other.parts {
		return nil, fmt.Errorf("add: partition counts differ: %d vs %d", c.parts, other.parts)
	}
	merged, err := c.merge(other)
	if err != nil {
		return nil, err
	}
	l, err := graph.NewBlockwise(c.namer.Name("add"), c.parts).
		Indices(graph.Partitioned(c.name), graph.Partitioned(other.name)).
		Apply(kernels.Add).
		Build()
	if err != nil {
		return nil, err
	}
	return merged.extend(l, tracer.Int64(), c.name, other.name)
}

// Scale multiplies every element by k.
func (c *Collection) Scale(k int64) (*Collection, error) {
	if err := c.numeric("scale"); err != nil {
		return nil, err
	}
	return c.blockwise("scale", tracer.Int64(), kernels.Multiply, graph.Broadcast(k))
}

// Offset adds k to every element.
func (c *Collection) Offset(k int64) (*Collection, error) {
	if err := c.numeric("offset"); err != nil {
		return nil, err
	}
	return c.blockwise("offset", tracer.Int64(), kernels.Add, graph.Broadcast(k))
}

// Negate flips the sign of every element.
func (c *Collection) Negate() (*Collection, error) {
	if err := c.numeric("negate"); err != nil {
		return nil, err
	}
	return c.blockwise("negate", tracer.Int64(), kernels.Negate)
}

// Sum reduces the collection to a single-partition total. Each partition is
// summed blockwise; an opaque layer combines the partials.
func (c *Collection) Sum() (*Collection, error) {
	if err := c.numeric("sum"); err != nil {
		return nil, err
	}
	name := c.namer.Name("sum")
	chunks, err := c.blockwise("sum-chunk", tracer.Int64(), kernels.Sum)
	if err != nil {
		return nil, err
	}
	refs := make([]ir.Arg, chunks.parts)
	for p := range refs {
		refs[p] = ir.Ref(chunks.name, p)
	}
	agg := graph.NewOpaque(name, map[ir.Key]ir.Task{
		ir.K(name, 0): ir.NewTask(kernels.Combine, ir.List(refs...)),
	})
	out, err := chunks.extend(agg, tracer.Int64(), chunks.name)
	if err != nil {
		return nil, err
	}
	out.parts = 1
	return out, nil
}

// Output writes every partition to sink. The layer carries the output
// annotation, so column projection treats everything it receives as read.
func (c *Collection) Output(sink *kernels.Sink) (*Collection, error) {
	partitions := make(map[int]any, c.parts)
	for p := 0; p < c.parts; p++ {
		partitions[p] = p
	}
	l, err := graph.NewBlockwise(c.namer.Name("write-"+sink.Name()), c.parts).
		Indices(graph.Partitioned(c.name), graph.Partitioned("partition")).
		IODep("partition", partitions).
		Apply(sink.Func()).
		Annotate(graph.AnnotationOutput, true).
		Build()
	if err != nil {
		return nil, err
	}
	return c.extend(l, c.form, c.name)
}

// Merge combines the graphs of several collections, for computing them
// together.
func Merge(cs ...*Collection) (*graph.Graph, []ir.Key, error) {
	if len(cs) == 0 {
		return nil, nil, fmt.Errorf("merge: no collections")
	}
	merged := cs[0]
	keys := cs[0].Keys()
	for _, c := range cs[1:] {
		var err error
		if merged, err = merged.merge(c); err != nil {
			return nil, nil, err
		}
		keys = append(keys, c.Keys()...)
	}
	g, err := merged.Graph()
	if err != nil {
		return nil, nil, err
	}
	return g, keys, nil
}

// Compute optimizes the graph for this collection's keys and evaluates it,
// returning one value per partition.
func (c *Collection) Compute(ctx context.Context, o *optimizer.Optimizer, eval engine.Evaluator) ([]any, error) {
	g, err := c.Graph()
	if err != nil {
		return nil, err
	}
	keys := c.Keys()
	g, err = o.AllOptimizations(ctx, g, keys)
	if err != nil {
		return nil, err
	}
	return eval.Evaluate(ctx, g, keys)
}

func (c *Collection) numeric(op string) error {
	if c.form.IsRecord() {
		return fmt.Errorf("%s: collection %s holds records %s, want numbers", op, c.name, c.form)
	}
	return nil
}

// blockwise appends a one-step layer reading c partition-wise, followed by
// the given slots.
func (c *Collection) blockwise(prefix string, out *tracer.Form, fn ir.Func, extra ...graph.Index) (*Collection, error) {
	indices := append([]graph.Index{graph.Partitioned(c.name)}, extra...)
	l, err := graph.NewBlockwise(c.namer.Name(prefix), c.parts).
		Indices(indices...).
		Apply(fn).
		Build()
	if err != nil {
		return nil, err
	}
	return c.extend(l, out, c.name)
}

// extend returns a collection produced by l on top of c's graph.
func (c *Collection) extend(l graph.Layer, form *tracer.Form, deps ...string) (*Collection, error) {
	if _, ok := c.layers[l.Name()]; ok {
		return nil, fmt.Errorf("layer name %q is already in use", l.Name())
	}
	layers := maps.Clone(c.layers)
	layers[l.Name()] = l
	allDeps := maps.Clone(c.deps)
	allDeps[l.Name()] = slices.Clone(deps)
	return &Collection{
		name:   l.Name(),
		parts:  c.parts,
		form:   form,
		layers: layers,
		deps:   allDeps,
		namer:  c.namer,
	}, nil
}

// merge returns c with other's layers added. Both sides may share layers,
// but distinct layers with the same name are an error.
func (c *Collection) merge(other *Collection) (*Collection, error) {
	out := *c
	out.layers = maps.Clone(c.layers)
	for name, l := range other.layers {
		if existing, ok := out.layers[name]; ok && existing != l {
			return nil, fmt.Errorf("layer name %q is used by two different layers", name)
		}
		out.layers[name] = l
	}
	out.deps = maps.Clone(c.deps)
	maps.Copy(out.deps, other.deps)
	return &out, nil
}
