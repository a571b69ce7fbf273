package optimizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/colgraph/internal/columnar"
	"github.com/roach88/colgraph/internal/engine"
	"github.com/roach88/colgraph/internal/graph"
	"github.com/roach88/colgraph/internal/ir"
	"github.com/roach88/colgraph/internal/kernels"
	"github.com/roach88/colgraph/internal/source"
	"github.com/roach88/colgraph/internal/tracer"
)

var errBoom = errors.New("boom")

// explode fails whenever it sees a tracer and passes real values through.
var explode = ir.NewFunc("explode", func(_ context.Context, args []any) (any, error) {
	if tracer.IsTracer(args[0]) {
		return nil, errBoom
	}
	return args[0], nil
})

var identity = ir.NewFunc("identity", func(_ context.Context, args []any) (any, error) {
	return args[0], nil
})

func eventsTable() *columnar.Table {
	return columnar.MustTable(map[string][]int64{
		"foo":   {1, 2, 3, 4, 5, 6},
		"bar":   {10, 20, 30, 40, 50, 60},
		"baz.x": {-1, -2, -3, -4, -5, -6},
		"baz.y": {7, 8, 9, 10, 11, 12},
	})
}

// builder accumulates layers and dependencies for a test graph.
type builder struct {
	t      *testing.T
	layers []graph.Layer
	deps   map[string][]string
}

func newBuilder(t *testing.T) *builder {
	return &builder{t: t, deps: map[string][]string{}}
}

func (b *builder) input(name string, partitions int, opts ...graph.InputOption) *builder {
	src, err := source.NewMemory(name, eventsTable(), partitions)
	require.NoError(b.t, err)
	b.layers = append(b.layers, graph.NewInput(name, src, opts...))
	return b
}

func (b *builder) add(l graph.Layer, deps ...string) *builder {
	b.layers = append(b.layers, l)
	if len(deps) > 0 {
		b.deps[l.Name()] = deps
	}
	return b
}

// field adds name = field(parent, col).
func (b *builder) field(name, parent, col string, partitions int) *builder {
	l, err := graph.NewBlockwise(name, partitions).
		Indices(graph.Partitioned(parent), graph.Broadcast(col)).
		Apply(kernels.Field).
		Build()
	require.NoError(b.t, err)
	return b.add(l, parent)
}

// apply adds name = fn(parent, extra...) with extra broadcast operands.
func (b *builder) apply(name, parent string, partitions int, fn ir.Func, extra ...any) *builder {
	indices := []graph.Index{graph.Partitioned(parent)}
	for _, e := range extra {
		indices = append(indices, graph.Broadcast(e))
	}
	l, err := graph.NewBlockwise(name, partitions).Indices(indices...).Apply(fn).Build()
	require.NoError(b.t, err)
	return b.add(l, parent)
}

// binary adds name = fn(left, right) reading both layers partition-wise.
func (b *builder) binary(name, left, right string, partitions int, fn ir.Func) *builder {
	l, err := graph.NewBlockwise(name, partitions).
		Indices(graph.Partitioned(left), graph.Partitioned(right)).
		Apply(fn).
		Build()
	require.NoError(b.t, err)
	return b.add(l, left, right)
}

func (b *builder) build() *graph.Graph {
	g, err := graph.New(b.layers, b.deps)
	require.NoError(b.t, err)
	return g
}

func layerKeys(layer string, partitions int) []ir.Key {
	keys := make([]ir.Key, partitions)
	for p := range keys {
		keys[p] = ir.K(layer, p)
	}
	return keys
}

func evaluate(t *testing.T, g *graph.Graph, keys []ir.Key) []any {
	t.Helper()
	out, err := engine.NewSync().Evaluate(context.Background(), g, keys)
	require.NoError(t, err)
	return out
}

func inputColumns(t *testing.T, g *graph.Graph, name string) []string {
	t.Helper()
	l, ok := g.Layer(name)
	require.True(t, ok)
	in, ok := l.(*graph.InputLayer)
	require.True(t, ok)
	return in.Columns()
}

// minimalGraph reads only foo and baz.y:
//
//	in -> foo --------\
//	in -> baz -> y ---> total
func minimalGraph(t *testing.T) *graph.Graph {
	return newBuilder(t).
		input("in", 2).
		field("foo", "in", "foo", 2).
		field("baz", "in", "baz", 2).
		field("y", "baz", "y", 2).
		binary("total", "foo", "y", 2, kernels.Add).
		build()
}
