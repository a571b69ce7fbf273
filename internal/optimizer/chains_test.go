package optimizer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/colgraph/internal/columnar"
	"github.com/roach88/colgraph/internal/graph"
	"github.com/roach88/colgraph/internal/ir"
	"github.com/roach88/colgraph/internal/kernels"
)

// linearGraph is in -> a -> b -> c computing foo*2+1.
func linearGraph(t *testing.T) *graph.Graph {
	return newBuilder(t).
		input("in", 2).
		field("a", "in", "foo", 2).
		apply("b", "a", 2, kernels.Multiply, int64(2)).
		apply("c", "b", 2, kernels.Add, int64(1)).
		build()
}

func fusedLayer(t *testing.T, g *graph.Graph, name string) *graph.BlockwiseLayer {
	t.Helper()
	l, ok := g.Layer(name)
	require.True(t, ok, "layer %q", name)
	b, ok := l.(*graph.BlockwiseLayer)
	require.True(t, ok, "layer %q is %s", name, graph.Kind(l))
	return b
}

func TestChainsFindsLinearRun(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "b", "c"}}, Chains(linearGraph(t)))
}

func TestFuseChainsLinear(t *testing.T) {
	g := linearGraph(t)
	out, err := FuseChains(g)
	require.NoError(t, err)

	assert.Equal(t, []string{"c", "in"}, out.Names())
	assert.Equal(t, []string{"in"}, out.Dependencies("c"))

	c := fusedLayer(t, out, "c")
	assert.Equal(t, 2, c.NumPartitions())
	assert.Len(t, c.Indices(), 2, "literal slots of later members become literals")
	assert.Equal(t, []string{"a", "b", "c"}, stepNames(c))
	assert.Equal(t, "c", c.OutputStep())
	assert.Equal(t, "field|multiply|add", c.Tasks()[ir.K("c", 0)].Func.Name)
	assert.Equal(t, ir.Lit(int64(2)), c.Steps()[1].Task.Args[1])
	assert.Equal(t, ir.StepRef{Name: "a"}, c.Steps()[1].Task.Args[0])

	keys := layerKeys("c", 2)
	want := evaluate(t, g, keys)
	assert.Equal(t, []any{columnar.Column{3, 5, 7}, columnar.Column{9, 11, 13}}, want)
	assert.Equal(t, want, evaluate(t, out, keys))
}

func stepNames(l *graph.BlockwiseLayer) []string {
	var names []string
	for _, s := range l.Steps() {
		names = append(names, s.Name)
	}
	return names
}

func TestFuseChainsIsIdempotent(t *testing.T) {
	once, err := FuseChains(linearGraph(t))
	require.NoError(t, err)
	twice, err := FuseChains(once)
	require.NoError(t, err)
	assert.Same(t, once, twice)
	assert.Empty(t, Chains(once))
}

func TestFuseChainsFanOutExcluded(t *testing.T) {
	g := newBuilder(t).
		input("in", 2).
		field("a", "in", "foo", 2).
		apply("b", "a", 2, kernels.Negate).
		apply("c", "a", 2, kernels.Multiply, int64(3)).
		build()

	assert.Empty(t, Chains(g))
	out, err := FuseChains(g)
	require.NoError(t, err)
	assert.Same(t, g, out)
	assert.Equal(t, []string{"a", "b", "c", "in"}, out.Names())
}

func TestFuseChainsStopsAtFanIn(t *testing.T) {
	g := minimalGraph(t)
	assert.Equal(t, [][]string{{"baz", "y"}}, Chains(g))

	out, err := FuseChains(g)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo", "in", "total", "y"}, out.Names())
	assert.Equal(t, []string{"in"}, out.Dependencies("y"))
	assert.Equal(t, []string{"foo", "y"}, out.Dependencies("total"))

	keys := layerKeys("total", 2)
	assert.Equal(t, evaluate(t, g, keys), evaluate(t, out, keys))
}

func TestFuseChainsMismatchedPartitionsExcluded(t *testing.T) {
	first, err := graph.NewBlockwise("first", 1).
		Indices(graph.Partitioned("a")).
		NumBlocks(map[string]int{"a": 1}).
		Apply(identity).
		Build()
	require.NoError(t, err)
	g := newBuilder(t).
		input("in", 2).
		field("a", "in", "foo", 2).
		add(first, "a").
		build()

	assert.Empty(t, Chains(g))
}

func TestFuseChainsSkipsNonBlockwise(t *testing.T) {
	opaque := graph.NewOpaque("o", map[ir.Key]ir.Task{
		ir.K("o", 0): ir.NewTask(identity, ir.Ref("a", 0)),
	})
	g := newBuilder(t).
		input("in", 1).
		field("a", "in", "foo", 1).
		add(opaque, "a").
		build()
	assert.Empty(t, Chains(g))
}

func TestChainsRespectProtectedLayers(t *testing.T) {
	g := linearGraph(t)
	assert.Equal(t, [][]string{{"a", "b"}}, Chains(g, "b"))
	assert.Empty(t, Chains(g, "a", "b"))

	out, err := FuseChains(g, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "in"}, out.Names())
	assert.Equal(t, evaluate(t, g, layerKeys("b", 2)), evaluate(t, out, layerKeys("b", 2)))
}

func TestFuseChainsAppendsIODependencies(t *testing.T) {
	offsets, err := graph.NewBlockwise("b", 2).
		Indices(graph.Partitioned("a"), graph.Partitioned("offsets")).
		IODep("offsets", map[int]any{0: int64(100), 1: int64(200)}).
		Apply(kernels.Add).
		Build()
	require.NoError(t, err)
	g := newBuilder(t).
		input("in", 2).
		field("a", "in", "foo", 2).
		add(offsets, "a").
		build()

	out, err := FuseChains(g)
	require.NoError(t, err)
	b := fusedLayer(t, out, "b")
	require.Len(t, b.Indices(), 3)
	assert.Equal(t, graph.Partitioned("offsets"), b.Indices()[2])
	assert.Equal(t, map[int]any{0: int64(100), 1: int64(200)}, b.IODeps()["offsets"])
	assert.Equal(t, ir.Slot(2), b.Steps()[1].Task.Args[1])

	keys := layerKeys("b", 2)
	want := evaluate(t, g, keys)
	assert.Equal(t, []any{columnar.Column{101, 102, 103}, columnar.Column{204, 205, 206}}, want)
	assert.Equal(t, want, evaluate(t, out, keys))
}

func TestFuseChainsRenamesCollidingIODependencies(t *testing.T) {
	offsets := func(name, parent string, values map[int]any) graph.Layer {
		l, err := graph.NewBlockwise(name, 2).
			Indices(graph.Partitioned(parent), graph.Partitioned("offsets")).
			IODep("offsets", values).
			Apply(kernels.Add).
			Build()
		require.NoError(t, err)
		return l
	}
	g := newBuilder(t).
		input("in", 2).
		field("a", "in", "foo", 2).
		add(offsets("b", "a", map[int]any{0: int64(100), 1: int64(200)}), "a").
		add(offsets("c", "b", map[int]any{0: int64(1), 1: int64(2)}), "b").
		build()

	out, err := FuseChains(g)
	require.NoError(t, err)
	c := fusedLayer(t, out, "c")
	assert.Equal(t, graph.Partitioned("offsets"), c.Indices()[2])
	assert.Equal(t, graph.Partitioned("c/offsets"), c.Indices()[3])
	assert.Equal(t, map[int]any{0: int64(100), 1: int64(200)}, c.IODeps()["offsets"])
	assert.Equal(t, map[int]any{0: int64(1), 1: int64(2)}, c.IODeps()["c/offsets"])

	keys := layerKeys("c", 2)
	want := evaluate(t, g, keys)
	assert.Equal(t, []any{columnar.Column{102, 103, 104}, columnar.Column{206, 207, 208}}, want)
	assert.Equal(t, want, evaluate(t, out, keys))
}

func TestFuseChainsRenamesCollidingSteps(t *testing.T) {
	first, err := graph.NewBlockwise("a", 1).
		Indices(graph.Partitioned("in")).
		Steps(graph.Step{Name: "s", Task: ir.NewTask(kernels.Field, ir.Slot(0), ir.Lit("foo"))}).
		Build()
	require.NoError(t, err)
	second, err := graph.NewBlockwise("b", 1).
		Indices(graph.Partitioned("a"), graph.Broadcast(int64(10))).
		Steps(
			graph.Step{Name: "s", Task: ir.NewTask(kernels.Multiply, ir.Slot(0), ir.Slot(1))},
			graph.Step{Name: "t", Task: ir.NewTask(kernels.Add, ir.StepRef{Name: "s"}, ir.Lit(int64(1)))},
		).
		Build()
	require.NoError(t, err)
	g := newBuilder(t).input("in", 1).add(first, "in").add(second, "a").build()

	out, err := FuseChains(g)
	require.NoError(t, err)
	b := fusedLayer(t, out, "b")
	assert.Equal(t, []string{"s", "b/s", "t"}, stepNames(b))
	assert.Equal(t, ir.StepRef{Name: "b/s"}, b.Steps()[2].Task.Args[0])
	assert.Equal(t, ir.StepRef{Name: "s"}, b.Steps()[1].Task.Args[0])

	keys := layerKeys("b", 1)
	want := evaluate(t, g, keys)
	assert.Equal(t, []any{columnar.Column{11, 21, 31, 41, 51, 61}}, want)
	assert.Equal(t, want, evaluate(t, out, keys))
}

func TestFuseChainsMergesAnnotations(t *testing.T) {
	tail, err := graph.NewBlockwise("b", 1).
		Indices(graph.Partitioned("a")).
		Apply(kernels.Negate).
		Annotate(graph.AnnotationOutput, true).
		Build()
	require.NoError(t, err)
	g := newBuilder(t).input("in", 1).field("a", "in", "foo", 1).add(tail, "a").build()

	out, err := FuseChains(g)
	require.NoError(t, err)
	assert.True(t, fusedLayer(t, out, "b").Annotations().IsOutput())
}

var randomOps = []string{"add", "multiply", "negate", "add-earlier"}

// randomGraph builds a random pipeline over one leaf column. Some steps add
// the current layer to an earlier one, so chains break on fan-in and
// fan-out as well.
func randomGraph(t *testing.T, r *rand.Rand) (g *graph.Graph, last, column string, parts int) {
	parts = 1 + r.IntN(3)
	b := newBuilder(t).input("in", parts)
	columns := []string{"foo", "bar", "baz.x", "baz.y"}
	column = columns[r.IntN(len(columns))]

	cur := "l0"
	switch column {
	case "baz.x", "baz.y":
		b.field("baz", "in", "baz", parts)
		b.field(cur, "baz", column[len("baz."):], parts)
	default:
		b.field(cur, "in", column, parts)
	}

	var history []string
	n := 2 + r.IntN(6)
	for i := 1; i <= n; i++ {
		name := fmt.Sprintf("l%d", i)
		switch op := randomOps[r.IntN(len(randomOps))]; op {
		case "add":
			b.apply(name, cur, parts, kernels.Add, int64(r.IntN(10)))
		case "multiply":
			b.apply(name, cur, parts, kernels.Multiply, int64(1+r.IntN(4)))
		case "negate":
			b.apply(name, cur, parts, kernels.Negate)
		case "add-earlier":
			if len(history) == 0 {
				b.apply(name, cur, parts, kernels.Negate)
				break
			}
			b.binary(name, cur, history[r.IntN(len(history))], parts, kernels.Add)
		}
		history = append(history, cur)
		cur = name
	}
	return b.build(), cur, column, parts
}

func TestRandomPipelinesAreUnchangedByOptimization(t *testing.T) {
	ctx := context.Background()
	for seed := uint64(0); seed < 40; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			r := rand.New(rand.NewPCG(seed, 0x636f6c67))
			g, last, column, parts := randomGraph(t, r)
			keys := layerKeys(last, parts)
			want := evaluate(t, g, keys)

			projected, err := projectOnly(OnFailRaise).ProjectColumns(ctx, g)
			require.NoError(t, err)
			assert.Equal(t, []string{column}, inputColumns(t, projected, "in"))
			assert.Equal(t, want, evaluate(t, projected, keys), "columns")

			fused, err := FuseChains(g, last)
			require.NoError(t, err)
			assert.Equal(t, want, evaluate(t, fused, keys), "layer-chains")
			for _, name := range fused.Names() {
				assert.Equal(t, parts, fused.NumPartitions(name), "layer %q", name)
			}

			both, err := New(Config{Enabled: true, Which: ValidPasses, OnFail: OnFailRaise}).Optimize(ctx, g, keys)
			require.NoError(t, err)
			assert.Equal(t, want, evaluate(t, both, keys), "both")
			assert.Empty(t, Chains(both, last))
		})
	}
}
