package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/colgraph/internal/ir"
	"github.com/roach88/colgraph/internal/tracer"
)

// mockable is a literal with a dataless counterpart.
type mockable struct{ v string }

func (m mockable) Mock() any { return "mocked-" + m.v }

func TestBlockwiseTasksResolveSlots(t *testing.T) {
	l := mustBlockwise(NewBlockwise("out", 3).
		Indices(Partitioned("in"), Broadcast("lit"), Partitioned("io"), Partitioned("single")).
		IODep("io", map[int]any{0: "io0", 1: "io1", 2: "io2"}).
		NumBlocks(map[string]int{"in": 3, "single": 1}).
		Apply(concat))

	tasks := l.Tasks()
	require.Len(t, tasks, 3)
	assert.Equal(t, []ir.Arg{
		ir.Ref("in", 2),
		ir.Lit("lit"),
		ir.Lit("io2"),
		ir.Ref("single", 0),
	}, tasks[ir.K("out", 2)].Args)
	assert.Equal(t, []string{"in", "single"}, l.InputLayers())
}

func TestBlockwiseSubgraphRunsStepsInOrder(t *testing.T) {
	l := mustBlockwise(NewBlockwise("fused", 1).
		Indices(Partitioned("in"), Broadcast("!")).
		Steps(
			Step{Name: "first", Task: ir.NewTask(concat, ir.Slot(0), ir.Lit("-a"))},
			Step{Name: "second", Task: ir.NewTask(concat, ir.StepRef{Name: "first"}, ir.Slot(1))},
		))

	task := l.Tasks()[ir.K("fused", 0)]
	assert.Equal(t, "concat|concat", task.Func.Name)
	out, err := task.Func.Call(context.Background(), []any{"x", "!"})
	require.NoError(t, err)
	assert.Equal(t, "x-a!", out)
	assert.Equal(t, "second", l.OutputStep())
}

func TestBlockwiseSubgraphWrapsStepErrors(t *testing.T) {
	boom := errors.New("boom")
	fail := ir.NewFunc("fail", func(context.Context, []any) (any, error) { return nil, boom })
	l := mustBlockwise(NewBlockwise("f", 1).Indices(Partitioned("in")).Apply(fail))

	_, err := l.Tasks()[ir.K("f", 0)].Func.Call(context.Background(), []any{1})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `step "f"`)
}

func TestBlockwiseBuildValidation(t *testing.T) {
	tests := []struct {
		name string
		b    *BlockwiseBuilder
		code string
	}{
		{"no name", NewBlockwise("", 1).Apply(concat), ErrEmptyName},
		{"no partitions", NewBlockwise("x", 0).Apply(concat), ErrInvalidPartitions},
		{"no steps", NewBlockwise("x", 1), ErrInvalidSubgraph},
		{"slot out of range", NewBlockwise("x", 1).Steps(Step{Name: "s", Task: ir.NewTask(concat, ir.Slot(0))}), ErrInvalidSubgraph},
		{"later step", NewBlockwise("x", 1).Steps(Step{Name: "s", Task: ir.NewTask(concat, ir.StepRef{Name: "t"})}), ErrInvalidSubgraph},
		{"partition ref", NewBlockwise("x", 1).Steps(Step{Name: "s", Task: ir.NewTask(concat, ir.Ref("y", 0))}), ErrInvalidSubgraph},
		{"duplicate step", NewBlockwise("x", 1).Steps(
			Step{Name: "s", Task: ir.NewTask(concat)},
			Step{Name: "s", Task: ir.NewTask(concat)},
		), ErrInvalidSubgraph},
		{"incomplete io", NewBlockwise("x", 2).Indices(Partitioned("io")).IODep("io", map[int]any{0: 1}).Apply(concat), ErrIncompleteIODeps},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.b.Build()
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.code, verr.Code)
		})
	}
}

func TestBlockwiseMockReplacesMockableLiterals(t *testing.T) {
	l := mustBlockwise(NewBlockwise("m", 1).
		Indices(Partitioned("in"), Broadcast(mockable{"slot"})).
		Steps(Step{Name: "m", Task: ir.NewTask(concat, ir.Slot(0), ir.Slot(1), ir.List(ir.Lit(mockable{"arg"})))}))

	mocked, err := l.Mock()
	require.NoError(t, err)
	m := mocked.(*BlockwiseLayer)
	require.NotSame(t, l, m)

	assert.Equal(t, "mocked-slot", m.Indices()[1].Value)
	args := m.Steps()[0].Task.Args
	assert.Equal(t, ir.List(ir.Lit("mocked-arg")), args[2])

	// The original keeps its real literals.
	assert.Equal(t, mockable{"slot"}, l.Indices()[1].Value)
}

func TestBlockwiseMapTasksTouchesOnlyOutputStep(t *testing.T) {
	l := mustBlockwise(NewBlockwise("two", 1).
		Indices(Partitioned("in")).
		Steps(
			Step{Name: "a", Task: ir.NewTask(concat, ir.Slot(0))},
			Step{Name: "b", Task: ir.NewTask(concat, ir.StepRef{Name: "a"})},
		))

	swapped := ir.NewFunc("swapped", concat.Impl)
	mapped, err := l.MapTasks(func(t ir.Task) ir.Task { return t.WithFunc(swapped) })
	require.NoError(t, err)

	steps := mapped.(*BlockwiseLayer).Steps()
	assert.Equal(t, "concat", steps[0].Task.Func.Name)
	assert.Equal(t, "swapped", steps[1].Task.Func.Name)
	assert.Equal(t, "concat", l.Steps()[1].Task.Func.Name)
}

func TestBlockwiseToBuilderDeepCopies(t *testing.T) {
	l := mustBlockwise(NewBlockwise("c", 2).
		Indices(Partitioned("io")).
		IODep("io", map[int]any{0: "a", 1: "b"}).
		Annotate(AnnotationOutput, true).
		Apply(concat))

	c := mustBlockwise(l.ToBuilder().IODep("io", map[int]any{0: "x", 1: "y"}).Annotate("extra", 1))
	assert.Equal(t, "a", l.IODeps()["io"][0])
	assert.Equal(t, "x", c.IODeps()["io"][0])
	assert.NotContains(t, l.Annotations(), "extra")
	assert.True(t, c.Annotations().IsOutput())
}

func TestBlockwiseOnTracers(t *testing.T) {
	form, err := tracer.FormFromColumns([]string{"a", "b"})
	require.NoError(t, err)
	report := tracer.NewReport("in")

	touch := ir.NewFunc("touch", func(_ context.Context, args []any) (any, error) {
		tracer.TouchData(args[0])
		return nil, nil
	})
	l := mustBlockwise(NewBlockwise("t", 1).Indices(Partitioned("in")).Apply(touch))
	_, err = l.Tasks()[ir.K("t", 0)].Func.Call(context.Background(), []any{tracer.New(form, report)})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, report.Touched())
}

func TestAnnotationsIsOutput(t *testing.T) {
	tests := []struct {
		a    Annotations
		want bool
	}{
		{nil, false},
		{Annotations{AnnotationOutput: true}, true},
		{Annotations{AnnotationOutput: false}, false},
		{Annotations{AnnotationOutput: "parquet"}, true},
		{Annotations{AnnotationOutput: ""}, false},
		{Annotations{AnnotationOutput: map[string]any{}}, true},
		{Annotations{"other": true}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.a.IsOutput(), "%v", tt.a)
	}
}

func TestBlockwiseTouchAllMarksSteps(t *testing.T) {
	l := mustBlockwise(NewBlockwise("two", 1).
		Indices(Partitioned("in")).
		TouchAll(true).
		Steps(
			Step{Name: "a", Task: ir.NewTask(concat, ir.Slot(0))},
			Step{Name: "b", Task: ir.NewTask(concat, ir.StepRef{Name: "a"})},
		))
	assert.True(t, l.TouchAllInputs())
	for _, s := range l.Steps() {
		assert.True(t, s.TouchAll, s.Name)
	}

	plain := mustBlockwise(NewBlockwise("one", 1).Indices(Partitioned("in")).Apply(concat))
	assert.False(t, plain.TouchAllInputs())
}

func TestBlockwiseMapTouchAllStepsSkipsOtherSteps(t *testing.T) {
	l := mustBlockwise(NewBlockwise("fused", 1).
		Indices(Partitioned("in")).
		Steps(
			Step{Name: "a", Task: ir.NewTask(concat, ir.Slot(0)), TouchAll: true},
			Step{Name: "b", Task: ir.NewTask(concat, ir.StepRef{Name: "a"})},
		))
	assert.True(t, l.TouchAllInputs())

	swapped := ir.NewFunc("swapped", concat.Impl)
	mapped, err := l.MapTouchAllSteps(func(t ir.Task) ir.Task { return t.WithFunc(swapped) })
	require.NoError(t, err)

	steps := mapped.(*BlockwiseLayer).Steps()
	assert.Equal(t, "swapped", steps[0].Task.Func.Name)
	assert.Equal(t, "concat", steps[1].Task.Func.Name)
}
