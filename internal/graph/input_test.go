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

func TestInputTasksReadSource(t *testing.T) {
	src := newStubSource(2, "a", "b")
	l := NewInput("in", src, WithColumns("b"))

	task := l.Tasks()[ir.K("in", 1)]
	assert.Equal(t, "read-stub", task.Func.Name)
	args, err := ir.ResolveAll(task.Args, noResolver{})
	require.NoError(t, err)

	out, err := task.Func.Call(context.Background(), args)
	require.NoError(t, err)
	assert.Equal(t, "partition-1", out)
	assert.Equal(t, [][]string{{"b"}}, src.reads)
}

func TestInputMockYieldsTracers(t *testing.T) {
	src := newStubSource(2, "a", "b.x", "b.y")
	l := NewInput("in", src)

	mocked, state, err := l.MockWithState()
	require.NoError(t, err)
	m := mocked.(*InputLayer)
	assert.True(t, m.IsMock())
	assert.False(t, l.IsMock())

	task := m.Tasks()[ir.K("in", 0)]
	out, err := task.Func.Call(context.Background(), []any{0})
	require.NoError(t, err)
	arr, ok := out.(*tracer.Array)
	require.True(t, ok)
	assert.Empty(t, src.reads, "a mock never reads the source")

	by, err := arr.Field("b")
	require.NoError(t, err)
	y, err := by.Field("y")
	require.NoError(t, err)
	tracer.TouchData(y)

	projected, err := l.Project(state)
	require.NoError(t, err)
	p := projected.(*InputLayer)
	assert.Equal(t, []string{"b.y"}, p.Columns())
	assert.False(t, p.IsMock())
	assert.Nil(t, l.Columns(), "original layer is unchanged")
}

func TestInputProjectKeepsSourceOrder(t *testing.T) {
	l := NewInput("in", newStubSource(1, "foo", "bar", "baz.x", "baz.y"))
	report := tracer.NewReport("in")
	report.Touch("baz.y")
	report.Touch("foo")

	projected, err := l.Project(report)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo", "baz.y"}, projected.(*InputLayer).Columns())
}

func TestInputProjectWithNothingTouchedKeepsFirstColumn(t *testing.T) {
	l := NewInput("in", newStubSource(1, "foo", "bar"))
	projected, err := l.Project(tracer.NewReport("in"))
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, projected.(*InputLayer).Columns())
}

func TestInputProjectNarrowsAlreadyProjectedLayer(t *testing.T) {
	l := NewInput("in", newStubSource(1, "foo", "bar", "baz"), WithColumns("bar", "baz"))
	report := tracer.NewReport("in")
	report.Touch("baz")
	report.Touch("foo")

	projected, err := l.Project(report)
	require.NoError(t, err)
	assert.Equal(t, []string{"baz"}, projected.(*InputLayer).Columns())
}

func TestInputProjectRejectsForeignState(t *testing.T) {
	l := NewInput("in", newStubSource(1, "foo"))

	_, err := l.Project("not a report")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, ErrInvalidState, verr.Code)

	_, err = l.Project(tracer.NewReport("other"))
	assert.Error(t, err)
}

func TestInputOptions(t *testing.T) {
	l := NewInput("in", newStubSource(3, "a"), NotProjectable(), WithInputAnnotations(Annotations{"k": "v"}))
	assert.False(t, l.IsProjectable())
	assert.Equal(t, "v", l.Annotations()["k"])
	assert.Equal(t, 3, l.NumPartitions())
	assert.Equal(t, []string{"a"}, l.EffectiveColumns())
}

func TestOpaqueMapTasksAndMock(t *testing.T) {
	tasks := map[ir.Key]ir.Task{
		ir.K("o", 0): ir.NewTask(concat, ir.Lit(mockable{"zero"})),
		ir.K("o", 1): ir.NewTask(concat, ir.Lit("one")),
	}
	l := NewOpaque("o", tasks, OpaqueTouchAll())
	assert.True(t, l.TouchAllInputs())
	assert.Equal(t, 2, l.NumPartitions())

	mocked, err := l.Mock()
	require.NoError(t, err)
	assert.Equal(t, []ir.Arg{ir.Lit("mocked-zero")}, mocked.Tasks()[ir.K("o", 0)].Args)

	swapped := ir.NewFunc("swapped", concat.Impl)
	mapped, err := l.MapTasks(func(t ir.Task) ir.Task { return t.WithFunc(swapped) })
	require.NoError(t, err)
	for _, task := range mapped.Tasks() {
		assert.Equal(t, "swapped", task.Func.Name)
	}
	for _, task := range l.Tasks() {
		assert.Equal(t, "concat", task.Func.Name)
	}
}
