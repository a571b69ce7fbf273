package kernels

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/colgraph/internal/columnar"
	"github.com/roach88/colgraph/internal/tracer"
)

func call(t *testing.T, name string, args ...any) (any, error) {
	t.Helper()
	f, ok := Lookup(name)
	require.True(t, ok, "kernel %q not registered", name)
	return f.Call(context.Background(), args)
}

func TestNumericKernelsOnColumns(t *testing.T) {
	a := columnar.Column{1, 2, 3}
	b := columnar.Column{10, 20, 30}

	tests := []struct {
		name string
		args []any
		want any
	}{
		{NameAdd, []any{a, b}, columnar.Column{11, 22, 33}},
		{NameAdd, []any{a, int64(1)}, columnar.Column{2, 3, 4}},
		{NameMultiply, []any{2, b}, columnar.Column{20, 40, 60}},
		{NameNegate, []any{a}, columnar.Column{-1, -2, -3}},
		{NameSum, []any{b}, int64(60)},
		{NameAdd, []any{int64(2), int64(3)}, int64(5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := call(t, tt.name, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumericKernelErrors(t *testing.T) {
	_, err := call(t, NameAdd, columnar.Column{1}, columnar.Column{1, 2})
	assert.ErrorContains(t, err, "length mismatch")

	_, err = call(t, NameAdd, "x", int64(1))
	assert.ErrorContains(t, err, "unsupported numeric operand")

	_, err = call(t, NameSum, int64(3))
	assert.Error(t, err)
}

func TestFieldKernel(t *testing.T) {
	tbl := columnar.MustTable(map[string][]int64{"foo": {1}, "baz.x": {2}})
	got, err := call(t, NameField, tbl, "foo")
	require.NoError(t, err)
	assert.Equal(t, columnar.Column{1}, got)

	_, err = call(t, NameField, tbl, 3)
	assert.Error(t, err)
	_, err = call(t, NameField, int64(1), "foo")
	assert.Error(t, err)
}

func TestKernelsOnTracersTouchOnlyWhatTheyRead(t *testing.T) {
	form, err := tracer.FormFromColumns([]string{"foo", "bar", "baz.x", "baz.y"})
	require.NoError(t, err)
	report := tracer.NewReport("in")
	root := tracer.New(form, report)

	baz, err := call(t, NameField, root, "baz")
	require.NoError(t, err)
	y, err := call(t, NameField, baz, "y")
	require.NoError(t, err)
	foo, err := call(t, NameField, root, "foo")
	require.NoError(t, err)
	assert.Empty(t, report.Touched())

	out, err := call(t, NameAdd, y, foo)
	require.NoError(t, err)
	assert.True(t, tracer.IsTracer(out))
	assert.Equal(t, []string{"baz.y", "foo"}, report.Touched())

	_, err = call(t, NameAdd, baz, int64(1))
	assert.ErrorContains(t, err, "record array")
}

func TestSink(t *testing.T) {
	s := NewSink("out")
	write := s.Func()
	ctx := context.Background()

	_, err := write.Call(ctx, []any{columnar.Column{2}, 1})
	require.NoError(t, err)
	_, err = write.Call(ctx, []any{columnar.Column{1}, 0})
	require.NoError(t, err)
	_, err = write.Call(ctx, []any{tracer.Derived(tracer.Int64()), 2})
	require.NoError(t, err)

	assert.Equal(t, []any{columnar.Column{1}, columnar.Column{2}}, s.Results())
	assert.Equal(t, "write-out", write.Name)

	_, err = write.Call(ctx, []any{columnar.Column{1}, "zero"})
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"add", "field", "multiply", "negate", "sum"}, Names())
}

func TestCombineKernel(t *testing.T) {
	got, err := Combine.Call(context.Background(), []any{[]any{int64(1), int64(2), int64(3)}})
	require.NoError(t, err)
	assert.Equal(t, int64(6), got)

	_, err = Combine.Call(context.Background(), []any{[]any{int64(1), "x"}})
	assert.ErrorContains(t, err, "partial 1")

	report := tracer.NewReport("in")
	root := tracer.New(tracer.Record(tracer.F("a", tracer.Int64())), report)
	col, err := root.Field("a")
	require.NoError(t, err)
	got, err = Combine.Call(context.Background(), []any{[]any{col, int64(1)}})
	require.NoError(t, err)
	assert.True(t, tracer.IsTracer(got))
	assert.Equal(t, []string{"a"}, report.Touched())

	_, ok := Lookup("combine")
	assert.False(t, ok, "combine takes a list and is not a registered kernel")
}
