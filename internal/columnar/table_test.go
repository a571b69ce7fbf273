package columnar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/colgraph/internal/tracer"
)

func sample() *Table {
	return MustTable(map[string][]int64{
		"foo":   {1, 2, 3},
		"bar":   {4, 5, 6},
		"baz.x": {7, 8, 9},
		"baz.y": {10, 11, 12},
	})
}

func TestNewTableRejectsRaggedColumns(t *testing.T) {
	_, err := NewTable(map[string][]int64{"a": {1, 2}, "b": {1}})
	assert.Error(t, err)

	_, err = NewTable(map[string][]int64{"a": {1}, "a.b": {1}})
	assert.Error(t, err)
}

func TestTableField(t *testing.T) {
	tbl := sample()

	foo, err := tbl.Field("foo")
	require.NoError(t, err)
	assert.Equal(t, Column{1, 2, 3}, foo)

	baz, err := tbl.Field("baz")
	require.NoError(t, err)
	sub, ok := baz.(*Table)
	require.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, sub.Columns())
	assert.Equal(t, 3, sub.Len())

	_, err = tbl.Field("qux")
	assert.Error(t, err)
}

func TestTableSelectAndSlice(t *testing.T) {
	tbl := sample()

	sel, err := tbl.Select([]string{"foo", "baz.y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"baz.y", "foo"}, sel.Columns())

	all, err := tbl.Select(nil)
	require.NoError(t, err)
	assert.Equal(t, tbl.Columns(), all.Columns())

	_, err = tbl.Select([]string{"nope"})
	assert.Error(t, err)

	part, err := tbl.Slice(1, 3)
	require.NoError(t, err)
	col, ok := part.Column("bar")
	require.True(t, ok)
	assert.Equal(t, Column{5, 6}, col)

	_, err = tbl.Slice(2, 5)
	assert.Error(t, err)
}

func TestConcat(t *testing.T) {
	tbl := sample()
	a, _ := tbl.Slice(0, 1)
	b, _ := tbl.Slice(1, 3)

	joined, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, tbl, joined)

	other := MustTable(map[string][]int64{"foo": {1}})
	_, err = Concat(a, other)
	assert.Error(t, err)
}

func TestMocks(t *testing.T) {
	m, ok := sample().Mock().(*tracer.Array)
	require.True(t, ok)
	assert.Equal(t, []string{"bar", "baz.x", "baz.y", "foo"}, m.Form().Columns())

	c, ok := Column{1}.Mock().(*tracer.Array)
	require.True(t, ok)
	assert.Equal(t, "int64", c.Form().String())
}
