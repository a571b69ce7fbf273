package tracer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleForm() *Form {
	return Record(
		F("foo", Int64()),
		F("bar", Int64()),
		F("baz", ListOf(Record(F("x", Int64()), F("y", OptionOf(Int64()))))),
	)
}

func TestFormColumns(t *testing.T) {
	assert.Equal(t, []string{"foo", "bar", "baz.x", "baz.y"}, sampleForm().Columns())
	assert.Equal(t, []string{""}, Int64().Columns())
}

func TestFormSelect(t *testing.T) {
	sel := sampleForm().Select([]string{"baz.y", "foo", "missing"})
	assert.Equal(t, []string{"foo", "baz.y"}, sel.Columns())
	assert.Equal(t, "{foo: int64, baz: var * {y: ?int64}}", sel.String())

	empty := sampleForm().Select(nil)
	assert.Empty(t, empty.Columns())
}

func TestFormFromColumns(t *testing.T) {
	form, err := FormFromColumns([]string{"foo", "baz.x", "bar", "baz.y"})
	require.NoError(t, err)
	assert.Equal(t, "{foo: int64, baz: {x: int64, y: int64}, bar: int64}", form.String())
	assert.Equal(t, []string{"foo", "baz.x", "baz.y", "bar"}, form.Columns())
}

func TestFormFromColumnsRejectsConflicts(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
	}{
		{"duplicate", []string{"a", "a"}},
		{"leaf then record", []string{"a", "a.b"}},
		{"record then leaf", []string{"a.b", "a"}},
		{"empty", []string{""}},
		{"empty segment", []string{"a..b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FormFromColumns(tt.columns)
			assert.Error(t, err)
		})
	}
}

func TestFieldAccessDoesNotTouch(t *testing.T) {
	report := NewReport("input")
	root := New(sampleForm(), report)

	baz, err := root.Field("baz")
	require.NoError(t, err)
	y, err := baz.Field("y")
	require.NoError(t, err)

	assert.Equal(t, "baz.y", y.Path())
	assert.Empty(t, report.Touched())

	_, err = root.Field("nope")
	assert.Error(t, err)
}

func TestTouchDataRecordsLeaves(t *testing.T) {
	report := NewReport("input")
	root := New(sampleForm(), report)

	baz, err := root.Field("baz")
	require.NoError(t, err)
	foo, err := root.Field("foo")
	require.NoError(t, err)

	TouchData(baz)
	TouchData(foo)
	TouchData(foo)

	assert.Equal(t, []string{"baz.x", "baz.y", "foo"}, report.Touched())
	assert.Equal(t, "input", report.Layer())
}

func TestTouchDataWalksContainers(t *testing.T) {
	report := NewReport("input")
	root := New(sampleForm(), report)
	foo, _ := root.Field("foo")
	bar, _ := root.Field("bar")

	TouchData([]any{foo, map[string]any{"b": bar}, 3, "text", nil})
	assert.Equal(t, []string{"bar", "foo"}, report.Touched())
}

func TestDerivedTouchIsNoop(t *testing.T) {
	d := Derived(Int64())
	TouchData(d)
	assert.True(t, IsTracer(d))
	assert.False(t, IsTracer(3))
}

func TestReportConcurrentTouch(t *testing.T) {
	report := NewReport("input")
	var wg sync.WaitGroup
	for _, col := range []string{"a", "b", "a", "c"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report.Touch(col)
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"a", "b", "c"}, report.Touched())
}
