package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/colgraph/internal/columnar"
	"github.com/roach88/colgraph/internal/engine"
	"github.com/roach88/colgraph/internal/graph"
	"github.com/roach88/colgraph/internal/ir"
	"github.com/roach88/colgraph/internal/optimizer"
	"github.com/roach88/colgraph/internal/source"
)

func TestLoadEventsPipeline(t *testing.T) {
	p, err := Load("testdata/events.yaml")
	require.NoError(t, err)
	assert.Equal(t, "events", p.Name)
	assert.Len(t, p.Sources, 1)
	assert.Len(t, p.Steps, 6)
	assert.Len(t, p.Outputs, 2)
	assert.Equal(t, int64(2), *p.Steps[4].Value)
}

func TestParseRejectsInvalidPipelines(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\nsorces: []\n",
			want: "field sorces not found",
		},
		{
			name: "missing name",
			yaml: "sources: [{name: a, partitions: 1, columns: {foo: [1]}}]\noutputs: [{name: o, input: a}]\n",
			want: "name is required",
		},
		{
			name: "no outputs",
			yaml: "name: x\nsources: [{name: a, partitions: 1, columns: {foo: [1]}}]\n",
			want: "at least one output is required",
		},
		{
			name: "both source kinds",
			yaml: "name: x\nsources: [{name: a, partitions: 1, columns: {foo: [1]}, sqlite: {path: p, table: t}}]\noutputs: [{name: o, input: a}]\n",
			want: "exactly one of columns or sqlite",
		},
		{
			name: "zero partitions",
			yaml: "name: x\nsources: [{name: a, partitions: 0, columns: {foo: [1]}}]\noutputs: [{name: o, input: a}]\n",
			want: "partitions must be at least 1",
		},
		{
			name: "forward reference",
			yaml: "name: x\nsources: [{name: a, partitions: 1, columns: {foo: [1]}}]\n" +
				"steps: [{name: s1, op: negate, input: s2}, {name: s2, op: field, input: a, field: foo}]\n" +
				"outputs: [{name: o, input: s1}]\n",
			want: `step "s1": input "s2" is not a source or earlier step`,
		},
		{
			name: "unknown op",
			yaml: "name: x\nsources: [{name: a, partitions: 1, columns: {foo: [1]}}]\n" +
				"steps: [{name: s, op: explode, input: a}]\noutputs: [{name: o, input: s}]\n",
			want: `unknown op "explode"`,
		},
		{
			name: "missing value",
			yaml: "name: x\nsources: [{name: a, partitions: 1, columns: {foo: [1]}}]\n" +
				"steps: [{name: f, op: field, input: a, field: foo}, {name: s, op: scale, input: f}]\n" +
				"outputs: [{name: o, input: s}]\n",
			want: `step "s": value is required`,
		},
		{
			name: "duplicate name",
			yaml: "name: x\nsources: [{name: a, partitions: 1, columns: {foo: [1]}}]\n" +
				"steps: [{name: a, op: field, input: a, field: foo}]\noutputs: [{name: o, input: a}]\n",
			want: `step "a": name already defined`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuildNamesLayersAfterSteps(t *testing.T) {
	p, err := Load("testdata/events.yaml")
	require.NoError(t, err)
	b, err := Build(context.Background(), p)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, []string{
		"baz", "doubled", "events", "foo", "foo_sum", "foo_sum-sum-chunk",
		"total", "write-doubled", "write-foo_sum", "y",
	}, b.Graph.Names())
	assert.Equal(t, []ir.Key{
		ir.K("write-doubled", 0), ir.K("write-doubled", 1), ir.K("write-foo_sum", 0),
	}, b.Keys)
	assert.Equal(t, "doubled", b.Layers["doubled"])
	assert.Equal(t, "foo_sum", b.Layers["foo_sum"])
	assert.Equal(t, "y", b.Layers["y"])

	out, _ := b.Graph.Layer("write-doubled")
	assert.True(t, out.Annotations().IsOutput())
}

func TestBuildAndRun(t *testing.T) {
	p, err := Load("testdata/events.yaml")
	require.NoError(t, err)
	b, err := Build(context.Background(), p)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	g, err := optimizer.New(optimizer.DefaultConfig()).AllOptimizations(ctx, b.Graph, b.Keys)
	require.NoError(t, err)
	_, err = engine.NewSync().Evaluate(ctx, g, b.Keys)
	require.NoError(t, err)

	assert.Equal(t, []any{columnar.Column{16, 20, 24}, columnar.Column{28, 32, 36}}, b.Sinks["doubled"].Results())
	assert.Equal(t, []any{int64(21)}, b.Sinks["foo_sum"].Results())

	in, _ := g.Layer("events")
	assert.Equal(t, []string{"baz.y", "foo"}, in.(*graph.InputLayer).Columns())
}

func TestBuildSQLiteSource(t *testing.T) {
	dir := t.TempDir()
	tbl := columnar.MustTable(map[string][]int64{"a": {1, 2, 3}, "b": {4, 5, 6}})
	require.NoError(t, source.WriteSQLite(context.Background(), filepath.Join(dir, "data.db"), "t", tbl))

	yaml := `name: sql
sources:
  - name: t
    partitions: 1
    sqlite: {path: data.db, table: t}
steps:
  - {name: a, op: field, input: t, field: a}
  - {name: neg, op: negate, input: a}
outputs:
  - {name: out, input: neg}
`
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data.db"), p.Sources[0].SQLite.Path)

	var queries []string
	b, err := Build(context.Background(), p, WithQueryHook(func(q string) { queries = append(queries, q) }))
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	g, err := optimizer.New(optimizer.DefaultConfig()).AllOptimizations(ctx, b.Graph, b.Keys)
	require.NoError(t, err)
	_, err = engine.NewSync().Evaluate(ctx, g, b.Keys)
	require.NoError(t, err)

	assert.Equal(t, []any{columnar.Column{-1, -2, -3}}, b.Sinks["out"].Results())
	assert.Equal(t, []string{`SELECT "a" FROM "t" ORDER BY rowid LIMIT ? OFFSET ?`}, queries)
	assert.NoError(t, b.Close())
}

func TestBuildReportsSourceErrors(t *testing.T) {
	p := &Pipeline{
		Name:    "bad",
		Sources: []Source{{Name: "t", Partitions: 1, Columns: map[string][]int64{"a": {1}, "b": {1, 2}}}},
		Outputs: []Output{{Name: "o", Input: "t"}},
	}
	_, err := Build(context.Background(), p)
	assert.ErrorContains(t, err, `source "t"`)
}

func TestBuildReportsStepErrors(t *testing.T) {
	p, err := Parse([]byte(`name: x
sources: [{name: a, partitions: 1, columns: {foo: [1]}}]
steps: [{name: s, op: field, input: a, field: nope}]
outputs: [{name: o, input: s}]
`))
	require.NoError(t, err)
	_, err = Build(context.Background(), p)
	assert.ErrorContains(t, err, `step "s": collection a has no field "nope"`)
}
