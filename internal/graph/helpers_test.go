package graph

import (
	"context"
	"fmt"

	"github.com/roach88/colgraph/internal/ir"
	"github.com/roach88/colgraph/internal/tracer"
)

// stubSource serves the same value for every partition and records reads.
type stubSource struct {
	form  *tracer.Form
	parts int
	reads [][]string
}

func newStubSource(parts int, columns ...string) *stubSource {
	form, err := tracer.FormFromColumns(columns)
	if err != nil {
		panic(err)
	}
	return &stubSource{form: form, parts: parts}
}

func (s *stubSource) Name() string       { return "stub" }
func (s *stubSource) Form() *tracer.Form { return s.form }
func (s *stubSource) Partitions() int    { return s.parts }

func (s *stubSource) Read(_ context.Context, partition int, columns []string) (any, error) {
	s.reads = append(s.reads, columns)
	return fmt.Sprintf("partition-%d", partition), nil
}

var concat = ir.NewFunc("concat", func(_ context.Context, args []any) (any, error) {
	out := ""
	for _, a := range args {
		out += fmt.Sprint(a)
	}
	return out, nil
})

func mustBlockwise(b *BlockwiseBuilder) *BlockwiseLayer {
	l, err := b.Build()
	if err != nil {
		panic(err)
	}
	return l
}

// mapLayer builds a one-step blockwise layer reading parent partition-wise.
func mapLayer(name, parent string, parts int, fn ir.Func) *BlockwiseLayer {
	return mustBlockwise(NewBlockwise(name, parts).Indices(Partitioned(parent)).Apply(fn))
}

// noResolver resolves only literals.
type noResolver struct{}

func (noResolver) Slot(int) (any, error)         { return nil, fmt.Errorf("no slots") }
func (noResolver) Step(string) (any, error)      { return nil, fmt.Errorf("no steps") }
func (noResolver) Partition(ir.Key) (any, error) { return nil, fmt.Errorf("no partitions") }
