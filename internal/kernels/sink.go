package kernels

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/colgraph/internal/ir"
	"github.com/roach88/colgraph/internal/tracer"
)

// Sink collects partition results written by an output layer.
// Tasks call it as write(value, partition). Tracer values are dropped, so a
// dry run never pollutes the collected results.
type Sink struct {
	name string

	mu    sync.Mutex
	parts map[int]any
}

// NewSink creates an empty sink.
func NewSink(name string) *Sink {
	return &Sink{name: name, parts: make(map[int]any)}
}

// Name returns the sink name.
func (s *Sink) Name() string { return s.name }

// Func returns the write callable bound to this sink.
func (s *Sink) Func() ir.Func {
	return ir.NewFunc("write-"+s.name, func(_ context.Context, args []any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("write: want 2 args, got %d", len(args))
		}
		if tracer.IsTracer(args[0]) {
			return nil, nil
		}
		p, ok := args[1].(int)
		if !ok {
			return nil, fmt.Errorf("write: partition must be an int, got %T", args[1])
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.parts[p] = args[0]
		return nil, nil
	})
}

// Results returns the written values in partition order.
func (s *Sink) Results() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]int, 0, len(s.parts))
	for k := range s.parts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = s.parts[k]
	}
	return out
}
