// Package kernels provides the named callables that blockwise tasks run.
//
// Every kernel accepts both real values (columnar.Table, columnar.Column,
// int64 scalars) and tracer arrays. On tracers a kernel touches exactly the
// data a real run would read and returns a derived tracer.
package kernels

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/colgraph/internal/columnar"
	"github.com/roach88/colgraph/internal/ir"
	"github.com/roach88/colgraph/internal/tracer"
)

// Kernel names.
const (
	NameField    = "field"
	NameAdd      = "add"
	NameMultiply = "multiply"
	NameNegate   = "negate"
	NameSum      = "sum"
)

var (
	// Field selects a record field: field(x, name).
	Field = ir.NewFunc(NameField, fieldImpl)
	// Add adds two operands elementwise; either may be a scalar.
	Add = ir.NewFunc(NameAdd, binary(func(a, b int64) int64 { return a + b }))
	// Multiply multiplies two operands elementwise; either may be a scalar.
	Multiply = ir.NewFunc(NameMultiply, binary(func(a, b int64) int64 { return a * b }))
	// Negate flips the sign of every element.
	Negate = ir.NewFunc(NameNegate, negateImpl)
	// Sum reduces a column to the total of its elements.
	Sum = ir.NewFunc(NameSum, sumImpl)
	// Combine adds a list of per-partition partial sums into one total.
	Combine = ir.NewFunc("combine", combineImpl)
)

var registry = map[string]ir.Func{
	NameField:    Field,
	NameAdd:      Add,
	NameMultiply: Multiply,
	NameNegate:   Negate,
	NameSum:      Sum,
}

// Lookup returns the kernel registered under name.
func Lookup(name string) (ir.Func, bool) {
	f, ok := registry[name]
	return f, ok
}

// Names returns every registered kernel name in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func fieldImpl(_ context.Context, args []any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("field: want 2 args, got %d", len(args))
	}
	name, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("field: name must be a string, got %T", args[1])
	}
	switch x := args[0].(type) {
	case *tracer.Array:
		return x.Field(name)
	case *columnar.Table:
		return x.Field(name)
	default:
		return nil, fmt.Errorf("field: cannot select %q from %T", name, args[0])
	}
}

func binary(op func(a, b int64) int64) ir.Impl {
	return func(_ context.Context, args []any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("want 2 args, got %d", len(args))
		}
		if anyTracer(args) {
			return traceNumeric(args)
		}
		a, err := toOperand(args[0])
		if err != nil {
			return nil, err
		}
		b, err := toOperand(args[1])
		if err != nil {
			return nil, err
		}
		return a.apply(b, op)
	}
}

func negateImpl(_ context.Context, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("negate: want 1 arg, got %d", len(args))
	}
	if anyTracer(args) {
		return traceNumeric(args)
	}
	a, err := toOperand(args[0])
	if err != nil {
		return nil, err
	}
	return a.apply(operand{scalar: -1, isScalar: true}, func(x, y int64) int64 { return x * y })
}

func sumImpl(_ context.Context, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("sum: want 1 arg, got %d", len(args))
	}
	if anyTracer(args) {
		return traceNumeric(args)
	}
	col, ok := args[0].(columnar.Column)
	if !ok {
		return nil, fmt.Errorf("sum: want a column, got %T", args[0])
	}
	var total int64
	for _, v := range col {
		total += v
	}
	return total, nil
}

func combineImpl(_ context.Context, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("combine: want 1 arg, got %d", len(args))
	}
	partials, ok := args[0].([]any)
	if !ok {
		return nil, fmt.Errorf("combine: want a list of partials, got %T", args[0])
	}
	if anyTracer(partials) {
		return traceNumeric(partials)
	}
	var total int64
	for i, p := range partials {
		v, ok := p.(int64)
		if !ok {
			return nil, fmt.Errorf("combine: partial %d is %T, want int64", i, p)
		}
		total += v
	}
	return total, nil
}

// traceNumeric is the dry-run path of every numeric kernel: all array
// operands are read in full.
func traceNumeric(args []any) (any, error) {
	for _, a := range args {
		if arr, ok := a.(*tracer.Array); ok && arr.IsRecord() {
			return nil, fmt.Errorf("numeric kernel applied to record array %s", arr)
		}
	}
	for _, a := range args {
		tracer.TouchData(a)
	}
	return tracer.Derived(tracer.Int64()), nil
}

func anyTracer(args []any) bool {
	for _, a := range args {
		if tracer.IsTracer(a) {
			return true
		}
	}
	return false
}

type operand struct {
	col      columnar.Column
	scalar   int64
	isScalar bool
}

func toOperand(v any) (operand, error) {
	switch x := v.(type) {
	case columnar.Column:
		return operand{col: x}, nil
	case int64:
		return operand{scalar: x, isScalar: true}, nil
	case int:
		return operand{scalar: int64(x), isScalar: true}, nil
	default:
		return operand{}, fmt.Errorf("unsupported numeric operand %T", v)
	}
}

func (a operand) apply(b operand, op func(x, y int64) int64) (any, error) {
	switch {
	case a.isScalar && b.isScalar:
		return op(a.scalar, b.scalar), nil
	case a.isScalar:
		out := make(columnar.Column, len(b.col))
		for i, v := range b.col {
			out[i] = op(a.scalar, v)
		}
		return out, nil
	case b.isScalar:
		out := make(columnar.Column, len(a.col))
		for i, v := range a.col {
			out[i] = op(v, b.scalar)
		}
		return out, nil
	default:
		if len(a.col) != len(b.col) {
			return nil, fmt.Errorf("length mismatch: %d vs %d", len(a.col), len(b.col))
		}
		out := make(columnar.Column, len(a.col))
		for i := range a.col {
			out[i] = op(a.col[i], b.col[i])
		}
		return out, nil
	}
}
