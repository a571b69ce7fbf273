package ir

import (
	"context"
	"fmt"
)

// Impl is the body of a task callable. Arguments arrive fully resolved.
type Impl func(ctx context.Context, args []any) (any, error)

// Func is a named callable. The name is what summaries and logs show;
// Impl is what the evaluator runs.
type Func struct {
	Name string
	Impl Impl
}

// NewFunc creates a named callable.
func NewFunc(name string, impl Impl) Func {
	return Func{Name: name, Impl: impl}
}

// Call invokes the callable with resolved arguments.
func (f Func) Call(ctx context.Context, args []any) (any, error) {
	if f.Impl == nil {
		return nil, fmt.Errorf("func %q has no implementation", f.Name)
	}
	return f.Impl(ctx, args)
}

// Task is one unit of work: a callable applied to arguments.
type Task struct {
	Func Func
	Args []Arg
}

// NewTask creates a task.
func NewTask(fn Func, args ...Arg) Task {
	return Task{Func: fn, Args: args}
}

// WithFunc returns a copy of the task calling fn on the same arguments.
func (t Task) WithFunc(fn Func) Task {
	return Task{Func: fn, Args: t.Args}
}

// Keys returns the partition keys this task reads.
func (t Task) Keys() []Key {
	return ArgKeys(t.Args)
}

// Resolver supplies values for the reference variants of Arg.
// Implementations return an error for variants they do not support.
type Resolver interface {
	Slot(i int) (any, error)
	Step(name string) (any, error)
	Partition(k Key) (any, error)
}

// Resolve converts an argument into the value handed to a callable.
func Resolve(a Arg, r Resolver) (any, error) {
	switch v := a.(type) {
	case Literal:
		return v.Value, nil
	case SlotRef:
		return r.Slot(v.Index)
	case StepRef:
		return r.Step(v.Name)
	case PartitionRef:
		return r.Partition(v.Key)
	case ArgList:
		out := make([]any, len(v.Elems))
		for i, elem := range v.Elems {
			val, err := Resolve(elem, r)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported argument type %T", a)
	}
}

// ResolveAll resolves a full argument list.
func ResolveAll(args []Arg, r Resolver) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		val, err := Resolve(a, r)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		out[i] = val
	}
	return out, nil
}
