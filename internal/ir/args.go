package ir

// Arg is a single argument slot of a Task.
//
// Arg is a sealed interface; only types in this package implement it.
// The variants are:
//   - Literal: a plain value passed through unchanged
//   - SlotRef: the n-th positional input of a blockwise subgraph
//   - StepRef: the output of an earlier step inside a fused subgraph
//   - PartitionRef: the output of another task in the graph
//   - ArgList: a nested list (or tuple) of arguments
type Arg interface {
	arg() // sealed marker
}

// Literal passes Value to the callable unchanged.
type Literal struct {
	Value any
}

// SlotRef refers to the Index-th input slot of a blockwise layer.
type SlotRef struct {
	Index int
}

// StepRef refers to the output of a named step within the same subgraph.
type StepRef struct {
	Name string
}

// PartitionRef refers to the output of another task.
type PartitionRef struct {
	Key Key
}

// ArgList is a nested argument list. Tuple records whether the original
// container was a tuple; both resolve to []any.
type ArgList struct {
	Elems []Arg
	Tuple bool
}

func (Literal) arg()      {}
func (SlotRef) arg()      {}
func (StepRef) arg()      {}
func (PartitionRef) arg() {}
func (ArgList) arg()      {}

// Lit wraps a value in a Literal.
func Lit(v any) Literal { return Literal{Value: v} }

// Slot refers to input slot i.
func Slot(i int) SlotRef { return SlotRef{Index: i} }

// Ref refers to partition p of layer.
func Ref(layer string, p int) PartitionRef { return PartitionRef{Key: K(layer, p)} }

// List builds a list argument.
func List(elems ...Arg) ArgList { return ArgList{Elems: elems} }

// Tuple builds a tuple argument.
func Tuple(elems ...Arg) ArgList { return ArgList{Elems: elems, Tuple: true} }

// ArgKeys returns every PartitionRef key reachable from args, in order of
// appearance. Duplicates are kept.
func ArgKeys(args []Arg) []Key {
	var keys []Key
	WalkArgs(args, func(a Arg) {
		if ref, ok := a.(PartitionRef); ok {
			keys = append(keys, ref.Key)
		}
	})
	return keys
}

// WalkArgs visits every argument depth-first, descending into ArgList.
func WalkArgs(args []Arg, fn func(Arg)) {
	for _, a := range args {
		fn(a)
		if list, ok := a.(ArgList); ok {
			WalkArgs(list.Elems, fn)
		}
	}
}

// MapArgs rebuilds args bottom-up, replacing each non-list argument with fn(arg).
// Lists are copied, never shared with the input.
func MapArgs(args []Arg, fn func(Arg) Arg) []Arg {
	out := make([]Arg, len(args))
	for i, a := range args {
		if list, ok := a.(ArgList); ok {
			out[i] = ArgList{Elems: MapArgs(list.Elems, fn), Tuple: list.Tuple}
			continue
		}
		out[i] = fn(a)
	}
	return out
}
