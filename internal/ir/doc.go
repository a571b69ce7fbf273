// Package ir provides the task-level representation shared by every colgraph
// package: partition keys, task arguments and callables, plus the canonical
// JSON encoding used for graph fingerprints.
//
// This package imports nothing internal. Graph layers, the evaluator and the
// optimizer all speak in terms of ir.Key and ir.Task.
//
// Key design constraints:
//   - Task arguments are a closed set of variants (see Arg)
//   - References to other partitions are explicit (PartitionRef), never inferred
//     from the shape of a literal
//   - Canonical JSON forbids floats and null so fingerprints stay stable
package ir
