// Package graph implements the layered task graph that colgraph optimizes
// and evaluates.
//
// A Graph is a set of named layers plus a dependency map between them. Each
// layer expands to one task per output partition, addressed by ir.Key.
// Three layer kinds exist:
//
//   - InputLayer reads partitions from an IOSource and can be narrowed to
//     a subset of columns (column projection)
//   - BlockwiseLayer applies a small subgraph of steps partition by
//     partition; linear chains of these can be fused into one
//   - OpaqueLayer holds an explicit task map and supports no rewrites
//
// Optimizers discover what a layer supports through the capability
// interfaces Projectable, Mockable, TouchAller and TaskMapper rather than by
// inspecting concrete types.
//
// Graphs and layers are immutable. Every rewrite returns a new value and
// leaves the original usable.
package graph
