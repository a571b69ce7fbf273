// Package optimizer rewrites task graphs before they are evaluated.
//
// Two passes are provided:
//
//   - Column projection (ProjectColumns) dry-runs the graph on tracer
//     arrays, collects the columns each input actually reads, and narrows
//     every projectable input layer to those columns.
//   - Layer-chain fusion (FuseChains) merges each maximal linear chain of
//     blockwise layers into a single blockwise layer, so one task per
//     partition replaces one task per partition per layer.
//
// An Optimizer applies the passes selected by its Config in a fixed order:
// columns first, then layer chains. Column projection is best effort. If the
// dry run fails, the on-fail policy decides whether to warn, stay silent or
// return the error, and the original graph is kept in the first two cases.
package optimizer
