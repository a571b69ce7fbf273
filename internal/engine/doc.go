// Package engine evaluates task graphs.
//
// Sync is the reference evaluator: it computes the requested keys
// depth-first on the calling goroutine, running every task at most once and
// memoizing results. It is used both for real runs and for the dataless dry
// run that column projection performs.
//
// Errors raised by tasks are wrapped in *EvaluationError, which records the
// failing key and unwraps to the original error. Panics inside tasks are
// recovered and reported the same way.
package engine
