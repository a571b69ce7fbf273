// Package tracer provides dataless stand-ins for columnar arrays.
//
// A tracer Array carries a Form (the nested type of the data) and the column
// path it was reached through, but no values. Kernels that would read values
// from a real array instead call TouchData on the tracer, which records the
// affected leaf columns in the Report of the input that produced it. Running a
// graph on tracers therefore yields, per input, the exact set of columns a
// real run would read.
//
// Only data touches are recorded. Navigating to a field (Field) or inspecting
// a form never counts as use.
package tracer
