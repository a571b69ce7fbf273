package tracer

import "fmt"

// Array is a dataless array or record.
//
// Arrays created by New are rooted at an input and report touches to it.
// Arrays created by Derived stand for computed results; touching them has
// no effect because their inputs were already touched when they were made.
type Array struct {
	form   *Form
	path   string
	report *Report
}

// New creates a tracer rooted at an input whose touches land in report.
func New(form *Form, report *Report) *Array {
	return &Array{form: form, report: report}
}

// Derived creates a tracer for a computed value of the given form.
func Derived(form *Form) *Array {
	return &Array{form: form}
}

// Form returns the array's form.
func (a *Array) Form() *Form { return a.form }

// Path returns the dotted column path from the input root, or "" at the root.
func (a *Array) Path() string { return a.path }

// IsRecord reports whether the array holds records.
func (a *Array) IsRecord() bool { return a.form.IsRecord() }

// Field navigates to a record field. Navigation itself touches nothing.
func (a *Array) Field(name string) (*Array, error) {
	sub, ok := a.form.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("no field %q in %s", name, a.form)
	}
	return &Array{form: sub, path: join(a.path, name), report: a.report}, nil
}

// TouchData marks every leaf column below this array as used.
func (a *Array) TouchData() {
	if a.report == nil {
		return
	}
	for _, col := range a.form.Columns() {
		a.report.Touch(join(a.path, col))
	}
}

func (a *Array) String() string {
	if a.path == "" {
		return "tracer<" + a.form.String() + ">"
	}
	return "tracer<" + a.path + ": " + a.form.String() + ">"
}
