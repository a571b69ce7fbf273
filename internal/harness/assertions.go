package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/colgraph/internal/columnar"
	"github.com/roach88/colgraph/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// EvaluateAssertions runs every assertion against the result and returns
// the failure messages in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %s", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertColumns:
		return assertColumns(result, a)
	case AssertChains:
		return assertChains(result, a)
	case AssertLayerCount:
		return assertCount(AssertLayerCount, a.Count, result.Report.LayersAfter)
	case AssertTaskCount:
		return assertCount(AssertTaskCount, a.Count, len(result.Trace))
	case AssertOutput:
		return assertOutput(result, a)
	case AssertWarning:
		if !strings.Contains(result.Report.Warning, a.Contains) {
			return &AssertionError{
				Type:     AssertWarning,
				Expected: fmt.Sprintf("warning containing %q", a.Contains),
				Actual:   fmt.Sprintf("%q", result.Report.Warning),
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertColumns(result *Result, a Assertion) error {
	got, ok := result.Columns[a.Layer]
	if !ok {
		return &AssertionError{
			Type:     AssertColumns,
			Expected: fmt.Sprintf("input layer %s", a.Layer),
			Actual:   fmt.Sprintf("input layers %v", sortedNames(result.Columns)),
		}
	}
	if !slices.Equal(got, a.Columns) {
		return &AssertionError{
			Type:     AssertColumns,
			Expected: fmt.Sprintf("%s reads %v", a.Layer, a.Columns),
			Actual:   fmt.Sprintf("%s reads %v", a.Layer, got),
		}
	}
	return nil
}

func assertChains(result *Result, a Assertion) error {
	got := result.Report.Chains
	if !slices.EqualFunc(got, a.Chains, slices.Equal[[]string]) {
		return &AssertionError{
			Type:     AssertChains,
			Expected: fmt.Sprintf("chains %v", a.Chains),
			Actual:   fmt.Sprintf("chains %v", got),
		}
	}
	return nil
}

func assertCount(kind string, want, got int) error {
	if want != got {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%d", want),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

func assertOutput(result *Result, a Assertion) error {
	values, ok := result.Outputs[a.Output]
	if !ok {
		return &AssertionError{
			Type:     AssertOutput,
			Expected: fmt.Sprintf("output %s", a.Output),
			Actual:   fmt.Sprintf("outputs %v", sortedNames(result.Outputs)),
		}
	}
	got, err := canonicalString(values)
	if err != nil {
		return fmt.Errorf("output %s: %w", a.Output, err)
	}
	want, err := canonicalString(a.Values)
	if err != nil {
		return fmt.Errorf("expected values: %w", err)
	}
	if got != want {
		return &AssertionError{
			Type:     AssertOutput,
			Expected: fmt.Sprintf("%s = %s", a.Output, want),
			Actual:   fmt.Sprintf("%s = %s", a.Output, got),
		}
	}
	return nil
}

func canonicalString(v any) (string, error) {
	n, err := normalize(v)
	if err != nil {
		return "", err
	}
	b, err := ir.MarshalCanonical(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// normalize converts partition values and YAML-decoded expectations to the
// types ir.MarshalCanonical accepts.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case int:
		return int64(val), nil
	case int64:
		return val, nil
	case columnar.Column:
		return []int64(val), nil
	case []int64:
		return val, nil
	case *columnar.Table:
		cols := make(map[string]any, len(val.Columns()))
		for _, name := range val.Columns() {
			c, _ := val.Column(name)
			cols[name] = []int64(c)
		}
		return cols, nil
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
