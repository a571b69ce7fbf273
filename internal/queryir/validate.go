package queryir

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed query.
type ValidationError struct {
	Query   string // query type, e.g. "scan"
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Query, e.Message)
}

// Validate checks the structural rules every backend relies on:
//  1. A table name is always present
//  2. Column lists are explicit, non-empty and free of duplicates
//  3. Scan ranges are non-negative
//
// All violations are reported, joined with errors.Join.
func Validate(q Query) error {
	v := &validator{}
	switch query := q.(type) {
	case Scan:
		v.kind = "scan"
		v.table(query.Table)
		v.columns(query.Columns)
		if query.Limit < 0 {
			v.fail("limit %d is negative", query.Limit)
		}
		if query.Offset < 0 {
			v.fail("offset %d is negative", query.Offset)
		}
	case Count:
		v.kind = "count"
		v.table(query.Table)
	case Create:
		v.kind = "create"
		v.table(query.Table)
		v.columns(query.Columns)
	case Insert:
		v.kind = "insert"
		v.table(query.Table)
		v.columns(query.Columns)
	case nil:
		return &ValidationError{Query: "query", Message: "query is nil"}
	default:
		return &ValidationError{Query: "query", Message: fmt.Sprintf("unsupported query type %T", q)}
	}
	return errors.Join(v.errs...)
}

// validator accumulates errors for one query.
type validator struct {
	kind string
	errs []error
}

func (v *validator) fail(format string, args ...any) {
	v.errs = append(v.errs, &ValidationError{Query: v.kind, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) table(name string) {
	if name == "" {
		v.fail("table name is required")
	}
}

func (v *validator) columns(cols []string) {
	if len(cols) == 0 {
		v.fail("column list is required")
		return
	}
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if c == "" {
			v.fail("empty column name")
			continue
		}
		if seen[c] {
			v.fail("duplicate column %q", c)
		}
		seen[c] = true
	}
}
