// Package columnar holds the in-memory record arrays that real graph runs
// operate on. A Table stores each leaf column as its own int64 slice, keyed
// by dotted path, so reading a subset of columns never touches the rest.
package columnar

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/colgraph/internal/tracer"
)

// Column is a single leaf column.
type Column []int64

// Mock returns the dataless counterpart of the column.
func (c Column) Mock() any { return tracer.Derived(tracer.Int64()) }

// Table is a record array stored column by column.
type Table struct {
	length  int
	columns map[string][]int64
}

// NewTable builds a table from dotted column paths. All columns must have
// the same length and the paths must form a valid record structure.
func NewTable(columns map[string][]int64) (*Table, error) {
	names := sortedKeys(columns)
	if _, err := tracer.FormFromColumns(names); err != nil {
		return nil, err
	}
	t := &Table{columns: make(map[string][]int64, len(columns))}
	for i, name := range names {
		col := columns[name]
		if i == 0 {
			t.length = len(col)
		} else if len(col) != t.length {
			return nil, fmt.Errorf("column %q has length %d, want %d", name, len(col), t.length)
		}
		t.columns[name] = slices.Clone(col)
	}
	return t, nil
}

// MustTable is like NewTable but panics on error. Use only in tests.
func MustTable(columns map[string][]int64) *Table {
	t, err := NewTable(columns)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.length }

// Columns returns the leaf column paths in sorted order.
func (t *Table) Columns() []string { return sortedKeys(t.columns) }

// Column returns a leaf column by dotted path.
func (t *Table) Column(path string) (Column, bool) {
	col, ok := t.columns[path]
	return Column(col), ok
}

// Form returns the table's record form.
func (t *Table) Form() *tracer.Form {
	form, _ := tracer.FormFromColumns(t.Columns())
	return form
}

// Mock returns the dataless counterpart of the table.
func (t *Table) Mock() any { return tracer.Derived(t.Form()) }

// Field returns a direct field: a Column for leaves, a *Table for nested
// records.
func (t *Table) Field(name string) (any, error) {
	if col, ok := t.columns[name]; ok {
		return Column(col), nil
	}
	prefix := name + "."
	sub := &Table{length: t.length, columns: make(map[string][]int64)}
	for path, col := range t.columns {
		if rest, ok := strings.CutPrefix(path, prefix); ok {
			sub.columns[rest] = col
		}
	}
	if len(sub.columns) == 0 {
		return nil, fmt.Errorf("no field %q in table with columns %v", name, t.Columns())
	}
	return sub, nil
}

// Select returns a table holding only the given columns.
// A nil list selects everything.
func (t *Table) Select(columns []string) (*Table, error) {
	if columns == nil {
		return t, nil
	}
	out := &Table{length: t.length, columns: make(map[string][]int64, len(columns))}
	for _, c := range columns {
		col, ok := t.columns[c]
		if !ok {
			return nil, fmt.Errorf("unknown column %q", c)
		}
		out.columns[c] = col
	}
	return out, nil
}

// Slice returns rows [start, end) as a new table sharing no storage.
func (t *Table) Slice(start, end int) (*Table, error) {
	if start < 0 || end > t.length || start > end {
		return nil, fmt.Errorf("slice [%d:%d] out of range for %d rows", start, end, t.length)
	}
	out := &Table{length: end - start, columns: make(map[string][]int64, len(t.columns))}
	for name, col := range t.columns {
		out.columns[name] = slices.Clone(col[start:end])
	}
	return out, nil
}

// Concat appends tables with identical columns.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return &Table{columns: map[string][]int64{}}, nil
	}
	want := tables[0].Columns()
	out := &Table{columns: make(map[string][]int64, len(want))}
	for i, t := range tables {
		if !slices.Equal(t.Columns(), want) {
			return nil, fmt.Errorf("table %d has columns %v, want %v", i, t.Columns(), want)
		}
		for name, col := range t.columns {
			out.columns[name] = append(out.columns[name], col...)
		}
		out.length += t.length
	}
	return out, nil
}

func (t *Table) String() string {
	return fmt.Sprintf("table[%d rows]%v", t.length, t.Columns())
}

func sortedKeys(m map[string][]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
