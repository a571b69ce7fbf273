package tracer

import (
	"fmt"
	"slices"
	"strings"
)

// Kind is the structural category of a Form node.
type Kind int

const (
	KindPrimitive Kind = iota
	KindRecord
	KindList
	KindOption
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindRecord:
		return "record"
	case KindList:
		return "list"
	case KindOption:
		return "option"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Form describes the nested type of a columnar array.
//
// Records carry ordered Fields; lists and options wrap Content. Primitive
// leaves carry a Type name such as "int64". Each leaf corresponds to one
// stored column, addressed by the dotted path of record field names leading
// to it (list and option wrappers are transparent in paths).
type Form struct {
	Kind    Kind
	Type    string
	Fields  []Field
	Content *Form
}

// Field is a named member of a record form.
type Field struct {
	Name string
	Form *Form
}

// Primitive returns a leaf form of the given type.
func Primitive(typ string) *Form { return &Form{Kind: KindPrimitive, Type: typ} }

// Int64 returns an int64 leaf form.
func Int64() *Form { return Primitive("int64") }

// Record returns a record form with the given fields in order.
func Record(fields ...Field) *Form { return &Form{Kind: KindRecord, Fields: fields} }

// ListOf returns a variable-length list form.
func ListOf(content *Form) *Form { return &Form{Kind: KindList, Content: content} }

// OptionOf returns an option (nullable) form.
func OptionOf(content *Form) *Form { return &Form{Kind: KindOption, Content: content} }

// F is shorthand for a record Field.
func F(name string, form *Form) Field { return Field{Name: name, Form: form} }

// unwrap strips list and option wrappers.
func (f *Form) unwrap() *Form {
	for f != nil && (f.Kind == KindList || f.Kind == KindOption) {
		f = f.Content
	}
	return f
}

// IsRecord reports whether the form is a record, ignoring wrappers.
func (f *Form) IsRecord() bool {
	u := f.unwrap()
	return u != nil && u.Kind == KindRecord
}

// Lookup returns the form of a direct record field.
func (f *Form) Lookup(name string) (*Form, bool) {
	u := f.unwrap()
	if u == nil || u.Kind != KindRecord {
		return nil, false
	}
	for _, field := range u.Fields {
		if field.Name == name {
			return field.Form, true
		}
	}
	return nil, false
}

// Columns returns the dotted paths of every leaf column, depth-first in
// field order. A primitive form has a single column with an empty path.
func (f *Form) Columns() []string {
	var out []string
	f.collect("", &out)
	return out
}

func (f *Form) collect(prefix string, out *[]string) {
	u := f.unwrap()
	if u == nil {
		return
	}
	if u.Kind != KindRecord {
		*out = append(*out, prefix)
		return
	}
	for _, field := range u.Fields {
		field.Form.collect(join(prefix, field.Name), out)
	}
}

// Select returns a copy of the form restricted to the given leaf columns.
// Records left with no fields are dropped. Unknown columns are ignored.
func (f *Form) Select(columns []string) *Form {
	keep := make(map[string]bool, len(columns))
	for _, c := range columns {
		keep[c] = true
	}
	out, _ := f.selectPaths("", keep)
	if out == nil {
		return Record()
	}
	return out
}

func (f *Form) selectPaths(prefix string, keep map[string]bool) (*Form, bool) {
	switch f.Kind {
	case KindList, KindOption:
		inner, ok := f.Content.selectPaths(prefix, keep)
		if !ok {
			return nil, false
		}
		return &Form{Kind: f.Kind, Content: inner}, true
	case KindRecord:
		var fields []Field
		for _, field := range f.Fields {
			if sub, ok := field.Form.selectPaths(join(prefix, field.Name), keep); ok {
				fields = append(fields, F(field.Name, sub))
			}
		}
		if len(fields) == 0 {
			return nil, false
		}
		return Record(fields...), true
	default:
		if !keep[prefix] {
			return nil, false
		}
		return Primitive(f.Type), true
	}
}

// String renders the form in a compact type notation, for example
// {foo: int64, baz: {x: int64}} or var * ?int64.
func (f *Form) String() string {
	switch f.Kind {
	case KindRecord:
		parts := make([]string, len(f.Fields))
		for i, field := range f.Fields {
			parts[i] = field.Name + ": " + field.Form.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindList:
		return "var * " + f.Content.String()
	case KindOption:
		return "?" + f.Content.String()
	default:
		return f.Type
	}
}

// FormFromColumns builds a record form of int64 leaves from dotted column
// paths, preserving first-seen field order at each level.
func FormFromColumns(columns []string) (*Form, error) {
	root := Record()
	for _, col := range columns {
		if col == "" {
			return nil, fmt.Errorf("empty column path")
		}
		if err := insertColumn(root, strings.Split(col, ".")); err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
	}
	return root, nil
}

func insertColumn(rec *Form, parts []string) error {
	name := parts[0]
	if name == "" {
		return fmt.Errorf("empty path segment")
	}
	idx := slices.IndexFunc(rec.Fields, func(f Field) bool { return f.Name == name })
	if len(parts) == 1 {
		if idx >= 0 {
			return fmt.Errorf("duplicate or conflicting field %q", name)
		}
		rec.Fields = append(rec.Fields, F(name, Int64()))
		return nil
	}
	if idx < 0 {
		rec.Fields = append(rec.Fields, F(name, Record()))
		idx = len(rec.Fields) - 1
	}
	child := rec.Fields[idx].Form
	if child.Kind != KindRecord {
		return fmt.Errorf("field %q is both a leaf and a record", name)
	}
	return insertColumn(child, parts[1:])
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	if name == "" {
		return prefix
	}
	return prefix + "." + name
}
