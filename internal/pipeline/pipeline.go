// Package pipeline describes computations in YAML and builds them into
// layer graphs.
//
// A pipeline names its sources, a list of steps over sources and earlier
// steps, and the outputs to write:
//
//	name: totals
//	sources:
//	  - name: events
//	    partitions: 2
//	    sqlite: {path: events.db, table: events}
//	steps:
//	  - {name: foo, op: field, input: events, field: foo}
//	  - {name: doubled, op: scale, input: foo, value: 2}
//	outputs:
//	  - {name: result, input: doubled}
package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Pipeline is a parsed pipeline file.
type Pipeline struct {
	// Name identifies the pipeline.
	Name string `yaml:"name"`

	// Description is free text.
	Description string `yaml:"description,omitempty"`

	// Sources lists the inputs.
	Sources []Source `yaml:"sources"`

	// Steps run in order; each reads a source or an earlier step.
	Steps []Step `yaml:"steps"`

	// Outputs are written to named sinks.
	Outputs []Output `yaml:"outputs"`
}

// Source is either inline columns or a SQLite table.
type Source struct {
	Name       string `yaml:"name"`
	Partitions int    `yaml:"partitions"`

	// Columns holds inline data keyed by dotted column path.
	Columns map[string][]int64 `yaml:"columns,omitempty"`

	// SQLite reads a table of INTEGER columns.
	SQLite *SQLiteSource `yaml:"sqlite,omitempty"`

	// Projectable defaults to true.
	Projectable *bool `yaml:"projectable,omitempty"`
}

// SQLiteSource locates a table. Relative paths resolve against the
// pipeline file's directory.
type SQLiteSource struct {
	Path  string `yaml:"path"`
	Table string `yaml:"table"`
}

// Step is one operation.
type Step struct {
	Name  string `yaml:"name"`
	Op    string `yaml:"op"`
	Input string `yaml:"input"`

	// Field is the field name for field steps.
	Field string `yaml:"field,omitempty"`

	// Other is the second operand for add steps.
	Other string `yaml:"other,omitempty"`

	// Value is the constant for scale and offset steps.
	Value *int64 `yaml:"value,omitempty"`
}

// Output writes a step or source to a sink.
type Output struct {
	Name  string `yaml:"name"`
	Input string `yaml:"input"`
}

// Step operations.
const (
	OpField  = "field"
	OpAdd    = "add"
	OpScale  = "scale"
	OpOffset = "offset"
	OpNegate = "negate"
	OpSum    = "sum"
)

var validOps = []string{OpAdd, OpField, OpNegate, OpOffset, OpScale, OpSum}

// Load reads and validates a pipeline file. Relative SQLite paths are
// resolved against the file's directory.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	for i := range p.Sources {
		if s := p.Sources[i].SQLite; s != nil && !filepath.IsAbs(s.Path) {
			s.Path = filepath.Join(base, s.Path)
		}
	}
	return p, nil
}

// Parse decodes and validates pipeline YAML. Unknown fields are rejected.
func Parse(data []byte) (*Pipeline, error) {
	var p Pipeline
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline: %w", err)
	}
	return &p, nil
}

// Validate checks names, references and per-operation fields. Steps may
// only read names defined before them, so pipelines are acyclic.
func (p *Pipeline) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	if len(p.Outputs) == 0 {
		return fmt.Errorf("at least one output is required")
	}

	defined := make(map[string]bool)
	define := func(kind, name string) error {
		if name == "" {
			return fmt.Errorf("%s name is required", kind)
		}
		if defined[name] {
			return fmt.Errorf("%s %q: name already defined", kind, name)
		}
		defined[name] = true
		return nil
	}
	ref := func(kind, owner, field, name string) error {
		if name == "" {
			return fmt.Errorf("%s %q: %s is required", kind, owner, field)
		}
		if !defined[name] {
			return fmt.Errorf("%s %q: %s %q is not a source or earlier step", kind, owner, field, name)
		}
		return nil
	}

	for _, s := range p.Sources {
		if err := define("source", s.Name); err != nil {
			return err
		}
		if s.Partitions < 1 {
			return fmt.Errorf("source %q: partitions must be at least 1", s.Name)
		}
		if (s.Columns == nil) == (s.SQLite == nil) {
			return fmt.Errorf("source %q: exactly one of columns or sqlite is required", s.Name)
		}
		if s.SQLite != nil && (s.SQLite.Path == "" || s.SQLite.Table == "") {
			return fmt.Errorf("source %q: sqlite needs path and table", s.Name)
		}
	}

	for _, st := range p.Steps {
		if err := ref("step", st.Name, "input", st.Input); err != nil {
			return err
		}
		if !slices.Contains(validOps, st.Op) {
			return fmt.Errorf("step %q: unknown op %q (valid: %v)", st.Name, st.Op, validOps)
		}
		switch st.Op {
		case OpField:
			if st.Field == "" {
				return fmt.Errorf("step %q: field is required", st.Name)
			}
		case OpAdd:
			if err := ref("step", st.Name, "other", st.Other); err != nil {
				return err
			}
		case OpScale, OpOffset:
			if st.Value == nil {
				return fmt.Errorf("step %q: value is required", st.Name)
			}
		}
		if err := define("step", st.Name); err != nil {
			return err
		}
	}

	sinks := make(map[string]bool)
	for _, o := range p.Outputs {
		if o.Name == "" {
			return fmt.Errorf("output name is required")
		}
		if sinks[o.Name] {
			return fmt.Errorf("output %q: name already defined", o.Name)
		}
		sinks[o.Name] = true
		if err := ref("output", o.Name, "input", o.Input); err != nil {
			return err
		}
	}
	return nil
}
