// Package config loads optimizer settings from CUE files.
//
// A config file sets any subset of the optimization block:
//
//	optimization: {
//		enabled: true
//		which: ["columns", "layer-chains"]
//		"on-fail": "warn"
//	}
//
// The file is unified with an embedded schema that supplies defaults and
// rejects unknown fields at every level.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/colgraph/internal/optimizer"
)

//go:embed schema.cue
var schemaCUE string

// Error reports an invalid config file, with the CUE position when known.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads and parses the config file at path.
func Load(path string) (optimizer.Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return optimizer.Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(src, path)
}

// Parse parses CUE source. filename is used in error positions.
// An empty source yields the defaults.
func Parse(src []byte, filename string) (optimizer.Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return optimizer.Config{}, fmt.Errorf("compile embedded schema: %w", err)
	}
	file := ctx.CompileBytes(src, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return optimizer.Config{}, formatCUEError(err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(file)
	if err := v.Err(); err != nil {
		return optimizer.Config{}, formatCUEError(err)
	}
	if err := v.Validate(); err != nil {
		return optimizer.Config{}, formatCUEError(err)
	}

	var cfg optimizer.Config
	enabled, err := lookup(v, "enabled").Bool()
	if err != nil {
		return optimizer.Config{}, formatCUEError(err)
	}
	cfg.Enabled = enabled

	iter, err := lookup(v, "which").List()
	if err != nil {
		return optimizer.Config{}, formatCUEError(err)
	}
	cfg.Which = []optimizer.Pass{}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return optimizer.Config{}, formatCUEError(err)
		}
		cfg.Which = append(cfg.Which, optimizer.Pass(s))
	}

	onFail, err := lookup(v, "on-fail").String()
	if err != nil {
		return optimizer.Config{}, formatCUEError(err)
	}
	cfg.OnFail = optimizer.OnFail(onFail)

	if err := cfg.Validate(); err != nil {
		return optimizer.Config{}, err
	}
	return cfg, nil
}

// lookup returns optimization.<field>, resolved to its default when the
// file leaves it open.
func lookup(v cue.Value, field string) cue.Value {
	f := v.LookupPath(cue.MakePath(cue.Str("optimization"), cue.Str(field)))
	if d, ok := f.Default(); ok {
		return d
	}
	return f
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	e := &Error{Field: "cue", Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}
