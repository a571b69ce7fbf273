package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/colgraph/internal/collection"
	"github.com/roach88/colgraph/internal/columnar"
	"github.com/roach88/colgraph/internal/graph"
	"github.com/roach88/colgraph/internal/ir"
	"github.com/roach88/colgraph/internal/kernels"
	"github.com/roach88/colgraph/internal/source"
)

// Built is a pipeline turned into a graph.
type Built struct {
	// Graph holds every layer of every output.
	Graph *graph.Graph

	// Keys are the output keys, in output order.
	Keys []ir.Key

	// Sinks collect output partitions by output name.
	Sinks map[string]*kernels.Sink

	// Layers maps each source and step name to the layer producing it.
	Layers map[string]string

	closers []io.Closer
}

// Close releases any open SQLite sources.
func (b *Built) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c.Close())
	}
	b.closers = nil
	return errors.Join(errs...)
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	logger  *slog.Logger
	onQuery func(string)
}

// WithLogger sets the logger handed to SQLite sources.
func WithLogger(l *slog.Logger) BuildOption {
	return func(o *buildOptions) { o.logger = l }
}

// WithQueryHook observes every SELECT issued by SQLite sources.
func WithQueryHook(fn func(query string)) BuildOption {
	return func(o *buildOptions) { o.onQuery = fn }
}

// Build opens the sources and assembles the graph. Layers are named after
// the sources, steps and outputs that produce them; helper layers get the
// step name plus a suffix. The caller must Close the result.
func Build(ctx context.Context, p *Pipeline, opts ...BuildOption) (*Built, error) {
	o := buildOptions{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	b := &Built{Sinks: make(map[string]*kernels.Sink), Layers: make(map[string]string)}
	namer := &stepNamer{}
	colls := make(map[string]*collection.Collection)

	for _, s := range p.Sources {
		src, err := b.openSource(ctx, s, o)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("source %q: %w", s.Name, err)
		}
		copts := []collection.Option{collection.WithNamer(namer)}
		if s.Projectable != nil && !*s.Projectable {
			copts = append(copts, collection.NotProjectable())
		}
		namer.reset(s.Name)
		colls[s.Name] = collection.FromSource(src, copts...)
	}

	for _, st := range p.Steps {
		namer.reset(st.Name)
		c, err := applyStep(st, colls)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("step %q: %w", st.Name, err)
		}
		colls[st.Name] = c
	}

	outs := make([]*collection.Collection, 0, len(p.Outputs))
	for _, out := range p.Outputs {
		sink := kernels.NewSink(out.Name)
		namer.reset("write-" + out.Name)
		c, err := colls[out.Input].Output(sink)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("output %q: %w", out.Name, err)
		}
		b.Sinks[out.Name] = sink
		outs = append(outs, c)
	}

	g, keys, err := collection.Merge(outs...)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Graph, b.Keys = g, keys
	for name, c := range colls {
		b.Layers[name] = c.Name()
	}
	return b, nil
}

func (b *Built) openSource(ctx context.Context, s Source, o buildOptions) (graph.IOSource, error) {
	if s.SQLite != nil {
		sopts := []source.SQLiteOption{source.WithSQLiteLogger(o.logger)}
		if o.onQuery != nil {
			sopts = append(sopts, source.WithQueryHook(o.onQuery))
		}
		src, err := source.OpenSQLite(ctx, s.SQLite.Path, s.SQLite.Table, s.Partitions, sopts...)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, src)
		return src, nil
	}
	tbl, err := columnar.NewTable(s.Columns)
	if err != nil {
		return nil, err
	}
	return source.NewMemory(s.Name, tbl, s.Partitions)
}

func applyStep(st Step, colls map[string]*collection.Collection) (*collection.Collection, error) {
	in := colls[st.Input]
	switch st.Op {
	case OpField:
		return in.Field(st.Field)
	case OpAdd:
		return in.Add(colls[st.Other])
	case OpScale:
		return in.Scale(*st.Value)
	case OpOffset:
		return in.Offset(*st.Value)
	case OpNegate:
		return in.Negate()
	case OpSum:
		return in.Sum()
	default:
		return nil, fmt.Errorf("unknown op %q", st.Op)
	}
}

// stepNamer gives the first layer of each step the step's own name and
// suffixes any helper layers after it.
type stepNamer struct {
	step  string
	calls int
}

func (n *stepNamer) reset(step string) {
	n.step, n.calls = step, 0
}

func (n *stepNamer) Name(prefix string) string {
	n.calls++
	if n.calls == 1 {
		return n.step
	}
	return n.step + "-" + prefix
}
