package optimizer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/colgraph/internal/engine"
	"github.com/roach88/colgraph/internal/graph"
	"github.com/roach88/colgraph/internal/ir"
)

// opaqueLayerName names the single layer wrapping a plain task map.
const opaqueLayerName = "tasks"

// WarningHandler receives the rendered projection failure warning.
type WarningHandler func(message string)

// HostPass is a general-purpose graph pass run by AllOptimizations after the
// columnar passes and before culling. The package ships none; callers
// register their own with WithHostPasses.
type HostPass func(ctx context.Context, g *graph.Graph, keys []ir.Key) (*graph.Graph, error)

// Optimizer applies the configured passes to graphs.
// It holds no per-graph state and is safe for concurrent use if its
// evaluator and warning handler are.
type Optimizer struct {
	cfg        Config
	eval       engine.Evaluator
	logger     *slog.Logger
	warn       WarningHandler
	hostPasses []HostPass
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithEvaluator sets the evaluator used for the projection dry run.
//
// Default: engine.NewSync.
func WithEvaluator(e engine.Evaluator) Option {
	return func(o *Optimizer) { o.eval = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Optimizer) { o.logger = l }
}

// WithWarningHandler replaces the default warning sink, which logs at
// warn level.
func WithWarningHandler(h WarningHandler) Option {
	return func(o *Optimizer) { o.warn = h }
}

// WithHostPasses appends passes run by AllOptimizations before culling.
func WithHostPasses(passes ...HostPass) Option {
	return func(o *Optimizer) { o.hostPasses = append(o.hostPasses, passes...) }
}

// New creates an optimizer for cfg.
func New(cfg Config, opts ...Option) *Optimizer {
	o := &Optimizer{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.eval == nil {
		o.eval = engine.NewSync(engine.WithLogger(o.logger))
	}
	if o.warn == nil {
		logger := o.logger
		o.warn = func(msg string) { logger.Warn(msg) }
	}
	return o
}

// Config returns the optimizer configuration.
func (o *Optimizer) Config() Config { return o.cfg }

// Optimize runs the enabled passes, columns first and then layer chains.
// keys names the outputs the caller will request; layers producing them are
// never fused away.
func (o *Optimizer) Optimize(ctx context.Context, g *graph.Graph, keys []ir.Key) (*graph.Graph, error) {
	g, _, err := o.OptimizeWithReport(ctx, g, keys)
	return g, err
}

// OptimizeWithReport is Optimize, also returning what changed.
func (o *Optimizer) OptimizeWithReport(ctx context.Context, g *graph.Graph, keys []ir.Key) (*graph.Graph, *Report, error) {
	rep := &Report{LayersBefore: g.Len(), LayersAfter: g.Len()}
	if !o.cfg.Enabled {
		return g, rep, nil
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, nil, err
	}
	var err error
	if o.cfg.Runs(PassColumns) {
		g, err = o.projectColumns(ctx, g, rep)
		if err != nil {
			return nil, nil, err
		}
	}
	if o.cfg.Runs(PassLayerChains) {
		protect := keyLayers(keys)
		rep.Chains = Chains(g, protect...)
		g, err = FuseChains(g, protect...)
		if err != nil {
			return nil, nil, fmt.Errorf("layer chain fusion: %w", err)
		}
		o.logger.Debug("fused layer chains", "chains", len(rep.Chains), "layers_before", rep.LayersBefore, "layers_after", g.Len())
	}
	rep.LayersAfter = g.Len()
	return g, rep, nil
}

// AllOptimizations runs Optimize, then the host passes, then culls the graph
// to what keys need. keys accepts any shape ir.FlattenKeys does.
//
// The host passes stand in for the scheduler's own generic rewrites, such as
// blockwise or root fusion. None are built in: without WithHostPasses this
// is Optimize followed by Cull.
func (o *Optimizer) AllOptimizations(ctx context.Context, g *graph.Graph, keys any) (*graph.Graph, error) {
	flat, err := ir.FlattenKeys(keys)
	if err != nil {
		return nil, err
	}
	g, err = o.Optimize(ctx, g, flat)
	if err != nil {
		return nil, err
	}
	for i, pass := range o.hostPasses {
		g, err = pass(ctx, g, flat)
		if err != nil {
			return nil, fmt.Errorf("host pass %d: %w", i, err)
		}
	}
	return g.Cull(flat)
}

// AllOptimizationsTasks wraps a plain task map into a single opaque layer
// and culls it. No columnar pass applies to a plain task map.
func (o *Optimizer) AllOptimizationsTasks(ctx context.Context, tasks map[ir.Key]ir.Task, keys any) (*graph.Graph, error) {
	flat, err := ir.FlattenKeys(keys)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, err := graph.New([]graph.Layer{graph.NewOpaque(opaqueLayerName, tasks)}, nil)
	if err != nil {
		return nil, err
	}
	return g.Cull(flat)
}

func keyLayers(keys []ir.Key) []string {
	seen := make(map[string]bool, len(keys))
	var out []string
	for _, k := range keys {
		if !seen[k.Layer] {
			seen[k.Layer] = true
			out = append(out, k.Layer)
		}
	}
	return out
}
