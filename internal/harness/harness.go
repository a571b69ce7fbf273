package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/colgraph/internal/config"
	"github.com/roach88/colgraph/internal/engine"
	"github.com/roach88/colgraph/internal/graph"
	"github.com/roach88/colgraph/internal/optimizer"
	"github.com/roach88/colgraph/internal/pipeline"
	"github.com/roach88/colgraph/internal/store"
)

// Option configures Run.
type Option func(*Harness)

// WithLogger sets the logger passed to the optimizer and engine.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithStore records every optimization in the run log.
func WithStore(s *store.Store) Option {
	return func(h *Harness) { h.store = s }
}

// Harness executes scenarios.
type Harness struct {
	logger *slog.Logger
	store  *store.Store
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Load the optimizer config and build the pipeline
//  2. Optimize for the output keys, then cull
//  3. Evaluate with a traced synchronous engine
//  4. Collect sinks and evaluate assertions
//
// An error is returned when the scenario cannot run at all; assertion
// failures are reported through the result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(h)
	}
	return h.run(ctx, scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	cfg := optimizer.DefaultConfig()
	if scenario.Config != "" {
		var err error
		if cfg, err = config.Load(scenario.Config); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	p, err := pipeline.Load(scenario.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}
	built, err := pipeline.Build(ctx, p, pipeline.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer built.Close()

	opt := optimizer.New(cfg, optimizer.WithLogger(h.logger))
	optimized, rep, err := opt.OptimizeWithReport(ctx, built.Graph, built.Keys)
	if err != nil {
		return nil, fmt.Errorf("failed to optimize: %w", err)
	}
	if h.store != nil {
		run, err := store.NewRun(p.Name, cfg, built.Graph, optimized, rep)
		if err != nil {
			return nil, err
		}
		if _, err := h.store.Record(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
	}
	culled, err := optimized.Cull(built.Keys)
	if err != nil {
		return nil, fmt.Errorf("failed to cull: %w", err)
	}

	result := NewResult()
	result.Report = *rep
	eval := engine.NewSync(
		engine.WithLogger(h.logger),
		engine.WithObserver(func(ev engine.TraceEvent) { result.Trace = append(result.Trace, ev) }),
	)
	if _, err := eval.Evaluate(ctx, culled, built.Keys); err != nil {
		return nil, fmt.Errorf("failed to evaluate: %w", err)
	}

	for _, name := range optimized.Names() {
		l, _ := optimized.Layer(name)
		if in, ok := l.(*graph.InputLayer); ok {
			result.Columns[name] = in.EffectiveColumns()
		}
	}
	for name, sink := range built.Sinks {
		result.Outputs[name] = sink.Results()
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	h.logger.Debug("scenario complete", "scenario", scenario.Name, "pass", result.Pass, "tasks", len(result.Trace))
	return result, nil
}
