package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/colgraph/internal/engine"
	"github.com/roach88/colgraph/internal/optimizer"
	"github.com/roach88/colgraph/internal/pipeline"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	NoOptimize bool
	MaxTasks   int
}

// RunResult is the run command payload.
type RunResult struct {
	Pipeline  string           `json:"pipeline"`
	Optimized bool             `json:"optimized"`
	Outputs   map[string][]any `json:"outputs"`
	Tasks     int              `json:"tasks"`
	Queries   []string         `json:"queries,omitempty"`
}

// RenderText implements TextRenderer.
func (r *RunResult) RenderText(w io.Writer) error {
	for _, name := range slices.Sorted(maps.Keys(r.Outputs)) {
		fmt.Fprintf(w, "%s:", name)
		for _, v := range r.Outputs[name] {
			fmt.Fprintf(w, " %v", v)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Tasks executed: %d\n", r.Tasks)
	return nil
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <pipeline.yaml>",
		Short: "Optimize and evaluate a pipeline",
		Long: `Build a pipeline, optimize it for its outputs, evaluate it, and print
the values written to every output.

Examples:
  colgraph run pipeline.yaml
  colgraph run pipeline.yaml --no-optimize
  colgraph run pipeline.yaml --format json -v`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.NoOptimize, "no-optimize", false, "evaluate the graph as built")
	cmd.Flags().IntVar(&opts.MaxTasks, "max-tasks", engine.DefaultMaxTasks, "abort after this many tasks")

	return cmd
}

func runPipeline(opts *RunOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	logger := opts.Logger(cmd.ErrOrStderr())
	ctx := cmd.Context()

	cfg, err := opts.OptimizerConfig()
	if err != nil {
		return out.Fail(ExitCommandError, CodeCommand, "invalid config", err)
	}

	result := &RunResult{Outputs: make(map[string][]any), Optimized: !opts.NoOptimize}
	p, built, err := loadPipeline(ctx, path, logger, pipeline.WithQueryHook(func(q string) {
		result.Queries = append(result.Queries, q)
	}))
	if err != nil {
		return out.Fail(ExitCommandError, CodeCommand, "invalid pipeline", err)
	}
	defer built.Close()
	result.Pipeline = p.Name

	g := built.Graph
	if opts.NoOptimize {
		g, err = g.Cull(built.Keys)
	} else {
		g, err = optimizer.New(cfg, optimizer.WithLogger(logger)).AllOptimizations(ctx, g, built.Keys)
	}
	if err != nil {
		return out.Fail(ExitFailure, CodeOptimize, "optimization failed", err)
	}

	eval := engine.NewSync(
		engine.WithLogger(logger),
		engine.WithMaxTasks(opts.MaxTasks),
		engine.WithObserver(func(engine.TraceEvent) { result.Tasks++ }),
	)
	if _, err := eval.Evaluate(ctx, g, built.Keys); err != nil {
		return out.Fail(ExitFailure, CodeEvaluate, "evaluation failed", err)
	}
	for name, sink := range built.Sinks {
		result.Outputs[name] = sink.Results()
	}
	out.VerboseLog("evaluated %d tasks over %d layers", result.Tasks, g.Len())
	return out.Success(result)
}
