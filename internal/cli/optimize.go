package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/colgraph/internal/graph"
	"github.com/roach88/colgraph/internal/optimizer"
	"github.com/roach88/colgraph/internal/store"
)

// OptimizeOptions holds flags for the optimize command.
type OptimizeOptions struct {
	*RootOptions
	Record string // run log database; empty disables recording
}

// OptimizeResult is the optimize command payload.
type OptimizeResult struct {
	Pipeline          string               `json:"pipeline"`
	Config            optimizer.Config     `json:"config"`
	Report            *optimizer.Report    `json:"report"`
	InputFingerprint  string               `json:"input_fingerprint"`
	OutputFingerprint string               `json:"output_fingerprint"`
	Before            []graph.LayerSummary `json:"before"`
	After             []graph.LayerSummary `json:"after"`
	RunID             string               `json:"run_id,omitempty"`
}

// RenderText implements TextRenderer.
func (r *OptimizeResult) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "Pipeline: %s\n", r.Pipeline)
	fmt.Fprintf(w, "Layers: %d -> %d\n", r.Report.LayersBefore, r.Report.LayersAfter)
	if layers := r.Report.ProjectedLayers(); len(layers) > 0 {
		fmt.Fprintln(w, "Columns:")
		for _, name := range layers {
			fmt.Fprintf(w, "  %s: %s\n", name, strings.Join(r.Report.Columns[name], ", "))
		}
	}
	if r.Report.Fused() {
		fmt.Fprintln(w, "Chains:")
		for _, chain := range r.Report.Chains {
			fmt.Fprintf(w, "  %s\n", strings.Join(chain, " -> "))
		}
	}
	if r.Report.Warning != "" {
		fmt.Fprintf(w, "Warning:\n%s", r.Report.Warning)
	}
	fmt.Fprintln(w, "Graph:")
	writeSummaries(w, r.After)
	fmt.Fprintf(w, "Fingerprint: %s -> %s\n", r.InputFingerprint, r.OutputFingerprint)
	if r.RunID != "" {
		fmt.Fprintf(w, "Recorded run: %s\n", r.RunID)
	}
	return nil
}

func writeSummaries(w io.Writer, layers []graph.LayerSummary) {
	for _, l := range layers {
		fmt.Fprintf(w, "  %s [%s, %d partitions]", l.Name, l.Kind, l.Partitions)
		if len(l.Dependencies) > 0 {
			fmt.Fprintf(w, " <- %s", strings.Join(l.Dependencies, ", "))
		}
		if l.Columns != nil {
			fmt.Fprintf(w, " columns: %s", strings.Join(l.Columns, ", "))
		}
		if l.Output {
			fmt.Fprint(w, " (output)")
		}
		fmt.Fprintln(w)
	}
}

// NewOptimizeCommand creates the optimize command.
func NewOptimizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OptimizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "optimize <pipeline.yaml>",
		Short: "Optimize a pipeline graph and describe the result",
		Long: `Build a pipeline graph, run the configured optimizations, and print
what changed: the columns each input now reads, the fused chains, and the
optimized layers.

Examples:
  colgraph optimize pipeline.yaml
  colgraph optimize pipeline.yaml --config colgraph.cue --format json
  colgraph optimize pipeline.yaml --record runs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Record, "record", "", "record the run in this SQLite run log")

	return cmd
}

func runOptimize(opts *OptimizeOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	logger := opts.Logger(cmd.ErrOrStderr())
	ctx := cmd.Context()

	cfg, err := opts.OptimizerConfig()
	if err != nil {
		return out.Fail(ExitCommandError, CodeCommand, "invalid config", err)
	}
	p, built, err := loadPipeline(ctx, path, logger)
	if err != nil {
		return out.Fail(ExitCommandError, CodeCommand, "invalid pipeline", err)
	}
	defer built.Close()

	o := optimizer.New(cfg, optimizer.WithLogger(logger))
	optimized, rep, err := o.OptimizeWithReport(ctx, built.Graph, built.Keys)
	if err != nil {
		return out.Fail(ExitFailure, CodeOptimize, "optimization failed", err)
	}

	run, err := store.NewRun(p.Name, cfg, built.Graph, optimized, rep)
	if err != nil {
		return out.Fail(ExitFailure, CodeOptimize, "fingerprint failed", err)
	}
	result := &OptimizeResult{
		Pipeline:          p.Name,
		Config:            cfg,
		Report:            rep,
		InputFingerprint:  run.InputFingerprint,
		OutputFingerprint: run.OutputFingerprint,
		Before:            graph.Summarize(built.Graph),
		After:             graph.Summarize(optimized),
	}

	if opts.Record != "" {
		recorded, err := recordRun(cmd, opts.Record, run)
		if err != nil {
			return out.Fail(ExitCommandError, CodeRunHistory, "failed to record run", err)
		}
		result.RunID = recorded.ID
		out.VerboseLog("recorded run %s (seq %d)", recorded.ID, recorded.Seq)
	}
	return out.Success(result)
}

func recordRun(cmd *cobra.Command, path string, run store.Run) (store.Run, error) {
	st, err := store.Open(path)
	if err != nil {
		return store.Run{}, err
	}
	defer st.Close()
	return st.Record(cmd.Context(), run)
}
