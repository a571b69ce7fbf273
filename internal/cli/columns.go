package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/colgraph/internal/optimizer"
)

// ColumnsResult is the columns command payload.
type ColumnsResult struct {
	Pipeline string              `json:"pipeline"`
	Columns  map[string][]string `json:"columns"`
}

// RenderText implements TextRenderer.
func (r *ColumnsResult) RenderText(w io.Writer) error {
	if len(r.Columns) == 0 {
		_, err := fmt.Fprintln(w, "No projectable inputs.")
		return err
	}
	for _, name := range slices.Sorted(maps.Keys(r.Columns)) {
		fmt.Fprintf(w, "%s: %s\n", name, strings.Join(r.Columns[name], ", "))
	}
	return nil
}

// NewColumnsCommand creates the columns command.
func NewColumnsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "columns <pipeline.yaml>",
		Short: "Print the columns each input needs",
		Long: `Trace a pipeline with dataless inputs and print, per projectable input,
the columns the outputs actually read. Nothing is rewritten or evaluated.

Examples:
  colgraph columns pipeline.yaml
  colgraph columns pipeline.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runColumns(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runColumns(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	logger := opts.Logger(cmd.ErrOrStderr())

	cfg, err := opts.OptimizerConfig()
	if err != nil {
		return out.Fail(ExitCommandError, CodeCommand, "invalid config", err)
	}
	p, built, err := loadPipeline(cmd.Context(), path, logger)
	if err != nil {
		return out.Fail(ExitCommandError, CodeCommand, "invalid pipeline", err)
	}
	defer built.Close()

	o := optimizer.New(cfg, optimizer.WithLogger(logger))
	cols, err := o.NecessaryColumns(cmd.Context(), built.Graph)
	if err != nil {
		return out.Fail(ExitFailure, CodeOptimize, "column tracing failed", err)
	}
	return out.Success(&ColumnsResult{Pipeline: p.Name, Columns: cols})
}
