package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/colgraph/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Pipeline string // only runs of this pipeline
	Run      string // a single run by ID
}

// HistoryResult is the history command payload.
type HistoryResult struct {
	Runs []store.Run `json:"runs"`
}

// RenderText implements TextRenderer.
func (r *HistoryResult) RenderText(w io.Writer) error {
	if len(r.Runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}
	for _, run := range r.Runs {
		state := "enabled"
		if !run.Config.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(w, "#%d %s %s (%s) layers %d -> %d\n",
			run.Seq, run.ID, run.Pipeline, state, run.Report.LayersBefore, run.Report.LayersAfter)
		for _, name := range run.Report.ProjectedLayers() {
			fmt.Fprintf(w, "    columns %s: %s\n", name, strings.Join(run.Report.Columns[name], ", "))
		}
		for _, chain := range run.Report.Chains {
			fmt.Fprintf(w, "    fused %s\n", strings.Join(chain, " -> "))
		}
		if run.Report.Warning != "" {
			fmt.Fprintln(w, "    projection failed (warned)")
		}
	}
	return nil
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <runs.db>",
		Short: "List recorded optimization runs",
		Long: `List the runs recorded with --record, oldest first.

Examples:
  colgraph history runs.db
  colgraph history runs.db --pipeline events
  colgraph history runs.db --run 0192f0c1-... --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Pipeline, "pipeline", "", "only show runs of this pipeline")
	cmd.Flags().StringVar(&opts.Run, "run", "", "show a single run")

	return cmd
}

func runHistory(opts *HistoryOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	ctx := cmd.Context()

	// Opening would create the file; a missing log is a command error.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return out.Fail(ExitCommandError, CodeCommand, "run log not found", NewExitError(ExitCommandError, path))
	}
	st, err := store.Open(path)
	if err != nil {
		return out.Fail(ExitCommandError, CodeRunHistory, "failed to open run log", err)
	}
	defer st.Close()

	var runs []store.Run
	switch {
	case opts.Run != "":
		run, err := st.ReadRun(ctx, opts.Run)
		if errors.Is(err, store.ErrNotFound) {
			return out.Fail(ExitCommandError, CodeRunHistory, "unknown run", err)
		}
		if err != nil {
			return out.Fail(ExitFailure, CodeRunHistory, "failed to read run", err)
		}
		runs = []store.Run{run}
	case opts.Pipeline != "":
		runs, err = st.ReadRunsFor(ctx, opts.Pipeline)
	default:
		runs, err = st.ReadRuns(ctx)
	}
	if err != nil {
		return out.Fail(ExitFailure, CodeRunHistory, "failed to read runs", err)
	}
	return out.Success(&HistoryResult{Runs: runs})
}
