package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/colgraph/internal/config"
	"github.com/roach88/colgraph/internal/optimizer"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	LogLevel string // "debug" | "info" | "warn" | "error"
	Config   string // CUE optimizer config; empty means defaults
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidLogLevels defines the allowed log levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// NewRootCommand creates the root command for the colgraph CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "colgraph",
		Short: "colgraph - columnar task graph optimizer",
		Long: `Optimize partitioned columnar task graphs.

Column projection narrows every input to the columns the graph reads.
Layer-chain fusion collapses linear runs of blockwise layers into one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if !slices.Contains(ValidLogLevels, opts.LogLevel) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid log level %q: must be one of %v", opts.LogLevel, ValidLogLevels))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to a CUE optimizer config")

	cmd.AddCommand(NewOptimizeCommand(opts))
	cmd.AddCommand(NewColumnsCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// Logger builds the diagnostic logger. Verbose forces debug level. JSON
// output gets a JSON handler so stderr stays machine-readable.
func (o *RootOptions) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch o.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	if o.Verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if o.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// OptimizerConfig loads --config, or returns the defaults when unset.
func (o *RootOptions) OptimizerConfig() (optimizer.Config, error) {
	if o.Config == "" {
		return optimizer.DefaultConfig(), nil
	}
	cfg, err := config.Load(o.Config)
	if err != nil {
		return optimizer.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// formatter returns an OutputFormatter writing to the command's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
