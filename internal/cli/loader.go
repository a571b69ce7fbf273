package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/colgraph/internal/pipeline"
)

// loadPipeline parses and builds the pipeline at path. The caller must
// Close the returned Built.
func loadPipeline(ctx context.Context, path string, logger *slog.Logger, opts ...pipeline.BuildOption) (*pipeline.Pipeline, *pipeline.Built, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("pipeline file not found: %s", path))
	}
	p, err := pipeline.Load(path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load pipeline", err)
	}
	logger.Debug("pipeline loaded", "pipeline", p.Name, "sources", len(p.Sources), "steps", len(p.Steps), "outputs", len(p.Outputs))

	opts = append([]pipeline.BuildOption{pipeline.WithLogger(logger)}, opts...)
	built, err := pipeline.Build(ctx, p, opts...)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to build pipeline", err)
	}
	return p, built, nil
}
