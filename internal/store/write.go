package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/roach88/colgraph/internal/graph"
	"github.com/roach88/colgraph/internal/ir"
	"github.com/roach88/colgraph/internal/optimizer"
)

// Run is one logged optimization.
type Run struct {
	ID                string           `json:"id"`
	Seq               int64            `json:"seq"`
	Pipeline          string           `json:"pipeline"`
	Config            optimizer.Config `json:"config"`
	InputFingerprint  string           `json:"input_fingerprint"`
	OutputFingerprint string           `json:"output_fingerprint"`
	Report            optimizer.Report `json:"report"`
}

// NewRun fingerprints the graphs around an optimization and assigns a
// fresh UUIDv7 identifier. Seq is left zero; Record assigns it.
func NewRun(pipeline string, cfg optimizer.Config, before, after *graph.Graph, rep *optimizer.Report) (Run, error) {
	in, err := graph.Fingerprint(before)
	if err != nil {
		return Run{}, fmt.Errorf("fingerprint input graph: %w", err)
	}
	out, err := graph.Fingerprint(after)
	if err != nil {
		return Run{}, fmt.Errorf("fingerprint output graph: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Run{}, fmt.Errorf("generate run id: %w", err)
	}
	run := Run{
		ID:                id.String(),
		Pipeline:          pipeline,
		Config:            cfg,
		InputFingerprint:  in,
		OutputFingerprint: out,
	}
	if rep != nil {
		run.Report = *rep
	}
	return run, nil
}

// Record assigns the next sequence number to run and writes it.
func (s *Store) Record(ctx context.Context, run Run) (Run, error) {
	seq, err := s.NextSeq(ctx)
	if err != nil {
		return Run{}, err
	}
	run.Seq = seq
	if err := s.WriteRun(ctx, run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// NextSeq returns one past the highest recorded sequence number.
func (s *Store) NextSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM runs").Scan(&seq); err != nil {
		return 0, fmt.Errorf("query max seq: %w", err)
	}
	return seq.Int64 + 1, nil
}

// WriteRun writes a run with its projections and chains in one
// transaction. Writing the same run ID twice is a no-op.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	cfg, err := ir.MarshalCanonical(configValue(run.Config))
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, seq, pipeline, config, input_fingerprint,
			output_fingerprint, layers_before, layers_after, warning)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Seq, run.Pipeline, string(cfg), run.InputFingerprint,
		run.OutputFingerprint, run.Report.LayersBefore, run.Report.LayersAfter, run.Report.Warning)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	if n == 0 {
		return tx.Commit()
	}

	for _, layer := range run.Report.ProjectedLayers() {
		cols, err := ir.MarshalCanonical(run.Report.Columns[layer])
		if err != nil {
			return fmt.Errorf("marshal columns of %s: %w", layer, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO projections (run_id, layer, columns) VALUES (?, ?, ?)",
			run.ID, layer, string(cols)); err != nil {
			return fmt.Errorf("insert projection %s: %w", layer, err)
		}
	}
	for _, chain := range run.Report.Chains {
		if len(chain) == 0 {
			continue
		}
		members, err := ir.MarshalCanonical(chain)
		if err != nil {
			return fmt.Errorf("marshal chain: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chains (run_id, fused, members) VALUES (?, ?, ?)",
			run.ID, chain[len(chain)-1], string(members)); err != nil {
			return fmt.Errorf("insert chain %s: %w", chain[len(chain)-1], err)
		}
	}
	return tx.Commit()
}

func configValue(cfg optimizer.Config) map[string]any {
	which := make([]string, len(cfg.Which))
	for i, p := range cfg.Which {
		which[i] = string(p)
	}
	slices.Sort(which)
	return map[string]any{
		"enabled": cfg.Enabled,
		"which":   which,
		"on-fail": string(cfg.OnFail),
	}
}
