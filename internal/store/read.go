package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by ReadRun for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// ReadRuns returns every run in sequence order, oldest first.
// Returns an empty slice (not nil) when the log is empty.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	return s.queryRuns(ctx, `
		SELECT id, seq, pipeline, config, input_fingerprint,
			output_fingerprint, layers_before, layers_after, warning
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// ReadRunsFor returns the runs of one pipeline in sequence order.
func (s *Store) ReadRunsFor(ctx context.Context, pipeline string) ([]Run, error) {
	return s.queryRuns(ctx, `
		SELECT id, seq, pipeline, config, input_fingerprint,
			output_fingerprint, layers_before, layers_after, warning
		FROM runs
		WHERE pipeline = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, pipeline)
}

// ReadRun returns a single run by ID.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	runs, err := s.queryRuns(ctx, `
		SELECT id, seq, pipeline, config, input_fingerprint,
			output_fingerprint, layers_before, layers_after, warning
		FROM runs
		WHERE id = ?
	`, id)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return runs[0], nil
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run Run
			cfg string
		)
		if err := rows.Scan(&run.ID, &run.Seq, &run.Pipeline, &cfg, &run.InputFingerprint,
			&run.OutputFingerprint, &run.Report.LayersBefore, &run.Report.LayersAfter, &run.Report.Warning); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(cfg), &run.Config); err != nil {
			return nil, fmt.Errorf("decode config of run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		if err := s.readDetails(ctx, &runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) readDetails(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT layer, columns FROM projections WHERE run_id = ? ORDER BY layer COLLATE BINARY ASC", run.ID)
	if err != nil {
		return fmt.Errorf("query projections of %s: %w", run.ID, err)
	}
	if err := scanEach(rows, func(layer, raw string) error {
		var cols []string
		if err := json.Unmarshal([]byte(raw), &cols); err != nil {
			return fmt.Errorf("decode columns of %s: %w", layer, err)
		}
		if run.Report.Columns == nil {
			run.Report.Columns = map[string][]string{}
		}
		run.Report.Columns[layer] = cols
		return nil
	}); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx,
		"SELECT fused, members FROM chains WHERE run_id = ? ORDER BY rowid ASC", run.ID)
	if err != nil {
		return fmt.Errorf("query chains of %s: %w", run.ID, err)
	}
	return scanEach(rows, func(fused, raw string) error {
		var members []string
		if err := json.Unmarshal([]byte(raw), &members); err != nil {
			return fmt.Errorf("decode chain %s: %w", fused, err)
		}
		run.Report.Chains = append(run.Report.Chains, members)
		return nil
	})
}

func scanEach(rows *sql.Rows, fn func(a, b string) error) error {
	defer rows.Close()
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		if err := fn(a, b); err != nil {
			return err
		}
	}
	return rows.Err()
}
