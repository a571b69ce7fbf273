package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/colgraph/internal/ir"
)

// Snapshot is the golden form of a result. Engine sequence numbers are
// omitted; only the task count is kept.
type Snapshot struct {
	ScenarioName string
	LayersBefore int
	LayersAfter  int
	Columns      map[string][]string
	Chains       [][]string
	Outputs      map[string][]any
	Tasks        int
	Warning      string
}

// NewSnapshot captures a result under the given name.
func NewSnapshot(name string, result *Result) Snapshot {
	return Snapshot{
		ScenarioName: name,
		LayersBefore: result.Report.LayersBefore,
		LayersAfter:  result.Report.LayersAfter,
		Columns:      result.Columns,
		Chains:       result.Report.Chains,
		Outputs:      result.Outputs,
		Tasks:        len(result.Trace),
		Warning:      result.Report.Warning,
	}
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON
// serialization.
func (s *Snapshot) toCanonicalMap() (map[string]any, error) {
	columns := make(map[string]any, len(s.Columns))
	for name, cols := range s.Columns {
		columns[name] = cols
	}
	chains := make([]any, len(s.Chains))
	for i, c := range s.Chains {
		chains[i] = c
	}
	outputs := make(map[string]any, len(s.Outputs))
	for name, values := range s.Outputs {
		n, err := normalize(values)
		if err != nil {
			return nil, err
		}
		outputs[name] = n
	}

	m := map[string]any{
		"scenario_name": s.ScenarioName,
		"layers_before": s.LayersBefore,
		"layers_after":  s.LayersAfter,
		"columns":       columns,
		"chains":        chains,
		"outputs":       outputs,
		"tasks":         s.Tasks,
	}
	if s.Warning != "" {
		m["warning"] = s.Warning
	}
	return m, nil
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s *Snapshot) MarshalCanonical() ([]byte, error) {
	m, err := s.toCanonicalMap()
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(m)
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot := NewSnapshot(name, result)
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
