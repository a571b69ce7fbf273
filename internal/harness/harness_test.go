package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/colgraph/internal/store"
)

func TestRun_Scenarios(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)

	for _, path := range paths {
		s, err := LoadScenario(path)
		require.NoError(t, err)
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"events_default", "events_columns_only"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_ReportsAssertionFailures(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/events_default.yaml")
	require.NoError(t, err)
	s.Assertions = []Assertion{{Type: AssertLayerCount, Count: 99}}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Actual: 7")
}

func TestRun_TraceIsOrdered(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/events_default.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	for i, ev := range result.Trace {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
}

func TestRun_BadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "bad.cue")
	require.NoError(t, os.WriteFile(cfg, []byte(`optimization: "on-fail": "explode"`), 0o644))

	s, err := LoadScenario("testdata/scenarios/events_default.yaml")
	require.NoError(t, err)
	s.Config = cfg

	_, err = Run(context.Background(), s)
	assert.ErrorContains(t, err, "failed to load config")
}

func TestRun_RecordsToStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer st.Close()

	for _, name := range []string{"events_default", "events_disabled"} {
		s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
		require.NoError(t, err)
		_, err = Run(context.Background(), s, WithStore(st))
		require.NoError(t, err)
	}

	runs, err := st.ReadRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, int64(1), runs[0].Seq)
	assert.Equal(t, "events", runs[0].Pipeline)
	assert.Equal(t, 10, runs[0].Report.LayersBefore)
	assert.Equal(t, 7, runs[0].Report.LayersAfter)
	assert.Equal(t, map[string][]string{"events": {"baz.y", "foo"}}, runs[0].Report.Columns)
	assert.NotEqual(t, runs[0].InputFingerprint, runs[0].OutputFingerprint)

	assert.Equal(t, int64(2), runs[1].Seq)
	assert.False(t, runs[1].Config.Enabled)
	assert.Equal(t, runs[1].InputFingerprint, runs[1].OutputFingerprint)
	assert.Equal(t, runs[0].InputFingerprint, runs[1].InputFingerprint)
}
