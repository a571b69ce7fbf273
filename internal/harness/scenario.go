package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario defines an optimization scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Pipeline is the path of the pipeline YAML file to build.
	Pipeline string `yaml:"pipeline"`

	// Config is an optional CUE optimizer config. Empty means defaults.
	Config string `yaml:"config,omitempty"`

	// Assertions validate the optimized graph and its outputs.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one aspect of a result.
type Assertion struct {
	// Type is one of the Assert constants.
	Type string `yaml:"type"`

	// Layer is the input layer name (used by columns).
	Layer string `yaml:"layer,omitempty"`

	// Columns are the expected columns (used by columns).
	Columns []string `yaml:"columns,omitempty"`

	// Chains are the expected fused chains (used by chains). An empty list
	// asserts that nothing was fused.
	Chains [][]string `yaml:"chains,omitempty"`

	// Count is the expected count (used by layer_count and task_count).
	Count int `yaml:"count,omitempty"`

	// Output is the output name (used by output).
	Output string `yaml:"output,omitempty"`

	// Values are the expected partition values (used by output).
	Values []any `yaml:"values,omitempty"`

	// Contains is the expected warning substring (used by warning).
	Contains string `yaml:"contains,omitempty"`
}

// Assertion type constants.
const (
	AssertColumns    = "columns"
	AssertChains     = "chains"
	AssertLayerCount = "layer_count"
	AssertOutput     = "output"
	AssertTaskCount  = "task_count"
	AssertWarning    = "warning"
)

// LoadScenario reads and parses a scenario YAML file. Relative pipeline and
// config paths are resolved against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	scenario.Pipeline = resolve(base, scenario.Pipeline)
	scenario.Config = resolve(base, scenario.Config)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the scenario files in dir, sorted by name.
func FindScenarios(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)
	return paths, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Pipeline == "" {
		return fmt.Errorf("pipeline is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if _, err := os.Stat(s.Pipeline); os.IsNotExist(err) {
		return fmt.Errorf("pipeline file not found: %s", s.Pipeline)
	}
	if s.Config != "" {
		if _, err := os.Stat(s.Config); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", s.Config)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertColumns:
		if a.Layer == "" {
			return fmt.Errorf("assertions[%d]: layer is required for columns", index)
		}
		if len(a.Columns) == 0 {
			return fmt.Errorf("assertions[%d]: columns list is required for columns", index)
		}
	case AssertChains:
		for j, chain := range a.Chains {
			if len(chain) < 2 {
				return fmt.Errorf("assertions[%d]: chains[%d] must have at least two layers", index, j)
			}
		}
	case AssertLayerCount, AssertTaskCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertOutput:
		if a.Output == "" {
			return fmt.Errorf("assertions[%d]: output is required for output", index)
		}
		if a.Values == nil {
			return fmt.Errorf("assertions[%d]: values is required for output", index)
		}
	case AssertWarning:
		if a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for warning", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
