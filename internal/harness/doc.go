// Package harness runs optimization scenarios as executable contract tests.
//
// A scenario names a pipeline, an optional optimizer config, and the
// assertions the optimized run must satisfy. Each run builds the pipeline,
// optimizes it, culls it to the output keys, evaluates it with a traced
// synchronous engine, and checks the assertions against the result.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: events_default
//	description: "Both passes on the events pipeline"
//	pipeline: ../pipelines/events.yaml
//	config: ../configs/columns-only.cue
//	assertions:
//	  - type: columns
//	    layer: events
//	    columns: [baz.y, foo]
//	  - type: chains
//	    chains: [[baz, y]]
//	  - type: layer_count
//	    count: 7
//	  - type: output
//	    output: doubled
//	    values: [[16, 20, 24], [28, 32, 36]]
//	  - type: task_count
//	    count: 12
//
// Paths are relative to the scenario file. Without a config the optimizer
// defaults apply.
//
// # Assertion Types
//
//   - columns: the columns an input layer reads after optimization
//   - chains: the fused chains, in the order the optimizer found them
//   - layer_count: the number of layers after optimization, before culling
//   - output: the values written to an output sink, in partition order
//   - task_count: the number of tasks the evaluation executed
//   - warning: a substring of the projection failure warning
//
// # Golden Snapshots
//
// RunWithGolden serializes the result with ir.MarshalCanonical and compares
// it against testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
