package graph

import "github.com/roach88/colgraph/internal/ir"

// LayerSummary is a structural description of one layer, used for CLI
// output, golden snapshots and fingerprints.
type LayerSummary struct {
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	Partitions   int      `json:"partitions"`
	Dependencies []string `json:"dependencies"`
	Columns      []string `json:"columns,omitempty"`
	Steps        []string `json:"steps,omitempty"`
	Output       bool     `json:"output"`
}

// Summarize describes every layer in name order.
func Summarize(g *Graph) []LayerSummary {
	out := make([]LayerSummary, 0, g.Len())
	for _, name := range g.names {
		l := g.layers[name]
		s := LayerSummary{
			Name:         name,
			Kind:         Kind(l),
			Partitions:   l.NumPartitions(),
			Dependencies: g.Dependencies(name),
			Output:       l.Annotations().IsOutput(),
		}
		switch v := l.(type) {
		case *InputLayer:
			s.Columns = v.EffectiveColumns()
		case *BlockwiseLayer:
			for _, step := range v.steps {
				s.Steps = append(s.Steps, step.Name)
			}
		}
		out = append(out, s)
	}
	return out
}

// CanonicalSummary returns the summary as a value accepted by
// ir.MarshalCanonical.
func CanonicalSummary(g *Graph) map[string]any {
	layers := make([]any, 0, g.Len())
	for _, s := range Summarize(g) {
		m := map[string]any{
			"name":         s.Name,
			"kind":         s.Kind,
			"partitions":   s.Partitions,
			"dependencies": s.Dependencies,
			"output":       s.Output,
		}
		if s.Columns != nil {
			m["columns"] = s.Columns
		}
		if s.Steps != nil {
			m["steps"] = s.Steps
		}
		layers = append(layers, m)
	}
	return map[string]any{
		"version": ir.FormatVersion,
		"layers":  layers,
	}
}

// Fingerprint hashes the canonical summary. Structurally identical graphs
// share a fingerprint.
func Fingerprint(g *Graph) (string, error) {
	return ir.Fingerprint(CanonicalSummary(g))
}
