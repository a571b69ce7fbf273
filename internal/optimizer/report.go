package optimizer

import (
	"maps"
	"slices"
)

// Report describes what one Optimize call changed.
type Report struct {
	// LayersBefore and LayersAfter count graph layers around the passes.
	LayersBefore int `json:"layers_before"`
	LayersAfter  int `json:"layers_after"`

	// Columns maps each projected input layer to the columns it now reads.
	Columns map[string][]string `json:"columns,omitempty"`

	// Chains lists the fused chains in dependency order. The fused layer
	// takes the name of the last member.
	Chains [][]string `json:"chains,omitempty"`

	// Warning is the projection failure warning, if one was issued.
	Warning string `json:"warning,omitempty"`
}

// ProjectedLayers returns the projected input layer names in sorted order.
func (r *Report) ProjectedLayers() []string {
	return slices.Sorted(maps.Keys(r.Columns))
}

// Fused reports whether any chain was fused.
func (r *Report) Fused() bool { return len(r.Chains) > 0 }
