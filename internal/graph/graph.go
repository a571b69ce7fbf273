package graph

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/colgraph/internal/ir"
)

// Graph is an immutable set of named layers with dependencies between them.
type Graph struct {
	layers       map[string]Layer
	names        []string
	dependencies map[string][]string
	dependents   map[string][]string

	index func() taskIndex
}

type taskIndex struct {
	tasks map[ir.Key]ir.Task
	owner map[ir.Key]string
}

// New validates layers and deps and builds a graph.
//
// deps maps a layer name to the names of the layers it reads. Layers absent
// from deps have no dependencies. The dependents map is derived, never
// supplied, so the two directions always agree.
func New(layers []Layer, deps map[string][]string) (*Graph, error) {
	g := &Graph{
		layers:       make(map[string]Layer, len(layers)),
		dependencies: make(map[string][]string, len(layers)),
		dependents:   make(map[string][]string, len(layers)),
	}
	for _, l := range layers {
		name := l.Name()
		if name == "" {
			return nil, invalid(ErrEmptyName, "", "layer name is required")
		}
		if _, dup := g.layers[name]; dup {
			return nil, invalid(ErrDuplicateLayer, name, "duplicate layer name")
		}
		g.layers[name] = l
		g.names = append(g.names, name)
	}
	slices.Sort(g.names)

	for name, ds := range deps {
		if _, ok := g.layers[name]; !ok {
			return nil, invalid(ErrUnknownLayer, name, "dependencies given for unknown layer")
		}
		for _, d := range ds {
			if _, ok := g.layers[d]; !ok {
				return nil, invalid(ErrUnknownDependency, name, "depends on unknown layer %q", d)
			}
		}
	}
	for _, name := range g.names {
		ds := slices.Clone(deps[name])
		slices.Sort(ds)
		g.dependencies[name] = slices.Compact(ds)
		g.dependents[name] = nil
	}
	for _, name := range g.names {
		for _, d := range g.dependencies[name] {
			g.dependents[d] = append(g.dependents[d], name)
		}
	}
	if cycle := findCycle(g.names, g.dependencies); cycle != nil {
		return nil, invalid(ErrCycle, cycle[0], "dependency cycle: %s", strings.Join(cycle, " -> "))
	}
	g.index = sync.OnceValue(g.buildIndex)
	return g, nil
}

// Layer returns the named layer.
func (g *Graph) Layer(name string) (Layer, bool) {
	l, ok := g.layers[name]
	return l, ok
}

// Names returns every layer name in sorted order.
func (g *Graph) Names() []string { return slices.Clone(g.names) }

// Len returns the number of layers.
func (g *Graph) Len() int { return len(g.names) }

// Dependencies returns the sorted names of the layers name reads.
func (g *Graph) Dependencies(name string) []string { return slices.Clone(g.dependencies[name]) }

// Dependents returns the sorted names of the layers reading name.
func (g *Graph) Dependents(name string) []string { return slices.Clone(g.dependents[name]) }

// DependencyMap returns a copy of the full dependency map.
func (g *Graph) DependencyMap() map[string][]string {
	out := make(map[string][]string, len(g.dependencies))
	for k, v := range g.dependencies {
		out[k] = slices.Clone(v)
	}
	return out
}

// Leaves returns the layers nothing depends on, in sorted order.
func (g *Graph) Leaves() []string {
	var out []string
	for _, name := range g.names {
		if len(g.dependents[name]) == 0 {
			out = append(out, name)
		}
	}
	return out
}

// NumPartitions returns the partition count of the named layer, or 0.
func (g *Graph) NumPartitions(name string) int {
	if l, ok := g.layers[name]; ok {
		return l.NumPartitions()
	}
	return 0
}

// Tasks returns the merged task map of every layer. The map is shared;
// callers must not mutate it.
func (g *Graph) Tasks() map[ir.Key]ir.Task { return g.index().tasks }

// Owner returns the layer that produces key.
func (g *Graph) Owner(key ir.Key) (string, bool) {
	name, ok := g.index().owner[key]
	return name, ok
}

// WithLayers returns a graph with the named layers replaced. Replacement
// layers must keep their names; dependencies are unchanged.
func (g *Graph) WithLayers(replace map[string]Layer) (*Graph, error) {
	layers := make([]Layer, 0, len(g.names))
	for _, name := range g.names {
		l := g.layers[name]
		if r, ok := replace[name]; ok {
			if r.Name() != name {
				return nil, invalid(ErrUnknownLayer, name, "replacement is named %q", r.Name())
			}
			l = r
		}
		layers = append(layers, l)
	}
	for name := range replace {
		if _, ok := g.layers[name]; !ok {
			return nil, invalid(ErrUnknownLayer, name, "cannot replace unknown layer")
		}
	}
	return New(layers, g.dependencies)
}

// Cull returns the subgraph needed to compute keys.
//
// Dependencies are followed key by key through task arguments, so a layer
// survives only if one of its outputs is needed. Opaque layers are trimmed
// to the needed keys; other layers are kept whole.
func (g *Graph) Cull(keys []ir.Key) (*Graph, error) {
	idx := g.index()
	needed := make(map[ir.Key]bool)
	stack := slices.Clone(keys)
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if needed[k] {
			continue
		}
		t, ok := idx.tasks[k]
		if !ok {
			return nil, invalid(ErrUnknownKey, k.Layer, "no task produces key %s", k)
		}
		needed[k] = true
		stack = append(stack, t.Keys()...)
	}

	keep := make(map[string]bool)
	for k := range needed {
		keep[idx.owner[k]] = true
	}
	var layers []Layer
	deps := make(map[string][]string)
	for _, name := range g.names {
		if !keep[name] {
			continue
		}
		l := g.layers[name]
		if o, ok := l.(*OpaqueLayer); ok {
			l = o.restrict(needed)
		}
		layers = append(layers, l)
		for _, d := range g.dependencies[name] {
			if keep[d] {
				deps[name] = append(deps[name], d)
			}
		}
	}
	return New(layers, deps)
}

func (g *Graph) buildIndex() taskIndex {
	idx := taskIndex{tasks: make(map[ir.Key]ir.Task), owner: make(map[ir.Key]string)}
	for _, name := range g.names {
		tasks := g.layers[name].Tasks()
		maps.Copy(idx.tasks, tasks)
		for k := range tasks {
			idx.owner[k] = name
		}
	}
	return idx
}

func (g *Graph) String() string {
	return fmt.Sprintf("graph[%d layers]", len(g.names))
}
