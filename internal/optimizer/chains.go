package optimizer

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/colgraph/internal/graph"
	"github.com/roach88/colgraph/internal/ir"
)

// Chains returns every maximal linear run of fusable blockwise layers with
// at least two members, in dependency order. Consecutive members have the
// same partition count and a one-to-one dependency edge. Protected layers
// may end a chain but never sit inside one, so their keys survive fusion.
func Chains(g *graph.Graph, protect ...string) [][]string {
	protected := make(map[string]bool, len(protect))
	for _, p := range protect {
		protected[p] = true
	}
	visited := make(map[string]bool)
	var chains [][]string
	for _, name := range g.Names() {
		if visited[name] {
			continue
		}
		visited[name] = true
		if _, ok := blockwise(g, name); !ok {
			continue
		}
		chain := []string{name}
		for cur := name; ; {
			next, ok := fusableDependent(g, cur, protected)
			if !ok || visited[next] {
				break
			}
			visited[next] = true
			chain = append(chain, next)
			cur = next
		}
		for cur := name; ; {
			prev, ok := fusableDependency(g, cur, protected)
			if !ok || visited[prev] {
				break
			}
			visited[prev] = true
			chain = slices.Insert(chain, 0, prev)
			cur = prev
		}
		if len(chain) > 1 {
			chains = append(chains, chain)
		}
	}
	return chains
}

// FuseChains replaces every chain found by Chains with a single blockwise
// layer named after its last member. Graphs without chains are returned
// unchanged.
func FuseChains(g *graph.Graph, protect ...string) (*graph.Graph, error) {
	chains := Chains(g, protect...)
	if len(chains) == 0 {
		return g, nil
	}

	fused := make(map[string]graph.Layer, len(chains))
	removed := make(map[string]bool)
	deps := g.DependencyMap()
	for _, chain := range chains {
		l, err := fuseChain(g, chain)
		if err != nil {
			return nil, fmt.Errorf("fuse %v: %w", chain, err)
		}
		last := chain[len(chain)-1]
		fused[last] = l
		deps[last] = g.Dependencies(chain[0])
		for _, name := range chain[:len(chain)-1] {
			removed[name] = true
			delete(deps, name)
		}
	}

	var layers []graph.Layer
	for _, name := range g.Names() {
		if removed[name] {
			continue
		}
		if l, ok := fused[name]; ok {
			layers = append(layers, l)
			continue
		}
		l, _ := g.Layer(name)
		layers = append(layers, l)
	}
	return graph.New(layers, deps)
}

// fusableDependent returns the layer that can follow name in a chain.
func fusableDependent(g *graph.Graph, name string, protected map[string]bool) (string, bool) {
	if protected[name] {
		return "", false
	}
	dependents := g.Dependents(name)
	if len(dependents) != 1 {
		return "", false
	}
	next := dependents[0]
	if !linkable(g, name, next) {
		return "", false
	}
	return next, true
}

// fusableDependency returns the layer that can precede name in a chain.
func fusableDependency(g *graph.Graph, name string, protected map[string]bool) (string, bool) {
	deps := g.Dependencies(name)
	if len(deps) != 1 {
		return "", false
	}
	prev := deps[0]
	if protected[prev] || len(g.Dependents(prev)) != 1 || !linkable(g, prev, name) {
		return "", false
	}
	return prev, true
}

// linkable reports whether child can be fused onto parent: both are
// blockwise, child depends on parent alone, partition counts match, and
// child reads parent partition by partition.
func linkable(g *graph.Graph, parent, child string) bool {
	p, ok := blockwise(g, parent)
	if !ok {
		return false
	}
	c, ok := blockwise(g, child)
	if !ok {
		return false
	}
	if deps := g.Dependencies(child); len(deps) != 1 || deps[0] != parent {
		return false
	}
	if p.NumPartitions() != c.NumPartitions() {
		return false
	}
	if nb, ok := c.NumBlocks()[parent]; ok && nb != c.NumPartitions() {
		return false
	}
	return slices.Contains(c.InputLayers(), parent)
}

func blockwise(g *graph.Graph, name string) (*graph.BlockwiseLayer, bool) {
	l, ok := g.Layer(name)
	if !ok {
		return nil, false
	}
	b, ok := l.(*graph.BlockwiseLayer)
	return b, ok
}

// fuseChain composes the steps of every member into one layer.
//
// The first member contributes its slots and steps as they are. For each
// later member, slots reading the previous member become references to its
// output step, broadcast slots become literals, and any other slot (an io
// dependency) is appended to the fused slots. Touch-all members keep the
// flag on their own steps, so only their inputs are touched in a dry run.
func fuseChain(g *graph.Graph, chain []string) (*graph.BlockwiseLayer, error) {
	head, _ := blockwise(g, chain[0])
	last := chain[len(chain)-1]
	parts := head.NumPartitions()

	indices := head.Indices()
	numBlocks := head.NumBlocks()
	ioDeps := head.IODeps()
	steps := head.Steps()
	annotations := graph.Annotations{}
	maps.Copy(annotations, head.Annotations())

	taken := make(map[string]bool, len(steps))
	for _, s := range steps {
		taken[s.Name] = true
	}
	output := head.OutputStep()

	for i, name := range chain[1:] {
		member, _ := blockwise(g, name)
		parent, prev := chain[i], output
		memberDeps := member.IODeps()
		memberBlocks := member.NumBlocks()

		slots := make([]ir.Arg, len(member.Indices()))
		for j, idx := range member.Indices() {
			_, io := memberDeps[idx.Name]
			switch {
			case !idx.Partitioned:
				slots[j] = ir.Lit(idx.Value)
			case !io && idx.Name == parent:
				slots[j] = ir.StepRef{Name: prev}
			default:
				key := idx.Name
				if values, ok := memberDeps[idx.Name]; ok {
					if existing, clash := ioDeps[key]; clash && !sameDeps(existing, values) {
						key = name + "/" + idx.Name
					}
					ioDeps[key] = values
				} else if nb, ok := memberBlocks[idx.Name]; ok {
					numBlocks[key] = nb
				}
				slots[j] = ir.Slot(len(indices))
				indices = append(indices, graph.Partitioned(key))
			}
		}

		renamed := make(map[string]string, len(member.Steps()))
		for _, s := range member.Steps() {
			stepName := s.Name
			if taken[stepName] {
				stepName = name + "/" + s.Name
			}
			for n := 2; taken[stepName]; n++ {
				stepName = fmt.Sprintf("%s/%s#%d", name, s.Name, n)
			}
			taken[stepName] = true
			renamed[s.Name] = stepName

			args := ir.MapArgs(s.Task.Args, func(a ir.Arg) ir.Arg {
				switch v := a.(type) {
				case ir.SlotRef:
					return slots[v.Index]
				case ir.StepRef:
					return ir.StepRef{Name: renamed[v.Name]}
				default:
					return a
				}
			})
			steps = append(steps, graph.Step{
				Name:     stepName,
				Task:     ir.Task{Func: s.Task.Func, Args: args},
				TouchAll: s.TouchAll,
			})
		}
		output = renamed[member.OutputStep()]

		maps.Copy(annotations, member.Annotations())
	}

	for _, idx := range indices {
		if _, io := ioDeps[idx.Name]; idx.Partitioned && !io {
			if _, ok := numBlocks[idx.Name]; !ok {
				numBlocks[idx.Name] = parts
			}
		}
	}

	b := graph.NewBlockwise(last, parts).
		Indices(indices...).
		NumBlocks(numBlocks).
		IODeps(ioDeps).
		Steps(steps...)
	for k, v := range annotations {
		b.Annotate(k, v)
	}
	return b.Build()
}

func sameDeps(a, b map[int]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || fmt.Sprint(v) != fmt.Sprint(w) {
			return false
		}
	}
	return true
}
