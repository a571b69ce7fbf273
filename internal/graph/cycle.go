package graph

import "slices"

// findCycle returns one dependency cycle as a closed path
// (["a", "b", "a"]), or nil when the graph is acyclic.
//
// It runs Tarjan's strongly connected components algorithm; any component
// with more than one member, or a single member depending on itself, is a
// cycle.
func findCycle(names []string, deps map[string][]string) []string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		found   []string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range deps[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] != indices[v] {
			return
		}
		var scc []string
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		if found == nil && (len(scc) > 1 || slices.Contains(deps[v], v)) {
			found = cyclePath(scc, deps)
		}
	}

	for _, name := range names {
		if _, visited := indices[name]; !visited {
			strongConnect(name)
		}
	}
	return found
}

// cyclePath walks dependency edges inside one component until it returns
// to the start.
func cyclePath(scc []string, deps map[string][]string) []string {
	slices.Sort(scc)
	members := make(map[string]bool, len(scc))
	for _, m := range scc {
		members[m] = true
	}
	start := scc[0]
	path := []string{start}
	seen := map[string]bool{start: true}
	cur := start
	for {
		next := ""
		for _, d := range deps[cur] {
			if d == start {
				return append(path, start)
			}
			if members[d] && !seen[d] && next == "" {
				next = d
			}
		}
		if next == "" {
			return append(path, start)
		}
		path = append(path, next)
		seen[next] = true
		cur = next
	}
}
