package pipeline

import "slices"

// Graph is a validated set of stage definitions together with a total
// execution order.
type Graph struct {
	defs  []Definition
	index map[StageID]int
	order []int
}

// NewGraph validates defs and resolves their order. It rejects an empty
// set, empty or duplicate ids, dependencies on undefined stages and cycles
// (including self dependencies) with a *ConfigurationError.
func NewGraph(defs ...Definition) (*Graph, error) {
	if len(defs) == 0 {
		return nil, &ConfigurationError{Reason: "no stages defined"}
	}

	g := &Graph{
		defs:  make([]Definition, len(defs)),
		index: make(map[StageID]int, len(defs)),
	}
	for i, d := range defs {
		if d.ID == "" {
			return nil, &ConfigurationError{Reason: "stage with empty id"}
		}
		if _, dup := g.index[d.ID]; dup {
			return nil, &ConfigurationError{Reason: "duplicate stage", Stages: []StageID{d.ID}}
		}
		g.index[d.ID] = i
		g.defs[i] = Definition{ID: d.ID, DependsOn: slices.Clone(d.DependsOn)}
	}

	for _, d := range g.defs {
		for _, dep := range d.DependsOn {
			if dep == d.ID {
				return nil, &ConfigurationError{Reason: "stage depends on itself", Stages: []StageID{d.ID}}
			}
			if _, ok := g.index[dep]; !ok {
				return nil, &ConfigurationError{Reason: "stage " + string(d.ID) + " references undefined stage", Stages: []StageID{dep}}
			}
		}
	}

	order, blocked := g.sort()
	if len(blocked) > 0 {
		return nil, &ConfigurationError{Reason: "dependency cycle", Stages: blocked}
	}
	g.order = order
	return g, nil
}

// sort is Kahn's algorithm. Among the stages that are ready at any point the
// one declared first runs first, which keeps the order deterministic. It
// returns the stages that could not be ordered when there is a cycle.
func (g *Graph) sort() ([]int, []StageID) {
	n := len(g.defs)
	inDegree := make([]int, n)
	dependents := make([][]int, n)
	for i, d := range g.defs {
		seen := make(map[StageID]bool, len(d.DependsOn))
		for _, dep := range d.DependsOn {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			j := g.index[dep]
			inDegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var ready []int
	for i := range n {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, n)
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, dep := range dependents[next] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				pos, _ := slices.BinarySearch(ready, dep)
				ready = slices.Insert(ready, pos, dep)
			}
		}
	}

	if len(order) == n {
		return order, nil
	}
	var blocked []StageID
	for i := range n {
		if inDegree[i] > 0 {
			blocked = append(blocked, g.defs[i].ID)
		}
	}
	return nil, blocked
}

// Resolve returns the definitions in execution order. Every stage appears
// after all of its dependencies.
func (g *Graph) Resolve() []Definition {
	out := make([]Definition, len(g.order))
	for i, idx := range g.order {
		d := g.defs[idx]
		out[i] = Definition{ID: d.ID, DependsOn: slices.Clone(d.DependsOn)}
	}
	return out
}

// Definition returns the definition of id.
func (g *Graph) Definition(id StageID) (Definition, bool) {
	i, ok := g.index[id]
	if !ok {
		return Definition{}, false
	}
	d := g.defs[i]
	return Definition{ID: d.ID, DependsOn: slices.Clone(d.DependsOn)}, true
}

// Len returns the number of stages.
func (g *Graph) Len() int {
	return len(g.defs)
}
