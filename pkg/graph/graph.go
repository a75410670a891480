package graph

import (
	"fmt"
	"maps"
	"slices"

	"github.com/aretw0/teller/pkg/domain"
)

// Graph is a compiled, validated workflow definition.
// It never changes after Compile and is safe for concurrent use.
type Graph struct {
	name  string
	entry string
	nodes map[string]domain.NodeFunc
	order []string
	edges map[string]edge
}

// EdgeInfo describes an outgoing transition for introspection.
type EdgeInfo struct {
	From        string
	To          string
	Label       string
	Conditional bool
}

// Name returns the workflow name.
func (g *Graph) Name() string { return g.name }

// Entry returns the entry node.
func (g *Graph) Entry() string { return g.entry }

// Nodes returns node names in registration order.
func (g *Graph) Nodes() []string { return slices.Clone(g.order) }

// Node returns the computation registered under name.
func (g *Graph) Node(name string) (domain.NodeFunc, bool) {
	fn, ok := g.nodes[name]
	return fn, ok
}

// Next resolves the node that follows from, given the state after from ran.
// It returns End when the workflow is finished.
func (g *Graph) Next(from string, s *domain.State) (string, error) {
	e, ok := g.edges[from]
	if !ok {
		return "", &domain.MissingEdgeError{Node: from}
	}
	if !e.conditional() {
		return e.to, nil
	}
	label, err := choose(*e.selector, s)
	if err != nil {
		return "", &domain.BranchMappingError{Node: from, Cause: err}
	}
	to, ok := e.mapping[label]
	if !ok {
		return "", &domain.BranchMappingError{Node: from, Label: label}
	}
	return to, nil
}

func choose(sel Selector, s *domain.State) (label string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("selector panic: %v", r)
		}
	}()
	return sel.Choose(s), nil
}

// Describe lists every edge, conditional branches expanded per label.
func (g *Graph) Describe() []EdgeInfo {
	var out []EdgeInfo
	for _, from := range g.order {
		e, ok := g.edges[from]
		if !ok {
			continue
		}
		if !e.conditional() {
			out = append(out, EdgeInfo{From: from, To: e.to})
			continue
		}
		for _, label := range slices.Sorted(maps.Keys(e.mapping)) {
			out = append(out, EdgeInfo{From: from, To: e.mapping[label], Label: label, Conditional: true})
		}
	}
	return out
}

// unreachable crawls from the entry and returns the nodes never visited.
func (g *Graph) unreachable() []string {
	visited := map[string]bool{}
	queue := []string{g.entry}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] || current == End {
			continue
		}
		visited[current] = true
		if e, ok := g.edges[current]; ok {
			for _, t := range e.targets() {
				if !visited[t] {
					queue = append(queue, t)
				}
			}
		}
	}

	var missing []string
	for _, n := range g.order {
		if !visited[n] {
			missing = append(missing, n)
		}
	}
	return missing
}
