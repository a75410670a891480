package graph

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/aretw0/teller/pkg/domain"
)

// End is the terminal sentinel. Routing to End stops an execution.
const End = "__end__"

// Selector picks a label from the current state for a conditional edge.
// Labels declares every label Choose may return; each must be mapped.
type Selector struct {
	Labels []string
	Choose func(s *domain.State) string
}

// Builder collects nodes and edges before compilation.
// Every method reports its own failure; failures are also retained and
// returned again by Compile, so a chain of calls can be checked once.
type Builder struct {
	name  string
	nodes map[string]domain.NodeFunc
	order []string
	edges map[string]edge
	entry string
	errs  []error
}

type edge struct {
	to       string
	selector *Selector
	mapping  map[string]string
}

func (e edge) conditional() bool { return e.selector != nil }

func (e edge) targets() []string {
	if !e.conditional() {
		return []string{e.to}
	}
	seen := make(map[string]bool, len(e.mapping))
	var out []string
	for _, label := range slices.Sorted(maps.Keys(e.mapping)) {
		t := e.mapping[label]
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// New creates a builder for a workflow with the given name.
func New(name string) *Builder {
	return &Builder{
		name:  name,
		nodes: make(map[string]domain.NodeFunc),
		edges: make(map[string]edge),
	}
}

func (b *Builder) fail(err error) error {
	b.errs = append(b.errs, err)
	return err
}

// AddNode registers a node under a unique name.
func (b *Builder) AddNode(name string, fn domain.NodeFunc) error {
	if name == "" || name == End {
		return b.fail(fmt.Errorf("%w: reserved node name %q", domain.ErrConfiguration, name))
	}
	if _, exists := b.nodes[name]; exists {
		return b.fail(&domain.DuplicateNodeError{Node: name})
	}
	if fn == nil {
		return b.fail(fmt.Errorf("%w: node %q has no compute function", domain.ErrConfiguration, name))
	}
	b.nodes[name] = fn
	b.order = append(b.order, name)
	return nil
}

// SetEntry declares the first node of every execution.
// It may only be called once.
func (b *Builder) SetEntry(name string) error {
	if b.entry != "" {
		return b.fail(domain.ErrEntryAlreadySet)
	}
	if _, ok := b.nodes[name]; !ok {
		return b.fail(&domain.UnknownNodeError{Node: name})
	}
	b.entry = name
	return nil
}

// AddEdge declares an unconditional transition. The target may be End or a
// node registered later; it is checked at Compile.
func (b *Builder) AddEdge(from, to string) error {
	if err := b.checkSource(from); err != nil {
		return err
	}
	b.edges[from] = edge{to: to}
	return nil
}

// AddConditionalEdge declares a transition chosen at run time by sel.
// Every declared label must appear in mapping.
func (b *Builder) AddConditionalEdge(from string, sel Selector, mapping map[string]string) error {
	if err := b.checkSource(from); err != nil {
		return err
	}
	if sel.Choose == nil {
		return b.fail(&domain.BranchMappingError{Node: from, Build: true})
	}
	for _, label := range sel.Labels {
		if _, ok := mapping[label]; !ok {
			return b.fail(&domain.BranchMappingError{Node: from, Label: label, Build: true})
		}
	}
	sel.Labels = slices.Clone(sel.Labels)
	b.edges[from] = edge{selector: &sel, mapping: maps.Clone(mapping)}
	return nil
}

func (b *Builder) checkSource(from string) error {
	if _, ok := b.nodes[from]; !ok {
		return b.fail(&domain.UnknownNodeError{Node: from})
	}
	if _, dup := b.edges[from]; dup {
		return b.fail(&domain.DuplicateEdgeError{From: from})
	}
	return nil
}

// Compile validates the definition and returns an immutable Graph.
func (b *Builder) Compile() (*Graph, error) {
	errs := slices.Clone(b.errs)
	if b.entry == "" {
		errs = append(errs, domain.ErrMissingEntry)
	}
	for _, from := range b.order {
		e, ok := b.edges[from]
		if !ok {
			continue
		}
		for _, to := range e.targets() {
			if to == End {
				continue
			}
			if _, ok := b.nodes[to]; !ok {
				errs = append(errs, &domain.DanglingEdgeError{From: from, To: to})
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	g := &Graph{
		name:  b.name,
		entry: b.entry,
		nodes: maps.Clone(b.nodes),
		order: slices.Clone(b.order),
		edges: maps.Clone(b.edges),
	}
	if unreachable := g.unreachable(); len(unreachable) > 0 {
		return nil, &domain.UnreachableNodeError{Nodes: unreachable}
	}
	return g, nil
}

// MustCompile is like Compile but panics on error.
// It is meant for package-level workflow definitions.
func (b *Builder) MustCompile() *Graph {
	g, err := b.Compile()
	if err != nil {
		panic(err)
	}
	return g
}
