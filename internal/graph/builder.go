package graph

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

const defaultRecursionLimit = 25

type node struct {
	name string
	kind NodeKind
	fn   NodeFunc
}

type branch struct {
	route RouteFunc
	// targets is nil when any registered node (or End) is allowed.
	targets map[string]bool
}

// Builder collects nodes and edges. Mistakes are accumulated and reported
// together by Compile.
type Builder struct {
	nodes    map[string]*node
	order    []string
	edges    map[string]string
	branches map[string]*branch
	errs     *multierror.Error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes:    make(map[string]*node),
		edges:    make(map[string]string),
		branches: make(map[string]*branch),
	}
}

// AddNode registers a node.
func (b *Builder) AddNode(name string, kind NodeKind, fn NodeFunc) *Builder {
	switch {
	case name == "" || name == Start || name == End:
		b.errs = multierror.Append(b.errs, fmt.Errorf("invalid node name %q", name))
	case fn == nil:
		b.errs = multierror.Append(b.errs, fmt.Errorf("node %s: nil function", name))
	case b.nodes[name] != nil:
		b.errs = multierror.Append(b.errs, fmt.Errorf("node %s: already registered", name))
	default:
		b.nodes[name] = &node{name: name, kind: kind, fn: fn}
		b.order = append(b.order, name)
	}
	return b
}

// AddEdge adds an unconditional transition.
func (b *Builder) AddEdge(from, to string) *Builder {
	if b.hasOutgoing(from) {
		b.errs = multierror.Append(b.errs, fmt.Errorf("node %s: outgoing transition already defined", from))
		return b
	}
	b.edges[from] = to
	return b
}

// AddConditionalEdges routes from a node through route. When targets is
// empty, route may return any registered node or End.
func (b *Builder) AddConditionalEdges(from string, route RouteFunc, targets ...string) *Builder {
	if route == nil {
		b.errs = multierror.Append(b.errs, fmt.Errorf("node %s: nil route", from))
		return b
	}
	if b.hasOutgoing(from) {
		b.errs = multierror.Append(b.errs, fmt.Errorf("node %s: outgoing transition already defined", from))
		return b
	}
	br := &branch{route: route}
	if len(targets) > 0 {
		br.targets = make(map[string]bool, len(targets))
		for _, t := range targets {
			br.targets[t] = true
		}
	}
	b.branches[from] = br
	return b
}

func (b *Builder) hasOutgoing(from string) bool {
	_, e := b.edges[from]
	_, c := b.branches[from]
	return e || c
}

// Option configures a compiled graph.
type Option func(*Graph)

// WithSaver sets the checkpoint store. Required.
func WithSaver(s Saver) Option {
	return func(g *Graph) { g.saver = s }
}

// WithInterruptBefore pauses the graph before any of the named nodes runs.
func WithInterruptBefore(nodes ...string) Option {
	return func(g *Graph) {
		for _, n := range nodes {
			g.interruptBefore[n] = true
		}
	}
}

// WithRecursionLimit caps the nodes run by a single invocation.
func WithRecursionLimit(n int) Option {
	return func(g *Graph) { g.recursionLimit = n }
}

// WithObserver registers a node observer.
func WithObserver(o Observer) Option {
	return func(g *Graph) { g.observers = append(g.observers, o) }
}

// Compile validates the wiring and returns an executable graph.
func (b *Builder) Compile(opts ...Option) (*Graph, error) {
	g := &Graph{
		nodes:           b.nodes,
		order:           b.order,
		edges:           b.edges,
		branches:        b.branches,
		interruptBefore: make(map[string]bool),
		recursionLimit:  defaultRecursionLimit,
	}
	for _, opt := range opts {
		opt(g)
	}

	result := b.errs
	if g.saver == nil {
		result = multierror.Append(result, fmt.Errorf("checkpoint saver is required"))
	}
	if g.recursionLimit <= 0 {
		result = multierror.Append(result, fmt.Errorf("recursion limit must be positive"))
	}
	if !b.hasOutgoing(Start) {
		result = multierror.Append(result, fmt.Errorf("no transition from %s", Start))
	}
	for _, name := range b.order {
		if !b.hasOutgoing(name) {
			result = multierror.Append(result, fmt.Errorf("node %s: no outgoing transition", name))
		}
	}
	for _, from := range sortedKeys(b.edges) {
		to := b.edges[from]
		if from != Start && b.nodes[from] == nil {
			result = multierror.Append(result, fmt.Errorf("edge from unknown node %s", from))
		}
		if to != End && b.nodes[to] == nil {
			result = multierror.Append(result, fmt.Errorf("edge %s -> unknown node %s", from, to))
		}
	}
	for _, from := range sortedKeys(b.branches) {
		if from != Start && b.nodes[from] == nil {
			result = multierror.Append(result, fmt.Errorf("conditional edge from unknown node %s", from))
		}
		for _, t := range sortedKeys(b.branches[from].targets) {
			if t != End && b.nodes[t] == nil {
				result = multierror.Append(result, fmt.Errorf("conditional edge %s -> unknown node %s", from, t))
			}
		}
	}
	for _, n := range sortedKeys(g.interruptBefore) {
		if b.nodes[n] == nil {
			result = multierror.Append(result, fmt.Errorf("interrupt before unknown node %s", n))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return g, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
