// Package callgraph builds the whole-program call graph: one node per
// function plus a synthetic sink that receives every call whose target is
// not a function of the compilation unit.
//
// Nodes live in a flat arena addressed by NodeID, and strongly connected
// components are integer ids into that arena, so recursive programs never
// produce pointer cycles.
package callgraph

import (
	"sort"

	"github.com/funvibe/tyunify/internal/config"
	"github.com/funvibe/tyunify/internal/ir"
	"github.com/funvibe/tyunify/internal/signatures"
	"github.com/funvibe/tyunify/internal/typesystem"
)

// NodeID indexes Graph.Nodes.
type NodeID int

// Sink is the synthetic unknown node. It has no parameters; every call
// routed to it is typed from a library signature or falls back to any.
const Sink NodeID = 0

// Node is a function of the compilation unit, or the sink.
type Node struct {
	ID     NodeID
	Name   string
	Params []typesystem.TypeVar
	Ret    typesystem.TypeVar
	Fn     *ir.Function // nil for the sink
}

// Signature returns the node's function shape over its type variables.
func (n *Node) Signature() typesystem.TFunc {
	params := make([]typesystem.Type, len(n.Params))
	for i, p := range n.Params {
		params[i] = p
	}
	return typesystem.TFunc{Params: params, Ret: n.Ret}
}

// SiteKind classifies how a call site's target was resolved.
type SiteKind int

const (
	SiteDirect     SiteKind = iota // a function of the compilation unit
	SiteLibrary                    // an external function with a known signature
	SiteUnresolved                 // an external function without a signature
	SiteDynamic                    // computed target or duck-typed method call
)

func (k SiteKind) String() string {
	switch k {
	case SiteDirect:
		return "direct"
	case SiteLibrary:
		return "library"
	case SiteUnresolved:
		return "unresolved"
	case SiteDynamic:
		return "dynamic"
	default:
		return "invalid"
	}
}

// CallSite is one static call expression.
type CallSite struct {
	ID        int
	Caller    NodeID
	Callee    NodeID
	Kind      SiteKind
	Name      string // callee name as written; method name for method calls
	Expr      ir.Expression
	Args      []typesystem.TypeVar
	Result    typesystem.TypeVar
	Signature *signatures.Signature // set for SiteLibrary
	Loc       ir.Location
}

// Edge is a caller to callee link weighted by the number of call sites.
type Edge struct {
	From   NodeID
	To     NodeID
	Weight int
}

// Graph is the call graph of one compilation unit. It is read-only once
// built.
type Graph struct {
	Nodes []*Node
	Sites []*CallSite

	edges      []Edge
	succ       [][]NodeID
	byName     map[string]NodeID
	siteByExpr map[ir.Expression]*CallSite

	sccs     [][]NodeID
	sccOf    []int
	selfLoop []bool
}

// Lookup returns the node of the named program function.
func (g *Graph) Lookup(name string) (*Node, bool) {
	id, ok := g.byName[name]
	if !ok {
		return nil, false
	}
	return g.Nodes[id], true
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) *Node {
	return g.Nodes[id]
}

// SiteFor returns the call site recorded for a call expression.
func (g *Graph) SiteFor(expr ir.Expression) (*CallSite, bool) {
	s, ok := g.siteByExpr[expr]
	return s, ok
}

// Edges returns all edges ordered by (From, To).
func (g *Graph) Edges() []Edge {
	return g.edges
}

// Callees returns the distinct callees of id in ascending order.
func (g *Graph) Callees(id NodeID) []NodeID {
	return g.succ[id]
}

// SCCs returns the strongly connected components callees-first: every
// component appears after all components it calls into.
func (g *Graph) SCCs() [][]NodeID {
	return g.sccs
}

// SCCOf returns the component index of a node.
func (g *Graph) SCCOf(id NodeID) int {
	return g.sccOf[id]
}

// HasSelfLoop reports whether some function of the component calls itself
// directly.
func (g *Graph) HasSelfLoop(scc int) bool {
	return g.selfLoop[scc]
}

// IsRecursive reports whether the component is a cycle: more than one node,
// or one node calling itself.
func (g *Graph) IsRecursive(scc int) bool {
	return len(g.sccs[scc]) > 1 || g.selfLoop[scc]
}

// SCCName renders a component for diagnostics, e.g. "{even, odd}".
func (g *Graph) SCCName(scc int) string {
	ids := g.sccs[scc]
	s := "{"
	for i, id := range ids {
		if i > 0 {
			s += ", "
		}
		s += g.Nodes[id].Name
	}
	return s + "}"
}

func newGraph() *Graph {
	g := &Graph{
		byName:     make(map[string]NodeID),
		siteByExpr: make(map[ir.Expression]*CallSite),
	}
	g.Nodes = append(g.Nodes, &Node{ID: Sink, Name: config.UnknownSinkName})
	return g
}

func (g *Graph) addNode(fn *ir.Function) {
	params := make([]typesystem.TypeVar, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p.Var
	}
	id := NodeID(len(g.Nodes))
	g.Nodes = append(g.Nodes, &Node{ID: id, Name: fn.Name, Params: params, Ret: fn.Ret, Fn: fn})
	g.byName[fn.Name] = id
}

// finish derives the weighted edge list and successor lists from the sites.
func (g *Graph) finish() {
	weights := make(map[[2]NodeID]int)
	for _, s := range g.Sites {
		weights[[2]NodeID{s.Caller, s.Callee}]++
	}
	g.edges = make([]Edge, 0, len(weights))
	for k, w := range weights {
		g.edges = append(g.edges, Edge{From: k[0], To: k[1], Weight: w})
	}
	sort.Slice(g.edges, func(i, j int) bool {
		if g.edges[i].From != g.edges[j].From {
			return g.edges[i].From < g.edges[j].From
		}
		return g.edges[i].To < g.edges[j].To
	})

	g.succ = make([][]NodeID, len(g.Nodes))
	for _, e := range g.edges {
		g.succ[e.From] = append(g.succ[e.From], e.To)
	}
}
