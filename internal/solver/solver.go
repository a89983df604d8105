// Package solver computes the global type assignment: a union-find over type
// variables, a side table binding class roots to concrete types, and a
// fixpoint loop scheduled over the call graph's strongly connected
// components, callees first.
package solver

import (
	"io"
	"log/slog"

	"github.com/funvibe/tyunify/internal/callgraph"
	"github.com/funvibe/tyunify/internal/config"
	"github.com/funvibe/tyunify/internal/constraints"
	"github.com/funvibe/tyunify/internal/diagnostics"
	"github.com/funvibe/tyunify/internal/ir"
	ts "github.com/funvibe/tyunify/internal/typesystem"
)

// Fallback says why a variable resolved to any.
type Fallback int

const (
	FallbackNone           Fallback = iota // resolved precisely
	FallbackUnconstrained                  // no constraint ever reached the class
	FallbackConflict                       // two bindings had no common join
	FallbackNonConvergent                  // the iteration ceiling was reached first
	FallbackUnresolvedCall                 // flowed into or out of an unknown call target
	FallbackLibrary                        // a library signature declares any
)

func (f Fallback) String() string {
	switch f {
	case FallbackNone:
		return "none"
	case FallbackUnconstrained:
		return "unconstrained"
	case FallbackConflict:
		return "conflict"
	case FallbackNonConvergent:
		return "non-convergent"
	case FallbackUnresolvedCall:
		return "unresolved-call"
	case FallbackLibrary:
		return "library-dynamic"
	default:
		return "invalid"
	}
}

// Options tunes a solver run.
type Options struct {
	// MaxIterations bounds the sweeps over one component and the rounds
	// over the whole condensation. Zero means config.DefaultMaxIterations.
	MaxIterations int

	Lattice ts.Lattice
	Logger  *slog.Logger
}

// Result is the solved state of one run. Its answers never change after
// Solve returns.
type Result struct {
	uf       *unionFind
	resolved map[ts.TypeVar]ts.Concrete
	reason   map[ts.TypeVar]Fallback

	// Iterations holds, per component, the largest number of sweeps any
	// round needed to stabilize it.
	Iterations []int

	// Rounds is the number of passes over the whole condensation.
	Rounds int

	// NonConvergent lists the components that hit the ceiling.
	NonConvergent []int

	Diagnostics []*diagnostics.Diagnostic
}

// Resolve returns the solved type of v and, for any, why.
func (r *Result) Resolve(v ts.TypeVar) (ts.Concrete, Fallback) {
	root := r.uf.find(v)
	if t, ok := r.resolved[root]; ok {
		if ts.IsDynamic(t) {
			return t, r.reason[root]
		}
		return t, FallbackNone
	}
	if why, ok := r.reason[root]; ok {
		return ts.Dynamic, why
	}
	return ts.Dynamic, FallbackUnconstrained
}

// Root returns the representative of v's equivalence class.
func (r *Result) Root(v ts.TypeVar) ts.TypeVar {
	return r.uf.find(v)
}

// SameClass reports whether a and b were unified.
func (r *Result) SameClass(a, b ts.TypeVar) bool {
	return r.uf.find(a) == r.uf.find(b)
}

type solver struct {
	*Result
	graph   *callgraph.Graph
	lattice ts.Lattice
	logger  *slog.Logger
}

// Solve runs the fixpoint over set. Every run builds its own state, so
// solving the same set twice gives identical results.
func Solve(set *constraints.Set, g *callgraph.Graph, opts Options) *Result {
	ceiling := opts.MaxIterations
	if ceiling <= 0 {
		ceiling = config.DefaultMaxIterations
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	size := 0
	if vars := set.Vars(); len(vars) > 0 {
		size = int(vars[len(vars)-1]) + 1
	}
	s := &solver{
		Result: &Result{
			uf:         newUnionFind(size),
			resolved:   make(map[ts.TypeVar]ts.Concrete),
			reason:     make(map[ts.TypeVar]Fallback),
			Iterations: make([]int, len(g.SCCs())),
		},
		graph:   g,
		lattice: opts.Lattice,
		logger:  logger,
	}

	// Assignments seed the table once; everything after is monotone, so
	// re-applying them could never change a binding.
	perSCC := make([][]constraints.Constraint, len(g.SCCs()))
	for _, sc := range set.Scopes {
		idx := g.SCCOf(sc.Node)
		for _, c := range sc.Constraints {
			if a, ok := c.(constraints.Assign); ok {
				s.bind(a.V, a.T, a.Loc)
				continue
			}
			perSCC[idx] = append(perSCC[idx], c)
		}
	}

	stuck := make([]bool, len(perSCC))
	changedIn := make([]bool, len(perSCC))
	for {
		s.Rounds++
		roundChanged := false
		for idx, cons := range perSCC {
			sweeps, changed, converged := s.solveSCC(cons, ceiling)
			if sweeps > s.Iterations[idx] {
				s.Iterations[idx] = sweeps
			}
			stuck[idx] = !converged
			changedIn[idx] = changed
			roundChanged = roundChanged || changed
		}
		logger.Debug("solver round", "round", s.Rounds, "changed", roundChanged)
		if !roundChanged {
			break
		}
		if s.Rounds >= ceiling {
			// Callers kept rebinding callee classes; nothing that moved in
			// the last round is known to be stable.
			for idx := range stuck {
				stuck[idx] = stuck[idx] || changedIn[idx]
			}
			break
		}
	}

	for idx, bad := range stuck {
		if bad {
			s.nonConvergent(set, idx, ceiling)
		}
	}
	return s.Result
}

// solveSCC sweeps one component's constraints until a sweep changes
// nothing. It reports the sweeps used, whether anything changed, and
// whether a quiet sweep was reached within the ceiling.
func (s *solver) solveSCC(cons []constraints.Constraint, ceiling int) (int, bool, bool) {
	touched := false
	for sweep := 1; sweep <= ceiling; sweep++ {
		changed := false
		for _, c := range cons {
			if s.apply(c) {
				changed = true
			}
		}
		if !changed {
			return sweep, touched, true
		}
		touched = true
	}
	return ceiling, touched, false
}

func (s *solver) apply(c constraints.Constraint) bool {
	switch c := c.(type) {
	case constraints.Equal:
		return s.union(c.A, c.B, c.Loc)

	case constraints.Subtype:
		ta, okA := s.typeOf(c.A)
		if !okA {
			return false
		}
		if ts.IsDynamic(ta) {
			return s.bindDynamic(c.B, s.reason[s.uf.find(c.A)])
		}
		return s.bind(c.B, ta, c.Loc)

	case constraints.Call:
		return s.call(c)

	case constraints.Assign:
		return s.bind(c.V, c.T, c.Loc)
	}
	return false
}

func (s *solver) call(c constraints.Call) bool {
	changed := false
	if c.Callee != callgraph.Sink {
		node := s.graph.Node(c.Callee)
		for i, arg := range c.Args {
			if s.union(arg, node.Params[i], c.Loc) {
				changed = true
			}
		}
		if s.union(c.Ret, node.Ret, c.Loc) {
			changed = true
		}
		return changed
	}

	if c.Signature == nil {
		for _, arg := range c.Args {
			if s.bindDynamic(arg, FallbackUnresolvedCall) {
				changed = true
			}
		}
		return s.bindDynamic(c.Ret, FallbackUnresolvedCall) || changed
	}

	// Library parameters are join-bound at each site separately; they are
	// never unified across sites.
	for i, arg := range c.Args {
		p, ok := c.Signature.ParamFor(i)
		if !ok || ts.IsDynamic(p) {
			continue
		}
		if s.bind(arg, p, c.Loc) {
			changed = true
		}
	}
	if ts.IsDynamic(c.Signature.Ret) {
		return s.bindDynamic(c.Ret, FallbackLibrary) || changed
	}
	return s.bind(c.Ret, c.Signature.Ret, c.Loc) || changed
}

func (s *solver) typeOf(v ts.TypeVar) (ts.Concrete, bool) {
	t, ok := s.resolved[s.uf.find(v)]
	return t, ok
}

// bind raises v's class to include t: the class type becomes the join of
// its current binding and t.
func (s *solver) bind(v ts.TypeVar, t ts.Concrete, loc ir.Location) bool {
	root := s.uf.find(v)
	cur, ok := s.resolved[root]
	if !ok {
		s.resolved[root] = t
		return true
	}
	j, ok := s.lattice.Join(cur, t)
	if !ok {
		s.conflict(root, cur, t, loc)
		return true
	}
	if j.Equal(cur) {
		return false
	}
	s.resolved[root] = j
	return true
}

func (s *solver) bindDynamic(v ts.TypeVar, why Fallback) bool {
	root := s.uf.find(v)
	if cur, ok := s.resolved[root]; ok && ts.IsDynamic(cur) {
		return false
	}
	s.resolved[root] = ts.Dynamic
	s.reason[root] = why
	return true
}

func (s *solver) union(a, b ts.TypeVar, loc ir.Location) bool {
	ra, rb := s.uf.find(a), s.uf.find(b)
	if ra == rb {
		return false
	}
	ta, okA := s.resolved[ra]
	tb, okB := s.resolved[rb]
	whyA, hasA := s.reason[ra]
	whyB, hasB := s.reason[rb]

	root := s.uf.union(ra, rb)
	delete(s.resolved, ra)
	delete(s.resolved, rb)
	delete(s.reason, ra)
	delete(s.reason, rb)

	switch {
	case okA && okB:
		j, ok := s.lattice.Join(ta, tb)
		if !ok {
			s.conflict(root, ta, tb, loc)
			return true
		}
		s.resolved[root] = j
	case okA:
		s.resolved[root] = ta
	case okB:
		s.resolved[root] = tb
	}

	// A dynamic class keeps the reason it fell back for.
	switch {
	case okA && ts.IsDynamic(ta) && hasA:
		s.reason[root] = whyA
	case okB && ts.IsDynamic(tb) && hasB:
		s.reason[root] = whyB
	}
	return true
}

func (s *solver) conflict(root ts.TypeVar, a, b ts.Concrete, loc ir.Location) {
	s.resolved[root] = ts.Dynamic
	s.reason[root] = FallbackConflict
	s.Diagnostics = append(s.Diagnostics, diagnostics.NewError(diagnostics.ErrU001, loc, a, b))
	s.logger.Debug("type conflict", "location", loc.String(), "left", a.String(), "right", b.String())
}

// nonConvergent reports a component that hit the ceiling and marks its
// still-unresolved variables.
func (s *solver) nonConvergent(set *constraints.Set, idx, ceiling int) {
	s.NonConvergent = append(s.NonConvergent, idx)

	var loc ir.Location
	for _, id := range s.graph.SCCs()[idx] {
		if fn := s.graph.Node(id).Fn; fn != nil {
			if loc == (ir.Location{}) {
				loc = fn.Loc
			}
			for _, v := range set.Scope(fn.Name).Vars() {
				root := s.uf.find(v)
				if _, ok := s.resolved[root]; !ok {
					s.reason[root] = FallbackNonConvergent
				}
			}
		}
	}
	s.Diagnostics = append(s.Diagnostics,
		diagnostics.NewError(diagnostics.ErrU002, loc, s.graph.SCCName(idx), ceiling))
	s.logger.Debug("component did not converge", "scc", s.graph.SCCName(idx), "ceiling", ceiling)
}
