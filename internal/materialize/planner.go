package materialize

import (
	"fmt"

	"github.com/funvibe/tyunify/internal/constraints"
	"github.com/funvibe/tyunify/internal/ir"
	"github.com/funvibe/tyunify/internal/solver"
	ts "github.com/funvibe/tyunify/internal/typesystem"
	"github.com/google/uuid"
)

// castNamespace seeds the name-based cast IDs, so the same cast in the same
// program always gets the same ID.
var castNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/funvibe/tyunify/cast"))

// Materialize walks the solved program once and produces its TypeSolution.
func Materialize(prog *ir.Program, set *constraints.Set, res *solver.Result, lattice ts.Lattice) *TypeSolution {
	sol := &TypeSolution{
		File: prog.File,
		vars: make(map[ts.TypeVar]Resolution),
	}
	resolve := func(v ts.TypeVar) Resolution {
		t, why := res.Resolve(v)
		return Resolution{Type: t, Fallback: why}
	}

	for _, v := range set.Vars() {
		sol.vars[v] = resolve(v)
		sol.order = append(sol.order, v)
	}

	for _, sc := range set.Scopes {
		fn := sc.Function
		sig := FunctionSignature{Name: fn.Name, Ret: sol.vars[fn.Ret]}
		params := make(map[ts.TypeVar]bool, len(fn.Params))
		for _, p := range fn.Params {
			params[p.Var] = true
			sig.Params = append(sig.Params, Binding{Name: p.Name, Type: sol.vars[p.Var]})
		}
		for _, l := range sc.Locals {
			if params[l.Var] {
				continue
			}
			sig.Locals = append(sig.Locals, Binding{Name: l.Name, Type: sol.vars[l.Var]})
		}
		sol.Functions = append(sol.Functions, sig)

		p := &planner{sol: sol, lattice: lattice, promoted: make(map[ir.Expression]ts.TypeVar)}
		for _, h := range sc.Hints {
			p.promoted[h.Left] = h.Promoted
			p.promoted[h.Right] = h.Promoted
		}
		p.block(fn.Body)
		sol.Casts = append(sol.Casts, p.casts...)
	}

	sortCasts(sol.Casts)
	return sol
}

type planner struct {
	sol      *TypeSolution
	lattice  ts.Lattice
	promoted map[ir.Expression]ts.TypeVar
	casts    []CastInsertion
}

func (p *planner) block(stmts []ir.Statement) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *ir.Assign:
			p.expr(s.Value, SiteStorage)
		case *ir.Return:
			if s.Value != nil {
				p.expr(s.Value, SiteStorage)
			}
		case *ir.ExprStmt:
			p.expr(s.X, SiteOther)
		case *ir.If:
			p.expr(s.Cond, SiteOther)
			p.block(s.Then)
			p.block(s.Else)
		case *ir.While:
			p.expr(s.Cond, SiteOther)
			p.block(s.Body)
		case *ir.For:
			p.expr(s.Iter, SiteOther)
			p.block(s.Body)
		}
	}
}

func (p *planner) expr(e ir.Expression, site Site) {
	p.check(e, site)

	switch e := e.(type) {
	case *ir.Binary:
		p.expr(e.Left, SiteOther)
		p.expr(e.Right, SiteOther)
	case *ir.Unary:
		p.expr(e.Operand, SiteOther)
	case *ir.Call:
		p.args(e.Args)
	case *ir.DynamicCall:
		p.expr(e.Target, SiteOther)
		p.args(e.Args)
	case *ir.MethodCall:
		p.expr(e.Receiver, SiteOther)
		p.args(e.Args)
	case *ir.List:
		for _, el := range e.Elems {
			p.expr(el, SiteStorage)
		}
	}
}

func (p *planner) args(args []ir.Expression) {
	for _, a := range args {
		p.expr(a, SiteCallArgument)
	}
}

// check plans the cast for one expression, if any. A comparison operand is
// cast straight to the promoted comparison type.
func (p *planner) check(e ir.Expression, site Site) {
	info := e.Info()
	solved := p.sol.vars[info.Var].Type
	if solved == nil {
		return
	}

	from, to := info.Local, solved
	if c, ok := p.promoted[e]; ok {
		to = p.sol.vars[c].Type
		if from == nil {
			from = solved
		}
	}
	if from == nil || to == nil || from.Equal(to) {
		return
	}

	kind, action, ambiguous := p.classify(from, to, site)
	p.casts = append(p.casts, CastInsertion{
		ID:        castID(info.Loc, info.Var, from, to),
		Location:  info.Loc,
		Var:       info.Var,
		From:      from,
		To:        to,
		Kind:      kind,
		Site:      site,
		Action:    action,
		Ambiguous: ambiguous,
	})
}

func castID(loc ir.Location, v ts.TypeVar, from, to ts.Concrete) uuid.UUID {
	key := fmt.Sprintf("%s|%s|%s|%s", loc, v, from, to)
	return uuid.NewSHA1(castNamespace, []byte(key))
}

func (p *planner) classify(from, to ts.Concrete, site Site) (CastKind, Action, bool) {
	switch {
	case ts.IsDynamic(to):
		return CastDynamic, ActionBox, false
	case ts.IsDynamic(from):
		return CastDynamic, ActionUnbox, false
	}

	if dir, ok := ownershipDirection(from, to); ok {
		switch dir {
		case ActionBorrow:
			return CastOwnership, dir, site != SiteCallArgument
		case ActionToOwned:
			return CastOwnership, dir, site != SiteStorage
		default:
			// Mixed directions inside one compound type.
			return CastOwnership, ActionConvert, true
		}
	}

	if p.lattice.Widens(from, to) {
		if _, ok := to.(ts.TOption); ok {
			if _, fromOpt := from.(ts.TOption); !fromOpt {
				return CastWiden, ActionWrap, false
			}
		}
		return CastWiden, ActionConvert, false
	}
	return CastNarrow, ActionConvert, true
}

// ownershipDirection reports whether from and to differ only in string
// ownership, and in which direction. ActionConvert means both directions
// occur.
func ownershipDirection(from, to ts.Concrete) (Action, bool) {
	var dir Action
	var walk func(a, b ts.Concrete) bool
	walk = func(a, b ts.Concrete) bool {
		if a.Equal(b) {
			return true
		}
		switch a := a.(type) {
		case ts.Prim:
			bp, ok := b.(ts.Prim)
			if !ok || !a.IsString() || !bp.IsString() {
				return false
			}
			step := ActionBorrow
			if a == ts.StrRef {
				step = ActionToOwned
			}
			if dir != "" && dir != step {
				dir = ActionConvert
			} else {
				dir = step
			}
			return true
		case ts.TSeq:
			bs, ok := b.(ts.TSeq)
			return ok && walk(a.Elem, bs.Elem)
		case ts.TOption:
			bo, ok := b.(ts.TOption)
			return ok && walk(a.Elem, bo.Elem)
		case ts.TMap:
			bm, ok := b.(ts.TMap)
			return ok && walk(a.Key, bm.Key) && walk(a.Val, bm.Val)
		case ts.TFn:
			bf, ok := b.(ts.TFn)
			if !ok || len(a.Params) != len(bf.Params) {
				return false
			}
			for i := range a.Params {
				if !walk(a.Params[i], bf.Params[i]) {
					return false
				}
			}
			return walk(a.Ret, bf.Ret)
		}
		return false
	}
	if !walk(from, to) || dir == "" {
		return "", false
	}
	return dir, true
}
