// Package materialize maps a solver result back onto the program: a total
// TypeSolution covering every type variable, plus the explicit coercions the
// code generator has to insert where a local guess disagrees with the
// global answer.
package materialize

import (
	"sort"

	"github.com/funvibe/tyunify/internal/ir"
	"github.com/funvibe/tyunify/internal/solver"
	ts "github.com/funvibe/tyunify/internal/typesystem"
	"github.com/google/uuid"
)

// Resolution is the final answer for one variable. Fallback is
// solver.FallbackNone unless Type is the any fallback.
type Resolution struct {
	Type     ts.Concrete
	Fallback solver.Fallback
}

// IsFallback reports whether the variable fell back to any.
func (r Resolution) IsFallback() bool {
	return r.Fallback != solver.FallbackNone
}

// CastKind classifies a coercion.
type CastKind int

const (
	CastWiden     CastKind = iota // lossless, along the lattice
	CastNarrow                    // lossy or against the lattice; always ambiguous
	CastOwnership                 // borrowed and owned string forms
	CastDynamic                   // into or out of the any fallback
)

func (k CastKind) String() string {
	switch k {
	case CastWiden:
		return "widen"
	case CastNarrow:
		return "narrow"
	case CastOwnership:
		return "ownership"
	case CastDynamic:
		return "dynamic"
	default:
		return "invalid"
	}
}

// Site is the syntactic position of the coerced expression, which decides
// the preferred ownership direction.
type Site int

const (
	SiteCallArgument Site = iota // prefers borrowing
	SiteStorage                  // assignment or return; prefers owning
	SiteOther
)

func (s Site) String() string {
	switch s {
	case SiteCallArgument:
		return "call-argument"
	case SiteStorage:
		return "storage"
	default:
		return "other"
	}
}

// Action is what the generator is expected to emit.
type Action string

const (
	ActionConvert Action = "convert"  // numeric conversion
	ActionWrap    Action = "wrap"     // into an optional
	ActionBorrow  Action = "borrow"   // owned to borrowed
	ActionToOwned Action = "to-owned" // borrowed to owned (clone)
	ActionBox     Action = "box"      // into the dynamic type
	ActionUnbox   Action = "unbox"    // runtime-checked extraction
)

// CastInsertion is one coercion the generator must apply at Location. The
// engine never rewrites the program itself.
type CastInsertion struct {
	ID        uuid.UUID
	Location  ir.Location
	Var       ts.TypeVar
	From      ts.Concrete
	To        ts.Concrete
	Kind      CastKind
	Site      Site
	Action    Action
	Ambiguous bool
}

// Binding is a resolved named value.
type Binding struct {
	Name string
	Type Resolution
}

// FunctionSignature is the resolved signature of a program function.
type FunctionSignature struct {
	Name   string
	Params []Binding
	Ret    Resolution
	Locals []Binding // parameters excluded
}

// TypeSolution is the immutable output of one engine run. The engine keeps
// no reference to it after returning.
type TypeSolution struct {
	File      string
	Functions []FunctionSignature
	Casts     []CastInsertion

	vars  map[ts.TypeVar]Resolution
	order []ts.TypeVar
}

// Lookup returns the resolution of v.
func (s *TypeSolution) Lookup(v ts.TypeVar) (Resolution, bool) {
	r, ok := s.vars[v]
	return r, ok
}

// TypeOf returns the solved type of an expression, any if it was never
// registered.
func (s *TypeSolution) TypeOf(e ir.Expression) ts.Concrete {
	if r, ok := s.vars[e.Info().Var]; ok {
		return r.Type
	}
	return ts.Dynamic
}

// Vars returns every covered variable in ascending order.
func (s *TypeSolution) Vars() []ts.TypeVar {
	return s.order
}

// Function returns the resolved signature of the named function.
func (s *TypeSolution) Function(name string) (FunctionSignature, bool) {
	for _, f := range s.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return FunctionSignature{}, false
}

// Fallbacks counts the variables that fell back to any, by reason.
func (s *TypeSolution) Fallbacks() map[solver.Fallback]int {
	out := make(map[solver.Fallback]int)
	for _, v := range s.order {
		if r := s.vars[v]; r.IsFallback() {
			out[r.Fallback]++
		}
	}
	return out
}

// CastsAt returns the casts planned for the expression with variable v.
func (s *TypeSolution) CastsAt(v ts.TypeVar) []CastInsertion {
	var out []CastInsertion
	for _, c := range s.Casts {
		if c.Var == v {
			out = append(out, c)
		}
	}
	return out
}

func sortCasts(casts []CastInsertion) {
	sort.SliceStable(casts, func(i, j int) bool {
		a, b := casts[i].Location, casts[j].Location
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return casts[i].Var < casts[j].Var
	})
}
