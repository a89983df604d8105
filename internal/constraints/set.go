package constraints

import (
	"fmt"
	"sort"

	"github.com/funvibe/tyunify/internal/callgraph"
	"github.com/funvibe/tyunify/internal/diagnostics"
	"github.com/funvibe/tyunify/internal/ir"
	"github.com/funvibe/tyunify/internal/typesystem"
)

// Local is a named binding of a function: a parameter or an assigned local.
type Local struct {
	Name string
	Var  typesystem.TypeVar
}

// Scope holds everything extracted from one function.
type Scope struct {
	Function    *ir.Function
	Node        callgraph.NodeID
	Locals      []Local // parameters first, then locals in first-assignment order
	Constraints []Constraint
	Hints       []PromotionHint
	Diagnostics []*diagnostics.Diagnostic

	vars      []typesystem.TypeVar
	bindings  map[string]typesystem.TypeVar
	promotion map[*ir.Binary]typesystem.TypeVar
}

// Vars returns the variables registered in this scope in allocation order.
func (s *Scope) Vars() []typesystem.TypeVar {
	return s.vars
}

// Binding returns the variable bound to a parameter or local name.
func (s *Scope) Binding(name string) (typesystem.TypeVar, bool) {
	v, ok := s.bindings[name]
	return v, ok
}

// PromotionHint records a comparison whose operands are promoted to a
// common type before comparing.
type PromotionHint struct {
	Op       string
	Left     ir.Expression
	Right    ir.Expression
	Promoted typesystem.TypeVar
	Loc      ir.Location
}

// Set is the extracted constraint system of a whole program.
type Set struct {
	Scopes []*Scope // program order
	owner  map[typesystem.TypeVar]int
}

// Scope returns the scope of the named function.
func (s *Set) Scope(name string) *Scope {
	for _, sc := range s.Scopes {
		if sc.Function.Name == name {
			return sc
		}
	}
	return nil
}

// Owner returns the index of the scope a variable is registered in.
func (s *Set) Owner(v typesystem.TypeVar) (int, bool) {
	i, ok := s.owner[v]
	return i, ok
}

// Constraints returns every constraint in program order.
func (s *Set) Constraints() []Constraint {
	var out []Constraint
	for _, sc := range s.Scopes {
		out = append(out, sc.Constraints...)
	}
	return out
}

// Hints returns every promotion hint in program order.
func (s *Set) Hints() []PromotionHint {
	var out []PromotionHint
	for _, sc := range s.Scopes {
		out = append(out, sc.Hints...)
	}
	return out
}

// Diagnostics returns the extraction diagnostics in program order.
func (s *Set) Diagnostics() []*diagnostics.Diagnostic {
	var out []*diagnostics.Diagnostic
	for _, sc := range s.Scopes {
		out = append(out, sc.Diagnostics...)
	}
	return out
}

// Vars returns every registered variable in ascending order.
func (s *Set) Vars() []typesystem.TypeVar {
	out := make([]typesystem.TypeVar, 0, len(s.owner))
	for v := range s.owner {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Set) register(scope int, v typesystem.TypeVar) error {
	if v == typesystem.NoVar {
		return fmt.Errorf("%s: unallocated type variable", s.Scopes[scope].Function.Name)
	}
	if prev, ok := s.owner[v]; ok {
		if prev == scope {
			return nil
		}
		return fmt.Errorf("%s registered in both %s and %s", v,
			s.Scopes[prev].Function.Name, s.Scopes[scope].Function.Name)
	}
	s.owner[v] = scope
	s.Scopes[scope].vars = append(s.Scopes[scope].vars, v)
	return nil
}

// Validate checks that every variable referenced by a scope's constraints
// is registered in that scope. Call constraints reach into other functions
// only through the call graph, never through their own variable lists.
func (s *Set) Validate() error {
	for i, sc := range s.Scopes {
		for _, c := range sc.Constraints {
			for _, v := range Vars(c) {
				owner, ok := s.owner[v]
				if !ok {
					return fmt.Errorf("%s: %s references unregistered %s", c.Pos(), c, v)
				}
				if owner != i {
					return fmt.Errorf("%s: %s in %s references %s owned by %s", c.Pos(), c,
						sc.Function.Name, v, s.Scopes[owner].Function.Name)
				}
			}
		}
	}
	return nil
}
