// Package constraints turns function bodies into typing constraints over
// type variables. Nothing here solves anything: each function is walked once
// and its constraints are recorded in program order.
package constraints

import (
	"fmt"
	"strings"

	"github.com/funvibe/tyunify/internal/callgraph"
	"github.com/funvibe/tyunify/internal/ir"
	"github.com/funvibe/tyunify/internal/signatures"
	"github.com/funvibe/tyunify/internal/typesystem"
)

// Constraint is one of Equal, Assign, Subtype or Call. Constraints are
// values; once extracted they are never modified.
type Constraint interface {
	Pos() ir.Location
	String() string
	constraintNode()
}

// Equal requires A and B to resolve identically.
type Equal struct {
	A, B typesystem.TypeVar
	Loc  ir.Location
}

func (c Equal) Pos() ir.Location { return c.Loc }
func (c Equal) String() string   { return fmt.Sprintf("%s = %s", c.A, c.B) }
func (Equal) constraintNode()    {}

// Assign fixes V to a known concrete type from a literal or annotation.
type Assign struct {
	V   typesystem.TypeVar
	T   typesystem.Concrete
	Loc ir.Location
}

func (c Assign) Pos() ir.Location { return c.Loc }
func (c Assign) String() string   { return fmt.Sprintf("%s := %s", c.V, c.T) }
func (Assign) constraintNode()    {}

// Subtype lets A be coerced upward to B along the lattice.
type Subtype struct {
	A, B typesystem.TypeVar
	Loc  ir.Location
}

func (c Subtype) Pos() ir.Location { return c.Loc }
func (c Subtype) String() string   { return fmt.Sprintf("%s <: %s", c.A, c.B) }
func (Subtype) constraintNode()    {}

// Call links a call site's argument and result variables to its target.
//
// For program functions Callee names the graph node whose parameter and
// return variables the site unifies with. Calls to the sink carry the
// library Signature when one is known; without one the arguments and result
// fall back to any.
type Call struct {
	Site      int // index into the graph's call sites
	Callee    callgraph.NodeID
	Name      string
	Args      []typesystem.TypeVar
	Ret       typesystem.TypeVar
	Signature *signatures.Signature
	Loc       ir.Location
}

func (c Call) Pos() ir.Location { return c.Loc }

func (c Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	target := c.Name
	if c.Callee == callgraph.Sink && c.Signature == nil {
		target = "?" + c.Name
	}
	return fmt.Sprintf("call %s(%s) -> %s", target, strings.Join(args, ", "), c.Ret)
}

func (Call) constraintNode() {}

// Vars returns the caller-side variables a constraint references.
func Vars(c Constraint) []typesystem.TypeVar {
	switch c := c.(type) {
	case Equal:
		return []typesystem.TypeVar{c.A, c.B}
	case Assign:
		return []typesystem.TypeVar{c.V}
	case Subtype:
		return []typesystem.TypeVar{c.A, c.B}
	case Call:
		return append(append([]typesystem.TypeVar(nil), c.Args...), c.Ret)
	}
	return nil
}
