// Package ir is the whole-program intermediate representation the engine
// consumes. Parsing and per-statement local inference happen upstream; every
// expression arrives with a type variable and, optionally, the locally
// inferred type guess.
package ir

import (
	"fmt"

	"github.com/funvibe/tyunify/internal/typesystem"
)

// Location is a source position used for diagnostics and cast placement.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	switch {
	case l.File == "" && l.Line == 0:
		return "<unknown>"
	case l.File == "":
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	default:
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
}

// Node is the base interface for all IR nodes.
type Node interface {
	Pos() Location
}

// Statement is a Node that represents a statement.
type Statement interface {
	Node
	statementNode()
}

// Expression is a Node that represents an expression.
type Expression interface {
	Node
	expressionNode()
	Info() *ExprInfo
}

// ExprInfo is the typing payload shared by every expression.
type ExprInfo struct {
	Var   typesystem.TypeVar  // allocated upstream (see AllocateVars)
	Local typesystem.Concrete // locally inferred guess; nil if none
	Loc   Location
}

func (e *ExprInfo) Info() *ExprInfo { return e }
func (e *ExprInfo) Pos() Location   { return e.Loc }

// Program is the whole compilation unit.
type Program struct {
	File      string
	Functions []*Function
}

// Function returns the function with the given name, or nil.
func (p *Program) Function(name string) *Function {
	for _, fn := range p.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// Function is a top-level function definition.
type Function struct {
	Name     string
	Params   []*Param
	Ret      typesystem.TypeVar
	RetAnnot typesystem.Concrete // declared return type; nil if none
	Body     []Statement
	Loc      Location
}

func (f *Function) Pos() Location { return f.Loc }

// Param is a function parameter.
type Param struct {
	Name  string
	Var   typesystem.TypeVar
	Annot typesystem.Concrete // declared type; nil if none
	Loc   Location
}

func (p *Param) Pos() Location { return p.Loc }

// ===== Statements =====

// Assign binds Value to the local Target.
type Assign struct {
	Target string
	Annot  typesystem.Concrete // optional declared type of Target
	Value  Expression
	Loc    Location
}

func (s *Assign) Pos() Location { return s.Loc }
func (s *Assign) statementNode() {}

// Return returns Value from the enclosing function. Value is nil for a bare
// return.
type Return struct {
	Value Expression
	Loc   Location
}

func (s *Return) Pos() Location { return s.Loc }
func (s *Return) statementNode() {}

// ExprStmt evaluates X for its effects.
type ExprStmt struct {
	X   Expression
	Loc Location
}

func (s *ExprStmt) Pos() Location { return s.Loc }
func (s *ExprStmt) statementNode() {}

// If is a two-way conditional.
type If struct {
	Cond Expression
	Then []Statement
	Else []Statement
	Loc  Location
}

func (s *If) Pos() Location { return s.Loc }
func (s *If) statementNode() {}

// While loops while Cond holds.
type While struct {
	Cond Expression
	Body []Statement
	Loc  Location
}

func (s *While) Pos() Location { return s.Loc }
func (s *While) statementNode() {}

// For binds Target to each element of Iter.
type For struct {
	Target string
	Iter   Expression
	Body   []Statement
	Loc    Location
}

func (s *For) Pos() Location { return s.Loc }
func (s *For) statementNode() {}

// ===== Expressions =====

// LitKind classifies literals.
type LitKind int

const (
	LitInt LitKind = iota
	LitFloat
	LitBool
	LitString
	LitNone
)

func (k LitKind) String() string {
	switch k {
	case LitInt:
		return "int"
	case LitFloat:
		return "float"
	case LitBool:
		return "bool"
	case LitString:
		return "str"
	case LitNone:
		return "none"
	default:
		return "invalid"
	}
}

// Literal is a constant.
type Literal struct {
	ExprInfo
	Kind  LitKind
	Value string
}

func (e *Literal) expressionNode() {}

// Name is a use of a local variable or parameter.
type Name struct {
	ExprInfo
	Ident string
}

func (e *Name) expressionNode() {}

// Binary is a binary operation.
type Binary struct {
	ExprInfo
	Op    string
	Left  Expression
	Right Expression
}

func (e *Binary) expressionNode() {}

// Unary is a prefix operation.
type Unary struct {
	ExprInfo
	Op      string
	Operand Expression
}

func (e *Unary) expressionNode() {}

// Call is a call whose target is statically named.
type Call struct {
	ExprInfo
	Callee string
	Args   []Expression
}

func (e *Call) expressionNode() {}

// DynamicCall is a call whose target is computed at run time.
type DynamicCall struct {
	ExprInfo
	Target Expression
	Args   []Expression
}

func (e *DynamicCall) expressionNode() {}

// MethodCall is a duck-typed method invocation. The receiver's type decides
// the target at run time, so it is never resolved statically.
type MethodCall struct {
	ExprInfo
	Receiver Expression
	Method   string
	Args     []Expression
}

func (e *MethodCall) expressionNode() {}

// List is a list display.
type List struct {
	ExprInfo
	Elems []Expression
}

func (e *List) expressionNode() {}
