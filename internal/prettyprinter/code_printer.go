// Package prettyprinter renders IR programs back as readable source, with
// the solved types and planned casts written in.
package prettyprinter

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/funvibe/tyunify/internal/ir"
	"github.com/funvibe/tyunify/internal/materialize"
	ts "github.com/funvibe/tyunify/internal/typesystem"
)

// Operator precedence (higher = binds tighter)
var operatorPrecedence = map[string]int{
	"or":     1,
	"and":    2,
	"==":     4,
	"!=":     4,
	"<":      4,
	">":      4,
	"<=":     4,
	">=":     4,
	"in":     4,
	"not in": 4,
	"|":      5,
	"^":      6,
	"&":      7,
	"<<":     8,
	">>":     8,
	"+":      9,
	"-":      9,
	"*":      10,
	"/":      10,
	"//":     10,
	"%":      10,
	"**":     12, // right-assoc
}

const (
	notPrec   = 3
	unaryPrec = 11
)

func getPrecedence(op string) int {
	if p, ok := operatorPrecedence[op]; ok {
		return p
	}
	return 13 // Default high precedence for unknown ops
}

// Right-associative operators
var rightAssoc = map[string]bool{
	"**": true,
}

type CodePrinter struct {
	buf    bytes.Buffer
	indent int
	sol    *materialize.TypeSolution
	casts  map[ts.TypeVar]materialize.CastInsertion
	seen   map[string]bool   // locals already declared in the current function
	locals map[string]string // solved local types of the current function
}

// NewCodePrinter returns a printer for bare programs.
func NewCodePrinter() *CodePrinter {
	return &CodePrinter{}
}

// NewAnnotatingPrinter returns a printer that writes the types and casts of
// sol into the program.
func NewAnnotatingPrinter(sol *materialize.TypeSolution) *CodePrinter {
	p := &CodePrinter{sol: sol, casts: make(map[ts.TypeVar]materialize.CastInsertion)}
	for _, c := range sol.Casts {
		if _, dup := p.casts[c.Var]; !dup {
			p.casts[c.Var] = c
		}
	}
	return p
}

func (p *CodePrinter) String() string {
	return p.buf.String()
}

func (p *CodePrinter) write(s string) {
	p.buf.WriteString(s)
}

func (p *CodePrinter) writeln() {
	p.buf.WriteString("\n")
}

func (p *CodePrinter) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.buf.WriteString("    ")
	}
}

func (p *CodePrinter) typeOf(v ts.TypeVar) (string, bool) {
	if p.sol == nil {
		return "", false
	}
	r, ok := p.sol.Lookup(v)
	if !ok {
		return "", false
	}
	return r.Type.String(), true
}

// PrintProgram prints every function of prog, separated by blank lines.
func (p *CodePrinter) PrintProgram(prog *ir.Program) string {
	for i, fn := range prog.Functions {
		if i > 0 {
			p.writeln()
		}
		p.PrintFunction(fn)
	}
	return p.String()
}

func (p *CodePrinter) PrintFunction(fn *ir.Function) {
	p.seen = make(map[string]bool)
	p.locals = make(map[string]string)
	if p.sol != nil {
		if sig, ok := p.sol.Function(fn.Name); ok {
			for _, l := range sig.Locals {
				p.locals[l.Name] = l.Type.Type.String()
			}
		}
	}
	p.writeIndent()
	p.write("def " + fn.Name + "(")
	for i, param := range fn.Params {
		if i > 0 {
			p.write(", ")
		}
		p.seen[param.Name] = true
		p.write(param.Name)
		if t, ok := p.typeOf(param.Var); ok {
			p.write(": " + t)
		} else if param.Annot != nil {
			p.write(": " + param.Annot.String())
		}
	}
	p.write(")")
	if t, ok := p.typeOf(fn.Ret); ok {
		p.write(" -> " + t)
	} else if fn.RetAnnot != nil {
		p.write(" -> " + fn.RetAnnot.String())
	}
	p.write(":")
	p.writeln()
	p.printBlock(fn.Body)
}

func (p *CodePrinter) printBlock(stmts []ir.Statement) {
	p.indent++
	defer func() { p.indent-- }()
	if len(stmts) == 0 {
		p.writeIndent()
		p.write("pass")
		p.writeln()
		return
	}
	for _, s := range stmts {
		p.printStatement(s)
	}
}

func (p *CodePrinter) printStatement(s ir.Statement) {
	p.writeIndent()
	switch s := s.(type) {
	case *ir.Assign:
		p.write(s.Target)
		if !p.seen[s.Target] {
			p.seen[s.Target] = true
			if t, ok := p.localType(s.Target); ok {
				p.write(": " + t)
			} else if s.Annot != nil {
				p.write(": " + s.Annot.String())
			}
		}
		p.write(" = ")
		p.printExpr(s.Value, 0, false)
		p.writeln()
	case *ir.Return:
		p.write("return")
		if s.Value != nil {
			p.write(" ")
			p.printExpr(s.Value, 0, false)
		}
		p.writeln()
	case *ir.ExprStmt:
		p.printExpr(s.X, 0, false)
		p.writeln()
	case *ir.If:
		p.write("if ")
		p.printExpr(s.Cond, 0, false)
		p.write(":")
		p.writeln()
		p.printBlock(s.Then)
		if len(s.Else) > 0 {
			p.writeIndent()
			p.write("else:")
			p.writeln()
			p.printBlock(s.Else)
		}
	case *ir.While:
		p.write("while ")
		p.printExpr(s.Cond, 0, false)
		p.write(":")
		p.writeln()
		p.printBlock(s.Body)
	case *ir.For:
		p.seen[s.Target] = true
		p.write("for " + s.Target + " in ")
		p.printExpr(s.Iter, 0, false)
		p.write(":")
		p.writeln()
		p.printBlock(s.Body)
	}
}

// localType returns the solved type of a local of the function being
// printed.
func (p *CodePrinter) localType(name string) (string, bool) {
	t, ok := p.locals[name]
	return t, ok
}

func (p *CodePrinter) printExpr(expr ir.Expression, parentPrec int, isRight bool) {
	if expr == nil {
		p.write("<???>")
		return
	}
	if c, ok := p.casts[expr.Info().Var]; ok {
		p.write(string(c.Action))
		if c.Ambiguous {
			p.write("?")
		}
		p.write("<" + c.To.String() + ">(")
		p.printBare(expr, 0, false)
		p.write(")")
		return
	}
	p.printBare(expr, parentPrec, isRight)
}

func (p *CodePrinter) printBare(expr ir.Expression, parentPrec int, isRight bool) {
	switch e := expr.(type) {
	case *ir.Binary:
		prec := getPrecedence(e.Op)
		needParens := prec < parentPrec
		// For same precedence, check associativity
		if prec == parentPrec {
			if isRight && !rightAssoc[e.Op] {
				needParens = true
			} else if !isRight && rightAssoc[e.Op] {
				needParens = true
			}
		}
		if needParens {
			p.write("(")
		}
		p.printExpr(e.Left, prec, false)
		p.write(" " + e.Op + " ")
		p.printExpr(e.Right, prec, true)
		if needParens {
			p.write(")")
		}
	case *ir.Unary:
		prec := unaryPrec
		op := e.Op
		if op == "not" {
			prec, op = notPrec, "not "
		}
		if prec < parentPrec {
			p.write("(")
			defer p.write(")")
		}
		p.write(op)
		p.printExpr(e.Operand, prec, false)
	case *ir.Literal:
		p.printLiteral(e)
	case *ir.Name:
		p.write(e.Ident)
	case *ir.Call:
		p.write(e.Callee)
		p.printArgs(e.Args)
	case *ir.DynamicCall:
		p.printExpr(e.Target, 100, false)
		p.printArgs(e.Args)
	case *ir.MethodCall:
		p.printExpr(e.Receiver, 100, false)
		p.write("." + e.Method)
		p.printArgs(e.Args)
	case *ir.List:
		p.write("[")
		for i, el := range e.Elems {
			if i > 0 {
				p.write(", ")
			}
			p.printExpr(el, 0, false)
		}
		p.write("]")
	default:
		p.write("<???>")
	}
}

func (p *CodePrinter) printArgs(args []ir.Expression) {
	p.write("(")
	for i, a := range args {
		if i > 0 {
			p.write(", ")
		}
		p.printExpr(a, 0, false)
	}
	p.write(")")
}

func (p *CodePrinter) printLiteral(l *ir.Literal) {
	switch l.Kind {
	case ir.LitString:
		p.write(strconv.Quote(l.Value))
	case ir.LitNone:
		p.write("None")
	case ir.LitBool:
		if strings.EqualFold(l.Value, "true") {
			p.write("True")
		} else {
			p.write("False")
		}
	default:
		p.write(l.Value)
	}
}
