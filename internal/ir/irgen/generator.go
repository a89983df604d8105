// Package irgen generates random but well-formed IR programs for fuzzing
// and property tests.
package irgen

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/funvibe/tyunify/internal/ir"
	ts "github.com/funvibe/tyunify/internal/typesystem"
)

// RandomSource abstracts the source of randomness.
type RandomSource interface {
	Intn(n int) int
}

// ByteSource uses a byte slice as a source of randomness, so a fuzzer's
// input maps onto a program. It yields zeros once exhausted.
type ByteSource struct {
	data []byte
	pos  int
}

func (s *ByteSource) Intn(n int) int {
	if n <= 0 || s.pos >= len(s.data) {
		return 0
	}
	v := int(s.data[s.pos])
	s.pos++
	return v % n
}

// Generator generates random programs.
type Generator struct {
	src   RandomSource
	depth int
	line  int
	funcs []string
	vars  []string
	file  string
}

const (
	MaxDepth      = 3
	MaxFunctions  = 6
	MaxStatements = 5
	MaxParams     = 3
)

var (
	localTypes = []ts.Concrete{ts.I8, ts.I16, ts.I32, ts.I64, ts.U8, ts.U32, ts.F32, ts.F64}
	binaryOps  = []string{"+", "-", "*", "/", "%", "<", "==", ">=", "and", "or", "&", "<<", "**"}
	libraries  = []string{"print", "len", "abs", "sqrt", "range", "str"}
	unknowns   = []string{"external", "ffi_call"}
)

func New(seed int64) *Generator {
	return &Generator{src: rand.New(rand.NewSource(seed)), file: "gen.py"}
}

func NewFromData(data []byte) *Generator {
	return &Generator{src: &ByteSource{data: data}, file: "fuzz.py"}
}

func (g *Generator) loc() ir.Location {
	g.line++
	return ir.Location{File: g.file, Line: g.line, Column: 1 + g.src.Intn(8)}
}

func (g *Generator) info() ir.ExprInfo {
	return ir.ExprInfo{Loc: g.loc()}
}

// GenerateProgram returns a program of one to MaxFunctions functions that
// call each other freely, recursion included. Variables are not allocated.
func (g *Generator) GenerateProgram() *ir.Program {
	n := g.src.Intn(MaxFunctions) + 1
	g.funcs = make([]string, n)
	for i := range g.funcs {
		g.funcs[i] = "f" + strconv.Itoa(i)
	}

	prog := &ir.Program{File: g.file}
	for _, name := range g.funcs {
		prog.Functions = append(prog.Functions, g.GenerateFunction(name))
	}
	return prog
}

func (g *Generator) GenerateFunction(name string) *ir.Function {
	fn := &ir.Function{Name: name, Loc: g.loc()}
	g.vars = g.vars[:0]
	params := g.src.Intn(MaxParams + 1)
	for i := 0; i < params; i++ {
		p := &ir.Param{Name: "p" + strconv.Itoa(i), Loc: g.loc()}
		if g.src.Intn(4) == 0 {
			p.Annot = g.GenerateType()
		}
		fn.Params = append(fn.Params, p)
		g.vars = append(g.vars, p.Name)
	}
	fn.Body = g.GenerateBlock()
	if g.src.Intn(2) == 0 {
		fn.Body = append(fn.Body, &ir.Return{Value: g.GenerateExpression(), Loc: g.loc()})
	}
	return fn
}

func (g *Generator) GenerateBlock() []ir.Statement {
	n := g.src.Intn(MaxStatements) + 1
	out := make([]ir.Statement, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.GenerateStatement())
	}
	return out
}

func (g *Generator) GenerateStatement() ir.Statement {
	if g.depth >= MaxDepth {
		return g.generateAssign()
	}
	g.depth++
	defer func() { g.depth-- }()

	switch choice := g.src.Intn(10); {
	case choice < 4:
		return g.generateAssign()
	case choice < 5:
		return &ir.Return{Value: g.GenerateExpression(), Loc: g.loc()}
	case choice < 6:
		return &ir.ExprStmt{X: g.generateCall(), Loc: g.loc()}
	case choice < 8:
		return &ir.If{Cond: g.GenerateExpression(), Then: g.GenerateBlock(), Else: g.GenerateBlock(), Loc: g.loc()}
	case choice < 9:
		return &ir.While{Cond: g.GenerateExpression(), Body: g.GenerateBlock(), Loc: g.loc()}
	default:
		target := g.GenerateIdentifier()
		iter := g.generateList()
		g.vars = append(g.vars, target)
		return &ir.For{Target: target, Iter: iter, Body: g.GenerateBlock(), Loc: g.loc()}
	}
}

func (g *Generator) generateAssign() ir.Statement {
	value := g.GenerateExpression()
	target := g.GenerateIdentifier()
	g.vars = append(g.vars, target)
	s := &ir.Assign{Target: target, Value: value, Loc: g.loc()}
	if g.src.Intn(6) == 0 {
		s.Annot = g.GenerateType()
	}
	return s
}

func (g *Generator) GenerateIdentifier() string {
	if len(g.vars) > 0 && g.src.Intn(2) == 0 {
		return g.vars[g.src.Intn(len(g.vars))]
	}
	return "v" + strconv.Itoa(g.src.Intn(6))
}

func (g *Generator) GenerateType() ts.Concrete {
	switch g.src.Intn(6) {
	case 0:
		return ts.String
	case 1:
		return ts.TSeq{Elem: localTypes[g.src.Intn(len(localTypes))]}
	default:
		return localTypes[g.src.Intn(len(localTypes))]
	}
}

func (g *Generator) GenerateExpression() ir.Expression {
	if g.depth >= MaxDepth {
		return g.generateLeaf()
	}
	g.depth++
	defer func() { g.depth-- }()

	switch choice := g.src.Intn(12); {
	case choice < 5:
		return g.generateLeaf()
	case choice < 8:
		return &ir.Binary{
			ExprInfo: g.info(),
			Op:       binaryOps[g.src.Intn(len(binaryOps))],
			Left:     g.GenerateExpression(),
			Right:    g.GenerateExpression(),
		}
	case choice < 9:
		op := "-"
		if g.src.Intn(2) == 0 {
			op = "not"
		}
		return &ir.Unary{ExprInfo: g.info(), Op: op, Operand: g.GenerateExpression()}
	case choice < 11:
		return g.generateCall()
	default:
		return g.generateList()
	}
}

func (g *Generator) generateLeaf() ir.Expression {
	if len(g.vars) > 0 && g.src.Intn(2) == 0 {
		return &ir.Name{ExprInfo: g.info(), Ident: g.vars[g.src.Intn(len(g.vars))]}
	}
	lit := &ir.Literal{ExprInfo: g.info()}
	switch g.src.Intn(6) {
	case 0:
		lit.Kind, lit.Value = ir.LitFloat, "1.5"
	case 1:
		lit.Kind, lit.Value = ir.LitString, "s"
	case 2:
		lit.Kind, lit.Value = ir.LitBool, "true"
	default:
		lit.Kind, lit.Value = ir.LitInt, strconv.Itoa(g.src.Intn(100))
	}
	if lit.Kind == ir.LitInt && g.src.Intn(2) == 0 {
		lit.Local = localTypes[g.src.Intn(4)]
	}
	return lit
}

func (g *Generator) generateList() ir.Expression {
	l := &ir.List{ExprInfo: g.info()}
	n := g.src.Intn(3)
	for i := 0; i < n; i++ {
		l.Elems = append(l.Elems, g.generateLeaf())
	}
	return l
}

func (g *Generator) args() []ir.Expression {
	n := g.src.Intn(MaxParams + 1)
	out := make([]ir.Expression, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.GenerateExpression())
	}
	return out
}

func (g *Generator) generateCall() ir.Expression {
	switch choice := g.src.Intn(10); {
	case choice < 6 && len(g.funcs) > 0:
		return &ir.Call{ExprInfo: g.info(), Callee: g.funcs[g.src.Intn(len(g.funcs))], Args: g.args()}
	case choice < 8:
		return &ir.Call{ExprInfo: g.info(), Callee: libraries[g.src.Intn(len(libraries))], Args: g.args()}
	case choice < 9:
		return &ir.Call{ExprInfo: g.info(), Callee: unknowns[g.src.Intn(len(unknowns))], Args: g.args()}
	default:
		return &ir.MethodCall{
			ExprInfo: g.info(),
			Receiver: g.generateLeaf(),
			Method:   fmt.Sprintf("m%d", g.src.Intn(3)),
			Args:     g.args(),
		}
	}
}
