package constraints

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/funvibe/tyunify/internal/callgraph"
	"github.com/funvibe/tyunify/internal/diagnostics"
	"github.com/funvibe/tyunify/internal/ir"
	ts "github.com/funvibe/tyunify/internal/typesystem"
	"golang.org/x/sync/errgroup"
)

// Options tunes extraction.
type Options struct {
	// Parallelism is how many functions the emit pass walks at once.
	// Values below 2 keep it sequential.
	Parallelism int

	// Lattice joins the element guesses of list displays.
	Lattice ts.Lattice

	Logger *slog.Logger
}

// Extract walks every function of prog and returns its constraint set.
//
// A sequential scope pass first registers each function's variables and
// allocates the variables extraction itself needs (one per local binding,
// one per comparison), so numbering never depends on scheduling. The emit
// pass then walks each body once; functions only write their own scope, so
// they can be walked concurrently and the result is still in program order.
//
// The only errors are malformed input (a variable shared between two
// functions) and cancellation of ctx.
func Extract(ctx context.Context, prog *ir.Program, g *callgraph.Graph, alloc *ts.VarAllocator, opts Options) (*Set, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	set := &Set{owner: make(map[ts.TypeVar]int)}
	for i, fn := range prog.Functions {
		node, ok := g.Lookup(fn.Name)
		if !ok {
			return nil, fmt.Errorf("function %s is not in the call graph", fn.Name)
		}
		set.Scopes = append(set.Scopes, &Scope{
			Function:  fn,
			Node:      node.ID,
			bindings:  make(map[string]ts.TypeVar),
			promotion: make(map[*ir.Binary]ts.TypeVar),
		})
		if err := set.declare(i, alloc); err != nil {
			return nil, err
		}
	}

	eg, egctx := errgroup.WithContext(ctx)
	if opts.Parallelism > 1 {
		eg.SetLimit(opts.Parallelism)
	} else {
		eg.SetLimit(1)
	}
	for _, sc := range set.Scopes {
		sc := sc
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			e := &emitter{scope: sc, graph: g, lattice: opts.Lattice}
			e.function()
			logger.Debug("extracted constraints",
				"function", sc.Function.Name,
				"constraints", len(sc.Constraints),
				"vars", len(sc.vars))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return set, nil
}

// declare is the scope pass for one function.
func (s *Set) declare(i int, alloc *ts.VarAllocator) error {
	sc := s.Scopes[i]
	fn := sc.Function

	for _, p := range fn.Params {
		if err := s.register(i, p.Var); err != nil {
			return err
		}
		if _, dup := sc.bindings[p.Name]; !dup {
			sc.bindings[p.Name] = p.Var
			sc.Locals = append(sc.Locals, Local{Name: p.Name, Var: p.Var})
		}
	}
	if err := s.register(i, fn.Ret); err != nil {
		return err
	}

	bind := func(name string) error {
		if _, ok := sc.bindings[name]; ok {
			return nil
		}
		v := alloc.Fresh()
		sc.bindings[name] = v
		sc.Locals = append(sc.Locals, Local{Name: name, Var: v})
		return s.register(i, v)
	}

	var err error
	ir.Inspect(fn, func(n ir.Node) bool {
		if err != nil {
			return false
		}
		switch x := n.(type) {
		case *ir.Assign:
			err = bind(x.Target)
		case *ir.For:
			err = bind(x.Target)
		case *ir.Binary:
			if ir.ClassifyOp(x.Op) == ir.OpCompare {
				v := alloc.Fresh()
				sc.promotion[x] = v
				err = s.register(i, v)
			}
		}
		if err == nil {
			if e, ok := n.(ir.Expression); ok {
				err = s.register(i, e.Info().Var)
			}
		}
		return err == nil
	})
	return err
}

type emitter struct {
	scope   *Scope
	graph   *callgraph.Graph
	lattice ts.Lattice
}

func (e *emitter) emit(c Constraint) {
	e.scope.Constraints = append(e.scope.Constraints, c)
}

func (e *emitter) warn(d *diagnostics.Diagnostic) {
	e.scope.Diagnostics = append(e.scope.Diagnostics, d)
}

func (e *emitter) function() {
	fn := e.scope.Function
	for _, p := range fn.Params {
		if p.Annot != nil {
			e.emit(Assign{V: p.Var, T: p.Annot, Loc: p.Loc})
		}
	}
	if fn.RetAnnot != nil {
		e.emit(Assign{V: fn.Ret, T: fn.RetAnnot, Loc: fn.Loc})
	}
	e.block(fn.Body)

	// A function that never returns a value is a procedure.
	if !returnsValue(fn.Body) {
		e.emit(Assign{V: fn.Ret, T: ts.Unit, Loc: fn.Loc})
	}
}

func returnsValue(body []ir.Statement) bool {
	found := false
	for _, s := range body {
		ir.Inspect(s, func(n ir.Node) bool {
			if r, ok := n.(*ir.Return); ok && r.Value != nil {
				found = true
			}
			_, isExpr := n.(ir.Expression)
			return !found && !isExpr
		})
	}
	return found
}

func (e *emitter) block(stmts []ir.Statement) {
	for _, s := range stmts {
		e.statement(s)
	}
}

func (e *emitter) statement(s ir.Statement) {
	switch s := s.(type) {
	case *ir.Assign:
		b := e.scope.bindings[s.Target]
		e.expression(s.Value)
		e.emit(Equal{A: b, B: s.Value.Info().Var, Loc: s.Loc})
		if s.Annot != nil {
			e.emit(Assign{V: b, T: s.Annot, Loc: s.Loc})
		}

	case *ir.Return:
		ret := e.scope.Function.Ret
		if s.Value == nil {
			e.emit(Assign{V: ret, T: ts.Unit, Loc: s.Loc})
			return
		}
		e.expression(s.Value)
		e.emit(Equal{A: ret, B: s.Value.Info().Var, Loc: s.Loc})

	case *ir.ExprStmt:
		e.expression(s.X)

	case *ir.If:
		// Conditions are truthiness tests; any type is accepted.
		e.expression(s.Cond)
		e.block(s.Then)
		e.block(s.Else)

	case *ir.While:
		e.expression(s.Cond)
		e.block(s.Body)

	case *ir.For:
		e.expression(s.Iter)
		if seq, ok := s.Iter.Info().Local.(ts.TSeq); ok {
			e.emit(Assign{V: e.scope.bindings[s.Target], T: seq.Elem, Loc: s.Loc})
		}
		e.block(s.Body)
	}
}

func (e *emitter) expression(x ir.Expression) {
	info := x.Info()

	switch x := x.(type) {
	case *ir.Literal:
		e.emit(Assign{V: info.Var, T: literalType(x), Loc: info.Loc})

	case *ir.Name:
		if b, ok := e.scope.bindings[x.Ident]; ok {
			e.emit(Equal{A: info.Var, B: b, Loc: info.Loc})
		}

	case *ir.Binary:
		e.expression(x.Left)
		e.expression(x.Right)
		e.binary(x)

	case *ir.Unary:
		e.expression(x.Operand)
		switch ir.ClassifyOp(x.Op) {
		case ir.OpLogical:
			e.emit(Assign{V: info.Var, T: ts.Bool, Loc: info.Loc})
		case ir.OpArithmetic, ir.OpBitwise:
			e.emit(Equal{A: info.Var, B: x.Operand.Info().Var, Loc: info.Loc})
		}

	case *ir.Call:
		for _, a := range x.Args {
			e.expression(a)
		}
		e.call(x)

	case *ir.DynamicCall:
		e.expression(x.Target)
		for _, a := range x.Args {
			e.expression(a)
		}
		e.call(x)

	case *ir.MethodCall:
		e.expression(x.Receiver)
		for _, a := range x.Args {
			e.expression(a)
		}
		e.call(x)

	case *ir.List:
		for _, el := range x.Elems {
			e.expression(el)
		}
		e.list(x)
	}
}

func literalType(l *ir.Literal) ts.Concrete {
	if l.Local != nil {
		return l.Local
	}
	switch l.Kind {
	case ir.LitInt:
		return ts.I64
	case ir.LitFloat:
		return ts.F64
	case ir.LitBool:
		return ts.Bool
	case ir.LitString:
		return ts.String
	default:
		return ts.Unit
	}
}

func (e *emitter) binary(x *ir.Binary) {
	res, l, r := x.Var, x.Left.Info().Var, x.Right.Info().Var

	switch ir.ClassifyOp(x.Op) {
	case ir.OpArithmetic, ir.OpBitwise:
		e.emit(Equal{A: l, B: r, Loc: x.Loc})
		e.emit(Equal{A: res, B: l, Loc: x.Loc})

	case ir.OpCompare:
		c := e.scope.promotion[x]
		e.emit(Subtype{A: l, B: c, Loc: x.Left.Pos()})
		e.emit(Subtype{A: r, B: c, Loc: x.Right.Pos()})
		e.emit(Assign{V: res, T: ts.Bool, Loc: x.Loc})
		e.scope.Hints = append(e.scope.Hints, PromotionHint{
			Op: x.Op, Left: x.Left, Right: x.Right, Promoted: c, Loc: x.Loc,
		})

	case ir.OpLogical:
		e.emit(Assign{V: res, T: ts.Bool, Loc: x.Loc})

	case ir.OpPower:
		e.emit(Assign{V: res, T: ts.F64, Loc: x.Loc})
	}
}

// list types a display from its elements: they share one type, and when
// every element carries a local guess the display is a sequence of their
// join.
func (e *emitter) list(x *ir.List) {
	if len(x.Elems) == 0 {
		return
	}
	first := x.Elems[0].Info()
	for _, el := range x.Elems[1:] {
		e.emit(Equal{A: first.Var, B: el.Info().Var, Loc: el.Pos()})
	}

	var elem ts.Concrete
	for _, el := range x.Elems {
		guess := el.Info().Local
		if guess == nil {
			if lit, ok := el.(*ir.Literal); ok {
				guess = literalType(lit)
			} else {
				return
			}
		}
		if elem == nil {
			elem = guess
			continue
		}
		j, ok := e.lattice.Join(elem, guess)
		if !ok {
			return
		}
		elem = j
	}
	e.emit(Assign{V: x.Var, T: ts.TSeq{Elem: elem}, Loc: x.Loc})
}

func (e *emitter) call(x ir.Expression) {
	site, ok := e.graph.SiteFor(x)
	if !ok {
		return
	}
	c := Call{
		Site:      site.ID,
		Callee:    site.Callee,
		Name:      site.Name,
		Args:      site.Args,
		Ret:       site.Result,
		Signature: site.Signature,
		Loc:       site.Loc,
	}

	switch site.Kind {
	case callgraph.SiteDirect:
		if want := len(e.graph.Node(site.Callee).Params); want != len(site.Args) {
			e.warn(diagnostics.NewError(diagnostics.ErrU004, site.Loc, site.Name,
				fmt.Sprintf("expected %d arguments, got %d", want, len(site.Args))))
			c.Callee = callgraph.Sink
		}
	case callgraph.SiteLibrary:
		if !site.Signature.Accepts(len(site.Args)) {
			e.warn(diagnostics.NewError(diagnostics.ErrU004, site.Loc, site.Name,
				fmt.Sprintf("library signature %s does not accept %d arguments", site.Signature, len(site.Args))))
			c.Signature = nil
		}
	case callgraph.SiteUnresolved:
		e.warn(diagnostics.NewError(diagnostics.ErrU003, site.Loc, site.Name, "not defined in the program or the signature table"))
	case callgraph.SiteDynamic:
		e.warn(diagnostics.NewError(diagnostics.ErrU003, site.Loc, site.Name, "target is not statically known"))
	}
	e.emit(c)
}
