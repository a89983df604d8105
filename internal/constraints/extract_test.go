package constraints

import (
	"context"
	"strings"
	"testing"

	"github.com/funvibe/tyunify/internal/callgraph"
	"github.com/funvibe/tyunify/internal/diagnostics"
	"github.com/funvibe/tyunify/internal/ir"
	"github.com/funvibe/tyunify/internal/signatures"
	ts "github.com/funvibe/tyunify/internal/typesystem"
)

func extract(t *testing.T, src string, opts Options) (*ir.Program, *callgraph.Graph, *Set) {
	t.Helper()
	prog, err := ir.Decode([]byte(src), "test.yaml")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	alloc := ir.AllocateVars(prog)
	g := callgraph.Build(prog, signatures.Builtins())
	set, err := Extract(context.Background(), prog, g, alloc, opts)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if err := set.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	return prog, g, set
}

func hasAssign(cs []Constraint, v ts.TypeVar, typ ts.Concrete) bool {
	for _, c := range cs {
		if a, ok := c.(Assign); ok && a.V == v && a.T.Equal(typ) {
			return true
		}
	}
	return false
}

func hasEqual(cs []Constraint, a, b ts.TypeVar) bool {
	for _, c := range cs {
		if e, ok := c.(Equal); ok && ((e.A == a && e.B == b) || (e.A == b && e.B == a)) {
			return true
		}
	}
	return false
}

func TestExtractLiteralsAndBindings(t *testing.T) {
	prog, _, set := extract(t, `
functions:
  - name: f
    params: [{name: k, type: f32}]
    returns: f32
    body:
      - assign: x
        value: 1
      - assign: y
        value: {float: "2.5", type: f32}
      - assign: x
        value: x
        type: i64
      - return: {op: "*", left: y, right: k}
`, Options{})

	fn := prog.Function("f")
	sc := set.Scope("f")
	cs := sc.Constraints

	x, ok := sc.Binding("x")
	if !ok {
		t.Fatal("x has no binding")
	}
	if names := len(sc.Locals); names != 3 {
		t.Errorf("expected locals k, x, y; got %+v", sc.Locals)
	}
	if sc.Locals[0].Name != "k" || sc.Locals[1].Name != "x" || sc.Locals[2].Name != "y" {
		t.Errorf("locals out of order: %+v", sc.Locals)
	}

	if !hasAssign(cs, fn.Params[0].Var, ts.F32) || !hasAssign(cs, fn.Ret, ts.F32) {
		t.Error("annotations must become assignments")
	}
	first := fn.Body[0].(*ir.Assign)
	if !hasAssign(cs, first.Value.Info().Var, ts.I64) {
		t.Error("an unannotated int literal defaults to i64")
	}
	if !hasEqual(cs, x, first.Value.Info().Var) {
		t.Error("assignment must equate binding and value")
	}
	second := fn.Body[1].(*ir.Assign)
	if !hasAssign(cs, second.Value.Info().Var, ts.F32) {
		t.Error("a literal's local guess wins over the default")
	}
	third := fn.Body[2].(*ir.Assign)
	if !hasAssign(cs, x, ts.I64) || !hasEqual(cs, third.Value.Info().Var, x) {
		t.Error("reassignment with annotation must constrain the existing binding")
	}

	ret := fn.Body[3].(*ir.Return)
	mul := ret.Value.(*ir.Binary)
	if !hasEqual(cs, mul.Left.Info().Var, mul.Right.Info().Var) || !hasEqual(cs, mul.Var, mul.Left.Info().Var) {
		t.Error("arithmetic must equate operands and result")
	}
	if !hasEqual(cs, fn.Ret, mul.Var) {
		t.Error("return must equate the return slot and the value")
	}
	if hasAssign(cs, fn.Ret, ts.Unit) {
		t.Error("a function returning a value is not a procedure")
	}
}

func TestExtractOperators(t *testing.T) {
	prog, _, set := extract(t, `
functions:
  - name: f
    params: [a, b]
    body:
      - assign: c
        value: {op: "<", left: a, right: {int: 1, type: i8}}
      - assign: d
        value: {op: and, left: a, right: b}
      - assign: e
        value: {op: "**", left: a, right: 2}
      - assign: g
        value: {op: "&", left: a, right: b}
      - assign: h
        value: {op: not, operand: a}
      - assign: i
        value: {op: "-", operand: b}
`, Options{})

	fn := prog.Function("f")
	sc := set.Scope("f")
	cs := sc.Constraints
	value := func(i int) ir.Expression { return fn.Body[i].(*ir.Assign).Value }

	cmp := value(0).(*ir.Binary)
	if len(sc.Hints) != 1 {
		t.Fatalf("expected one promotion hint, got %d", len(sc.Hints))
	}
	hint := sc.Hints[0]
	if hint.Left != cmp.Left || hint.Right != cmp.Right || hint.Op != "<" {
		t.Errorf("hint does not describe the comparison: %+v", hint)
	}
	subtypes := 0
	for _, c := range cs {
		if s, ok := c.(Subtype); ok && s.B == hint.Promoted {
			if s.A != cmp.Left.Info().Var && s.A != cmp.Right.Info().Var {
				t.Errorf("unexpected subtype %s", s)
			}
			subtypes++
		}
	}
	if subtypes != 2 {
		t.Errorf("comparison should emit two subtype constraints, got %d", subtypes)
	}
	if !hasAssign(cs, cmp.Var, ts.Bool) {
		t.Error("comparison result must be bool")
	}
	if owner, _ := set.Owner(hint.Promoted); set.Scopes[owner] != sc {
		t.Error("promotion variable must be registered in the function's scope")
	}

	if !hasAssign(cs, value(1).Info().Var, ts.Bool) {
		t.Error("logical and yields bool")
	}
	if !hasAssign(cs, value(2).Info().Var, ts.F64) {
		t.Error("power yields f64")
	}
	bit := value(3).(*ir.Binary)
	if !hasEqual(cs, bit.Left.Info().Var, bit.Right.Info().Var) {
		t.Error("bitwise operands share a type")
	}
	if !hasAssign(cs, value(4).Info().Var, ts.Bool) {
		t.Error("not yields bool")
	}
	neg := value(5).(*ir.Unary)
	if !hasEqual(cs, neg.Var, neg.Operand.Info().Var) {
		t.Error("negation preserves the operand type")
	}
	if !hasAssign(cs, fn.Ret, ts.Unit) {
		t.Error("a function without a value return is a procedure")
	}
}

func TestExtractCalls(t *testing.T) {
	_, g, set := extract(t, `
functions:
  - name: main
    body:
      - expr: {call: f, args: [1]}
      - expr: {call: f, args: [1, 2]}
      - expr: {call: sqrt, args: [1, 2]}
      - expr: {call: print, args: [1, 2, 3]}
      - expr: {call: mystery, args: [1]}
      - expr: {dyncall: f, args: []}
      - expr: {method: append, recv: xs, args: [1]}
  - name: f
    params: [x]
    body:
      - return: x
`, Options{})

	sc := set.Scope("main")
	var calls []Call
	for _, c := range sc.Constraints {
		if call, ok := c.(Call); ok {
			calls = append(calls, call)
		}
	}
	if len(calls) != len(g.Sites) {
		t.Fatalf("every call site must produce exactly one call constraint: %d calls, %d sites", len(calls), len(g.Sites))
	}

	f, _ := g.Lookup("f")
	if calls[0].Callee != f.ID {
		t.Errorf("well-formed direct call should target f")
	}
	if calls[1].Callee != callgraph.Sink || calls[1].Signature != nil {
		t.Errorf("arity mismatch must fall back to the sink: %s", calls[1])
	}
	if calls[2].Signature != nil {
		t.Errorf("library arity mismatch must drop the signature: %s", calls[2])
	}
	if calls[3].Signature == nil || calls[3].Signature.Name != "print" {
		t.Errorf("variadic print should keep its signature: %s", calls[3])
	}
	if !strings.HasPrefix(calls[4].String(), "call ?mystery(") {
		t.Errorf("unresolved call renders as %s", calls[4])
	}
	for i, c := range calls {
		if c.Site != i {
			t.Errorf("call %d attached to site %d", i, c.Site)
		}
	}

	diags := set.Diagnostics()
	if n := diagnostics.Count(diags, diagnostics.KindExtractionWarning); n != 2 {
		t.Errorf("expected 2 extraction warnings, got %d: %v", n, diags)
	}
	if n := diagnostics.Count(diags, diagnostics.KindUnresolvedCallTarget); n != 3 {
		t.Errorf("expected 3 unresolved call targets, got %d: %v", n, diags)
	}
}

func TestExtractLoopsAndLists(t *testing.T) {
	prog, _, set := extract(t, `
functions:
  - name: f
    params: [{name: xs, type: "seq<i32>"}]
    body:
      - for: v
        in: {var: xs, type: "seq<i32>"}
        body:
          - expr: {call: print, args: [v]}
      - assign: ys
        value: {list: [{int: 1, type: i8}, {int: 2, type: i32}]}
      - assign: zs
        value: {list: [1, xs]}
      - while: {bool: true}
        body:
          - return:
`, Options{})

	fn := prog.Function("f")
	sc := set.Scope("f")
	cs := sc.Constraints

	v, _ := sc.Binding("v")
	if !hasAssign(cs, v, ts.I32) {
		t.Error("the loop target takes the element type of the iterable")
	}

	ys := fn.Body[1].(*ir.Assign).Value.(*ir.List)
	if !hasAssign(cs, ys.Var, ts.TSeq{Elem: ts.I32}) {
		t.Error("a list of guessed elements is a sequence of their join")
	}
	if !hasEqual(cs, ys.Elems[0].Info().Var, ys.Elems[1].Info().Var) {
		t.Error("list elements share one type")
	}

	zs := fn.Body[2].(*ir.Assign).Value.(*ir.List)
	for _, c := range cs {
		if a, ok := c.(Assign); ok && a.V == zs.Var {
			t.Errorf("a list with an unguessed element gets no sequence type, got %s", a)
		}
	}

	if !hasAssign(cs, fn.Ret, ts.Unit) {
		t.Error("bare return assigns unit")
	}
}

func TestExtractParallelMatchesSequential(t *testing.T) {
	src := `
functions:
  - name: a
    params: [x]
    body:
      - return: {call: b, args: [{op: "+", left: x, right: 1}]}
  - name: b
    params: [y]
    body:
      - if: {op: ">", left: y, right: 10}
        then:
          - return: y
      - return: {call: a, args: [y]}
  - name: c
    body:
      - expr: {call: print, args: [{call: a, args: [2]}]}
  - name: d
    params: [z]
    body:
      - assign: w
        value: {op: "*", left: z, right: 2.0}
      - return: w
`
	render := func(s *Set) string {
		var b strings.Builder
		for _, c := range s.Constraints() {
			b.WriteString(c.String())
			b.WriteByte('\n')
		}
		return b.String()
	}

	_, _, seq := extract(t, src, Options{Parallelism: 1})
	for i := 0; i < 5; i++ {
		_, _, par := extract(t, src, Options{Parallelism: 4})
		if render(par) != render(seq) {
			t.Fatalf("parallel extraction differs from sequential:\n%s\nvs\n%s", render(par), render(seq))
		}
	}
}

func TestExtractRejectsSharedVariables(t *testing.T) {
	prog, err := ir.Decode([]byte(`
functions:
  - name: f
    body:
      - return: 1
  - name: g
    body:
      - return: 2
`), "test.yaml")
	if err != nil {
		t.Fatal(err)
	}
	alloc := ir.AllocateVars(prog)
	// Force the two literals onto one variable.
	prog.Function("g").Body[0].(*ir.Return).Value.Info().Var =
		prog.Function("f").Body[0].(*ir.Return).Value.Info().Var

	g := callgraph.Build(prog, nil)
	if _, err := Extract(context.Background(), prog, g, alloc, Options{}); err == nil {
		t.Fatal("a variable shared by two functions must be rejected")
	}
}

func TestExtractCancelled(t *testing.T) {
	prog, err := ir.Decode([]byte("functions:\n  - name: f\n"), "test.yaml")
	if err != nil {
		t.Fatal(err)
	}
	alloc := ir.AllocateVars(prog)
	g := callgraph.Build(prog, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Extract(ctx, prog, g, alloc, Options{}); err == nil {
		t.Error("a cancelled context must stop extraction")
	}
}
