package pipeline

import (
	"bytes"
	"context"
	"testing"

	"github.com/funvibe/tyunify/internal/config"
	"github.com/funvibe/tyunify/internal/diagnostics"
	"github.com/funvibe/tyunify/internal/ir"
	"github.com/funvibe/tyunify/internal/materialize"
	"github.com/funvibe/tyunify/internal/solver"
	ts "github.com/funvibe/tyunify/internal/typesystem"
)

func runEngine(t *testing.T, src string, cfg *config.Config) *PipelineContext {
	t.Helper()
	prog, err := ir.Decode([]byte(src), "scenario.py")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	ctx := Engine().Run(NewPipelineContext(context.Background(), prog, cfg, nil, nil))
	if ctx.Solution == nil {
		t.Fatalf("no solution; diagnostics: %v", ctx.Errors)
	}
	return ctx
}

func local(t *testing.T, ctx *PipelineContext, fn, name string) materialize.Resolution {
	t.Helper()
	v, ok := ctx.Constraints.Scope(fn).Binding(name)
	if !ok {
		t.Fatalf("%s has no binding %s", fn, name)
	}
	r, ok := ctx.Solution.Lookup(v)
	if !ok {
		t.Fatalf("%s.%s missing from the solution", fn, name)
	}
	return r
}

func expectLocal(t *testing.T, ctx *PipelineContext, fn, name string, want ts.Concrete, why solver.Fallback) {
	t.Helper()
	r := local(t, ctx, fn, name)
	if !r.Type.Equal(want) || r.Fallback != why {
		t.Errorf("%s.%s = %s (%s), want %s (%s)", fn, name, r.Type, r.Fallback, want, why)
	}
}

func encode(t *testing.T, sol *materialize.TypeSolution) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := sol.Encode(&buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return buf.Bytes()
}

const identityIR = `
functions:
  - name: identity
    params: [x]
    body:
      - return: x
  - name: main
    body:
      - assign: a
        value: {call: identity, args: [1]}
      - assign: b
        value: {call: identity, args: [2.5]}
      - assign: n
        value: {op: "*", left: 6, right: 7}
      - assign: s
        value: {str: ok}
`

func TestConflictAtTwoCallSites(t *testing.T) {
	ctx := runEngine(t, identityIR, nil)

	if n := diagnostics.Count(ctx.Errors, diagnostics.KindConflict); n != 1 {
		t.Fatalf("expected exactly one conflict, got %d: %v", n, ctx.Errors)
	}
	expectLocal(t, ctx, "main", "a", ts.Dynamic, solver.FallbackConflict)
	expectLocal(t, ctx, "main", "b", ts.Dynamic, solver.FallbackConflict)
	expectLocal(t, ctx, "main", "n", ts.I64, solver.FallbackNone)
	expectLocal(t, ctx, "main", "s", ts.String, solver.FallbackNone)
	if !ctx.HasErrors() {
		t.Error("a conflict has error severity")
	}
}

func TestWideningChainThroughCalls(t *testing.T) {
	ctx := runEngine(t, `
functions:
  - name: f
    body:
      - return: {int: 7, type: i32}
  - name: g
    params: [y]
    body:
      - return: y
  - name: h
    params: [{name: z, type: f64}]
    body:
      - return: z
  - name: main
    body:
      - assign: a
        value: {call: f, type: i32}
      - assign: b
        value: {call: g, args: [a]}
      - return: {call: h, args: [b]}
`, nil)

	if n := diagnostics.Count(ctx.Errors, diagnostics.KindConflict); n != 0 {
		t.Fatalf("expected no conflicts, got %v", ctx.Errors)
	}
	casts := ctx.Solution.Casts
	if len(casts) != 2 {
		t.Fatalf("expected two casts, got %+v", casts)
	}
	for _, c := range casts {
		if c.Kind != materialize.CastWiden || !c.From.Equal(ts.I32) || !c.To.Equal(ts.F64) || c.Ambiguous {
			t.Errorf("unexpected cast %+v", c)
		}
	}
	expectLocal(t, ctx, "main", "a", ts.F64, solver.FallbackNone)
	expectLocal(t, ctx, "main", "b", ts.F64, solver.FallbackNone)
}

func TestSelfRecursionConverges(t *testing.T) {
	ctx := runEngine(t, `
functions:
  - name: fact
    params: [n]
    body:
      - if: {op: "<=", left: n, right: 1}
        then:
          - return: 1
      - return: {op: "*", left: n, right: {call: fact, args: [{op: "-", left: n, right: 1}]}}
`, nil)

	node, _ := ctx.Graph.Lookup("fact")
	scc := ctx.Graph.SCCOf(node.ID)
	if len(ctx.Graph.SCCs()[scc]) != 1 || !ctx.Graph.HasSelfLoop(scc) {
		t.Fatalf("fact should be a singleton component with a self-loop")
	}
	if it := ctx.Result.Iterations[scc]; it > 2 {
		t.Errorf("converged in %d iterations, want at most 2", it)
	}
	sig, _ := ctx.Solution.Function("fact")
	if !sig.Ret.Type.Equal(ts.I64) || !sig.Params[0].Type.Type.Equal(ts.I64) {
		t.Errorf("fact = %+v", sig)
	}
	if len(ctx.Errors) != 0 {
		t.Errorf("unexpected diagnostics: %v", ctx.Errors)
	}
}

func TestUnresolvedCallFallsBack(t *testing.T) {
	ctx := runEngine(t, `
functions:
  - name: main
    body:
      - assign: r
        value: {call: external, args: [{int: 5, type: i32}]}
      - assign: s
        value: {op: "+", left: 1, right: 2}
`, nil)

	if n := diagnostics.Count(ctx.Errors, diagnostics.KindUnresolvedCallTarget); n != 1 {
		t.Fatalf("expected one unresolved call target, got %v", ctx.Errors)
	}
	if ctx.HasErrors() {
		t.Errorf("an unresolved call is only a warning: %v", ctx.Errors)
	}
	expectLocal(t, ctx, "main", "r", ts.Dynamic, solver.FallbackUnresolvedCall)
	expectLocal(t, ctx, "main", "s", ts.I64, solver.FallbackNone)

	site := ctx.Graph.Sites[0]
	arg, _ := ctx.Solution.Lookup(site.Args[0])
	if !ts.IsDynamic(arg.Type) || arg.Fallback != solver.FallbackUnresolvedCall {
		t.Errorf("argument = %s (%s), want any (unresolved-call)", arg.Type, arg.Fallback)
	}
}

func TestRepeatedRunsEncodeIdentically(t *testing.T) {
	prog, err := ir.Decode([]byte(identityIR), "scenario.py")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	var first []byte
	for i := 0; i < 5; i++ {
		ctx := Engine().Run(NewPipelineContext(context.Background(), prog, nil, nil, nil))
		out := encode(t, ctx.Solution)
		if i == 0 {
			first = out
			continue
		}
		if !bytes.Equal(first, out) {
			t.Fatalf("run %d differs:\n%s\nvs\n%s", i+1, first, out)
		}
	}
}

func TestBuiltinAcceptsIntegerArgument(t *testing.T) {
	ctx := runEngine(t, `
functions:
  - name: main
    body:
      - assign: n
        value: 4
      - assign: m
        value: {op: "+", left: n, right: 1}
      - assign: s
        value: {call: sqrt, args: [n]}
`, nil)

	if len(ctx.Errors) != 0 {
		t.Fatalf("unexpected diagnostics: %v", ctx.Errors)
	}
	expectLocal(t, ctx, "main", "n", ts.I64, solver.FallbackNone)
	expectLocal(t, ctx, "main", "m", ts.I64, solver.FallbackNone)
	expectLocal(t, ctx, "main", "s", ts.F64, solver.FallbackNone)
}

func TestParallelExtractionMatchesSequential(t *testing.T) {
	seq := runEngine(t, identityIR, nil)

	cfg := config.Default()
	cfg.Parallelism = 4
	par := runEngine(t, identityIR, cfg)

	if !bytes.Equal(encode(t, seq.Solution), encode(t, par.Solution)) {
		t.Error("parallel extraction changed the solution")
	}
}

func TestCallPropagation(t *testing.T) {
	ctx := runEngine(t, `
functions:
  - name: f
    params: [x]
    body:
      - return: x
  - name: main
    body:
      - assign: r
        value: {call: f, args: [{int: 5, type: i32}]}
`, nil)

	sig, _ := ctx.Solution.Function("f")
	if !sig.Params[0].Type.Type.Equal(ts.I32) {
		t.Errorf("alpha = %s, want i32", sig.Params[0].Type.Type)
	}
	r, _ := ctx.Constraints.Scope("main").Binding("r")
	if !ctx.Result.SameClass(r, ctx.Program.Function("f").Ret) {
		t.Error("call result must share a class with beta")
	}
}

func TestUnsignedEdgeFromConfig(t *testing.T) {
	src := `
functions:
  - name: id
    params: [x]
    body:
      - return: x
  - name: main
    body:
      - assign: a
        value: {call: id, args: [{int: 1, type: u32}]}
      - assign: b
        value: {call: id, args: [{int: 2, type: i64}]}
`
	strict := runEngine(t, src, nil)
	if n := diagnostics.Count(strict.Errors, diagnostics.KindConflict); n != 1 {
		t.Errorf("mixed signedness should conflict by default, got %v", strict.Errors)
	}

	cfg := config.Default()
	cfg.Lattice.UnsignedToSigned = true
	relaxed := runEngine(t, src, cfg)
	if len(relaxed.Errors) != 0 {
		t.Errorf("unexpected diagnostics: %v", relaxed.Errors)
	}
	expectLocal(t, relaxed, "main", "a", ts.I64, solver.FallbackNone)
}

func TestMissingProgram(t *testing.T) {
	ctx := Engine().Run(NewPipelineContext(context.Background(), nil, nil, nil, nil))
	if ctx.Solution != nil {
		t.Fatal("no solution expected without a program")
	}
	if len(ctx.Errors) != 1 || ctx.Errors[0].Code != diagnostics.ErrI001 {
		t.Errorf("expected one I001 diagnostic, got %v", ctx.Errors)
	}
}

func TestDiagnosticsAreSorted(t *testing.T) {
	ctx := runEngine(t, `
functions:
  - name: main
    body:
      - expr: {call: later}
      - expr: {call: earlier}
      - assign: c
        value: {op: "==", left: {str: a}, right: 1}
`, nil)

	if len(ctx.Errors) != 3 {
		t.Fatalf("expected 3 diagnostics, got %v", ctx.Errors)
	}
	for i := 1; i < len(ctx.Errors); i++ {
		a, b := ctx.Errors[i-1].Location, ctx.Errors[i].Location
		if a.Line > b.Line || (a.Line == b.Line && a.Column > b.Column) {
			t.Errorf("diagnostics out of order: %v before %v", a, b)
		}
	}
}
