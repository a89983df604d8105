package solver

import (
	"context"
	"testing"

	"github.com/funvibe/tyunify/internal/callgraph"
	"github.com/funvibe/tyunify/internal/constraints"
	"github.com/funvibe/tyunify/internal/diagnostics"
	"github.com/funvibe/tyunify/internal/ir"
	"github.com/funvibe/tyunify/internal/signatures"
	ts "github.com/funvibe/tyunify/internal/typesystem"
)

type fixture struct {
	prog  *ir.Program
	graph *callgraph.Graph
	set   *constraints.Set
	res   *Result
}

func solve(t *testing.T, src string, opts Options) *fixture {
	t.Helper()
	prog, err := ir.Decode([]byte(src), "test.yaml")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	alloc := ir.AllocateVars(prog)
	g := callgraph.Build(prog, signatures.Builtins())
	set, err := constraints.Extract(context.Background(), prog, g, alloc, constraints.Options{Lattice: opts.Lattice})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	return &fixture{prog: prog, graph: g, set: set, res: Solve(set, g, opts)}
}

func (f *fixture) local(t *testing.T, fn, name string) ts.TypeVar {
	t.Helper()
	v, ok := f.set.Scope(fn).Binding(name)
	if !ok {
		t.Fatalf("%s has no binding %s", fn, name)
	}
	return v
}

func (f *fixture) expect(t *testing.T, fn, name string, want ts.Concrete, why Fallback) {
	t.Helper()
	got, reason := f.res.Resolve(f.local(t, fn, name))
	if !got.Equal(want) || reason != why {
		t.Errorf("%s.%s = %s (%s), want %s (%s)", fn, name, got, reason, want, why)
	}
}

func (f *fixture) conflicts() int {
	return diagnostics.Count(f.res.Diagnostics, diagnostics.KindConflict)
}

func TestCallPropagation(t *testing.T) {
	f := solve(t, `
functions:
  - name: f
    params: [x]
    body:
      - return: x
  - name: main
    body:
      - assign: r
        value: {call: f, args: [{int: 5, type: i32}]}
`, Options{})

	fn := f.prog.Function("f")
	alpha, beta := fn.Params[0].Var, fn.Ret
	if got, _ := f.res.Resolve(alpha); !got.Equal(ts.I32) {
		t.Errorf("parameter resolved to %s, want i32 (forward propagation)", got)
	}
	r := f.local(t, "main", "r")
	if !f.res.SameClass(r, beta) {
		t.Errorf("call result must unify with the callee's return variable")
	}
	f.expect(t, "main", "r", ts.I32, FallbackNone)
	if len(f.res.Diagnostics) != 0 {
		t.Errorf("unexpected diagnostics: %v", f.res.Diagnostics)
	}
}

func TestConflictContainment(t *testing.T) {
	f := solve(t, `
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
      - assign: c
        value: {op: "+", left: 3, right: 4}
      - assign: s
        value: {str: hello}
`, Options{})

	if n := f.conflicts(); n != 1 {
		t.Fatalf("expected exactly one conflict, got %d: %v", n, f.res.Diagnostics)
	}
	f.expect(t, "main", "a", ts.Dynamic, FallbackConflict)
	f.expect(t, "main", "b", ts.Dynamic, FallbackConflict)
	f.expect(t, "identity", "x", ts.Dynamic, FallbackConflict)
	f.expect(t, "main", "c", ts.I64, FallbackNone)
	f.expect(t, "main", "s", ts.String, FallbackNone)
}

func TestWideningWithoutConflict(t *testing.T) {
	f := solve(t, `
functions:
  - name: small
    body:
      - return: {int: 1, type: i16}
  - name: wide
    params: [{name: v, type: f64}]
    body:
      - return: v
  - name: main
    body:
      - assign: a
        value: {call: small}
      - assign: b
        value: {call: wide, args: [a]}
`, Options{})

	if n := f.conflicts(); n != 0 {
		t.Fatalf("i16 flowing into f64 is a widening, got %d conflicts", n)
	}
	f.expect(t, "main", "a", ts.F64, FallbackNone)
	f.expect(t, "main", "b", ts.F64, FallbackNone)
}

func TestSubtypeRaisesPromotedType(t *testing.T) {
	f := solve(t, `
functions:
  - name: main
    body:
      - assign: a
        value: {int: 1, type: i8}
      - assign: b
        value: {float: "2.0", type: f32}
      - assign: c
        value: {op: "<", left: a, right: b}
`, Options{})

	hint := f.set.Scope("main").Hints[0]
	if got, _ := f.res.Resolve(hint.Promoted); !got.Equal(ts.F32) {
		t.Errorf("promoted comparison type = %s, want f32", got)
	}
	// Operands keep their own types; only the promotion variable widens.
	f.expect(t, "main", "a", ts.I8, FallbackNone)
	f.expect(t, "main", "b", ts.F32, FallbackNone)
	f.expect(t, "main", "c", ts.Bool, FallbackNone)
}

func TestSubtypeConflict(t *testing.T) {
	f := solve(t, `
functions:
  - name: main
    body:
      - assign: c
        value: {op: "==", left: {str: a}, right: 1}
      - assign: d
        value: 7
`, Options{})

	if n := f.conflicts(); n != 1 {
		t.Fatalf("comparing string with int should conflict once, got %d", n)
	}
	hint := f.set.Scope("main").Hints[0]
	if got, why := f.res.Resolve(hint.Promoted); !ts.IsDynamic(got) || why != FallbackConflict {
		t.Errorf("promotion var = %s (%s), want any (conflict)", got, why)
	}
	f.expect(t, "main", "c", ts.Bool, FallbackNone)
	f.expect(t, "main", "d", ts.I64, FallbackNone)
}

func TestSubtypeCarriesFallbackReason(t *testing.T) {
	f := solve(t, `
functions:
  - name: main
    body:
      - assign: r
        value: {call: os_fetch}
      - if: {op: "<", left: r, right: 1}
        then:
          - assign: r
            value: 2
`, Options{})

	hint := f.set.Scope("main").Hints[0]
	if got, why := f.res.Resolve(hint.Promoted); !ts.IsDynamic(got) || why != FallbackUnresolvedCall {
		t.Errorf("promotion var = %s (%s), want any (unresolved-call)", got, why)
	}
	f.expect(t, "main", "r", ts.Dynamic, FallbackUnresolvedCall)
}

func TestSelfRecursionConverges(t *testing.T) {
	f := solve(t, `
functions:
  - name: fact
    params: [n]
    body:
      - if: {op: "<=", left: n, right: 1}
        then:
          - return: 1
      - return: {op: "*", left: n, right: {call: fact, args: [{op: "-", left: n, right: 1}]}}
`, Options{})

	node, _ := f.graph.Lookup("fact")
	scc := f.graph.SCCOf(node.ID)
	if !f.graph.HasSelfLoop(scc) {
		t.Fatal("fact should have a self-loop")
	}
	if it := f.res.Iterations[scc]; it > 2 {
		t.Errorf("self-recursive component took %d iterations, want at most 2", it)
	}
	f.expect(t, "fact", "n", ts.I64, FallbackNone)
	if got, _ := f.res.Resolve(f.prog.Function("fact").Ret); !got.Equal(ts.I64) {
		t.Errorf("fact returns %s, want i64", got)
	}
	if len(f.res.NonConvergent) != 0 || len(f.res.Diagnostics) != 0 {
		t.Errorf("unexpected diagnostics: %v", f.res.Diagnostics)
	}
}

const mutualIR = `
functions:
  - name: even
    params: [n]
    body:
      - if: {op: "==", left: n, right: 0}
        then:
          - return: {bool: true}
      - return: {call: odd, args: [{op: "-", left: n, right: 1}]}
  - name: odd
    params: [m]
    body:
      - if: {op: "==", left: m, right: 0}
        then:
          - return: {bool: false}
      - return: {call: even, args: [{op: "-", left: m, right: 1}]}
  - name: main
    body:
      - assign: r
        value: {call: even, args: [{int: 10, type: i32}]}
`

func TestMutualRecursionTerminates(t *testing.T) {
	f := solve(t, mutualIR, Options{})

	even, _ := f.graph.Lookup("even")
	scc := f.graph.SCCOf(even.ID)
	if len(f.graph.SCCs()[scc]) != 2 {
		t.Fatalf("even and odd should form one component")
	}
	if f.res.Iterations[scc] > 3 {
		t.Errorf("mutual recursion took %d iterations", f.res.Iterations[scc])
	}
	if f.res.Rounds > 3 {
		t.Errorf("solver needed %d rounds", f.res.Rounds)
	}
	f.expect(t, "even", "n", ts.I64, FallbackNone)
	f.expect(t, "odd", "m", ts.I64, FallbackNone)
	f.expect(t, "main", "r", ts.Bool, FallbackNone)
	if len(f.res.Diagnostics) != 0 {
		t.Errorf("unexpected diagnostics: %v", f.res.Diagnostics)
	}
}

func TestNonConvergentCeiling(t *testing.T) {
	f := solve(t, mutualIR, Options{MaxIterations: 1})

	even, _ := f.graph.Lookup("even")
	scc := f.graph.SCCOf(even.ID)
	found := false
	for _, idx := range f.res.NonConvergent {
		if idx == scc {
			found = true
		}
	}
	if !found {
		t.Fatalf("a ceiling of 1 cannot confirm the recursive component converged")
	}
	n := 0
	for _, d := range f.res.Diagnostics {
		if d.Kind == diagnostics.KindNonConvergent && d.Code == diagnostics.ErrU002 {
			n++
		}
	}
	if n != len(f.res.NonConvergent) {
		t.Errorf("one NonConvergent diagnostic per stuck component: %d diagnostics, %d components", n, len(f.res.NonConvergent))
	}

	// The solution is still total.
	for _, v := range f.set.Vars() {
		if got, _ := f.res.Resolve(v); got == nil {
			t.Fatalf("%s has no resolution", v)
		}
	}
}

func TestUnresolvedCallFallsBack(t *testing.T) {
	f := solve(t, `
functions:
  - name: main
    body:
      - assign: x
        value: 5
      - assign: y
        value: {call: mystery, args: [x]}
      - assign: z
        value: {float: "1.5"}
`, Options{})

	f.expect(t, "main", "x", ts.Dynamic, FallbackUnresolvedCall)
	f.expect(t, "main", "y", ts.Dynamic, FallbackUnresolvedCall)
	f.expect(t, "main", "z", ts.F64, FallbackNone)
	if n := f.conflicts(); n != 0 {
		t.Errorf("falling back to any must not raise conflicts, got %d", n)
	}
}

func TestLibraryCalls(t *testing.T) {
	f := solve(t, `
functions:
  - name: main
    body:
      - assign: a
        value: {int: 9, type: i16}
      - assign: r
        value: {call: sqrt, args: [a]}
      - assign: q
        value: {call: range, args: [a]}
      - assign: n
        value: {call: len, args: [{str: abc}]}
      - assign: m
        value: {call: abs, args: [{int: -3}]}
      - assign: s
        value: {str: text}
      - expr: {call: print, args: [s, 1, 2.0]}
`, Options{})

	f.expect(t, "main", "a", ts.I64, FallbackNone)
	f.expect(t, "main", "r", ts.F64, FallbackNone)
	f.expect(t, "main", "q", ts.TSeq{Elem: ts.I64}, FallbackNone)
	f.expect(t, "main", "n", ts.I64, FallbackNone)
	f.expect(t, "main", "m", ts.Dynamic, FallbackLibrary)
	f.expect(t, "main", "s", ts.String, FallbackNone)
	if n := f.conflicts(); n != 0 {
		t.Errorf("unexpected conflicts: %v", f.res.Diagnostics)
	}
}

func TestUnsignedToSignedEdge(t *testing.T) {
	src := `
functions:
  - name: main
    body:
      - assign: x
        value: {int: 1, type: u16}
      - assign: x
        value: {int: 2, type: i8}
`
	strict := solve(t, src, Options{})
	if n := strict.conflicts(); n != 1 {
		t.Errorf("mixed signedness conflicts by default, got %d conflicts", n)
	}
	strict.expect(t, "main", "x", ts.Dynamic, FallbackConflict)

	relaxed := solve(t, src, Options{Lattice: ts.Lattice{UnsignedToSigned: true}})
	if n := relaxed.conflicts(); n != 0 {
		t.Errorf("with the unsigned edge enabled there is no conflict, got %d", n)
	}
	relaxed.expect(t, "main", "x", ts.I32, FallbackNone)
}

func TestUnconstrainedDefaultsToAny(t *testing.T) {
	f := solve(t, `
functions:
  - name: f
    params: [unused]
    body:
      - return:
`, Options{})

	f.expect(t, "f", "unused", ts.Dynamic, FallbackUnconstrained)
	if got, _ := f.res.Resolve(f.prog.Function("f").Ret); !got.Equal(ts.Unit) {
		t.Errorf("procedure returns %s, want unit", got)
	}
}

func TestSolveIsRepeatable(t *testing.T) {
	f := solve(t, mutualIR, Options{})
	again := Solve(f.set, f.graph, Options{})

	for _, v := range f.set.Vars() {
		a, ra := f.res.Resolve(v)
		b, rb := again.Resolve(v)
		if !a.Equal(b) || ra != rb {
			t.Errorf("%s: %s (%s) then %s (%s)", v, a, ra, b, rb)
		}
	}
}

func TestUnionFind(t *testing.T) {
	uf := newUnionFind(4)
	if uf.find(3) != 3 {
		t.Fatal("fresh variables are their own roots")
	}
	r := uf.union(1, 2)
	if r != 1 {
		t.Errorf("equal ranks keep the first root, got %s", r)
	}
	uf.union(3, 2)
	if uf.find(3) != 1 {
		t.Errorf("the lower-rank class joins the higher-rank root")
	}
	// Variables beyond the initial size are allocated lazily.
	if uf.find(40) != 40 {
		t.Errorf("find must grow the forest")
	}
	uf.union(40, 3)
	if uf.find(40) != uf.find(1) {
		t.Errorf("40 should join the class of 1")
	}
}
