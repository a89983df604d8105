package ir

import (
	"testing"

	"github.com/funvibe/tyunify/internal/typesystem"
)

func lit(v string) *Literal { return &Literal{Kind: LitInt, Value: v} }

func TestInspectOrder(t *testing.T) {
	fn := &Function{
		Name:   "f",
		Params: []*Param{{Name: "a"}},
		Body: []Statement{
			&Assign{Target: "x", Value: &Binary{Op: "+", Left: &Name{Ident: "a"}, Right: lit("1")}},
			&Return{Value: &Name{Ident: "x"}},
		},
	}

	var got []string
	Inspect(fn, func(n Node) bool {
		switch x := n.(type) {
		case *Function:
			got = append(got, "fn")
		case *Param:
			got = append(got, "param:"+x.Name)
		case *Assign:
			got = append(got, "assign")
		case *Binary:
			got = append(got, "bin:"+x.Op)
		case *Name:
			got = append(got, "name:"+x.Ident)
		case *Literal:
			got = append(got, "lit:"+x.Value)
		case *Return:
			got = append(got, "return")
		}
		return true
	})

	want := []string{"fn", "param:a", "assign", "bin:+", "name:a", "lit:1", "return", "name:x"}
	if len(got) != len(want) {
		t.Fatalf("visited %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestInspectSkipsChildren(t *testing.T) {
	call := &Call{Callee: "g", Args: []Expression{lit("1"), lit("2")}}
	count := 0
	Inspect(call, func(n Node) bool {
		count++
		return false
	})
	if count != 1 {
		t.Errorf("returning false should prune the walk, visited %d nodes", count)
	}
}

func TestAllocateVars(t *testing.T) {
	pre := &Name{Ident: "a"}
	pre.Var = 7
	prog := &Program{Functions: []*Function{
		{
			Name:   "f",
			Params: []*Param{{Name: "a"}},
			Body:   []Statement{&Return{Value: pre}},
		},
		{
			Name: "g",
			Body: []Statement{&ExprStmt{X: &Call{Callee: "f", Args: []Expression{lit("1")}}}},
		},
	}}

	alloc := AllocateVars(prog)

	f, g := prog.Functions[0], prog.Functions[1]
	if f.Params[0].Var != 8 || f.Ret != 9 {
		t.Errorf("f vars: param %s ret %s, want t8 t9", f.Params[0].Var, f.Ret)
	}
	if pre.Var != 7 {
		t.Errorf("pre-allocated var changed to %s", pre.Var)
	}
	if g.Ret != 10 {
		t.Errorf("g ret = %s, want t10", g.Ret)
	}
	call := g.Body[0].(*ExprStmt).X.(*Call)
	if call.Var != 11 || call.Args[0].Info().Var != 12 {
		t.Errorf("call vars = %s, %s; want t11, t12", call.Var, call.Args[0].Info().Var)
	}
	if alloc.Next() != 13 {
		t.Errorf("allocator next = %s, want t13", alloc.Next())
	}
	if prog.MaxVar() != 12 {
		t.Errorf("MaxVar = %s, want t12", prog.MaxVar())
	}
}

func TestAllocateVarsDeterministic(t *testing.T) {
	build := func() *Program {
		prog, err := Decode([]byte(sampleIR), "sample.yaml")
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		AllocateVars(prog)
		return prog
	}

	collect := func(p *Program) []typesystem.TypeVar {
		var vars []typesystem.TypeVar
		for _, fn := range p.Functions {
			Inspect(fn, func(n Node) bool {
				if e, ok := n.(Expression); ok {
					vars = append(vars, e.Info().Var)
				}
				return true
			})
		}
		return vars
	}

	a, b := collect(build()), collect(build())
	if len(a) != len(b) {
		t.Fatalf("different expression counts: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expression %d numbered %s then %s", i, a[i], b[i])
		}
	}
}

func TestClassifyOp(t *testing.T) {
	tests := map[string]OpClass{
		"+": OpArithmetic, "//": OpArithmetic, "<=": OpCompare, "not in": OpCompare,
		"and": OpLogical, "not": OpLogical, "<<": OpBitwise, "~": OpBitwise,
		"**": OpPower, "@": OpUnknown,
	}
	for op, want := range tests {
		if got := ClassifyOp(op); got != want {
			t.Errorf("ClassifyOp(%q) = %d, want %d", op, got, want)
		}
	}
}
