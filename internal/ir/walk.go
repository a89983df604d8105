package ir

import (
	"github.com/funvibe/tyunify/internal/typesystem"
)

// Inspect traverses the tree rooted at node in depth-first pre-order,
// calling f for each node. If f returns false the children of that node
// are skipped. The traversal order is fixed; every pass that allocates or
// reports something by walking relies on it being deterministic.
func Inspect(node Node, f func(Node) bool) {
	if node == nil || !f(node) {
		return
	}

	switch n := node.(type) {
	case *Function:
		for _, p := range n.Params {
			Inspect(p, f)
		}
		inspectStmts(n.Body, f)
	case *Assign:
		Inspect(n.Value, f)
	case *Return:
		if n.Value != nil {
			Inspect(n.Value, f)
		}
	case *ExprStmt:
		Inspect(n.X, f)
	case *If:
		Inspect(n.Cond, f)
		inspectStmts(n.Then, f)
		inspectStmts(n.Else, f)
	case *While:
		Inspect(n.Cond, f)
		inspectStmts(n.Body, f)
	case *For:
		Inspect(n.Iter, f)
		inspectStmts(n.Body, f)
	case *Binary:
		Inspect(n.Left, f)
		Inspect(n.Right, f)
	case *Unary:
		Inspect(n.Operand, f)
	case *Call:
		inspectExprs(n.Args, f)
	case *DynamicCall:
		Inspect(n.Target, f)
		inspectExprs(n.Args, f)
	case *MethodCall:
		Inspect(n.Receiver, f)
		inspectExprs(n.Args, f)
	case *List:
		inspectExprs(n.Elems, f)
	}
}

func inspectStmts(stmts []Statement, f func(Node) bool) {
	for _, s := range stmts {
		Inspect(s, f)
	}
}

func inspectExprs(exprs []Expression, f func(Node) bool) {
	for _, e := range exprs {
		Inspect(e, f)
	}
}

// AllocateVars gives every parameter, return slot and expression that has
// no type variable yet a fresh one, continuing after the highest variable
// already present. It returns the allocator so later stages keep numbering
// from the same point.
func AllocateVars(prog *Program) *typesystem.VarAllocator {
	alloc := typesystem.NewVarAllocator(1)

	// Pass 1: never reuse a variable the upstream stage already handed out.
	for _, fn := range prog.Functions {
		alloc.Observe(fn.Ret)
		Inspect(fn, func(n Node) bool {
			switch x := n.(type) {
			case *Param:
				alloc.Observe(x.Var)
			case Expression:
				alloc.Observe(x.Info().Var)
			}
			return true
		})
	}

	// Pass 2: fill the gaps in walk order.
	for _, fn := range prog.Functions {
		for _, p := range fn.Params {
			if p.Var == typesystem.NoVar {
				p.Var = alloc.Fresh()
			}
		}
		if fn.Ret == typesystem.NoVar {
			fn.Ret = alloc.Fresh()
		}
		Inspect(fn, func(n Node) bool {
			if e, ok := n.(Expression); ok && e.Info().Var == typesystem.NoVar {
				e.Info().Var = alloc.Fresh()
			}
			return true
		})
	}
	return alloc
}

// MaxVar returns the highest type variable referenced by the program.
func (p *Program) MaxVar() typesystem.TypeVar {
	var hi typesystem.TypeVar
	see := func(v typesystem.TypeVar) {
		if v > hi {
			hi = v
		}
	}
	for _, fn := range p.Functions {
		see(fn.Ret)
		Inspect(fn, func(n Node) bool {
			switch x := n.(type) {
			case *Param:
				see(x.Var)
			case Expression:
				see(x.Info().Var)
			}
			return true
		})
	}
	return hi
}
