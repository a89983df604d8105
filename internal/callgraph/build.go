package callgraph

import (
	"github.com/funvibe/tyunify/internal/ir"
	"github.com/funvibe/tyunify/internal/signatures"
	"github.com/funvibe/tyunify/internal/typesystem"
)

// Build constructs the call graph of prog. Type variables must already be
// allocated (see ir.AllocateVars). Calls to names outside the program go to
// the sink; sigs decides whether they are library or unresolved calls.
// Build never modifies prog.
func Build(prog *ir.Program, sigs *signatures.Table) *Graph {
	g := newGraph()
	for _, fn := range prog.Functions {
		g.addNode(fn)
	}

	for _, fn := range prog.Functions {
		caller := g.byName[fn.Name]
		ir.Inspect(fn, func(n ir.Node) bool {
			switch call := n.(type) {
			case *ir.Call:
				site := g.newSite(caller, call, call.Callee, call.Args)
				if id, ok := g.byName[call.Callee]; ok {
					site.Callee = id
					site.Kind = SiteDirect
				} else if sig, ok := sigs.Lookup(call.Callee); ok {
					site.Kind = SiteLibrary
					site.Signature = sig
				} else {
					site.Kind = SiteUnresolved
				}
			case *ir.DynamicCall:
				site := g.newSite(caller, call, "<dynamic>", call.Args)
				site.Kind = SiteDynamic
			case *ir.MethodCall:
				site := g.newSite(caller, call, "."+call.Method, call.Args)
				site.Kind = SiteDynamic
			}
			return true
		})
	}

	g.finish()
	g.computeSCCs()
	return g
}

func (g *Graph) newSite(caller NodeID, expr ir.Expression, name string, args []ir.Expression) *CallSite {
	vars := make([]typesystem.TypeVar, len(args))
	for i, a := range args {
		vars[i] = a.Info().Var
	}
	site := &CallSite{
		ID:     len(g.Sites),
		Caller: caller,
		Callee: Sink,
		Name:   name,
		Expr:   expr,
		Args:   vars,
		Result: expr.Info().Var,
		Loc:    expr.Pos(),
	}
	g.Sites = append(g.Sites, site)
	g.siteByExpr[expr] = site
	return site
}
