package pipeline

import (
	"errors"

	"github.com/funvibe/tyunify/internal/callgraph"
	"github.com/funvibe/tyunify/internal/constraints"
	"github.com/funvibe/tyunify/internal/ir"
	"github.com/funvibe/tyunify/internal/materialize"
	"github.com/funvibe/tyunify/internal/solver"
)

// CallGraphProcessor numbers the program's type variables and builds its
// call graph.
type CallGraphProcessor struct{}

func (p *CallGraphProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Program == nil {
		ctx.fail(errors.New("no program to solve"))
		return ctx
	}
	ctx.Alloc = ir.AllocateVars(ctx.Program)
	ctx.Graph = callgraph.Build(ctx.Program, ctx.Signatures)
	ctx.Logger.Debug("call graph built",
		"functions", len(ctx.Program.Functions),
		"sites", len(ctx.Graph.Sites),
		"sccs", len(ctx.Graph.SCCs()))
	return ctx
}

// ExtractProcessor turns the program into constraints.
type ExtractProcessor struct{}

func (p *ExtractProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Graph == nil {
		return ctx
	}
	set, err := constraints.Extract(ctx.Ctx, ctx.Program, ctx.Graph, ctx.Alloc, constraints.Options{
		Parallelism: ctx.Config.Parallelism,
		Lattice:     ctx.Lattice(),
		Logger:      ctx.Logger,
	})
	if err != nil {
		ctx.fail(err)
		return ctx
	}
	ctx.Constraints = set
	ctx.Errors = append(ctx.Errors, set.Diagnostics()...)
	ctx.Logger.Debug("constraints extracted", "constraints", len(set.Constraints()), "vars", len(set.Vars()))
	return ctx
}

// SolveProcessor runs the fixpoint solver.
type SolveProcessor struct{}

func (p *SolveProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Constraints == nil {
		return ctx
	}
	ctx.Result = solver.Solve(ctx.Constraints, ctx.Graph, solver.Options{
		MaxIterations: ctx.Config.MaxIterations,
		Lattice:       ctx.Lattice(),
		Logger:        ctx.Logger,
	})
	ctx.Errors = append(ctx.Errors, ctx.Result.Diagnostics...)
	ctx.Logger.Debug("solved", "rounds", ctx.Result.Rounds, "non_convergent", len(ctx.Result.NonConvergent))
	return ctx
}

// MaterializeProcessor produces the TypeSolution and its cast plan.
type MaterializeProcessor struct{}

func (p *MaterializeProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Result == nil {
		return ctx
	}
	ctx.Solution = materialize.Materialize(ctx.Program, ctx.Constraints, ctx.Result, ctx.Lattice())
	ctx.Logger.Debug("materialized", "casts", len(ctx.Solution.Casts))
	return ctx
}
