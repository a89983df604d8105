package pipeline

import (
	"context"
	"io"
	"log/slog"

	"github.com/funvibe/tyunify/internal/callgraph"
	"github.com/funvibe/tyunify/internal/config"
	"github.com/funvibe/tyunify/internal/constraints"
	"github.com/funvibe/tyunify/internal/diagnostics"
	"github.com/funvibe/tyunify/internal/ir"
	"github.com/funvibe/tyunify/internal/materialize"
	"github.com/funvibe/tyunify/internal/signatures"
	"github.com/funvibe/tyunify/internal/solver"
	ts "github.com/funvibe/tyunify/internal/typesystem"
)

// Processor is one stage of the pipeline.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// PipelineContext carries the state of one engine run from stage to stage.
// A context is never shared between runs.
type PipelineContext struct {
	Ctx        context.Context
	FilePath   string
	Config     *config.Config
	Signatures *signatures.Table
	Logger     *slog.Logger

	Program     *ir.Program
	Alloc       *ts.VarAllocator
	Graph       *callgraph.Graph
	Constraints *constraints.Set
	Result      *solver.Result
	Solution    *materialize.TypeSolution

	Errors []*diagnostics.Diagnostic
}

// NewPipelineContext prepares a run over prog. Nil cfg, sigs and logger mean
// the defaults: config.Default, the built-in signatures and a silent logger.
func NewPipelineContext(ctx context.Context, prog *ir.Program, cfg *config.Config, sigs *signatures.Table, logger *slog.Logger) *PipelineContext {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if sigs == nil {
		sigs = signatures.Builtins()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	pc := &PipelineContext{
		Ctx:        ctx,
		Config:     cfg,
		Signatures: sigs,
		Logger:     logger,
		Program:    prog,
	}
	if prog != nil {
		pc.FilePath = prog.File
	}
	return pc
}

// Lattice returns the coercion lattice selected by the configuration.
func (c *PipelineContext) Lattice() ts.Lattice {
	return ts.Lattice{
		UnsignedToSigned: c.Config.Lattice.UnsignedToSigned,
		LossyIntToFloat:  c.Config.Lattice.LossyIntToFloat,
	}
}

// HasErrors reports whether any diagnostic has error severity.
func (c *PipelineContext) HasErrors() bool {
	for _, d := range c.Errors {
		if d.Severity == diagnostics.SeverityError {
			return true
		}
	}
	return false
}

func (c *PipelineContext) fail(err error) {
	c.Errors = append(c.Errors, diagnostics.NewError(diagnostics.ErrI001, ir.Location{File: c.FilePath}, err.Error()))
}
