// Package tyunify is the embedding API of the unification engine: bind
// library signatures, then solve IR documents or already-built programs.
package tyunify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/funvibe/tyunify/internal/config"
	"github.com/funvibe/tyunify/internal/diagnostics"
	"github.com/funvibe/tyunify/internal/ir"
	"github.com/funvibe/tyunify/internal/materialize"
	"github.com/funvibe/tyunify/internal/pipeline"
	"github.com/funvibe/tyunify/internal/signatures"
	"github.com/funvibe/tyunify/internal/typesystem"
)

type (
	Program       = ir.Program
	Config        = config.Config
	Diagnostic    = diagnostics.Diagnostic
	TypeSolution  = materialize.TypeSolution
	CastInsertion = materialize.CastInsertion
	Resolution    = materialize.Resolution
)

// ErrNoSolution is returned when the input could not be solved at all.
var ErrNoSolution = errors.New("no solution")

// Engine holds the configuration and signature table shared by every run.
// Each Solve builds fresh solver state, so one Engine can be reused.
type Engine struct {
	cfg    *config.Config
	sigs   *signatures.Table
	logger *slog.Logger
}

// Report is the outcome of one run.
type Report struct {
	Solution    *TypeSolution
	Diagnostics []*Diagnostic
}

// New creates an engine with the default configuration and the built-in
// signatures.
func New() *Engine {
	return &Engine{
		cfg:    config.Default(),
		sigs:   signatures.Builtins(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetConfig replaces the configuration.
func (e *Engine) SetConfig(cfg *Config) {
	if cfg != nil {
		e.cfg = cfg
	}
}

// SetLogger routes debug output of the stages to logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// SetSignatures replaces the whole signature table.
func (e *Engine) SetSignatures(t *signatures.Table) {
	if t != nil {
		e.sigs = t
	}
}

// Bind declares a library function, e.g.
//
//	e.Bind("hypot", "f64, f64", "f64")
//
// A trailing "..." on the last parameter makes it variadic.
func (e *Engine) Bind(name, params, ret string) error {
	params = strings.TrimSpace(params)
	variadic := strings.HasSuffix(params, "...")
	params = strings.TrimSuffix(params, "...")
	ps, err := typesystem.ParseTypeList(params)
	if err != nil {
		return fmt.Errorf("binding %s: %w", name, err)
	}
	r, err := typesystem.ParseType(ret)
	if err != nil {
		return fmt.Errorf("binding %s: %w", name, err)
	}
	return e.sigs.Add(&signatures.Signature{Name: name, Params: ps, Ret: r, Variadic: variadic})
}

// Solve runs the engine over prog. Diagnostics never make it fail; the
// error is reserved for input that could not be solved at all.
func (e *Engine) Solve(ctx context.Context, prog *Program) (*Report, error) {
	pc := pipeline.NewPipelineContext(ctx, prog, e.cfg, e.sigs, e.logger)
	pc = pipeline.Engine().Run(pc)
	rep := &Report{Solution: pc.Solution, Diagnostics: pc.Errors}
	if pc.Solution == nil {
		return rep, fmt.Errorf("%w: %v", ErrNoSolution, pc.Errors)
	}
	return rep, nil
}

// Eval decodes an IR document and solves it.
func (e *Engine) Eval(ctx context.Context, doc []byte) (*Report, error) {
	prog, err := ir.Decode(doc, "")
	if err != nil {
		return nil, err
	}
	return e.Solve(ctx, prog)
}

// LoadFile reads an IR document from disk and solves it.
func (e *Engine) LoadFile(ctx context.Context, path string) (*Report, error) {
	prog, err := ir.Load(path)
	if err != nil {
		return nil, err
	}
	return e.Solve(ctx, prog)
}
