package pipeline

import "github.com/funvibe/tyunify/internal/diagnostics"

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Engine returns the unification pipeline: call graph, extraction, solving
// and materialization, in that order.
func Engine() *Pipeline {
	return New(
		&CallGraphProcessor{},
		&ExtractProcessor{},
		&SolveProcessor{},
		&MaterializeProcessor{},
	)
}

// Run executes the pipeline.
func (p *Pipeline) Run(initialCtx *PipelineContext) *PipelineContext {
	ctx := initialCtx
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
		// Continue on errors to collect diagnostics from all stages; a stage
		// whose input is missing returns the context untouched.
	}
	diagnostics.Sort(ctx.Errors)
	return ctx
}
