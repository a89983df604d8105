package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/funvibe/tyunify/internal/diagnostics"
	"github.com/funvibe/tyunify/internal/pipeline"
	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

// renderer prints diagnostics to the error stream, in color when it is a
// terminal.
type renderer struct {
	w     io.Writer
	color bool
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{w: w, color: useColor(w)}
}

func useColor(w io.Writer) bool {
	// NO_COLOR convention: https://no-color.org/
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

func (r *renderer) paint(s, color string) string {
	if !r.color {
		return s
	}
	return color + s + ansiReset
}

func severityColor(s diagnostics.Severity) string {
	switch s {
	case diagnostics.SeverityError:
		return ansiRed
	case diagnostics.SeverityWarning:
		return ansiYellow
	default:
		return ansiCyan
	}
}

func (r *renderer) diagnostic(d *diagnostics.Diagnostic) {
	fmt.Fprintf(r.w, "%s: %s [%s]: %s\n",
		r.paint(d.Location.String(), ansiBold),
		r.paint(d.Severity.String(), severityColor(d.Severity)),
		d.Code,
		d.Detail)
}

// summary prints one line with the counts a user scans for first.
func (r *renderer) summary(pc *pipeline.PipelineContext) {
	sol := pc.Solution
	fmt.Fprintf(r.w, "%d variables, %d casts, %d conflicts, %d unresolved calls, %d non-convergent\n",
		len(sol.Vars()),
		len(sol.Casts),
		diagnostics.Count(pc.Errors, diagnostics.KindConflict),
		diagnostics.Count(pc.Errors, diagnostics.KindUnresolvedCallTarget),
		len(pc.Result.NonConvergent))
}
