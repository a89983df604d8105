package diagnostics

import (
	"fmt"
	"sort"

	"github.com/funvibe/tyunify/internal/ir"
)

// ErrorCode is the stable identifier of a diagnostic.
type ErrorCode string

const (
	// Unification
	ErrU001 ErrorCode = "U001" // Conflict: no common join for one equivalence class
	ErrU002 ErrorCode = "U002" // NonConvergent: iteration ceiling reached
	ErrU003 ErrorCode = "U003" // UnresolvedCallTarget: dynamic dispatch or missing signature
	ErrU004 ErrorCode = "U004" // ExtractionWarning: malformed call site

	// Input
	ErrI001 ErrorCode = "I001" // Invalid input document
	ErrI002 ErrorCode = "I002" // Signature table could not be loaded
)

// Kind is the error taxonomy a code belongs to.
type Kind int

const (
	KindConflict Kind = iota
	KindNonConvergent
	KindUnresolvedCallTarget
	KindExtractionWarning
	KindInput
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "Conflict"
	case KindNonConvergent:
		return "NonConvergent"
	case KindUnresolvedCallTarget:
		return "UnresolvedCallTarget"
	case KindExtractionWarning:
		return "ExtractionWarning"
	case KindInput:
		return "Input"
	default:
		return "Unknown"
	}
}

// Severity grades a diagnostic. None of them abort solving.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

type codeInfo struct {
	kind     Kind
	severity Severity
	format   string
}

var codes = map[ErrorCode]codeInfo{
	ErrU001: {KindConflict, SeverityError, "type conflict: %s vs %s have no common supertype; falling back to any"},
	ErrU002: {KindNonConvergent, SeverityError, "constraints of %s did not converge within %d iterations; unresolved variables fall back to any"},
	ErrU003: {KindUnresolvedCallTarget, SeverityWarning, "unresolved call target %s: %s; arguments and result fall back to any"},
	ErrU004: {KindExtractionWarning, SeverityWarning, "call to %s: %s; treated as an unknown target"},
	ErrI001: {KindInput, SeverityError, "invalid input: %s"},
	ErrI002: {KindInput, SeverityError, "signature table: %s"},
}

// Diagnostic is a structured, recoverable engine event. It implements error
// so it can travel through ordinary error paths, but the engine only ever
// collects diagnostics; it never returns one as a failure.
type Diagnostic struct {
	Kind     Kind
	Code     ErrorCode
	Severity Severity
	Location ir.Location
	Detail   string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s [%s]: %s", d.Location, d.Severity, d.Code, d.Detail)
}

// NewError builds a diagnostic for code, formatting args into the code's
// message template.
func NewError(code ErrorCode, loc ir.Location, args ...interface{}) *Diagnostic {
	info, ok := codes[code]
	if !ok {
		return &Diagnostic{
			Kind:     KindInput,
			Code:     code,
			Severity: SeverityError,
			Location: loc,
			Detail:   fmt.Sprint(args...),
		}
	}
	return &Diagnostic{
		Kind:     info.kind,
		Code:     code,
		Severity: info.severity,
		Location: loc,
		Detail:   fmt.Sprintf(info.format, args...),
	}
}

// Sort orders diagnostics by location, then code, then detail. Stages append
// in their own deterministic order; sorting gives consumers a single stable
// order regardless of which stage produced what.
func Sort(diags []*Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Location.File != b.Location.File {
			return a.Location.File < b.Location.File
		}
		if a.Location.Line != b.Location.Line {
			return a.Location.Line < b.Location.Line
		}
		if a.Location.Column != b.Location.Column {
			return a.Location.Column < b.Location.Column
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Detail < b.Detail
	})
}

// Count returns how many diagnostics have the given kind.
func Count(diags []*Diagnostic, kind Kind) int {
	n := 0
	for _, d := range diags {
		if d.Kind == kind {
			n++
		}
	}
	return n
}
