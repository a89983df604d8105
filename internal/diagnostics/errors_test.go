package diagnostics

import (
	"errors"
	"strings"
	"testing"

	"github.com/funvibe/tyunify/internal/ir"
)

func TestNewError(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		args     []interface{}
		kind     Kind
		severity Severity
		contains string
	}{
		{ErrU001, []interface{}{"i64", "f64"}, KindConflict, SeverityError, "i64 vs f64"},
		{ErrU002, []interface{}{"{a, b}", 3}, KindNonConvergent, SeverityError, "within 3 iterations"},
		{ErrU003, []interface{}{"mystery", "not in the signature table"}, KindUnresolvedCallTarget, SeverityWarning, "mystery"},
		{ErrU004, []interface{}{"f", "expected 1 arguments, got 2"}, KindExtractionWarning, SeverityWarning, "got 2"},
		{"Z999", []interface{}{"raw"}, KindInput, SeverityError, "raw"},
	}

	loc := ir.Location{File: "m.py", Line: 4, Column: 2}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			d := NewError(tt.code, loc, tt.args...)
			if d.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", d.Kind, tt.kind)
			}
			if d.Severity != tt.severity {
				t.Errorf("Severity = %s, want %s", d.Severity, tt.severity)
			}
			if !strings.Contains(d.Detail, tt.contains) {
				t.Errorf("Detail %q does not contain %q", d.Detail, tt.contains)
			}
			if !strings.HasPrefix(d.Error(), "m.py:4:2: ") {
				t.Errorf("Error() = %q, want location prefix", d.Error())
			}
		})
	}
}

func TestDiagnosticIsError(t *testing.T) {
	var err error = NewError(ErrU001, ir.Location{}, "bool", "i32")
	var d *Diagnostic
	if !errors.As(err, &d) || d.Code != ErrU001 {
		t.Errorf("errors.As should recover the diagnostic, got %v", err)
	}
}

func TestSortAndCount(t *testing.T) {
	diags := []*Diagnostic{
		NewError(ErrU003, ir.Location{File: "b.py", Line: 1}, "x", "y"),
		NewError(ErrU001, ir.Location{File: "a.py", Line: 9}, "i64", "f64"),
		NewError(ErrU004, ir.Location{File: "a.py", Line: 2}, "f", "arity"),
		NewError(ErrU003, ir.Location{File: "a.py", Line: 2}, "g", "dynamic"),
	}
	Sort(diags)

	want := []ErrorCode{ErrU003, ErrU004, ErrU001, ErrU003}
	for i, code := range want {
		if diags[i].Code != code {
			t.Errorf("position %d = %s, want %s", i, diags[i].Code, code)
		}
	}
	if diags[3].Location.File != "b.py" {
		t.Errorf("b.py should sort last")
	}

	if n := Count(diags, KindUnresolvedCallTarget); n != 2 {
		t.Errorf("Count(unresolved) = %d, want 2", n)
	}
	if n := Count(diags, KindNonConvergent); n != 0 {
		t.Errorf("Count(non-convergent) = %d, want 0", n)
	}
}
