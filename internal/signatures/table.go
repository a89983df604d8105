// Package signatures holds the library signature table: the fixed parameter
// and return types of functions that live outside the compilation unit.
package signatures

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/funvibe/tyunify/internal/typesystem"
)

// Signature is the fixed type of an external function.
type Signature struct {
	Name   string
	Params []typesystem.Concrete
	Ret    typesystem.Concrete
	// Variadic repeats the last parameter type for any further arguments.
	Variadic bool
	// Requires is a semver constraint on the target runtime version; empty
	// means the signature applies to every version.
	Requires string
}

// ParamFor returns the declared type of the i-th argument.
func (s *Signature) ParamFor(i int) (typesystem.Concrete, bool) {
	switch {
	case i < len(s.Params):
		return s.Params[i], true
	case s.Variadic && len(s.Params) > 0:
		return s.Params[len(s.Params)-1], true
	}
	return nil, false
}

// Accepts reports whether a call with n arguments matches the arity.
func (s *Signature) Accepts(n int) bool {
	if s.Variadic {
		return n >= len(s.Params)-1
	}
	return n == len(s.Params)
}

// Type returns the signature as a function type.
func (s *Signature) Type() typesystem.TFn {
	return typesystem.TFn{Params: s.Params, Ret: s.Ret}
}

func (s *Signature) String() string {
	variadic := ""
	if s.Variadic {
		variadic = "..."
	}
	return fmt.Sprintf("%s(%s%s) -> %s", s.Name, typesystem.FormatTypeList(s.Params), variadic, s.Ret)
}

func (s *Signature) validate() error {
	if s.Name == "" {
		return fmt.Errorf("signature without name")
	}
	if s.Ret == nil {
		return fmt.Errorf("signature %s has no return type", s.Name)
	}
	if s.Variadic && len(s.Params) == 0 {
		return fmt.Errorf("variadic signature %s needs at least one parameter", s.Name)
	}
	if s.Requires != "" {
		if _, err := semver.NewConstraint(s.Requires); err != nil {
			return fmt.Errorf("signature %s: invalid requires %q: %w", s.Name, s.Requires, err)
		}
	}
	return nil
}

// Table maps external function names to signatures. Later additions replace
// earlier ones, so files loaded after the built-ins can override them.
type Table struct {
	sigs map[string]*Signature
}

func NewTable() *Table {
	return &Table{sigs: make(map[string]*Signature)}
}

// Add registers sig, replacing any signature with the same name.
func (t *Table) Add(sig *Signature) error {
	if err := sig.validate(); err != nil {
		return err
	}
	t.sigs[sig.Name] = sig
	return nil
}

// Lookup returns the signature registered under name. A nil table has none.
func (t *Table) Lookup(name string) (*Signature, bool) {
	if t == nil {
		return nil, false
	}
	sig, ok := t.sigs[name]
	return sig, ok
}

// Merge adds every signature of other to t.
func (t *Table) Merge(other *Table) {
	if other == nil {
		return
	}
	for name, sig := range other.sigs {
		t.sigs[name] = sig
	}
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.sigs)
}

// Names returns the registered names in sorted order.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.sigs))
	for name := range t.sigs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForVersion returns the subset of signatures whose requirement admits the
// target version. An empty target keeps everything.
func (t *Table) ForVersion(target string) (*Table, error) {
	out := NewTable()
	if target == "" {
		out.Merge(t)
		return out, nil
	}
	v, err := semver.NewVersion(target)
	if err != nil {
		return nil, fmt.Errorf("invalid target version %q: %w", target, err)
	}
	for _, name := range t.Names() {
		sig := t.sigs[name]
		if sig.Requires == "" {
			out.sigs[name] = sig
			continue
		}
		c, err := semver.NewConstraint(sig.Requires)
		if err != nil {
			return nil, fmt.Errorf("signature %s: invalid requires %q: %w", name, sig.Requires, err)
		}
		if c.Check(v) {
			out.sigs[name] = sig
		}
	}
	return out, nil
}
