package signatures

import (
	"context"
	"fmt"
	"os"

	"github.com/funvibe/tyunify/internal/config"
	"github.com/funvibe/tyunify/internal/typesystem"
	"gopkg.in/yaml.v3"
)

// File is the on-disk form of a signature plugin:
//
//	plugin: mathlib
//	version: 1.2.0
//	requires: ">=3.8"
//	signatures:
//	  - name: math.hypot
//	    params: [f64, f64]
//	    returns: f64
//	  - name: math.dist
//	    params: ["seq<f64>", "seq<f64>"]
//	    returns: f64
//	    requires: ">=3.10"
//
// A top-level requires applies to every entry that has none of its own.
type File struct {
	Plugin     string      `yaml:"plugin,omitempty"`
	Version    string      `yaml:"version,omitempty"`
	Requires   string      `yaml:"requires,omitempty"`
	Signatures []FileEntry `yaml:"signatures"`
}

// FileEntry is one signature in a File. Types use the textual type syntax.
type FileEntry struct {
	Name     string   `yaml:"name"`
	Params   []string `yaml:"params,omitempty"`
	Returns  string   `yaml:"returns"`
	Variadic bool     `yaml:"variadic,omitempty"`
	Requires string   `yaml:"requires,omitempty"`
}

// LoadFile reads a YAML signature file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signatures %s: %w", path, err)
	}
	return ParseFile(data, path)
}

// ParseFile parses signature file content. The path argument is used only
// for error messages.
func ParseFile(data []byte, path string) (*Table, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	t := NewTable()
	for i, e := range f.Signatures {
		sig, err := e.signature(f.Requires)
		if err != nil {
			return nil, fmt.Errorf("%s: signatures[%d]: %w", path, i, err)
		}
		if _, dup := t.Lookup(sig.Name); dup {
			return nil, fmt.Errorf("%s: signatures[%d]: %s defined twice", path, i, sig.Name)
		}
		if err := t.Add(sig); err != nil {
			return nil, fmt.Errorf("%s: signatures[%d]: %w", path, i, err)
		}
	}
	return t, nil
}

func (e FileEntry) signature(defaultRequires string) (*Signature, error) {
	params := make([]typesystem.Concrete, 0, len(e.Params))
	for _, p := range e.Params {
		t, err := typesystem.ParseType(p)
		if err != nil {
			return nil, err
		}
		params = append(params, t)
	}
	if e.Returns == "" {
		return nil, fmt.Errorf("signature %s has no return type", e.Name)
	}
	ret, err := typesystem.ParseType(e.Returns)
	if err != nil {
		return nil, err
	}
	requires := e.Requires
	if requires == "" {
		requires = defaultRequires
	}
	return &Signature{
		Name:     e.Name,
		Params:   params,
		Ret:      ret,
		Variadic: e.Variadic,
		Requires: requires,
	}, nil
}

// Load assembles the signature table described by cfg: the built-ins unless
// disabled, then each file in order, then the database, all filtered by the
// target version.
func Load(ctx context.Context, cfg config.SignaturesConfig) (*Table, error) {
	t := NewTable()
	if !cfg.NoBuiltins {
		t.Merge(Builtins())
	}
	for _, path := range cfg.Files {
		ft, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		t.Merge(ft)
	}
	if cfg.Database != "" {
		store, err := OpenStore(cfg.Database)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		st, err := store.Load(ctx)
		if err != nil {
			return nil, err
		}
		t.Merge(st)
	}
	return t.ForVersion(cfg.TargetVersion)
}
