package materialize

import (
	"io"

	"gopkg.in/yaml.v3"
)

// The document layout is part of the output contract: field order is fixed
// by these structs and every list is already in a canonical order.

type solutionDoc struct {
	File      string        `yaml:"file,omitempty"`
	Functions []functionDoc `yaml:"functions"`
	Variables []variableDoc `yaml:"variables"`
	Casts     []castDoc     `yaml:"casts"`
}

type functionDoc struct {
	Name     string       `yaml:"name"`
	Params   []bindingDoc `yaml:"params,omitempty"`
	Returns  string       `yaml:"returns"`
	Fallback string       `yaml:"fallback,omitempty"`
	Locals   []bindingDoc `yaml:"locals,omitempty"`
}

type bindingDoc struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Fallback string `yaml:"fallback,omitempty"`
}

type variableDoc struct {
	Var      string `yaml:"var"`
	Type     string `yaml:"type"`
	Fallback string `yaml:"fallback,omitempty"`
}

type castDoc struct {
	ID        string `yaml:"id"`
	At        string `yaml:"at"`
	Var       string `yaml:"var"`
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	Kind      string `yaml:"kind"`
	Site      string `yaml:"site"`
	Action    string `yaml:"action"`
	Ambiguous bool   `yaml:"ambiguous,omitempty"`
}

func fallbackName(r Resolution) string {
	if !r.IsFallback() {
		return ""
	}
	return r.Fallback.String()
}

func bindings(bs []Binding) []bindingDoc {
	out := make([]bindingDoc, 0, len(bs))
	for _, b := range bs {
		out = append(out, bindingDoc{Name: b.Name, Type: b.Type.Type.String(), Fallback: fallbackName(b.Type)})
	}
	return out
}

func (s *TypeSolution) document() solutionDoc {
	doc := solutionDoc{
		File:      s.File,
		Functions: make([]functionDoc, 0, len(s.Functions)),
		Variables: make([]variableDoc, 0, len(s.order)),
		Casts:     make([]castDoc, 0, len(s.Casts)),
	}
	for _, f := range s.Functions {
		doc.Functions = append(doc.Functions, functionDoc{
			Name:     f.Name,
			Params:   bindings(f.Params),
			Returns:  f.Ret.Type.String(),
			Fallback: fallbackName(f.Ret),
			Locals:   bindings(f.Locals),
		})
	}
	for _, v := range s.order {
		r := s.vars[v]
		doc.Variables = append(doc.Variables, variableDoc{
			Var:      v.String(),
			Type:     r.Type.String(),
			Fallback: fallbackName(r),
		})
	}
	for _, c := range s.Casts {
		doc.Casts = append(doc.Casts, castDoc{
			ID:        c.ID.String(),
			At:        c.Location.String(),
			Var:       c.Var.String(),
			From:      c.From.String(),
			To:        c.To.String(),
			Kind:      c.Kind.String(),
			Site:      c.Site.String(),
			Action:    string(c.Action),
			Ambiguous: c.Ambiguous,
		})
	}
	return doc
}

// Encode writes the solution as YAML. Equal solutions encode to identical
// bytes.
func (s *TypeSolution) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s.document()); err != nil {
		return err
	}
	return enc.Close()
}
