package typesystem

import (
	"strings"
	"unicode"
)

// primAliases maps every accepted scalar spelling to its Prim. Source-language
// spellings (int, float, str, None) are accepted so that signature tables can
// be written against either side of the translation.
var primAliases = map[string]Prim{
	"any":     Dynamic,
	"dynamic": Dynamic,
	"i8":      I8,
	"i16":     I16,
	"i32":     I32,
	"i64":     I64,
	"int":     I64,
	"u8":      U8,
	"u16":     U16,
	"u32":     U32,
	"u64":     U64,
	"f32":     F32,
	"f64":     F64,
	"float":   F64,
	"bool":    Bool,
	"string":  String,
	"str":     String,
	"&str":    StrRef,
	"unit":    Unit,
	"none":    Unit,
	"None":    Unit,
}

// ParseType parses the textual form of a concrete type:
//
//	i32  &str  seq<i64>  option<f64>  map<string, i64>  fn(i32, f64) -> bool
//
// list/vec, optional and dict are accepted as aliases of seq, option and map.
func ParseType(s string) (Concrete, error) {
	p := &typeParser{input: s}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, p.errorf("unexpected trailing input")
	}
	return t, nil
}

// MustParseType is like ParseType but panics on error. Intended for tables
// of built-in signatures and tests.
func MustParseType(s string) Concrete {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTypeList parses a comma separated list of types. An empty (or blank)
// string yields an empty list.
func ParseTypeList(s string) ([]Concrete, error) {
	p := &typeParser{input: s}
	p.skipSpace()
	if p.pos == len(p.input) {
		return nil, nil
	}
	list, err := p.parseList(0)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, p.errorf("unexpected trailing input")
	}
	return list, nil
}

// FormatTypeList is the inverse of ParseTypeList.
func FormatTypeList(ts []Concrete) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

type typeParser struct {
	input string
	pos   int
}

func (p *typeParser) errorf(msg string) *ParseError {
	return &ParseError{Input: p.input, Offset: p.pos, Msg: msg}
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *typeParser) accept(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.input[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	if p.pos < len(p.input) && p.input[p.pos] == '&' {
		p.pos++
	}
	for p.pos < len(p.input) {
		c := rune(p.input[p.pos])
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			break
		}
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *typeParser) parseType() (Concrete, error) {
	start := p.pos
	name := p.ident()
	if name == "" {
		return nil, p.errorf("expected type name")
	}

	switch name {
	case "fn":
		if !p.accept("(") {
			return nil, p.errorf("expected '(' after fn")
		}
		var params []Concrete
		if !p.accept(")") {
			list, err := p.parseList(0)
			if err != nil {
				return nil, err
			}
			params = list
			if !p.accept(")") {
				return nil, p.errorf("expected ')'")
			}
		}
		if !p.accept("->") {
			return nil, p.errorf("expected '->'")
		}
		ret, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return TFn{Params: params, Ret: ret}, nil
	case "seq", "list", "vec":
		args, err := p.parseArgs(1)
		if err != nil {
			return nil, err
		}
		return TSeq{Elem: args[0]}, nil
	case "option", "optional":
		args, err := p.parseArgs(1)
		if err != nil {
			return nil, err
		}
		return TOption{Elem: args[0]}, nil
	case "map", "dict":
		args, err := p.parseArgs(2)
		if err != nil {
			return nil, err
		}
		return TMap{Key: args[0], Val: args[1]}, nil
	}

	if prim, ok := primAliases[name]; ok {
		return prim, nil
	}
	p.pos = start
	p.skipSpace()
	return nil, p.errorf("unknown type " + name)
}

func (p *typeParser) parseArgs(n int) ([]Concrete, error) {
	if !p.accept("<") {
		return nil, p.errorf("expected '<'")
	}
	args, err := p.parseList(n)
	if err != nil {
		return nil, err
	}
	if !p.accept(">") {
		return nil, p.errorf("expected '>'")
	}
	return args, nil
}

// parseList parses comma separated types. If want > 0 exactly that many are
// required.
func (p *typeParser) parseList(want int) ([]Concrete, error) {
	var out []Concrete
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		if !p.accept(",") {
			break
		}
	}
	if want > 0 && len(out) != want {
		return nil, p.errorf("wrong number of type arguments")
	}
	return out, nil
}
