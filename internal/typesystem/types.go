package typesystem

import (
	"strconv"
	"strings"
)

// Type is the unit manipulated by the engine: a type variable, a concrete
// type of the target universe, or a function shape over other types.
type Type interface {
	String() string
	isType()
}

// TypeVar is an opaque identifier for an unresolved type slot.
// The zero value means "not allocated".
type TypeVar uint32

// NoVar is the unallocated type variable.
const NoVar TypeVar = 0

func (v TypeVar) String() string {
	return "t" + strconv.FormatUint(uint64(v), 10)
}

func (TypeVar) isType() {}

// Concrete is a fully resolved type of the target universe. The set of
// implementations is closed: Prim, TSeq, TOption, TMap and TFn.
type Concrete interface {
	Type
	Equal(Concrete) bool
	concrete()
}

// Prim is a scalar concrete type.
type Prim uint8

const (
	// Dynamic is the "any" fallback. Variables that cannot be resolved to a
	// precise static type end up here, and the generator emits a runtime
	// checked path for them.
	Dynamic Prim = iota
	I8
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F32
	F64
	Bool
	String // owned string
	StrRef // borrowed string
	Unit
)

var primNames = [...]string{
	Dynamic: "any",
	I8:      "i8",
	I16:     "i16",
	I32:     "i32",
	I64:     "i64",
	U8:      "u8",
	U16:     "u16",
	U32:     "u32",
	U64:     "u64",
	F32:     "f32",
	F64:     "f64",
	Bool:    "bool",
	String:  "string",
	StrRef:  "&str",
	Unit:    "unit",
}

func (p Prim) String() string {
	if int(p) < len(primNames) {
		return primNames[p]
	}
	return "prim(" + strconv.Itoa(int(p)) + ")"
}

func (Prim) isType()   {}
func (Prim) concrete() {}

func (p Prim) Equal(other Concrete) bool {
	o, ok := other.(Prim)
	return ok && o == p
}

// IsSigned reports whether p is a signed integer type.
func (p Prim) IsSigned() bool { return p >= I8 && p <= I64 }

// IsUnsigned reports whether p is an unsigned integer type.
func (p Prim) IsUnsigned() bool { return p >= U8 && p <= U64 }

// IsInteger reports whether p is an integer type of either signedness.
func (p Prim) IsInteger() bool { return p.IsSigned() || p.IsUnsigned() }

// IsFloat reports whether p is a floating-point type.
func (p Prim) IsFloat() bool { return p == F32 || p == F64 }

// IsNumeric reports whether p participates in the numeric lattice.
func (p Prim) IsNumeric() bool { return p.IsInteger() || p.IsFloat() }

// IsString reports whether p is one of the string ownership forms.
func (p Prim) IsString() bool { return p == String || p == StrRef }

// Bits returns the width of a numeric type, 0 otherwise.
func (p Prim) Bits() int {
	switch p {
	case I8, U8:
		return 8
	case I16, U16:
		return 16
	case I32, U32, F32:
		return 32
	case I64, U64, F64:
		return 64
	}
	return 0
}

func signedOfWidth(bits int) (Prim, bool) {
	switch bits {
	case 8:
		return I8, true
	case 16:
		return I16, true
	case 32:
		return I32, true
	case 64:
		return I64, true
	}
	return Dynamic, false
}

// TSeq is a homogeneous sequence (the target's growable vector).
type TSeq struct {
	Elem Concrete
}

func (t TSeq) String() string { return "seq<" + t.Elem.String() + ">" }
func (TSeq) isType()          {}
func (TSeq) concrete()        {}

func (t TSeq) Equal(other Concrete) bool {
	o, ok := other.(TSeq)
	return ok && t.Elem.Equal(o.Elem)
}

// TOption is an optional value.
type TOption struct {
	Elem Concrete
}

func (t TOption) String() string { return "option<" + t.Elem.String() + ">" }
func (TOption) isType()          {}
func (TOption) concrete()        {}

func (t TOption) Equal(other Concrete) bool {
	o, ok := other.(TOption)
	return ok && t.Elem.Equal(o.Elem)
}

// TMap is a key/value map.
type TMap struct {
	Key Concrete
	Val Concrete
}

func (t TMap) String() string { return "map<" + t.Key.String() + ", " + t.Val.String() + ">" }
func (TMap) isType()          {}
func (TMap) concrete()        {}

func (t TMap) Equal(other Concrete) bool {
	o, ok := other.(TMap)
	return ok && t.Key.Equal(o.Key) && t.Val.Equal(o.Val)
}

// TFn is a resolved function type.
type TFn struct {
	Params []Concrete
	Ret    Concrete
}

func (t TFn) String() string {
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.String()
	}
	return "fn(" + strings.Join(parts, ", ") + ") -> " + t.Ret.String()
}

func (TFn) isType()   {}
func (TFn) concrete() {}

func (t TFn) Equal(other Concrete) bool {
	o, ok := other.(TFn)
	if !ok || len(o.Params) != len(t.Params) || !t.Ret.Equal(o.Ret) {
		return false
	}
	for i := range t.Params {
		if !t.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	return true
}

// TFunc is a function shape whose parameters and result may still be
// variables, as recorded on call graph nodes.
type TFunc struct {
	Params []Type
	Ret    Type
}

func (t TFunc) String() string {
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.String()
	}
	return "fn(" + strings.Join(parts, ", ") + ") -> " + t.Ret.String()
}

func (TFunc) isType() {}

// IsDynamic reports whether t is the Dynamic fallback.
func IsDynamic(t Concrete) bool {
	p, ok := t.(Prim)
	return ok && p == Dynamic
}

// Equal compares two possibly-nil concrete types.
func Equal(a, b Concrete) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// Resolve substitutes every variable reachable from t using lookup.
// Variables lookup cannot resolve become Dynamic.
func Resolve(t Type, lookup func(TypeVar) (Concrete, bool)) Concrete {
	switch typ := t.(type) {
	case nil:
		return Dynamic
	case TypeVar:
		if c, ok := lookup(typ); ok {
			return c
		}
		return Dynamic
	case Concrete:
		return typ
	case TFunc:
		params := make([]Concrete, len(typ.Params))
		for i, p := range typ.Params {
			params[i] = Resolve(p, lookup)
		}
		return TFn{Params: params, Ret: Resolve(typ.Ret, lookup)}
	default:
		return Dynamic
	}
}
