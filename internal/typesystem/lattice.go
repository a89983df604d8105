package typesystem

// Lattice is the coercion partial order used to reconcile bindings:
//
//	i8 ⊑ i16 ⊑ i32 ⊑ i64      u8 ⊑ u16 ⊑ u32 ⊑ u64      f32 ⊑ f64
//	i8, i16, u8, u16 ⊑ f32    i32, u32 ⊑ f64
//	&str ⊑ string             T ⊑ option<T>, unit ⊑ option<T>
//	T ⊑ any
//
// Integer to float edges exist only where every value is representable.
// The zero value is the strict lattice; the fields switch on optional edges.
type Lattice struct {
	// UnsignedToSigned adds uN ⊑ i2N (u8 ⊑ i16, u16 ⊑ i32, u32 ⊑ i64).
	UnsignedToSigned bool

	// LossyIntToFloat adds i64 ⊑ f64 and u64 ⊑ f64.
	LossyIntToFloat bool
}

// Join returns the least upper bound of a and b, or false if they have no
// common supertype other than the dynamic fallback.
//
// Dynamic absorbs everything: once a class has fallen back it stays there
// without producing further conflicts.
func (l Lattice) Join(a, b Concrete) (Concrete, bool) {
	if a.Equal(b) {
		return a, true
	}
	if IsDynamic(a) || IsDynamic(b) {
		return Dynamic, true
	}

	pa, aPrim := a.(Prim)
	pb, bPrim := b.(Prim)
	if aPrim && bPrim {
		return l.joinPrim(pa, pb)
	}

	// option<T> absorbs unit and T, covariantly in T.
	oa, aOpt := a.(TOption)
	ob, bOpt := b.(TOption)
	switch {
	case aOpt && bOpt:
		elem, ok := l.Join(oa.Elem, ob.Elem)
		if !ok {
			return nil, false
		}
		return TOption{Elem: elem}, true
	case aOpt:
		return l.joinOption(oa, b)
	case bOpt:
		return l.joinOption(ob, a)
	}
	if aPrim && pa == Unit {
		return TOption{Elem: b}, true
	}
	if bPrim && pb == Unit {
		return TOption{Elem: a}, true
	}

	// Sequences, maps and functions are invariant.
	return nil, false
}

func (l Lattice) joinOption(o TOption, other Concrete) (Concrete, bool) {
	if p, ok := other.(Prim); ok && p == Unit {
		return o, true
	}
	elem, ok := l.Join(o.Elem, other)
	if !ok {
		return nil, false
	}
	return TOption{Elem: elem}, true
}

func (l Lattice) joinPrim(a, b Prim) (Concrete, bool) {
	switch {
	case a.IsString() && b.IsString():
		// Borrowed widens to owned; the reverse is never automatic.
		return String, true
	case a == Unit:
		return TOption{Elem: b}, true
	case b == Unit:
		return TOption{Elem: a}, true
	case a.IsNumeric() && b.IsNumeric():
		return l.joinNumeric(a, b)
	}
	return nil, false
}

func (l Lattice) joinNumeric(a, b Prim) (Concrete, bool) {
	switch {
	case a.IsFloat() && b.IsFloat(),
		a.IsSigned() && b.IsSigned(),
		a.IsUnsigned() && b.IsUnsigned():
		if a.Bits() >= b.Bits() {
			return a, true
		}
		return b, true
	case a.IsFloat() || b.IsFloat():
		f, i := a, b
		if b.IsFloat() {
			f, i = b, a
		}
		need := l.floatBitsFor(i)
		if need == 0 {
			return nil, false
		}
		if f.Bits() >= need {
			return f, true
		}
		return F64, true
	default:
		// Mixed signedness.
		if !l.UnsignedToSigned {
			return nil, false
		}
		u, s := a, b
		if b.IsUnsigned() {
			u, s = b, a
		}
		bits := max(2*u.Bits(), s.Bits())
		if res, ok := signedOfWidth(bits); ok {
			return res, true
		}
		return nil, false
	}
}

// floatBitsFor returns the narrowest float width that holds every value of
// the integer type i, or 0 if none does.
func (l Lattice) floatBitsFor(i Prim) int {
	switch i.Bits() {
	case 8, 16:
		return 32
	case 32:
		return 64
	case 64:
		if l.LossyIntToFloat {
			return 64
		}
	}
	return 0
}

// Leq reports whether a ⊑ b.
func (l Lattice) Leq(a, b Concrete) bool {
	j, ok := l.Join(a, b)
	return ok && j.Equal(b)
}

// Widens reports whether a value of type from can be coerced implicitly to
// the distinct type to.
func (l Lattice) Widens(from, to Concrete) bool {
	return !from.Equal(to) && l.Leq(from, to)
}
