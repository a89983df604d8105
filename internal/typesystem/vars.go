package typesystem

// VarAllocator hands out fresh type variables in increasing order. Allocation
// order is the only source of variable identity, so walking the same program
// the same way always yields the same numbering.
type VarAllocator struct {
	next TypeVar
}

// NewVarAllocator returns an allocator whose first variable is start.
// A start of NoVar is bumped to 1.
func NewVarAllocator(start TypeVar) *VarAllocator {
	if start == NoVar {
		start = 1
	}
	return &VarAllocator{next: start}
}

// Fresh allocates a new type variable.
func (a *VarAllocator) Fresh() TypeVar {
	v := a.next
	a.next++
	return v
}

// Next returns the variable the next call to Fresh will return.
func (a *VarAllocator) Next() TypeVar {
	return a.next
}

// Observe makes sure v is never handed out again.
func (a *VarAllocator) Observe(v TypeVar) {
	if v >= a.next {
		a.next = v + 1
	}
}
