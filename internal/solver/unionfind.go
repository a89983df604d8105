package solver

import "github.com/funvibe/tyunify/internal/typesystem"

// unionFind is a disjoint-set forest over type variables with path
// compression and union by rank. Variables are dense small integers, so the
// forest is a pair of slices grown on demand.
type unionFind struct {
	parent []typesystem.TypeVar
	rank   []uint8
}

func newUnionFind(size int) *unionFind {
	uf := &unionFind{}
	uf.grow(typesystem.TypeVar(size))
	return uf
}

func (uf *unionFind) grow(v typesystem.TypeVar) {
	for typesystem.TypeVar(len(uf.parent)) <= v {
		uf.parent = append(uf.parent, typesystem.TypeVar(len(uf.parent)))
		uf.rank = append(uf.rank, 0)
	}
}

func (uf *unionFind) find(v typesystem.TypeVar) typesystem.TypeVar {
	uf.grow(v)
	root := v
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for uf.parent[v] != root {
		next := uf.parent[v]
		uf.parent[v] = root
		v = next
	}
	return root
}

// union merges the classes of a and b and returns the new root. On equal
// rank the root of a wins, so the outcome depends only on argument order.
func (uf *unionFind) union(a, b typesystem.TypeVar) typesystem.TypeVar {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return ra
	}
	switch {
	case uf.rank[ra] < uf.rank[rb]:
		uf.parent[ra] = rb
		return rb
	case uf.rank[ra] > uf.rank[rb]:
		uf.parent[rb] = ra
		return ra
	default:
		uf.parent[rb] = ra
		uf.rank[ra]++
		return ra
	}
}
