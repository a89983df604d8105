package callgraph

import "sort"

type tarjanFrame struct {
	v    NodeID
	next int // index into succ[v] of the next edge to explore
}

// computeSCCs runs Tarjan's algorithm with an explicit stack so deep call
// chains cannot overflow the goroutine stack. Tarjan completes a component
// only after every component reachable from it, which is exactly the
// callees-first order the solver schedules by.
func (g *Graph) computeSCCs() {
	n := len(g.Nodes)
	index := make([]int, n) // 0 means unvisited
	low := make([]int, n)
	onStack := make([]bool, n)
	var stack []NodeID
	counter := 1

	g.sccs = nil
	g.selfLoop = nil
	g.sccOf = make([]int, n)

	visit := func(v NodeID) {
		index[v], low[v] = counter, counter
		counter++
		stack = append(stack, v)
		onStack[v] = true
	}

	for root := NodeID(0); int(root) < n; root++ {
		if index[root] != 0 {
			continue
		}
		visit(root)
		frames := []tarjanFrame{{v: root}}

		for len(frames) > 0 {
			top := &frames[len(frames)-1]
			v := top.v

			if top.next < len(g.succ[v]) {
				w := g.succ[v][top.next]
				top.next++
				switch {
				case index[w] == 0:
					visit(w)
					frames = append(frames, tarjanFrame{v: w})
				case onStack[w] && index[w] < low[v]:
					low[v] = index[w]
				}
				continue
			}

			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := frames[len(frames)-1].v
				if low[v] < low[parent] {
					low[parent] = low[v]
				}
			}
			if low[v] != index[v] {
				continue
			}

			var comp []NodeID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			g.addSCC(comp)
		}
	}
}

func (g *Graph) addSCC(comp []NodeID) {
	sort.Slice(comp, func(i, j int) bool { return comp[i] < comp[j] })
	id := len(g.sccs)
	self := false
	for _, v := range comp {
		g.sccOf[v] = id
		for _, w := range g.succ[v] {
			if w == v {
				self = true
			}
		}
	}
	g.sccs = append(g.sccs, comp)
	g.selfLoop = append(g.selfLoop, self)
}
