package query

import (
	"math"

	"catchup/pkg/ds"
	"catchup/pkg/graph"
	"catchup/pkg/plf"
)

// PlainTDDijkstra computes the time-dependent shortest travel time from src
// to dst departing at departureMillis by an unrestricted forward Dijkstra
// over the original graph, with no CCH, corridor, or potential involved. Kept
// purely as the correctness oracle query_test.go cross-checks Engine.Distance
// against (spec.md §8's "query agreement" property), not for production use.
func PlainTDDijkstra(g *graph.Graph, cfg plf.Config, src, dst uint32, departureMillis float64) (travelMillis float64, ok bool) {
	if src == dst {
		return 0, true
	}

	arrival := ds.NewTimestampedVector[float64](int(g.NumNodes))
	settled := make([]bool, g.NumNodes)
	heap := ds.NewIndexedMinHeap[struct{}](g.NumNodes)

	arrival.Set(int(src), departureMillis)
	heap.Push(src, departureMillis, struct{}{})

	for heap.Len() > 0 {
		node, prio, _, _ := heap.Pop()
		if settled[node] {
			continue
		}
		settled[node] = true
		if node == dst {
			return prio - departureMillis, true
		}
		t := arrival.Get(int(node))
		start, end := g.EdgesFrom(node)
		for e := start; e < end; e++ {
			m := g.Head[e]
			if settled[m] {
				continue
			}
			na := t + plf.Evaluate(g.EdgePLF(e), t, cfg)
			if arrival.IsSet(int(m)) && arrival.Get(int(m)) <= na+plf.Eps {
				continue
			}
			arrival.Set(int(m), na)
			heap.Push(m, na, struct{}{})
		}
	}
	return math.Inf(1), false
}
