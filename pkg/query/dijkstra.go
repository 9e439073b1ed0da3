package query

import (
	"context"
	"math"

	"catchup/pkg/graph"
	"catchup/pkg/plf"
)

// refinementResult is the outcome of the goal-directed forward Dijkstra: the
// best arrival time at the target, or +Inf if unreachable.
type refinementResult struct {
	arrival float64
	ok      bool
}

// refine runs a time-dependent forward Dijkstra on the original graph g,
// from srcOrig at departureMillis to dstOrig. The priority key is tentative
// arrival plus an admissible potential: the backward elimination-tree lower
// bound for a node's CCH rank where the corridor search touched it, 0
// otherwise (travel times are non-negative, so 0 is always a safe, if
// slack, underestimate).
//
// The corridor is not used as a hard edge filter here. Because every CCH arc
// strictly increases in rank, the backward elimination-tree walk can only
// ever touch ranks at or above the target's own rank — a target ranked
// close to its component's elimination-tree root yields an extremely narrow
// corridor (see corridorSearch's doc comment), and restricting refinement's
// edge traversal to that corridor can exclude nodes the true optimal path
// passes through. Guiding the search with the (possibly 0) potential keeps
// the result goal-directed without risking an incorrect answer; see
// DESIGN.md for the full tradeoff.
func refine(ctx context.Context, s *State, g *graph.Graph, cfg plf.Config, srcOrig, dstOrig uint32, departureMillis float64, chainDegree3 bool) (refinementResult, error) {
	potential := func(orig uint32) float64 {
		r := s.c.Rank[orig]
		if !s.corridor[r] {
			return 0
		}
		return s.bwd[r].Lower
	}

	if srcOrig == dstOrig {
		return refinementResult{arrival: departureMillis, ok: true}, nil
	}

	s.arrival.Set(int(srcOrig), departureMillis)
	s.heap.Push(srcOrig, departureMillis+potential(srcOrig), heapPayload{predNode: noNode, predEdge: noArc})

	for s.heap.Len() > 0 {
		select {
		case <-ctx.Done():
			return refinementResult{}, ctx.Err()
		default:
		}

		node, _, payload, _ := s.heap.Pop()
		if s.settled[node] {
			continue
		}
		s.settled[node] = true
		s.settledAt = append(s.settledAt, node)
		s.predNode[node] = payload.predNode
		s.predEdge[node] = payload.predEdge

		if node == dstOrig {
			return refinementResult{arrival: s.arrival.Get(int(node)), ok: true}, nil
		}

		relaxFrom(s, g, cfg, node, s.arrival.Get(int(node)), potential, dstOrig, chainDegree3, 0)
	}

	return refinementResult{arrival: math.Inf(1), ok: false}, nil
}

// relaxFrom relaxes every outgoing edge of node at tentative arrival t.
// Neighbors whose out-degree is at most 2 (or 3, once, with chainDegree3)
// are walked inline instead of going through the heap, unless the neighbor
// is the query's own target (which must always surface through the heap so
// the main loop's termination check observes it).
func relaxFrom(s *State, g *graph.Graph, cfg plf.Config, node uint32, t float64, potential func(uint32) float64, dst uint32, chainDegree3 bool, depth int) {
	start, end := g.EdgesFrom(node)
	for e := start; e < end; e++ {
		m := g.Head[e]
		newArrival := t + plf.Evaluate(g.EdgePLF(e), t, cfg)
		if s.settled[m] {
			continue
		}
		if s.arrival.IsSet(int(m)) && s.arrival.Get(int(m)) <= newArrival+plf.Eps {
			continue
		}

		if m != dst && depth < maxChainDepth && !s.heap.Contains(m) {
			if _, ok := soleSuccessor(s, g, m, dst, chainDegree3); ok {
				s.arrival.Set(int(m), newArrival)
				// Chain-walked nodes are never popped off the heap, so this is
				// the only place their predecessor is ever recorded — without
				// it Path() reads a stale/zero-value predNode for every
				// interior node of a degree-<=2 chain.
				s.predNode[m] = node
				s.predEdge[m] = e
				// A degree-3 node spends the walk's single degree-3 allowance.
				mStart, mEnd := g.EdgesFrom(m)
				relaxFrom(s, g, cfg, m, newArrival, potential, dst, chainDegree3 && mEnd-mStart < 3, depth+1)
				continue
			}
		}

		s.arrival.Set(int(m), newArrival)
		s.heap.Push(m, newArrival+potential(m), heapPayload{predNode: node, predEdge: e})
	}
}

// maxChainDepth bounds the inline chain walk's recursion so a pathological
// all-degree-2 graph cannot blow the Go call stack; a chain longer than this
// simply falls back to heap insertion at the bound.
const maxChainDepth = 4096

// soleSuccessor reports whether m has exactly one live outgoing edge
// (degree<=2 with at most one unsettled successor), or, with chainDegree3
// enabled, exactly one among up to three outgoing edges — the "walk without
// heap operations" case. ok is false at any branch point genuinely requiring
// the heap.
func soleSuccessor(s *State, g *graph.Graph, m uint32, dst uint32, chainDegree3 bool) (uint32, bool) {
	start, end := g.EdgesFrom(m)
	limit := uint32(2)
	if chainDegree3 {
		limit = 3
	}
	if end-start == 0 || end-start > limit {
		return 0, false
	}
	var sole uint32 = noNode
	count := 0
	for e := start; e < end; e++ {
		h := g.Head[e]
		if s.settled[h] {
			continue
		}
		count++
		sole = h
	}
	if count != 1 || sole == dst {
		return 0, false
	}
	return sole, true
}
