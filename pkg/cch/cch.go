// Package cch builds the Customizable Contraction Hierarchy skeleton: a
// purely topological overlay produced from the original graph and a given
// node order. Unlike classical Contraction Hierarchies, the order is
// accepted as input rather than chosen by a priority-queue witness search —
// contraction here is combinatorial fill-in, not shortest-path search.
package cch

import (
	"fmt"
	"sort"

	"catchup/pkg/graph"
	"catchup/pkg/tderr"
)

const noRank = ^uint32(0)

// CCH is the immutable skeleton: upward (outgoing) and downward (incoming)
// CSR topology over CCH ranks, plus the elimination tree. Every arc has one
// canonical id shared by both CSR orderings, which is also the id
// customize.Shortcut and the query-time unpacker index by.
type CCH struct {
	NumNodes uint32
	NumArcs  uint32

	// Rank[origNodeID] = cch rank. Order[rank] = origNodeID; Order is Rank's
	// inverse, i.e. the contraction order itself (lowest rank contracted
	// first).
	Rank  []uint32
	Order []uint32

	// ArcTail/ArcHead are indexed by canonical arc id: ArcTail[a] < ArcHead[a]
	// always holds (CCH arcs run from lower to higher rank).
	ArcTail []uint32
	ArcHead []uint32

	// OutFirst/OutArc: CSR over tail rank, the "outgoing" topology (upward
	// from tail). OutArc stores arc ids, sorted by tail then head.
	OutFirst []uint32
	OutArc   []uint32

	// InFirst/InArc: CSR over head rank, the "incoming" topology (upward from
	// head, i.e. each arc viewed from its higher endpoint). InArc stores the
	// same arc ids as OutArc, in head order.
	InFirst []uint32
	InArc   []uint32

	// Parent is the elimination tree: Parent[r] is the lowest-ranked arc
	// target among r's upward arcs, i.e. r's parent in the contraction
	// order. Parent[root] == noRank.
	Parent []uint32
}

// NoParent reports whether parent value p (an entry of Parent) marks an
// elimination-tree root.
func NoParent(p uint32) bool { return p == noRank }

// Build contracts g's topology by the given order (order[rank] = original
// node id), producing the CCH skeleton. Contraction is purely topological:
// for every node eliminated in rank order, every pair of its still-live
// (higher-ranked) neighbors gets connected by a fill-in arc if not already
// adjacent, and the eliminated node's arcs to its live neighbors become its
// final CCH arcs.
func Build(g *graph.Graph, order []uint32) (*CCH, error) {
	n := g.NumNodes
	if uint32(len(order)) != n {
		return nil, fmt.Errorf("%w: order length %d != NumNodes %d", tderr.ErrMalformedInput, len(order), n)
	}

	rank := make([]uint32, n)
	seen := make([]bool, n)
	for r, origID := range order {
		if origID >= n {
			return nil, fmt.Errorf("%w: order[%d]=%d out of range", tderr.ErrMalformedInput, r, origID)
		}
		if seen[origID] {
			return nil, fmt.Errorf("%w: order is not a permutation, duplicate node %d", tderr.ErrMalformedInput, origID)
		}
		seen[origID] = true
		rank[origID] = uint32(r)
	}

	// adj[r] is the live neighbor set of the node currently at rank r,
	// keyed by rank. Grows via fill-in as lower ranks are eliminated.
	adj := make([]map[uint32]struct{}, n)
	for r := range adj {
		adj[r] = make(map[uint32]struct{})
	}
	addEdge := func(a, b uint32) {
		if a == b {
			return
		}
		adj[a][b] = struct{}{}
		adj[b][a] = struct{}{}
	}
	for u := uint32(0); u < n; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			addEdge(rank[u], rank[g.Head[e]])
		}
	}

	parent := make([]uint32, n)
	var arcTail, arcHead []uint32

	for r := uint32(0); r < n; r++ {
		var live []uint32
		for a := range adj[r] {
			if a > r {
				live = append(live, a)
			}
		}
		sort.Slice(live, func(i, j int) bool { return live[i] < live[j] })

		if len(live) == 0 {
			parent[r] = noRank
		} else {
			parent[r] = live[0]
		}

		for _, a := range live {
			arcTail = append(arcTail, r)
			arcHead = append(arcHead, a)
		}
		for i := 0; i < len(live); i++ {
			for j := i + 1; j < len(live); j++ {
				addEdge(live[i], live[j])
			}
		}
		adj[r] = nil // no longer needed; allow GC
	}

	numArcs := uint32(len(arcTail))

	outFirst, outArc := buildCSRByTail(n, arcTail)
	inFirst, inArc := buildCSRByHead(n, arcHead)

	return &CCH{
		NumNodes: n,
		NumArcs:  numArcs,
		Rank:     rank,
		Order:    append([]uint32(nil), order...),
		ArcTail:  arcTail,
		ArcHead:  arcHead,
		OutFirst: outFirst,
		OutArc:   outArc,
		InFirst:  inFirst,
		InArc:    inArc,
		Parent:   parent,
	}, nil
}

func buildCSRByTail(n uint32, arcTail []uint32) (first, arcIDs []uint32) {
	first = make([]uint32, n+1)
	for _, t := range arcTail {
		first[t+1]++
	}
	for i := uint32(1); i <= n; i++ {
		first[i] += first[i-1]
	}
	arcIDs = make([]uint32, len(arcTail))
	pos := append([]uint32(nil), first[:n]...)
	for id, t := range arcTail {
		arcIDs[pos[t]] = uint32(id)
		pos[t]++
	}
	return first, arcIDs
}

func buildCSRByHead(n uint32, arcHead []uint32) (first, arcIDs []uint32) {
	first = make([]uint32, n+1)
	for _, h := range arcHead {
		first[h+1]++
	}
	for i := uint32(1); i <= n; i++ {
		first[i] += first[i-1]
	}
	arcIDs = make([]uint32, len(arcHead))
	pos := append([]uint32(nil), first[:n]...)
	for id, h := range arcHead {
		arcIDs[pos[h]] = uint32(id)
		pos[h]++
	}
	return first, arcIDs
}

// FindArc returns the canonical arc id for (tailRank, headRank) via binary
// search over the outgoing CSR, or ok=false if no such arc exists.
func (c *CCH) FindArc(tailRank, headRank uint32) (arcID uint32, ok bool) {
	lo, hi := c.OutFirst[tailRank], c.OutFirst[tailRank+1]
	for lo < hi {
		mid := (lo + hi) / 2
		a := c.OutArc[mid]
		switch {
		case c.ArcHead[a] < headRank:
			lo = mid + 1
		case c.ArcHead[a] > headRank:
			hi = mid
		default:
			return a, true
		}
	}
	return 0, false
}
