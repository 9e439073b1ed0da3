package cch_test

import (
	"testing"

	"catchup/pkg/cch"
	"catchup/pkg/graph"
	"catchup/pkg/plf"
)

// triangleGraph builds a 3-node cycle A(0)-B(1)-C(2) with constant-PLF edges
// in both directions, so contraction always has somewhere to go.
func triangleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	edges := [][2]uint32{{0, 1}, {1, 0}, {1, 2}, {2, 1}, {0, 2}, {2, 0}}
	g := &graph.Graph{NumNodes: 3, NumArcs: uint32(len(edges))}
	g.FirstOut = make([]uint32, 4)
	g.Head = make([]uint32, len(edges))
	g.FirstIPP = make([]uint32, len(edges)+1)
	for _, e := range edges {
		g.FirstOut[e[0]+1]++
	}
	for i := 1; i <= 3; i++ {
		g.FirstOut[i] += g.FirstOut[i-1]
	}
	pos := append([]uint32(nil), g.FirstOut[:3]...)
	for _, e := range edges {
		g.Head[pos[e[0]]] = e[1]
		pos[e[0]]++
	}
	for i := range g.FirstIPP {
		g.FirstIPP[i] = uint32(i)
	}
	g.IPP = make([]plf.Point, len(edges))
	for i := range g.IPP {
		g.IPP[i] = plf.Point{At: 0, Val: 100}
	}
	g.NodeLat = []float64{0, 0, 0}
	g.NodeLon = []float64{0, 0, 0}
	return g
}

func TestBuildEveryArcLowToHigh(t *testing.T) {
	g := triangleGraph(t)
	c, err := cch.Build(g, []uint32{0, 1, 2})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for a := uint32(0); a < c.NumArcs; a++ {
		if c.ArcTail[a] >= c.ArcHead[a] {
			t.Errorf("arc %d: tail=%d >= head=%d", a, c.ArcTail[a], c.ArcHead[a])
		}
	}
}

func TestBuildOriginalEdgesBecomeArcs(t *testing.T) {
	g := triangleGraph(t)
	c, err := cch.Build(g, []uint32{0, 1, 2})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Every original undirected pair must map to a CCH arc in rank order.
	pairs := [][2]uint32{{0, 1}, {1, 2}, {0, 2}}
	for _, p := range pairs {
		lo, hi := p[0], p[1]
		if lo > hi {
			lo, hi = hi, lo
		}
		if _, ok := c.FindArc(lo, hi); !ok {
			t.Errorf("FindArc(%d,%d) not found", lo, hi)
		}
	}
}

func TestBuildRejectsNonPermutation(t *testing.T) {
	g := triangleGraph(t)
	if _, err := cch.Build(g, []uint32{0, 0, 2}); err == nil {
		t.Error("Build with duplicate order entry should fail")
	}
}

func TestBuildRejectsWrongLength(t *testing.T) {
	g := triangleGraph(t)
	if _, err := cch.Build(g, []uint32{0, 1}); err == nil {
		t.Error("Build with short order should fail")
	}
}

func TestEliminationTreeRootHasNoParent(t *testing.T) {
	g := triangleGraph(t)
	c, err := cch.Build(g, []uint32{0, 1, 2})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !cch.NoParent(c.Parent[2]) {
		t.Errorf("Parent[2] = %d, want root (noRank)", c.Parent[2])
	}
	for r := uint32(0); r < 2; r++ {
		if cch.NoParent(c.Parent[r]) {
			t.Errorf("Parent[%d] should not be root in a fully connected triangle", r)
		}
		if c.Parent[r] <= r {
			t.Errorf("Parent[%d] = %d, want > %d", r, c.Parent[r], r)
		}
	}
}

func TestSeparatorTreeCoversAllRanks(t *testing.T) {
	st := cch.BuildSeparatorTree(100, 8)
	var covered []uint32
	st.Walk(func(lo, hi uint32) {
		for r := lo; r < hi; r++ {
			covered = append(covered, r)
		}
	})
	if len(covered) != 100 {
		t.Fatalf("covered %d ranks, want 100", len(covered))
	}
	for i, r := range covered {
		if r != uint32(i) {
			t.Fatalf("ranks out of order at %d: got %d", i, r)
		}
	}
}
