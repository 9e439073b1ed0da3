package graph

import (
	"testing"

	"catchup/pkg/plf"
)

func constArc(cfg plf.Config, millis float64) []plf.Point {
	return []plf.Point{{At: 0, Val: millis}, {At: cfg.PeriodMillis, Val: millis}}
}

// buildCSR assembles a Graph from a flat arc list, filling FirstIPP/IPP with
// a constant travel time per arc; used only by this file's tests.
func buildCSR(cfg plf.Config, numNodes uint32, arcs [][3]uint32, lat, lon []float64) *Graph {
	firstOut := make([]uint32, numNodes+1)
	for _, a := range arcs {
		firstOut[a[0]+1]++
	}
	for i := uint32(1); i <= numNodes; i++ {
		firstOut[i] += firstOut[i-1]
	}

	numArcs := uint32(len(arcs))
	head := make([]uint32, numArcs)
	firstIPP := make([]uint32, numArcs+1)
	var ipp []plf.Point

	pos := append([]uint32(nil), firstOut[:numNodes]...)
	for _, a := range arcs {
		idx := pos[a[0]]
		head[idx] = a[1]
		firstIPP[idx] = uint32(len(ipp))
		ipp = append(ipp, constArc(cfg, float64(a[2]))...)
		pos[a[0]]++
	}
	firstIPP[numArcs] = uint32(len(ipp))

	return &Graph{
		NumNodes: numNodes,
		NumArcs:  numArcs,
		FirstOut: firstOut,
		Head:     head,
		FirstIPP: firstIPP,
		IPP:      ipp,
		NodeLat:  lat,
		NodeLon:  lon,
	}
}

func TestUnionFind(t *testing.T) {
	uf := NewUnionFind(5)

	for i := range uint32(5) {
		if uf.Find(i) != i {
			t.Errorf("Find(%d) = %d, want %d", i, uf.Find(i), i)
		}
	}

	uf.Union(0, 1)
	if uf.Find(0) != uf.Find(1) {
		t.Error("0 and 1 should be in same set")
	}

	uf.Union(2, 3)
	if uf.Find(2) != uf.Find(3) {
		t.Error("2 and 3 should be in same set")
	}

	if uf.Find(0) == uf.Find(2) {
		t.Error("0 and 2 should be in different sets")
	}

	uf.Union(1, 3)
	if uf.Find(0) != uf.Find(3) {
		t.Error("0 and 3 should now be in same set")
	}
}

func TestLargestComponent(t *testing.T) {
	cfg := plf.DefaultConfig()
	// Component 1: 0 <-> 1 <-> 2 (3 nodes); component 2: 3 <-> 4 (2 nodes).
	g := buildCSR(cfg, 5, [][3]uint32{
		{0, 1, 100}, {1, 0, 100},
		{1, 2, 200}, {2, 1, 200},
		{3, 4, 300}, {4, 3, 300},
	}, []float64{1.0, 1.1, 1.2, 2.0, 2.1}, []float64{103.0, 103.1, 103.2, 104.0, 104.1})

	nodes := LargestComponent(g)
	if len(nodes) != 3 {
		t.Fatalf("LargestComponent has %d nodes, want 3", len(nodes))
	}
}

func TestFilterToComponent(t *testing.T) {
	cfg := plf.DefaultConfig()
	// Component 1: triangle 0->1->2->0; component 2: isolated pair 3->4.
	g := buildCSR(cfg, 5, [][3]uint32{
		{0, 1, 100},
		{1, 2, 200},
		{2, 0, 300},
		{3, 4, 400},
	}, []float64{1.0, 1.1, 1.2, 2.0, 2.1}, []float64{103.0, 103.1, 103.2, 104.0, 104.1})

	nodes := LargestComponent(g)
	filtered := FilterToComponent(g, nodes)

	if filtered.NumNodes != 3 {
		t.Fatalf("filtered NumNodes = %d, want 3", filtered.NumNodes)
	}
	if filtered.NumArcs != 3 {
		t.Fatalf("filtered NumArcs = %d, want 3", filtered.NumArcs)
	}

	for i := uint32(1); i <= filtered.NumNodes; i++ {
		if filtered.FirstOut[i] < filtered.FirstOut[i-1] {
			t.Errorf("FirstOut not monotonic at %d", i)
		}
	}
	if filtered.FirstOut[filtered.NumNodes] != filtered.NumArcs {
		t.Error("FirstOut[NumNodes] != NumArcs")
	}
	for i, h := range filtered.Head {
		if h >= filtered.NumNodes {
			t.Errorf("Head[%d] = %d >= NumNodes %d", i, h, filtered.NumNodes)
		}
	}

	if err := filtered.Sanitize(cfg); err != nil {
		t.Errorf("filtered graph failed Sanitize: %v", err)
	}

	// Every surviving arc's travel time should be one of the triangle's.
	var total float64
	for e := uint32(0); e < filtered.NumArcs; e++ {
		total += plf.Evaluate(filtered.EdgePLF(e), 0, cfg)
	}
	if total != 600 {
		t.Errorf("total travel time across arcs = %v, want 600", total)
	}
}

func TestFilterToComponentEmptyGraph(t *testing.T) {
	g := &Graph{}
	nodes := LargestComponent(g)
	if nodes != nil {
		t.Errorf("expected nil for empty graph, got %v", nodes)
	}

	filtered := FilterToComponent(g, nil)
	if filtered.NumNodes != 0 || filtered.NumArcs != 0 {
		t.Errorf("expected empty graph, got %d nodes, %d arcs", filtered.NumNodes, filtered.NumArcs)
	}
}
