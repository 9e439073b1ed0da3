package graph

import "catchup/pkg/plf"

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte // byte is sufficient — max rank ~30 for realistic graphs
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}

	// Union by rank.
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// LargestComponent returns the node indices belonging to the largest
// weakly connected component (treating the directed graph as undirected).
// A node order fed to cch.Build must cover every node CCH's skeleton
// construction visits; running this first and feeding FilterToComponent's
// output onward keeps the ordering/customization pipeline from ever having
// to reason about unreachable nodes.
func LargestComponent(g *Graph) []uint32 {
	if g.NumNodes == 0 {
		return nil
	}

	uf := NewUnionFind(g.NumNodes)

	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			uf.Union(u, g.Head[e])
		}
	}

	bestRoot := uint32(0)
	bestSize := uint32(0)
	for i := uint32(0); i < g.NumNodes; i++ {
		root := uf.Find(i)
		if uf.size[root] > bestSize {
			bestRoot = root
			bestSize = uf.size[root]
		}
	}

	nodes := make([]uint32, 0, bestSize)
	for i := uint32(0); i < g.NumNodes; i++ {
		if uf.Find(i) == bestRoot {
			nodes = append(nodes, i)
		}
	}

	return nodes
}

// FilterToComponent creates a new graph containing only the given nodes and
// the arcs between them, renumbering nodes to a dense [0, len(nodes)) range
// and carrying each surviving arc's full IPP slice along (not just a scalar
// weight), since an arc's travel-time function is the thing callers actually
// need preserved.
func FilterToComponent(g *Graph, nodes []uint32) *Graph {
	if len(nodes) == 0 {
		return &Graph{}
	}

	oldToNew := make(map[uint32]uint32, len(nodes))
	for newIdx, oldIdx := range nodes {
		oldToNew[oldIdx] = uint32(newIdx)
	}

	numNodes := uint32(len(nodes))

	type survivingArc struct {
		from, to uint32
		ipp      []plf.Point
	}
	var arcs []survivingArc

	for _, oldU := range nodes {
		start, end := g.EdgesFrom(oldU)
		for e := start; e < end; e++ {
			oldV := g.Head[e]
			newV, ok := oldToNew[oldV]
			if !ok {
				continue
			}
			ippStart, ippEnd := g.FirstIPP[e], g.FirstIPP[e+1]
			ipp := append([]plf.Point(nil), g.IPP[ippStart:ippEnd]...)
			arcs = append(arcs, survivingArc{from: oldToNew[oldU], to: newV, ipp: ipp})
		}
	}

	numArcs := uint32(len(arcs))

	firstOut := make([]uint32, numNodes+1)
	for _, a := range arcs {
		firstOut[a.from+1]++
	}
	for i := uint32(1); i <= numNodes; i++ {
		firstOut[i] += firstOut[i-1]
	}

	head := make([]uint32, numArcs)
	firstIPP := make([]uint32, numArcs+1)
	var ipp []plf.Point

	pos := make([]uint32, numNodes)
	copy(pos, firstOut[:numNodes])
	for _, a := range arcs {
		idx := pos[a.from]
		head[idx] = a.to
		firstIPP[idx] = uint32(len(ipp))
		ipp = append(ipp, a.ipp...)
		pos[a.from]++
	}
	firstIPP[numArcs] = uint32(len(ipp))

	nodeLat := make([]float64, numNodes)
	nodeLon := make([]float64, numNodes)
	for newIdx, oldIdx := range nodes {
		nodeLat[newIdx] = g.NodeLat[oldIdx]
		nodeLon[newIdx] = g.NodeLon[oldIdx]
	}

	return &Graph{
		NumNodes: numNodes,
		NumArcs:  numArcs,
		FirstOut: firstOut,
		Head:     head,
		FirstIPP: firstIPP,
		IPP:      ipp,
		NodeLat:  nodeLat,
		NodeLon:  nodeLon,
	}
}
