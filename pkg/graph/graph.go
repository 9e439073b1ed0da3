// Package graph holds the original (pre-contraction) road network: a CSR
// adjacency structure whose edge weights are periodic piecewise-linear
// travel-time functions rather than scalars.
package graph

import (
	"errors"
	"fmt"

	"catchup/pkg/plf"
	"catchup/pkg/tderr"
)

// Graph is a directed graph in CSR (Compressed Sparse Row) format. Edge
// weights are not stored directly; each edge indexes a half-open range of
// the shared interpolation-point pool, generalizing the CSR-into-pool
// pattern used for edge geometry to travel-time functions.
type Graph struct {
	NumNodes uint32
	NumArcs  uint32

	FirstOut []uint32 // len NumNodes+1; arcs from node u are [FirstOut[u], FirstOut[u+1])
	Head     []uint32 // len NumArcs; target node per arc

	// FirstIPP delimits each arc's interpolation points within IPP: arc e's
	// points are IPP[FirstIPP[e]:FirstIPP[e+1]]. A single-point range is a
	// constant PLF.
	FirstIPP []uint32
	IPP      []plf.Point

	NodeLat []float64
	NodeLon []float64
}

// EdgesFrom returns the range of arc indices for arcs originating at node u.
func (g *Graph) EdgesFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// EdgePLF returns the travel-time function of arc e as a view into the
// shared interpolation-point pool. Callers must not mutate the result.
func (g *Graph) EdgePLF(e uint32) plf.PLF {
	return plf.PLF(g.IPP[g.FirstIPP[e]:g.FirstIPP[e+1]])
}

// Sanitize validates every edge's PLF against the data-model invariants
// (leading zero, periodic closure, FIFO, positivity) and the CSR structure
// itself. Called once at load time; queries assume a sanitized graph.
func (g *Graph) Sanitize(cfg plf.Config) error {
	if uint32(len(g.FirstOut)) != g.NumNodes+1 {
		return fmt.Errorf("%w: FirstOut length %d != NumNodes+1 %d", tderr.ErrMalformedInput, len(g.FirstOut), g.NumNodes+1)
	}
	if g.FirstOut[g.NumNodes] != g.NumArcs {
		return fmt.Errorf("%w: FirstOut[NumNodes]=%d != NumArcs=%d", tderr.ErrMalformedInput, g.FirstOut[g.NumNodes], g.NumArcs)
	}
	if uint32(len(g.Head)) != g.NumArcs || uint32(len(g.FirstIPP)) != g.NumArcs+1 {
		return fmt.Errorf("%w: Head/FirstIPP length mismatch with NumArcs=%d", tderr.ErrMalformedInput, g.NumArcs)
	}
	for i := uint32(1); i <= g.NumNodes; i++ {
		if g.FirstOut[i] < g.FirstOut[i-1] {
			return fmt.Errorf("%w: FirstOut not monotonic at %d", tderr.ErrMalformedInput, i)
		}
	}
	for e, h := range g.Head {
		if h >= g.NumNodes {
			return fmt.Errorf("%w: Head[%d]=%d >= NumNodes=%d", tderr.ErrMalformedInput, e, h, g.NumNodes)
		}
	}
	for e := uint32(0); e < g.NumArcs; e++ {
		if err := plf.Validate(g.EdgePLF(e), cfg); err != nil {
			return tderr.Wrap(rootCause(err), fmt.Sprintf("graph.Sanitize: arc %d", e), err)
		}
	}
	return nil
}

func rootCause(err error) error {
	switch {
	case errors.Is(err, tderr.ErrNonFIFOWeight):
		return tderr.ErrNonFIFOWeight
	case errors.Is(err, tderr.ErrNonFiniteArithmetic):
		return tderr.ErrNonFiniteArithmetic
	default:
		return tderr.ErrMalformedInput
	}
}
