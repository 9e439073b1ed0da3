package customize

import (
	"fmt"

	"catchup/pkg/cch"
	"catchup/pkg/graph"
	"catchup/pkg/plf"
	"catchup/pkg/tderr"
)

// seedOriginalEdges initializes every arc's Outgoing/Incoming shortcut to
// infeasible, then seeds the direction matching each original directed edge
// with a single SourceOriginal spanning the whole period. A CCH arc (lo, hi)
// with lo < hi carries the original edge lo->hi as Outgoing and hi->lo as
// Incoming, since those are the two directions of travel the arc's two
// endpoints can actually take.
func seedOriginalEdges(cg *CustomizedGraph, c *cch.CCH, g *graph.Graph) error {
	for i := range cg.Outgoing {
		cg.Outgoing[i] = newInfeasibleShortcut()
	}
	for i := range cg.Incoming {
		cg.Incoming[i] = newInfeasibleShortcut()
	}

	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Head[e]
			if u == v {
				continue // self-loops carry no shortest-path meaning
			}
			ru, rv := c.Rank[u], c.Rank[v]
			if ru == rv {
				continue
			}
			lo, hi, outgoingDir := ru, rv, true
			if ru > rv {
				lo, hi, outgoingDir = rv, ru, false
			}
			arc, ok := c.FindArc(lo, hi)
			if !ok {
				return tderr.Wrap(tderr.ErrAlgorithmInvariantViolation,
					fmt.Sprintf("customize: original edge %d->%d has no CCH arc", u, v), nil)
			}
			dst := cg.shortcut(arc, outgoingDir)
			if !dst.infeasible {
				continue // parallel edge between the same pair; first one wins
			}
			dst.Sources = []Source{{At: 0, Next: cg.Cfg.PeriodMillis, Kind: SourceOriginal, OrigArc: e}}
			dst.infeasible = false
		}
	}
	return nil
}

// finalizeBounds materializes every feasible shortcut once, after
// customization completes, to cache its scalar (Lower, Upper) bounds and the
// Constant fast-path bit.
func finalizeBounds(cg *CustomizedGraph) {
	for i := range cg.Outgoing {
		finalizeOne(cg, &cg.Outgoing[i])
	}
	for i := range cg.Incoming {
		finalizeOne(cg, &cg.Incoming[i])
	}
}

func finalizeOne(cg *CustomizedGraph, s *Shortcut) {
	if s.infeasible {
		return
	}
	full := materializeSources(cg, s.Sources)
	lower, upper := plf.Bounds(full)
	s.Lower, s.Upper = lower, upper
	s.Constant = upper-lower <= plf.Eps
}
