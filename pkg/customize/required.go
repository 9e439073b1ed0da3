package customize

// seedAndPropagateRequired marks every outgoing arc at the rank-0 node as
// required (the base case: a rank-0 arc can never itself be a triangle
// merge target, since that requires some still-lower rank to route
// through, so nothing would ever mark it required otherwise), then, for
// every finalized arc's triangle sources that won the minimum on a
// non-empty interval, marks that source's Down/Up arcs required — this
// runs unconditionally per arc, not gated on the arc itself being
// required, matching the literal "when arc (u,v) is finalized... mark
// down and up as required" rule rather than a required-only downward
// closure.
func seedAndPropagateRequired(cg *CustomizedGraph) {
	c := cg.CCH
	if c.NumNodes == 0 {
		return
	}
	for _, a := range c.OutArc[c.OutFirst[0]:c.OutFirst[1]] {
		cg.Outgoing[a].Required = true
	}

	for a := uint32(0); a < c.NumArcs; a++ {
		propagateSources(cg, cg.Outgoing[a].Sources)
		propagateSources(cg, cg.Incoming[a].Sources)
	}
}

func propagateSources(cg *CustomizedGraph, srcs []Source) {
	for _, s := range srcs {
		if s.Kind != SourceTriangle {
			continue
		}
		cg.Incoming[s.Down].Required = true
		cg.Outgoing[s.Up].Required = true
	}
}
