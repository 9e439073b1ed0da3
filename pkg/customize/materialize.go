package customize

import (
	"math"

	"catchup/pkg/plf"
)

// materializeSources renders a shortcut's source list into a single PLF over
// the whole period, by sampling each source's local function at its
// interval's endpoints plus any of its own breakpoints that fall strictly
// inside the interval. Called only at merge time (to feed plf.Merge/Link)
// and at finalize time (to compute scalar bounds) — query-time evaluation
// walks the source list directly via evaluateSources instead, so lazy
// unpacking never pays for a materialization it doesn't need.
func materializeSources(cg *CustomizedGraph, srcs []Source) plf.PLF {
	if len(srcs) == 0 {
		return plf.Constant(0)
	}
	cfg := cg.Cfg
	var pts plf.PLF
	emit := func(p plf.Point) {
		if n := len(pts); n > 0 && p.At <= pts[n-1].At+plf.Eps {
			return
		}
		pts = append(pts, p)
	}
	for _, s := range srcs {
		local := localPLF(cg, s)
		emit(plf.Point{At: s.At, Val: plf.Evaluate(local, s.At, cfg)})
		for _, p := range local {
			if p.At > s.At+plf.Eps && p.At < s.Next-plf.Eps {
				emit(p)
			}
		}
		emit(plf.Point{At: s.Next, Val: plf.Evaluate(local, s.Next, cfg)})
	}
	if len(pts) == 0 {
		return plf.Constant(0)
	}
	if pts[0].At > plf.Eps {
		pts = append(plf.PLF{{At: 0, Val: pts[0].Val}}, pts...)
	}
	if cfg.PeriodMillis-pts[len(pts)-1].At > plf.Eps {
		pts = append(pts, plf.Point{At: cfg.PeriodMillis, Val: pts[0].Val})
	}
	return plf.Normalize(pts)
}

// localPLF returns the full-period function a single source value denotes,
// recursively descending through triangle sources.
func localPLF(cg *CustomizedGraph, s Source) plf.PLF {
	switch s.Kind {
	case SourceOriginal:
		return cg.origPLF(s.OrigArc)
	case SourceTriangle:
		down := &cg.Incoming[s.Down]
		up := &cg.Outgoing[s.Up]
		return linkShortcuts(cg, down, up)
	default:
		return plf.Constant(0)
	}
}

// clipSources returns the subset of existing covering [at, next), each entry
// clipped to the overlap.
func clipSources(existing []Source, at, next float64) []Source {
	var out []Source
	for _, s := range existing {
		lo := math.Max(s.At, at)
		hi := math.Min(s.Next, next)
		if hi-lo > plf.Eps {
			c := s
			c.At, c.Next = lo, hi
			out = append(out, c)
		}
	}
	return out
}

// coalesceSources merges adjacent entries with identical payload, keeping a
// shortcut's source list minimal.
func coalesceSources(srcs []Source) []Source {
	if len(srcs) == 0 {
		return srcs
	}
	out := make([]Source, 0, len(srcs))
	cur := srcs[0]
	for _, s := range srcs[1:] {
		if sameSourcePayload(cur, s) && s.At <= cur.Next+plf.Eps {
			cur.Next = s.Next
			continue
		}
		out = append(out, cur)
		cur = s
	}
	out = append(out, cur)
	return out
}

func sameSourcePayload(a, b Source) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case SourceOriginal:
		return a.OrigArc == b.OrigArc
	case SourceTriangle:
		return a.Down == b.Down && a.Up == b.Up
	default:
		return true
	}
}
