package query

import (
	"catchup/pkg/customize"
	"catchup/pkg/graph"
	"catchup/pkg/plf"
)

// maxUnpackDepth bounds the shortcut-source tree walk so a pathological or
// corrupt customization (a cycle in Down/Up sources) cannot grow the explicit
// worklist without bound; a frame past this depth is simply dropped.
const maxUnpackDepth = 100

// UnpackShortcut expands CCH arc a (in the given direction) at departure
// time t into the sequence of original graph arc ids it represents, plus
// the arrival time at the end of the sequence. It descends into the
// shortcut's active source at t mod P exactly as customize's lazy
// evaluation does, walking a triangle source's Down arc first, then its Up
// arc starting from Down's arrival — terminating at SourceOriginal leaves.
// It can materialize a chain of CCH arcs into original edges; nothing in
// Engine.Query calls it, since the refinement search's own path is already
// over original edges.
func UnpackShortcut(cg *customize.CustomizedGraph, g *graph.Graph, cfg plf.Config, a uint32, outgoing bool, t float64) (edges []uint32, arrival float64) {
	return unpackIterative(cg, g, cfg, a, outgoing, t)
}

// unpackFrame is one pending step of the shortcut-source walk. A frame with
// useArrival set takes its start time from the most recently resolved
// arrival instead of a fixed t, so a triangle's Up arc always starts from
// wherever its Down arc actually landed.
type unpackFrame struct {
	arc        uint32
	outgoing   bool
	t          float64
	useArrival bool
	depth      int
}

// unpackIterative walks the shortcut-source tree with an explicit stack
// instead of native recursion, mirroring the teacher's unpackForwardEdge:
// a triangle pushes its Up arc below its Down arc, so the stack (LIFO)
// always resolves Down to an arrival time before Up is ever popped, giving
// the same left-to-right order native recursion would.
func unpackIterative(cg *customize.CustomizedGraph, g *graph.Graph, cfg plf.Config, a uint32, outgoing bool, t float64) ([]uint32, float64) {
	var out []uint32
	arrival := t

	stack := []unpackFrame{{arc: a, outgoing: outgoing, t: t, depth: 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.depth > maxUnpackDepth {
			continue
		}

		cur := f.t
		if f.useArrival {
			cur = arrival
		}
		cur = wrapTimeQuery(cur, cfg.PeriodMillis)

		sc := cg.Shortcut(f.arc, f.outgoing)
		for _, src := range sc.Sources {
			if cur < src.At-plf.Eps || cur >= src.Next+plf.Eps {
				continue
			}
			switch src.Kind {
			case customize.SourceOriginal:
				out = append(out, src.OrigArc)
				arrival = cur + plf.Evaluate(g.EdgePLF(src.OrigArc), cur, cfg)
			case customize.SourceTriangle:
				stack = append(stack, unpackFrame{arc: src.Up, outgoing: true, useArrival: true, depth: f.depth + 1})
				stack = append(stack, unpackFrame{arc: src.Down, outgoing: false, t: cur, depth: f.depth + 1})
			}
			break
		}
	}

	return out, arrival
}

func wrapTimeQuery(t, period float64) float64 {
	for t < 0 {
		t += period
	}
	for t >= period {
		t -= period
	}
	return t
}
