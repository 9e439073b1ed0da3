package customize

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"catchup/pkg/cch"
	"catchup/pkg/graph"
	"catchup/pkg/plf"
	"catchup/pkg/tderr"
)

// CustomizedGraph is the output of Run: one Shortcut per CCH arc id, in each
// direction (Outgoing holds the tail-to-head travel time, Incoming the
// head-to-tail travel time — the two differ whenever the original edges
// between the pair are themselves directional).
type CustomizedGraph struct {
	CCH      *cch.CCH
	Cfg      plf.Config
	Outgoing []Shortcut
	Incoming []Shortcut

	origIndex origPLFIndex
}

// Evaluate returns the travel time of CCH arc id a in the given direction at
// departure time t.
func (cg *CustomizedGraph) Evaluate(a uint32, outgoing bool, t float64) float64 {
	s := cg.shortcut(a, outgoing)
	if s.infeasible {
		return math.Inf(1)
	}
	if s.Constant {
		return s.Lower
	}
	return evaluateSources(s.Sources, t, cg.Cfg, cg)
}

func (cg *CustomizedGraph) shortcut(a uint32, outgoing bool) *Shortcut {
	if outgoing {
		return &cg.Outgoing[a]
	}
	return &cg.Incoming[a]
}

// Shortcut returns the Shortcut for CCH arc a in the given direction.
func (cg *CustomizedGraph) Shortcut(a uint32, outgoing bool) *Shortcut {
	return cg.shortcut(a, outgoing)
}

// evaluateSources walks the source list for the interval containing t and
// evaluates it, descending into triangle sources exactly as lazy unpacking
// will at query time — kept separate from a materialized plf.PLF so a
// shortcut never needs its full Normalize'd curve recomputed at read time.
func evaluateSources(srcs []Source, t float64, cfg plf.Config, cg *CustomizedGraph) float64 {
	t = wrapTime(t, cfg.PeriodMillis)
	for _, s := range srcs {
		if t >= s.At-plf.Eps && t < s.Next+plf.Eps {
			switch s.Kind {
			case SourceOriginal:
				return plf.Evaluate(cg.origPLF(s.OrigArc), t, cfg)
			case SourceTriangle:
				down := cg.Incoming[s.Down]
				downVal := evaluateShortcut(&down, t, cfg, cg)
				up := cg.Outgoing[s.Up]
				upVal := evaluateShortcut(&up, t+downVal, cfg, cg)
				return downVal + upVal
			}
		}
	}
	return 0
}

func evaluateShortcut(s *Shortcut, t float64, cfg plf.Config, cg *CustomizedGraph) float64 {
	if s.Constant {
		return s.Lower
	}
	return evaluateSources(s.Sources, t, cfg, cg)
}

func wrapTime(t, period float64) float64 {
	for t < 0 {
		t += period
	}
	for t >= period {
		t -= period
	}
	return t
}

// Option configures Run.
type Option func(*options)

type options struct {
	leafSize uint32
	cfg      plf.Config
}

func defaultOptions() options {
	return options{leafSize: 64, cfg: plf.DefaultConfig()}
}

// WithLeafSize bounds how many ranks a single sequential customization task
// processes before the separator-tree scheduler may fan out further.
func WithLeafSize(n uint32) Option {
	return func(o *options) { o.leafSize = n }
}

// WithConfig overrides the period configuration (default 24h).
func WithConfig(cfg plf.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// origPLFIndex holds the original graph so lazy evaluation's SourceOriginal
// case can look up an original edge's PLF by its graph arc id. Set once by
// Run and held on CustomizedGraph.
type origPLFIndex struct {
	g *graph.Graph
}

func (cg *CustomizedGraph) origPLF(origArc uint32) plf.PLF {
	return cg.origIndex.g.EdgePLF(origArc)
}

// Run builds the customized travel-time function for every CCH arc, in both
// directions, by the rank-ordered triangle-merge recursion: processing tails
// t = 0..n-1 in ascending rank, each pair of t's live upward neighbors (a, b)
// contributes a candidate to arc (a, b) via link(incoming(t,a), outgoing(t,b))
// for the outgoing direction and link(incoming(t,b), outgoing(t,a)) for the
// incoming direction. Work fans out across c's separator tree: sibling
// subtrees hold disjoint rank ranges and run concurrently via an errgroup,
// correctness of which depends on the caller-supplied order already being
// nested-dissection-shaped (see cch.SeparatorTree).
func Run(ctx context.Context, c *cch.CCH, g *graph.Graph, opts ...Option) (*CustomizedGraph, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cg := &CustomizedGraph{
		CCH:      c,
		Cfg:      o.cfg,
		Outgoing: make([]Shortcut, c.NumArcs),
		Incoming: make([]Shortcut, c.NumArcs),
	}
	cg.origIndex = origPLFIndex{g: g}

	if err := seedOriginalEdges(cg, c, g); err != nil {
		return nil, err
	}

	tree := cch.BuildSeparatorTree(c.NumNodes, o.leafSize)
	eg, egCtx := errgroup.WithContext(ctx)
	scheduleCustomize(eg, egCtx, cg, tree)
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	finalizeBounds(cg)
	seedAndPropagateRequired(cg)

	return cg, nil
}

// scheduleCustomize recursively forks sibling subtrees of t, running each
// leaf's sequential per-rank merge loop as its own errgroup task.
func scheduleCustomize(eg *errgroup.Group, ctx context.Context, cg *CustomizedGraph, t *cch.SeparatorTree) {
	if t == nil {
		return
	}
	if t.IsLeaf() {
		eg.Go(func() error {
			return customizeRange(ctx, cg, t.Lo, t.Hi)
		})
		return
	}
	scheduleCustomize(eg, ctx, cg, t.Left)
	scheduleCustomize(eg, ctx, cg, t.Right)
}

// customizeRange runs the per-tail merge step for every rank in [lo, hi).
// Ranks below lo have already been fully processed (by a sibling leaf that
// the separator-tree topology guarantees finishes first, or is independent),
// and every arc this range writes to has tail >= lo, so no two concurrently
// running leaves ever write the same arc provided the order is genuinely
// dissection-shaped.
func customizeRange(ctx context.Context, cg *CustomizedGraph, lo, hi uint32) error {
	c := cg.CCH
	for r := lo; r < hi; r++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		ups := c.OutArc[c.OutFirst[r]:c.OutFirst[r+1]]
		for i := 0; i < len(ups); i++ {
			for j := i + 1; j < len(ups); j++ {
				arcRA := ups[i] // arc (r, a)
				arcRB := ups[j] // arc (r, b)
				a, b := c.ArcHead[arcRA], c.ArcHead[arcRB]
				arcAB, ok := c.FindArc(a, b)
				if !ok {
					return tderr.Wrap(tderr.ErrAlgorithmInvariantViolation,
						fmt.Sprintf("customize: triangle (%d,%d,%d) has no fill-in arc", r, a, b), nil)
				}
				if err := mergeTriangle(cg, arcAB, true /* outgoing */, arcRA, arcRB); err != nil {
					return err
				}
				if err := mergeTriangle(cg, arcAB, false /* incoming */, arcRB, arcRA); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// mergeTriangle merges the candidate link(incoming(downArc), outgoing(upArc))
// into target arc's shortcut in the given direction. For the outgoing
// direction, downArc = (r,a) viewed incoming (a->r) and upArc = (r,b) viewed
// outgoing (r->b), giving path a->r->b. For the incoming direction the roles
// of downArc/upArc are swapped by the caller.
func mergeTriangle(cg *CustomizedGraph, target uint32, outgoing bool, downArc, upArc uint32) error {
	down := &cg.Incoming[downArc]
	up := &cg.Outgoing[upArc]
	if down.infeasible || up.infeasible {
		return nil // no path through this triangle
	}

	candidate := linkShortcuts(cg, down, up)

	dst := cg.shortcut(target, outgoing)
	if dst.infeasible {
		dst.Sources = []Source{{At: 0, Next: cg.Cfg.PeriodMillis, Kind: SourceTriangle, Down: downArc, Up: upArc}}
		dst.infeasible = false
		return nil
	}

	cur := materializeSources(cg, dst.Sources)
	merged, sel := plf.Merge(cur, candidate, cg.Cfg)
	_ = merged // the merged PLF itself is not retained; evaluation always walks Sources

	newSources := make([]Source, 0, len(sel))
	for _, s := range sel {
		if s.Winner == plf.FromF {
			newSources = append(newSources, clipSources(dst.Sources, s.At, s.Next)...)
		} else {
			newSources = append(newSources, Source{At: s.At, Next: s.Next, Kind: SourceTriangle, Down: downArc, Up: upArc})
		}
	}
	dst.Sources = coalesceSources(newSources)
	return nil
}

// linkShortcuts materializes down and up into PLFs (recursively, via their
// own source lists) and links them. Shortcuts are kept as source lists
// rather than PLFs between merges so provenance survives for lazy
// unpacking; this is the one place that pays for a full materialization, at
// merge time only.
func linkShortcuts(cg *CustomizedGraph, down, up *Shortcut) plf.PLF {
	f := materializeSources(cg, down.Sources)
	g := materializeSources(cg, up.Sources)
	return plf.Link(f, g, cg.Cfg)
}
