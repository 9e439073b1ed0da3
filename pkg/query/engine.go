package query

import (
	"context"
	"fmt"
	"math"
	"sync"

	"catchup/pkg/cch"
	"catchup/pkg/customize"
	"catchup/pkg/graph"
	"catchup/pkg/plf"
	"catchup/pkg/tderr"
)

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	cfg          plf.Config
	chainDegree3 bool
}

func defaultEngineOptions() engineOptions {
	return engineOptions{cfg: plf.DefaultConfig()}
}

// WithConfig overrides the period configuration (must match the one the
// CustomizedGraph was built with).
func WithConfig(cfg plf.Config) Option {
	return func(o *engineOptions) { o.cfg = cfg }
}

// WithChainDegree3 enables the one-time degree-3 branch extension to the
// refinement search's chain-walk optimization. Off by default: the source
// this behavior is grounded on only partially engages it, and no topology
// has been verified here to rule out a double-visited node on that third
// branch; see DESIGN.md.
func WithChainDegree3() Option {
	return func(o *engineOptions) { o.chainDegree3 = true }
}

// Engine answers time-dependent shortest-path queries over an immutable
// CustomizedGraph, CCH skeleton, and original Graph. Safe for concurrent use:
// each call to Distance/Query borrows a *State from an internal pool
// (mirroring the teacher's Engine.qsPool), so concurrent queries never share
// mutable state.
type Engine struct {
	cch *cch.CCH
	cg  *customize.CustomizedGraph
	g   *graph.Graph
	opt engineOptions

	statePool sync.Pool
}

// NewEngine builds a query engine over the given (already customized) CCH,
// CustomizedGraph, and original graph.
func NewEngine(c *cch.CCH, cg *customize.CustomizedGraph, g *graph.Graph, opts ...Option) *Engine {
	o := defaultEngineOptions()
	for _, opt := range opts {
		opt(&o)
	}
	e := &Engine{cch: c, cg: cg, g: g, opt: o}
	e.statePool.New = func() any { return NewState(c) }
	return e
}

// Result is a finished query's read-only view: the distance (if found) and,
// while the caller still holds it, the settled path and corridor membership
// from the search that produced it. Close returns the underlying state to
// the engine's pool; a Result must not be used afterward.
type Result struct {
	e        *Engine
	s        *State
	found    bool
	distance float64
	srcOrig  uint32
	dstOrig  uint32
}

// Found reports whether a finite travel time was found.
func (r *Result) Found() bool { return r.found }

// Distance returns the travel time in milliseconds, or +Inf if not Found.
func (r *Result) Distance() float64 { return r.distance }

// Path reconstructs the sequence of original node ids visited, source to
// target, from the refinement search's predecessor chain. Returns nil if
// not Found, and the one-element path [source] when source==target.
func (r *Result) Path() []uint32 {
	if !r.found {
		return nil
	}
	if r.srcOrig == r.dstOrig {
		return []uint32{r.srcOrig}
	}
	var rev []uint32
	n := r.dstOrig
	for {
		rev = append(rev, n)
		if n == r.srcOrig {
			break
		}
		p := r.s.predNode[n]
		if p == noNode {
			// Never reached if Found is true and the predecessor chain is
			// intact; defensive against a corrupted state reuse.
			break
		}
		n = p
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// IsInSearchSpace reports whether the given original node id was part of
// this query's search: either its CCH rank fell in the elimination-tree
// corridor, or the refinement Dijkstra actually settled it (refinement is
// not corridor-restricted, see dijkstra.go, so it can settle nodes outside
// a narrow corridor). Scoped to the Result rather than the Engine (unlike
// spec.md's engine-level method) because this membership is per-query
// state; an Engine-level method would be racy across the concurrent queries
// this package's concurrency model explicitly allows. See DESIGN.md.
func (r *Result) IsInSearchSpace(node uint32) bool {
	return r.s.corridor[r.s.c.Rank[node]] || r.s.settled[node]
}

// Close returns the Result's underlying query state to the engine's pool.
// After Close, the Result must not be used.
func (r *Result) Close() {
	r.s.Reset()
	r.e.statePool.Put(r.s)
	r.s = nil
}

// Query runs a full two-phase query (corridor search + refinement) from
// fromOrig to toOrig at the given departure time and returns a Result the
// caller must Close when done with Path/IsInSearchSpace.
func (e *Engine) Query(ctx context.Context, fromOrig, toOrig uint32, departureMillis float64) (*Result, error) {
	if fromOrig >= e.cch.NumNodes || toOrig >= e.cch.NumNodes {
		return nil, tderr.Wrap(tderr.ErrAlgorithmInvariantViolation,
			fmt.Sprintf("query.Engine.Query: node id out of range (from=%d to=%d n=%d)", fromOrig, toOrig, e.cch.NumNodes), nil)
	}

	s := e.statePool.Get().(*State)
	srcRank, dstRank := e.cch.Rank[fromOrig], e.cch.Rank[toOrig]

	cr := corridorSearch(s, e.cg, srcRank, dstRank)
	if math.IsInf(cr.u, 1) {
		return &Result{e: e, s: s, found: false, distance: math.Inf(1), srcOrig: fromOrig, dstOrig: toOrig}, nil
	}

	rr, err := refine(ctx, s, e.g, e.opt.cfg, fromOrig, toOrig, departureMillis, e.opt.chainDegree3)
	if err != nil {
		s.Reset()
		e.statePool.Put(s)
		return nil, err
	}
	if !rr.ok {
		return &Result{e: e, s: s, found: false, distance: math.Inf(1), srcOrig: fromOrig, dstOrig: toOrig}, nil
	}

	return &Result{
		e:        e,
		s:        s,
		found:    true,
		distance: rr.arrival - departureMillis,
		srcOrig:  fromOrig,
		dstOrig:  toOrig,
	}, nil
}

// Distance runs a query and returns just the scalar travel time, closing the
// underlying state itself — use Query directly when Path or
// IsInSearchSpace is also needed.
func (e *Engine) Distance(ctx context.Context, fromOrig, toOrig uint32, departureMillis float64) (travelMillis float64, ok bool, err error) {
	res, err := e.Query(ctx, fromOrig, toOrig, departureMillis)
	if err != nil {
		return 0, false, err
	}
	defer res.Close()
	if !res.Found() {
		return 0, false, nil
	}
	return res.Distance(), true, nil
}
