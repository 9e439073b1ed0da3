// Package query implements the two-phase CATCHUp query: an elimination-tree
// corridor search over the customized CCH, followed by a goal-directed
// refinement Dijkstra on the original graph that uses the corridor only for
// its potential; the refinement is not restricted to corridor nodes. A query is single-threaded and cooperative; concurrent queries run
// over distinct *State values pooled via sync.Pool, mirroring the teacher's
// Engine.qsPool pattern, while sharing one immutable CustomizedGraph.
package query

import (
	"math"

	"catchup/pkg/cch"
	"catchup/pkg/ds"
)

const noRank = ^uint32(0)
const noArc = ^uint32(0)
const noNode = ^uint32(0)

// Label is one surviving hypothesis in a rank's elimination-tree label set:
// the predecessor rank and CCH arc used to reach it, and the lower bound of
// that particular path.
type Label struct {
	Parent     uint32
	ShortcutID uint32
	Lower      float64
}

// rankData is the per-rank state one side of the corridor search maintains:
// its surviving label set plus the running (lower, upper) aggregate across
// every label ever accepted.
type rankData struct {
	Labels []Label
	Lower  float64
	Upper  float64
}

func freshRankData() rankData {
	return rankData{Lower: math.Inf(1), Upper: math.Inf(1)}
}

// heapPayload is the per-node payload the refinement search's indexed heap
// carries: the predecessor original edge used to reach this node, for path
// reconstruction.
type heapPayload struct {
	predNode uint32
	predEdge uint32
}

// State holds every buffer one query needs: the forward/backward
// elimination-tree label arrays (indexed by CCH rank), the corridor
// membership bitmap, and the refinement search's heap and tentative-arrival
// vector (indexed by original node id). Sized once for a given CCH/graph and
// reused across queries via Reset, following the touched-list fast-clear
// pattern the teacher's QueryState uses.
type State struct {
	c *cch.CCH

	fwd        []rankData
	bwd        []rankData
	fwdTouched []uint32
	bwdTouched []uint32

	onForwardPath *ds.FastClearBitVec

	corridor        []bool
	corridorTouched []uint32

	heap      *ds.IndexedMinHeap[heapPayload]
	arrival   *ds.TimestampedVector[float64]
	settled   []bool
	settledAt []uint32
	predNode  []uint32
	predEdge  []uint32
}

// NewState allocates a State sized for c's rank space.
func NewState(c *cch.CCH) *State {
	n := int(c.NumNodes)
	s := &State{
		c:             c,
		fwd:           make([]rankData, n),
		bwd:           make([]rankData, n),
		onForwardPath: ds.NewFastClearBitVec(n),
		corridor:      make([]bool, n),
		heap:          ds.NewIndexedMinHeap[heapPayload](c.NumNodes),
		arrival:       ds.NewTimestampedVector[float64](n),
		settled:       make([]bool, n),
		predNode:      make([]uint32, n),
		predEdge:      make([]uint32, n),
	}
	for i := range s.fwd {
		s.fwd[i] = freshRankData()
		s.bwd[i] = freshRankData()
	}
	return s
}

// Reset clears every buffer touched by the previous query in O(touched).
func (s *State) Reset() {
	for _, r := range s.fwdTouched {
		s.fwd[r] = freshRankData()
	}
	s.fwdTouched = s.fwdTouched[:0]

	for _, r := range s.bwdTouched {
		s.bwd[r] = freshRankData()
	}
	s.bwdTouched = s.bwdTouched[:0]

	s.onForwardPath.Clear()

	for _, r := range s.corridorTouched {
		s.corridor[r] = false
	}
	s.corridorTouched = s.corridorTouched[:0]

	s.heap.Reset()
	s.arrival.Reset()
	for _, n := range s.settledAt {
		s.settled[n] = false
	}
	s.settledAt = s.settledAt[:0]
}
