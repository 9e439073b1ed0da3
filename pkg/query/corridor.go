package query

import (
	"math"

	"catchup/pkg/cch"
	"catchup/pkg/customize"
	"catchup/pkg/plf"
)

// corridorResult is the output of corridorSearch: the global upper bound U
// and, implicitly, the state's corridor/fwd/bwd buffers which the caller
// reads directly.
type corridorResult struct {
	u        float64
	meetings []uint32
}

// corridorSearch runs the two elimination-tree interval searches (forward
// from srcRank, backward from dstRank) and derives the corridor: every rank
// whose forward.lower + backward.lower does not exceed U, the minimum over
// meeting nodes (ranks common to both root-ward paths) of
// forward.upper + backward.upper.
//
// The elimination tree is a single-parent structure, so both walks trace a
// unique path to their component's root; the two paths share exactly the
// suffix from their lowest common ancestor to the root, which is where
// meeting nodes are found.
//
// Every CCH arc increases in rank from tail to head, so the backward walk
// (rooted at the target) can only ever touch ranks at or above the target's
// own rank — a target ranked near its component's root yields a label set
// touching few or even just one rank. The resulting corridor can then be
// too narrow to contain every node an optimal original-graph path passes
// through, so refine (dijkstra.go) uses it only as an admissible potential
// domain, not as a hard filter on which edges may be relaxed. u and the
// corridor bitmap remain useful for IsInSearchSpace reporting and for
// guiding the search even when narrow.
func corridorSearch(s *State, cg *customize.CustomizedGraph, srcRank, dstRank uint32) corridorResult {
	walkPath(s, cg, srcRank, true)
	markForwardPath(s, srcRank)
	bwdPath := walkPath(s, cg, dstRank, false)

	var meetings []uint32
	for _, r := range bwdPath {
		if s.onForwardPath.Get(int(r)) {
			meetings = append(meetings, r)
		}
	}

	u := math.Inf(1)
	for _, m := range meetings {
		total := s.fwd[m].Upper + s.bwd[m].Upper
		if total < u {
			u = total
		}
	}

	if !math.IsInf(u, 1) {
		buildCorridor(s, u)
	}
	return corridorResult{u: u, meetings: meetings}
}

func markForwardPath(s *State, srcRank uint32) {
	r := srcRank
	for {
		if s.onForwardPath.Get(int(r)) {
			return
		}
		s.onForwardPath.Set(int(r))
		p := s.c.Parent[r]
		if cch.NoParent(p) {
			return
		}
		r = p
	}
}

// walkPath runs one side of the corridor search: starting at startRank with
// bounds (0,0), it repeatedly relaxes the current rank's upward CCH arcs
// (using the Outgoing shortcut cost for the forward side, Incoming for the
// backward side) into rankData label sets, then advances to the
// elimination-tree parent. Returns the sequence of ranks visited as
// "current", in ascending-rank (root-ward) order.
func walkPath(s *State, cg *customize.CustomizedGraph, startRank uint32, forward bool) []uint32 {
	data := s.bwd
	touched := &s.bwdTouched
	if forward {
		data = s.fwd
		touched = &s.fwdTouched
	}

	touch := func(r uint32) {
		if math.IsInf(data[r].Lower, 1) && math.IsInf(data[r].Upper, 1) && len(data[r].Labels) == 0 {
			*touched = append(*touched, r)
		}
	}

	touch(startRank)
	data[startRank].Lower = 0
	data[startRank].Upper = 0
	data[startRank].Labels = []Label{{Parent: noRank, ShortcutID: noArc, Lower: 0}}

	var path []uint32
	cchStruct := s.c
	r := startRank
	for {
		path = append(path, r)
		cur := data[r]
		for _, a := range cchStruct.OutArc[cchStruct.OutFirst[r]:cchStruct.OutFirst[r+1]] {
			h := cchStruct.ArcHead[a]
			var sc *customize.Shortcut
			if forward {
				sc = cg.Shortcut(a, true)
			} else {
				sc = cg.Shortcut(a, false)
			}
			if sc.IsInfeasible() {
				continue
			}
			lo, hi := sc.Lower, sc.Upper
			nextLower := cur.Lower + lo
			nextUpper := cur.Upper + hi
			if math.IsInf(nextUpper, 1) {
				continue
			}
			touch(h)
			updateLabel(&data[h], Label{Parent: r, ShortcutID: a, Lower: nextLower}, nextUpper)
		}
		p := cchStruct.Parent[r]
		if cch.NoParent(p) {
			break
		}
		r = p
	}
	return path
}

// updateLabel folds a newly computed (lab.Lower, nextUpper) candidate into
// target's label set using the dominance rule: a candidate whose worst case
// is no worse than target's best known case replaces the set outright; a
// candidate that could still win for some departure time is added and the
// set is trimmed to labels that remain possibly optimal; anything else is
// discarded.
func updateLabel(target *rankData, lab Label, nextUpper float64) {
	if nextUpper <= target.Lower+plf.Eps {
		target.Labels = append(target.Labels[:0], lab)
		target.Lower = lab.Lower
		target.Upper = nextUpper
		return
	}
	if lab.Lower >= target.Upper-plf.Eps {
		return
	}
	target.Labels = append(target.Labels, lab)
	if nextUpper < target.Upper {
		target.Upper = nextUpper
	}
	if lab.Lower < target.Lower {
		target.Lower = lab.Lower
	}
	kept := target.Labels[:0]
	for _, l := range target.Labels {
		if l.Lower <= target.Upper+plf.Eps {
			kept = append(kept, l)
		}
	}
	target.Labels = kept
}

// buildCorridor marks every touched rank whose combined lower bounds do not
// exceed u. Ranks touched by only one side never qualify, since the
// untouched side's Lower stays +Inf.
func buildCorridor(s *State, u float64) {
	mark := func(r uint32) {
		if s.fwd[r].Lower+s.bwd[r].Lower <= u+plf.Eps && !s.corridor[r] {
			s.corridor[r] = true
			s.corridorTouched = append(s.corridorTouched, r)
		}
	}
	for _, r := range s.fwdTouched {
		mark(r)
	}
	for _, r := range s.bwdTouched {
		mark(r)
	}
}
