// Package geoorder provides a geographic node-ordering collaborator for
// cch.Build: given an already-shaped cch.SeparatorTree (which only fixes
// how many rank slots each recursive half gets, see cch.BuildSeparatorTree)
// and per-node coordinates, it produces a concrete permutation that
// assigns geographically co-located nodes to nearby rank slots.
//
// cch.Build never calls into this package directly — the order it takes is
// an opaque []uint32 — so any ordering strategy is a drop-in replacement.
// This file's HilbertOrder is one such strategy, kept as a usable default.
package geoorder

import (
	"math"
	"sort"

	"catchup/pkg/cch"
	"catchup/pkg/geo"
)

// Reorder returns a permutation of [0, len(lat)) shaped by sep's recursive
// bisection: at each non-leaf node it splits the node set assigned to that
// subtree into two geographically coherent halves sized to match
// sep.Left/sep.Right's slot counts, recursing into each; at a leaf it hands
// the remaining nodes to HilbertOrder for a final within-leaf pass.
//
// The split axis at each level is whichever of latitude or longitude spans
// the greater ground distance across the node set's bounding box (measured
// along the box's mid-lines with geo.EquirectangularDist, and with
// geo.Haversine when the two spans are nearly tied), so the bisection tracks the
// set's actual aspect ratio rather than degenerating to always-lat or
// always-lon. lat and lon must be indexed by the same node ids sep's
// [0, len(lat)) range covers.
func Reorder(sep *cch.SeparatorTree, lat, lon []float64) []uint32 {
	n := uint32(len(lat))
	nodes := make([]uint32, n)
	for i := range nodes {
		nodes[i] = uint32(i)
	}

	order := make([]uint32, n)
	assign(sep, nodes, lat, lon, order)
	return order
}

// assign places the given node subset into order's [sep.Lo, sep.Hi) slots.
func assign(sep *cch.SeparatorTree, nodes []uint32, lat, lon []float64, order []uint32) {
	if uint32(len(nodes)) != sep.Hi-sep.Lo {
		// A caller-supplied SeparatorTree whose leaf sizes don't add up to
		// len(nodes); fall back to Hilbert order over whatever arrived so
		// every slot still gets filled.
		for i, id := range HilbertOrder(subsetLat(nodes, lat), subsetLon(nodes, lon)) {
			if uint32(i) >= sep.Hi-sep.Lo {
				break
			}
			order[sep.Lo+uint32(i)] = nodes[id]
		}
		return
	}

	if sep.IsLeaf() {
		for i, id := range HilbertOrder(subsetLat(nodes, lat), subsetLon(nodes, lon)) {
			order[sep.Lo+uint32(i)] = nodes[id]
		}
		return
	}

	leftCount := sep.Left.Hi - sep.Left.Lo
	left, right := geoBisect(nodes, lat, lon, int(leftCount))
	assign(sep.Left, left, lat, lon, order)
	assign(sep.Right, right, lat, lon, order)
}

// geoBisect splits nodes into a leftCount-sized half and the remainder,
// ordered along whichever axis spans the greater ground distance. Sorts the
// full subset rather than a partial selection — subsets are leaf-sized by
// the time this recurses deep enough for it to matter, so the simpler full
// sort is not worth replacing with a selection algorithm.
//
// Axis selection first compares spans with geo.EquirectangularDist, cheaper
// than Haversine and accurate enough to call except when the two spans are
// nearly tied, the case where the projection's distortion can actually flip
// the answer; only then is geo.Haversine's exact great-circle distance worth
// its extra trig.
func geoBisect(nodes []uint32, lat, lon []float64, leftCount int) (left, right []uint32) {
	minLat, maxLat := boundsOf(nodes, lat)
	minLon, maxLon := boundsOf(nodes, lon)
	midLat, midLon := (minLat+maxLat)/2, (minLon+maxLon)/2

	latApprox := geo.EquirectangularDist(minLat, midLon, maxLat, midLon)
	lonApprox := geo.EquirectangularDist(midLat, minLon, midLat, maxLon)

	var byLat bool
	if closeSpans(latApprox, lonApprox) {
		latSpanMeters := geo.Haversine(minLat, midLon, maxLat, midLon)
		lonSpanMeters := geo.Haversine(midLat, minLon, midLat, maxLon)
		byLat = latSpanMeters >= lonSpanMeters
	} else {
		byLat = latApprox >= lonApprox
	}
	sorted := append([]uint32(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool {
		if byLat {
			return lat[sorted[i]] < lat[sorted[j]]
		}
		return lon[sorted[i]] < lon[sorted[j]]
	})

	if leftCount > len(sorted) {
		leftCount = len(sorted)
	}
	left = append([]uint32(nil), sorted[:leftCount]...)
	right = append([]uint32(nil), sorted[leftCount:]...)
	return left, right
}

// closeSpans reports whether two span estimates are near enough that the
// cheaper equirectangular approximation isn't trustworthy for picking the
// larger one, and the exact distance should be computed instead.
func closeSpans(a, b float64) bool {
	d := math.Abs(a - b)
	m := math.Max(a, b)
	if m == 0 {
		return false
	}
	return d/m < 0.05
}

func boundsOf(nodes []uint32, v []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, id := range nodes {
		if v[id] < lo {
			lo = v[id]
		}
		if v[id] > hi {
			hi = v[id]
		}
	}
	return lo, hi
}

func subsetLat(nodes []uint32, lat []float64) []float64 {
	out := make([]float64, len(nodes))
	for i, id := range nodes {
		out[i] = lat[id]
	}
	return out
}

func subsetLon(nodes []uint32, lon []float64) []float64 {
	out := make([]float64, len(nodes))
	for i, id := range nodes {
		out[i] = lon[id]
	}
	return out
}

// hilbertBits is the per-axis quantization depth: a 2^16 x 2^16 grid, ample
// resolution for sorting road-network-scale coordinate sets.
const hilbertBits = 16
const hilbertSide = 1 << hilbertBits

// HilbertOrder returns the permutation of [0, len(lat)) that visits the
// given points in Hilbert-curve order: quantize each point onto a
// 2^hilbertBits square grid spanning the set's bounding box, compute each
// point's distance along the curve, and sort by it. Points that are close
// on the curve are close in (lat,lon); used as geoorder's within-leaf
// ordering and as its degenerate-input fallback.
func HilbertOrder(lat, lon []float64) []uint32 {
	n := len(lat)
	ids := make([]uint32, n)
	for i := range ids {
		ids[i] = uint32(i)
	}
	if n == 0 {
		return ids
	}

	minLat, maxLat := lat[0], lat[0]
	minLon, maxLon := lon[0], lon[0]
	for i := 1; i < n; i++ {
		minLat, maxLat = math.Min(minLat, lat[i]), math.Max(maxLat, lat[i])
		minLon, maxLon = math.Min(minLon, lon[i]), math.Max(maxLon, lon[i])
	}
	latSpan := maxLat - minLat
	lonSpan := maxLon - minLon

	quant := func(v, lo, span float64) uint32 {
		if span <= 0 {
			return 0
		}
		q := (v - lo) / span * float64(hilbertSide-1)
		if q < 0 {
			q = 0
		}
		if q > hilbertSide-1 {
			q = hilbertSide - 1
		}
		return uint32(q)
	}

	d := make([]uint64, n)
	for i := 0; i < n; i++ {
		x := quant(lat[i], minLat, latSpan)
		y := quant(lon[i], minLon, lonSpan)
		d[i] = hilbertD(x, y)
	}

	sort.Slice(ids, func(i, j int) bool { return d[ids[i]] < d[ids[j]] })
	return ids
}

// hilbertD converts (x,y) grid coordinates to their Hilbert curve distance,
// the standard rotate-and-reflect bit-by-bit construction. The reflection in
// rotate mirrors across the full grid side (hilbertSide-1), not the current
// sub-square size s — s only scales the distance contribution at each step.
func hilbertD(x, y uint32) uint64 {
	var d uint64
	for s := uint32(hilbertSide / 2); s > 0; s /= 2 {
		var rx, ry uint32
		if x&s > 0 {
			rx = 1
		}
		if y&s > 0 {
			ry = 1
		}
		d += uint64(s) * uint64(s) * uint64((3*rx)^ry)
		x, y = rotate(x, y, rx, ry)
	}
	return d
}

func rotate(x, y, rx, ry uint32) (uint32, uint32) {
	if ry == 0 {
		if rx == 1 {
			x = hilbertSide - 1 - x
			y = hilbertSide - 1 - y
		}
		x, y = y, x
	}
	return x, y
}
