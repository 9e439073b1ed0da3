package plf

import "math"

// perpDot computes the signed parallelogram area (perpendicular dot
// product) of vectors (b-a) and (c-a): positive when c is left of a->b,
// negative when right, zero when colinear. Used for both the ccw
// orientation test and segment-intersection solving.
func perpDot(a, b, c Point) float64 {
	return (b.At-a.At)*(c.Val-a.Val) - (b.Val-a.Val)*(c.At-a.At)
}

// ccw reports the strict orientation sign of (a, b, c): -1, 0, or +1.
func ccw(a, b, c Point) int {
	d := perpDot(a, b, c)
	switch {
	case d > Eps:
		return 1
	case d < -Eps:
		return -1
	default:
		return 0
	}
}

// Intersect computes the intersection point of segment (p0,p1) with segment
// (q0,q1), using the perpendicular dot product / signed-area method. The two
// segments properly intersect iff the orientation tests on both sides yield
// opposite signs (strict ccw); degenerate (parallel or colinear) cases
// report ok=false.
func Intersect(p0, p1, q0, q1 Point) (pt Point, ok bool) {
	d1 := ccw(q0, q1, p0)
	d2 := ccw(q0, q1, p1)
	d3 := ccw(p0, p1, q0)
	d4 := ccw(p0, p1, q1)

	if d1 == 0 || d2 == 0 || d3 == 0 || d4 == 0 {
		return Point{}, false // degenerate: touches an endpoint or colinear
	}
	if (d1 > 0) == (d2 > 0) || (d3 > 0) == (d4 > 0) {
		return Point{}, false // segments do not properly cross
	}

	// Solve the 2x2 linear system for the intersection parameter along p0-p1.
	px, py := p1.At-p0.At, p1.Val-p0.Val
	qx, qy := q1.At-q0.At, q1.Val-q0.Val
	denom := px*qy - py*qx
	if math.Abs(denom) < Eps {
		return Point{}, false
	}
	t := ((q0.At-p0.At)*qy - (q0.Val-p0.Val)*qx) / denom

	return Point{At: p0.At + t*px, Val: p0.Val + t*py}, true
}
