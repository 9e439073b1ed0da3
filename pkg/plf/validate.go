package plf

import (
	"fmt"
	"math"

	"catchup/pkg/tderr"
)

// Validate checks the invariants from the data model: strictly monotone at,
// leading zero, trailing period with matching val (periodic closure), FIFO
// (v2-v1 >= -(t2-t1)), and val > 0 everywhere. A single-point constant PLF
// with a positive val always validates.
func Validate(f PLF, cfg Config) error {
	if len(f) == 0 {
		return fmt.Errorf("%w: empty PLF", tderr.ErrMalformedInput)
	}
	if IsConstant(f) {
		if f[0].At != 0 {
			return fmt.Errorf("%w: constant PLF must have at=0", tderr.ErrMalformedInput)
		}
		if !(f[0].Val > 0) {
			return fmt.Errorf("%w: constant PLF val must be positive", tderr.ErrMalformedInput)
		}
		if !finite(f[0].Val) {
			return tderr.Wrap(tderr.ErrNonFiniteArithmetic, "plf.Validate", nil)
		}
		return nil
	}

	if f[0].At != 0 {
		return fmt.Errorf("%w: first point must have at=0, got %v", tderr.ErrMalformedInput, f[0].At)
	}
	if math.Abs(f[len(f)-1].At-cfg.PeriodMillis) > Eps {
		return fmt.Errorf("%w: last point must have at=P (%v), got %v", tderr.ErrMalformedInput, cfg.PeriodMillis, f[len(f)-1].At)
	}
	if math.Abs(f[0].Val-f[len(f)-1].Val) > Eps {
		return fmt.Errorf("%w: periodic closure violated: f(0)=%v f(P)=%v", tderr.ErrMalformedInput, f[0].Val, f[len(f)-1].Val)
	}

	for i, p := range f {
		if !finite(p.At) || !finite(p.Val) {
			return tderr.Wrap(tderr.ErrNonFiniteArithmetic, "plf.Validate", nil)
		}
		if !(p.Val > 0) {
			return fmt.Errorf("%w: val must be positive at index %d (val=%v)", tderr.ErrMalformedInput, i, p.Val)
		}
		if i > 0 && p.At <= f[i-1].At+Eps {
			return fmt.Errorf("%w: at values must be strictly increasing (index %d: %v <= %v)", tderr.ErrMalformedInput, i, p.At, f[i-1].At)
		}
		if i > 0 {
			dt := p.At - f[i-1].At
			dv := p.Val - f[i-1].Val
			if dv < -dt-Eps {
				return fmt.Errorf("%w: FIFO violated between index %d and %d", tderr.ErrNonFIFOWeight, i-1, i)
			}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Normalize merges colinear consecutive points (within Eps) to bound PLF
// growth after Link/Merge, per the "normalize by merging colinear points"
// rule in the algebra design.
func Normalize(f PLF) PLF {
	if len(f) <= 2 {
		return f
	}
	out := make(PLF, 0, len(f))
	out = append(out, f[0])
	for i := 1; i < len(f)-1; i++ {
		prev := out[len(out)-1]
		cur := f[i]
		next := f[i+1]
		if colinear(prev, cur, next) {
			continue // cur lies on the segment prev-next; drop it
		}
		out = append(out, cur)
	}
	out = append(out, f[len(f)-1])
	return out
}

// colinear reports whether b lies on the line through a and c within Eps,
// using the same perpendicular (cross-product) test as Intersect.
func colinear(a, b, c Point) bool {
	cross := (b.At-a.At)*(c.Val-a.Val) - (b.Val-a.Val)*(c.At-a.At)
	// Scale tolerance by the segment length so Eps is a value-space, not an
	// area-space, tolerance.
	base := math.Hypot(c.At-a.At, c.Val-a.Val)
	if base < Eps {
		return true
	}
	return math.Abs(cross)/base < Eps
}
