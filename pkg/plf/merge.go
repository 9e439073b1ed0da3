package plf

import "sort"

// SourceTag identifies which operand won a Merge interval.
type SourceTag int

const (
	// FromF marks an interval where f(t) <= g(t) (ties favor the incumbent f).
	FromF SourceTag = iota
	// FromG marks an interval where g(t) < f(t).
	FromG
)

// Selector is one half-open departure-time interval [At, Next) of a Merge
// result, tagged with which operand achieved the minimum. This is the input
// customize consumes to build a shortcut's source list.
type Selector struct {
	At     float64
	Next   float64
	Winner SourceTag
}

// Merge computes the pointwise minimum of f and g over one period (the
// upper envelope's lower edge), returning the merged PLF and the selector
// sequence describing which operand won each interval, with ties broken
// toward f.
func Merge(f, g PLF, cfg Config) (PLF, []Selector) {
	if IsConstant(f) && IsConstant(g) {
		if f[0].Val <= g[0].Val+Eps {
			return f, []Selector{{At: 0, Next: cfg.PeriodMillis, Winner: FromF}}
		}
		return g, []Selector{{At: 0, Next: cfg.PeriodMillis, Winner: FromG}}
	}

	times := breakpointUnion(f, g, cfg)

	type sample struct{ t, fv, gv float64 }
	samples := make([]sample, len(times))
	for i, t := range times {
		samples[i] = sample{t: t, fv: Evaluate(f, t, cfg), gv: Evaluate(g, t, cfg)}
	}

	var result PLF
	var rawSelectors []Selector

	emit := func(t, v float64) {
		if n := len(result); n > 0 && result[n-1].At == t {
			return
		}
		result = append(result, Point{At: t, Val: v})
	}
	winnerOf := func(d float64) SourceTag {
		if d <= Eps {
			return FromF
		}
		return FromG
	}

	for i := 0; i < len(samples)-1; i++ {
		a, b := samples[i], samples[i+1]
		da := a.fv - a.gv
		db := b.fv - b.gv

		wa := winnerOf(da)
		emit(a.t, minVal(a.fv, a.gv))
		rawSelectors = append(rawSelectors, Selector{At: a.t, Next: b.t, Winner: wa})

		crosses := (da > Eps && db < -Eps) || (da < -Eps && db > Eps)
		if crosses {
			pf0 := Point{At: a.t, Val: a.fv}
			pf1 := Point{At: b.t, Val: b.fv}
			pg0 := Point{At: a.t, Val: a.gv}
			pg1 := Point{At: b.t, Val: b.gv}
			if x, ok := Intersect(pf0, pf1, pg0, pg1); ok {
				emit(x.At, x.Val)
				rawSelectors[len(rawSelectors)-1].Next = x.At
				rawSelectors = append(rawSelectors, Selector{At: x.At, Next: b.t, Winner: winnerOf(db)})
			}
		}
	}
	emit(samples[len(samples)-1].t, minVal(samples[len(samples)-1].fv, samples[len(samples)-1].gv))

	return Normalize(result), coalesce(rawSelectors)
}

func minVal(a, b float64) float64 {
	if a <= b {
		return a
	}
	return b
}

// coalesce merges consecutive selectors with the same winner into one
// interval, keeping the source-selector sequence minimal for customize.
func coalesce(sel []Selector) []Selector {
	if len(sel) == 0 {
		return sel
	}
	out := make([]Selector, 0, len(sel))
	cur := sel[0]
	for _, s := range sel[1:] {
		if s.Winner == cur.Winner && s.At <= cur.Next+Eps {
			cur.Next = s.Next
			continue
		}
		out = append(out, cur)
		cur = s
	}
	out = append(out, cur)
	return out
}

// breakpointUnion returns the sorted, deduplicated union of f's and g's
// breakpoint times, always including 0 and the period endpoint.
func breakpointUnion(f, g PLF, cfg Config) []float64 {
	seen := make(map[float64]struct{}, len(f)+len(g)+2)
	var times []float64
	add := func(t float64) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		times = append(times, t)
	}
	add(0)
	add(cfg.PeriodMillis)
	for _, p := range f {
		add(p.At)
	}
	for _, p := range g {
		add(p.At)
	}
	sort.Float64s(times)

	// Deduplicate near-equal times introduced by floating error.
	out := times[:0:0]
	for _, t := range times {
		if len(out) > 0 && t-out[len(out)-1] < Eps {
			continue
		}
		out = append(out, t)
	}
	return out
}
