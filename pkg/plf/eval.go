package plf

import (
	"math"
	"sort"
)

// wrap reduces t into the canonical [0, P) representative.
func wrap(t float64, period float64) float64 {
	t = math.Mod(t, period)
	if t < 0 {
		t += period
	}
	return t
}

// Evaluate returns f(t): the travel time incurred by departing at time t
// (milliseconds, taken modulo the period). Cost is O(log k) via binary
// search on the breakpoints.
func Evaluate(f PLF, t float64, cfg Config) float64 {
	if IsConstant(f) {
		return f[0].Val
	}
	t = wrap(t, cfg.PeriodMillis)

	// Locate the bracketing segment: largest i with f[i].At <= t.
	i := sort.Search(len(f), func(i int) bool { return f[i].At > t }) - 1
	if i < 0 {
		i = 0
	}
	if i >= len(f)-1 {
		return f[len(f)-1].Val
	}
	p0, p1 := f[i], f[i+1]
	if p1.At == p0.At {
		return p0.Val
	}
	frac := (t - p0.At) / (p1.At - p0.At)
	return p0.Val + frac*(p1.Val-p0.Val)
}

// Arrival returns t + f(t): the absolute arrival time for a departure at t.
// Not reduced modulo the period — callers that need to chain Evaluate calls
// across period boundaries (Link) use this directly.
func Arrival(f PLF, t float64, cfg Config) float64 {
	return t + Evaluate(f, t, cfg)
}
