package plf

// Bounds returns the scalar (lower, upper) bounds of f over one period: the
// minimum and maximum val across all breakpoints. Since f is piecewise
// linear, extrema occur only at breakpoints, so a linear scan suffices.
func Bounds(f PLF) (lower, upper float64) {
	lower, upper = f[0].Val, f[0].Val
	for _, p := range f[1:] {
		if p.Val < lower {
			lower = p.Val
		}
		if p.Val > upper {
			upper = p.Val
		}
	}
	return lower, upper
}
