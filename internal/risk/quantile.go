package risk

import (
	"math"
	"sort"
)

// Quantile returns the p-quantile of data using linear interpolation between
// order statistics (Hyndman & Fan type 7):
//
//	h  = (n-1)*p
//	lo = floor(h), t = h-lo
//	q  = x[lo] + t*(x[lo+1]-x[lo])   when t <  0.5
//	q  = x[lo+1] - (1-t)*(x[lo+1]-x[lo]) when t >= 0.5
//
// The two-sided form keeps the result exact at either order statistic.
// data need not be sorted; it is not modified. Empty input yields NaN.
func Quantile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	return quantileSorted(sorted, p)
}

func quantileSorted(x []float64, p float64) float64 {
	n := len(x)
	if n == 0 || math.IsNaN(p) {
		return math.NaN()
	}
	if p <= 0 {
		return x[0]
	}
	if p >= 1 {
		return x[n-1]
	}

	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return x[n-1]
	}
	return lerp(x[lo], x[lo+1], h-float64(lo))
}

func lerp(a, b, t float64) float64 {
	diff := b - a
	if t >= 0.5 {
		return b - diff*(1-t)
	}
	return a + diff*t
}
