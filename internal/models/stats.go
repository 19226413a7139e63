package models

import (
	"math"
	"sort"
)

// Median returns the median of xs, averaging the two middle values for an
// even count. It returns 0 for an empty slice and does not modify xs.
func Median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MedianAbsoluteDeviation is median(|x - median(x)|).
func MedianAbsoluteDeviation(xs []float64) float64 {
	m := Median(xs)
	dev := make([]float64, len(xs))
	for i, x := range xs {
		dev[i] = math.Abs(x - m)
	}
	return Median(dev)
}
