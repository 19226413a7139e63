package change

import (
	"math"

	"github.com/chrissnell/ccdetect/internal/models"
	"github.com/chrissnell/ccdetect/internal/series"
)

// Variogram estimates per-band noise as the median absolute difference
// between consecutive included observations more than minGap days apart.
// When no pair is far enough apart every consecutive pair is used.
func Variogram(s *series.Series, mask []bool, minGap int) [series.NumBands]float64 {
	var vario [series.NumBands]float64

	idx := make([]int, 0, len(mask))
	for i, ok := range mask {
		if ok {
			idx = append(idx, i)
		}
	}
	if len(idx) < 2 {
		return vario
	}

	pairs := make([]int, 0, len(idx)-1)
	for k := 1; k < len(idx); k++ {
		if s.Dates[idx[k]]-s.Dates[idx[k-1]] > minGap {
			pairs = append(pairs, k)
		}
	}
	if len(pairs) == 0 {
		for k := 1; k < len(idx); k++ {
			pairs = append(pairs, k)
		}
	}

	diffs := make([]float64, len(pairs))
	for b := series.Band(0); b < series.NumBands; b++ {
		for j, k := range pairs {
			diffs[j] = math.Abs(s.Value(b, idx[k]) - s.Value(b, idx[k-1]))
		}
		vario[b] = models.Median(diffs)
	}
	return vario
}
