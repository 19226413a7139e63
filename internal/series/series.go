// Package series holds the per-pixel observation series consumed by the
// change detection engine: ordinal dates, seven aligned reflectance bands
// and one QA flag per acquisition.
package series

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Band indexes one of the seven spectral bands.
type Band int

const (
	Red Band = iota
	Green
	Blue
	NIR
	SWIR1
	SWIR2
	Thermal
)

// NumBands is the size of the closed band set.
const NumBands = 7

// BandNames lists band names in index order.
var BandNames = [NumBands]string{"red", "green", "blue", "nir", "swir1", "swir2", "thermal"}

func (b Band) String() string {
	if b < 0 || int(b) >= NumBands {
		return fmt.Sprintf("band(%d)", int(b))
	}
	return BandNames[b]
}

// ParseBand resolves a band by its (case-insensitive) name.
func ParseBand(name string) (Band, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, bn := range BandNames {
		if bn == n {
			return Band(i), nil
		}
	}
	return 0, fmt.Errorf("unknown band %q", name)
}

// ParseBands resolves a list of band names.
func ParseBands(names []string) ([]Band, error) {
	bands := make([]Band, 0, len(names))
	for _, n := range names {
		b, err := ParseBand(n)
		if err != nil {
			return nil, err
		}
		bands = append(bands, b)
	}
	return bands, nil
}

// Series is a time-ordered observation series for one pixel.
type Series struct {
	Dates   []int
	Bands   [NumBands][]float64
	Quality []int
}

// New stacks per-band slices in band order. The slices are not copied.
func New(dates []int, reds, greens, blues, nirs, swir1s, swir2s, thermals []float64, quality []int) Series {
	return Series{
		Dates:   dates,
		Bands:   [NumBands][]float64{reds, greens, blues, nirs, swir1s, swir2s, thermals},
		Quality: quality,
	}
}

// Len returns the number of observations.
func (s *Series) Len() int {
	return len(s.Dates)
}

// Value returns band b at observation i.
func (s *Series) Value(b Band, i int) float64 {
	return s.Bands[b][i]
}

// Validate checks the structural invariants of the series.
func (s *Series) Validate() error {
	n := len(s.Dates)
	if n == 0 {
		return &InputError{Field: "dates", Reason: "series is empty"}
	}
	if len(s.Quality) != n {
		return &InputError{Field: "quality", Reason: fmt.Sprintf("length %d, expected %d", len(s.Quality), n)}
	}
	for b := 0; b < NumBands; b++ {
		if len(s.Bands[b]) != n {
			return &InputError{Field: BandNames[b], Reason: fmt.Sprintf("length %d, expected %d", len(s.Bands[b]), n)}
		}
		for i, v := range s.Bands[b] {
			if math.IsNaN(v) {
				return &InputError{Field: BandNames[b], Index: i, Reason: "value is NaN"}
			}
		}
	}
	for i, d := range s.Dates {
		if d <= 0 {
			return &InputError{Field: "dates", Index: i, Reason: fmt.Sprintf("ordinal date %d is not positive", d)}
		}
		if i > 0 && d <= s.Dates[i-1] {
			return &InputError{Field: "dates", Index: i, Reason: fmt.Sprintf("date %d does not follow %d", d, s.Dates[i-1])}
		}
	}
	return nil
}

// Select returns the dates and the band values at the given observation indices.
func (s *Series) Select(b Band, idx []int) (dates []int, values []float64) {
	dates = make([]int, len(idx))
	values = make([]float64, len(idx))
	for k, i := range idx {
		dates[k] = s.Dates[i]
		values[k] = s.Bands[b][i]
	}
	return dates, values
}

// DatesAt returns the dates at the given observation indices.
func (s *Series) DatesAt(idx []int) []int {
	dates := make([]int, len(idx))
	for k, i := range idx {
		dates[k] = s.Dates[i]
	}
	return dates
}

// unixEpochOrdinal is the ordinal day number of 1970-01-01.
const unixEpochOrdinal = 719163

// Ordinal converts t to a proleptic Gregorian ordinal day (0001-01-01 is day 1).
func Ordinal(t time.Time) int {
	y, m, d := t.Date()
	days := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
	return int(days) + unixEpochOrdinal
}

// FromOrdinal converts an ordinal day back to a UTC date.
func FromOrdinal(ordinal int) time.Time {
	return time.Unix(int64(ordinal-unixEpochOrdinal)*86400, 0).UTC()
}
