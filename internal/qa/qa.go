// Package qa classifies per-observation quality flags and derives the
// observation masks the detection procedures start from.
package qa

import (
	"errors"
	"fmt"
)

// Fixed QA vocabulary.
const (
	Clear  = 0
	Water  = 1
	Shadow = 2
	Snow   = 3
	Cloud  = 4
	Fill   = 255
)

// ErrInvalidQualityCode is matched by every InvalidQualityCodeError.
var ErrInvalidQualityCode = errors.New("invalid quality code")

// InvalidQualityCodeError reports a flag outside the QA vocabulary.
type InvalidQualityCodeError struct {
	Index int
	Value int
}

func (e *InvalidQualityCodeError) Error() string {
	return fmt.Sprintf("invalid quality code %d at observation %d", e.Value, e.Index)
}

func (e *InvalidQualityCodeError) Is(target error) bool {
	return target == ErrInvalidQualityCode
}

// Valid reports whether code belongs to the QA vocabulary.
func Valid(code int) bool {
	switch code {
	case Clear, Water, Shadow, Snow, Cloud, Fill:
		return true
	}
	return false
}

// Check rejects any flag outside the vocabulary.
func Check(flags []int) error {
	for i, f := range flags {
		if !Valid(f) {
			return &InvalidQualityCodeError{Index: i, Value: f}
		}
	}
	return nil
}

// Counts tallies flags by category.
type Counts struct {
	Total  int
	Clear  int
	Water  int
	Shadow int
	Snow   int
	Cloud  int
	Fill   int
}

// NonFill is the number of real acquisitions.
func (c Counts) NonFill() int {
	return c.Total - c.Fill
}

// ClearEquivalent counts observations usable by the standard procedure.
func (c Counts) ClearEquivalent() int {
	return c.Clear + c.Water
}

// ClearFraction is the clear-equivalent share of non-fill observations.
func (c Counts) ClearFraction() float64 {
	if c.NonFill() == 0 {
		return 0
	}
	return float64(c.ClearEquivalent()) / float64(c.NonFill())
}

// SnowFraction is the snow share of clear, water and snow observations.
func (c Counts) SnowFraction() float64 {
	d := c.Clear + c.Water + c.Snow
	if d == 0 {
		return 0
	}
	return float64(c.Snow) / float64(d)
}

// Count tallies the flag series. It fails on the first unknown code.
func Count(flags []int) (Counts, error) {
	c := Counts{Total: len(flags)}
	for i, f := range flags {
		switch f {
		case Clear:
			c.Clear++
		case Water:
			c.Water++
		case Shadow:
			c.Shadow++
		case Snow:
			c.Snow++
		case Cloud:
			c.Cloud++
		case Fill:
			c.Fill++
		default:
			return Counts{}, &InvalidQualityCodeError{Index: i, Value: f}
		}
	}
	return c, nil
}

// ClearMask is true for clear and water observations.
func ClearMask(flags []int) []bool {
	return maskOf(flags, func(f int) bool { return f == Clear || f == Water })
}

// SnowOrClearMask is true for clear, water and snow observations.
func SnowOrClearMask(flags []int) []bool {
	return maskOf(flags, func(f int) bool { return f == Clear || f == Water || f == Snow })
}

// NonFillMask is true for every observation that is not fill.
func NonFillMask(flags []int) []bool {
	return maskOf(flags, func(f int) bool { return f != Fill })
}

func maskOf(flags []int, keep func(int) bool) []bool {
	mask := make([]bool, len(flags))
	for i, f := range flags {
		mask[i] = keep(f)
	}
	return mask
}
