// Package procedure provides the detection policies a series can be run
// under. The quality class of a series selects exactly one of them.
package procedure

import (
	"fmt"

	"github.com/chrissnell/ccdetect/internal/change"
	"github.com/chrissnell/ccdetect/internal/models"
	"github.com/chrissnell/ccdetect/internal/qa"
	"github.com/chrissnell/ccdetect/internal/series"
)

// Curve QA codes stamped on segments.
const (
	CurveQAStandard          = 0
	CurveQAInsufficientClear = 44
	CurveQAPermanentSnow     = 54
)

// Type identifies a procedure
type Type string

const (
	// TypeStandard scans clear and water observations for changes
	TypeStandard Type = "standard"

	// TypePermanentSnow fits a single model over snow, clear and water observations
	TypePermanentSnow Type = "permanent-snow"

	// TypeInsufficientClear fits a single model over clear observations with
	// bright outliers in green removed
	TypeInsufficientClear Type = "insufficient-clear"

	// TypeFill produces no segments
	TypeFill Type = "fill"
)

// Select returns the procedure for a quality class. Every class maps to a
// procedure; an unmapped class is a programming error and panics.
func Select(class qa.Class) change.Procedure {
	switch class {
	case qa.Standard:
		return Standard{}
	case qa.PermanentSnow:
		return PermanentSnow{}
	case qa.InsufficientClear:
		return InsufficientClear{}
	case qa.FillLight:
		return Fill{}
	}
	panic(fmt.Sprintf("procedure: no procedure for quality class %v", class))
}

// ForSeries classifies s and selects its procedure.
func ForSeries(s *series.Series, p change.Params) (change.Procedure, qa.Class, error) {
	class, err := qa.Classify(s.Quality, p.Thresholds())
	if err != nil {
		return nil, class, err
	}
	return Select(class), class, nil
}

// Standard is the full iterative scan.
type Standard struct{}

func (Standard) Name() string { return string(TypeStandard) }

func (Standard) Mask(s *series.Series, p change.Params) []bool {
	return withinRange(qa.ClearMask(s.Quality), s, p)
}

func (Standard) MinObservations(p change.Params) int { return p.MEOWSize }

func (Standard) Mode() change.Mode { return change.ModeScan }

func (Standard) CurveQA() int { return CurveQAStandard }

// PermanentSnow treats snow as usable and fits once.
type PermanentSnow struct{}

func (PermanentSnow) Name() string { return string(TypePermanentSnow) }

func (PermanentSnow) Mask(s *series.Series, p change.Params) []bool {
	return withinRange(qa.SnowOrClearMask(s.Quality), s, p)
}

func (PermanentSnow) MinObservations(p change.Params) int { return p.MEOWSize }

func (PermanentSnow) Mode() change.Mode { return change.ModeSingle }

func (PermanentSnow) CurveQA() int { return CurveQAPermanentSnow }

// InsufficientClear fits once over the clear observations that are not
// unusually bright in green.
type InsufficientClear struct{}

func (InsufficientClear) Name() string { return string(TypeInsufficientClear) }

func (InsufficientClear) Mask(s *series.Series, p change.Params) []bool {
	mask := withinRange(qa.ClearMask(s.Quality), s, p)

	var greens []float64
	for i, ok := range mask {
		if ok {
			greens = append(greens, s.Value(series.Green, i))
		}
	}
	limit := models.Median(greens) + p.GreenMedianOffset
	for i, ok := range mask {
		if ok && s.Value(series.Green, i) >= limit {
			mask[i] = false
		}
	}
	return mask
}

func (InsufficientClear) MinObservations(p change.Params) int { return p.MEOWSize }

func (InsufficientClear) Mode() change.Mode { return change.ModeSingle }

func (InsufficientClear) CurveQA() int { return CurveQAInsufficientClear }

// Fill marks the real acquisitions and produces no segments.
type Fill struct{}

func (Fill) Name() string { return string(TypeFill) }

func (Fill) Mask(s *series.Series, p change.Params) []bool {
	return withinRange(qa.NonFillMask(s.Quality), s, p)
}

func (Fill) MinObservations(p change.Params) int { return p.MEOWSize }

func (Fill) Mode() change.Mode { return change.ModeNone }

func (Fill) CurveQA() int { return CurveQAStandard }

func withinRange(mask []bool, s *series.Series, p change.Params) []bool {
	for i, ok := range mask {
		if ok && !p.InRange(s, i) {
			mask[i] = false
		}
	}
	return mask
}
