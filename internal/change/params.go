package change

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/chrissnell/ccdetect/internal/qa"
	"github.com/chrissnell/ccdetect/internal/series"
	"github.com/chrissnell/ccdetect/pkg/config"
)

// Range is an exclusive validity range.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether Min < v < Max.
func (r Range) Contains(v float64) bool {
	return v > r.Min && v < r.Max
}

// Params are the detection parameters with band names resolved and the
// chi-square thresholds computed.
type Params struct {
	MEOWSize     int
	PeekSize     int
	DayDelta     int
	AvgDaysYear  float64
	CoefMin      int
	CoefMid      int
	CoefMax      int
	NumObsFactor int

	ChangeThreshold  float64
	OutlierThreshold float64
	TMaskConst       float64

	DetectionBands []series.Band
	TMaskBands     []series.Band

	RefitGrowth     float64
	VariogramMinGap int

	ClearPct float64
	SnowPct  float64

	ObsRange          Range
	ThermalRange      Range
	GreenMedianOffset float64
}

// NewParams resolves d into engine parameters.
func NewParams(d config.DetectionData) (Params, error) {
	detection, err := series.ParseBands(d.DetectionBands)
	if err != nil {
		return Params{}, fmt.Errorf("detection bands: %w", err)
	}
	if len(detection) == 0 {
		return Params{}, fmt.Errorf("detection bands: none configured")
	}
	tmask, err := series.ParseBands(d.TMaskBands)
	if err != nil {
		return Params{}, fmt.Errorf("tmask bands: %w", err)
	}

	// Squared normalized residuals summed over k bands follow χ²(k).
	chi2 := distuv.ChiSquared{K: float64(len(detection))}

	return Params{
		MEOWSize:          d.MEOWSize,
		PeekSize:          d.PeekSize,
		DayDelta:          d.DayDelta,
		AvgDaysYear:       d.AvgDaysYear,
		CoefMin:           d.CoefMin,
		CoefMid:           d.CoefMid,
		CoefMax:           d.CoefMax,
		NumObsFactor:      d.NumObsFactor,
		ChangeThreshold:   chi2.Quantile(d.ChangeProbability),
		OutlierThreshold:  chi2.Quantile(d.OutlierProbability),
		TMaskConst:        d.TMaskConst,
		DetectionBands:    detection,
		TMaskBands:        tmask,
		RefitGrowth:       d.RefitGrowth,
		VariogramMinGap:   d.VariogramMinGap,
		ClearPct:          d.ClearPctThreshold,
		SnowPct:           d.SnowPctThreshold,
		ObsRange:          Range{Min: d.ObsRange.Min, Max: d.ObsRange.Max},
		ThermalRange:      Range{Min: d.ThermalRange.Min, Max: d.ThermalRange.Max},
		GreenMedianOffset: d.GreenMedianOffset,
	}, nil
}

// DefaultParams resolves config.DefaultDetection.
func DefaultParams() Params {
	p, err := NewParams(config.DefaultDetection())
	if err != nil {
		panic(fmt.Sprintf("default detection parameters are invalid: %v", err))
	}
	return p
}

// Thresholds returns the quality classification thresholds.
func (p Params) Thresholds() qa.Thresholds {
	return qa.Thresholds{
		MinObservations: p.MEOWSize,
		ClearPct:        p.ClearPct,
		SnowPct:         p.SnowPct,
	}
}

// NumCoefficients picks the model size for a window of n observations.
func (p Params) NumCoefficients(n int) int {
	switch {
	case n < p.CoefMid*p.NumObsFactor:
		return p.CoefMin
	case n < p.CoefMax*p.NumObsFactor:
		return p.CoefMid
	}
	return p.CoefMax
}

// InRange reports whether every band of observation i is within its valid range.
func (p Params) InRange(s *series.Series, i int) bool {
	for b := series.Band(0); b < series.NumBands; b++ {
		r := p.ObsRange
		if b == series.Thermal {
			r = p.ThermalRange
		}
		if !r.Contains(s.Value(b, i)) {
			return false
		}
	}
	return true
}
