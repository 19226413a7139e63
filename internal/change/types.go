// Package change implements continuous change detection over one pixel's
// observation series: it scans time, fits per-band harmonic models to stable
// windows and closes a segment when consecutive observations depart from
// the model in every detection band together.
package change

import (
	"errors"
	"fmt"

	"github.com/chrissnell/ccdetect/internal/models"
	"github.com/chrissnell/ccdetect/internal/series"
)

var (
	// ErrFitFailure is matched by every FitError.
	ErrFitFailure = errors.New("model fit failed")
	// ErrNilFitter is returned when Detect is called without a fitter.
	ErrNilFitter = errors.New("no fitter capability")
	// ErrNilProcedure is returned when Detect is called without a procedure.
	ErrNilProcedure = errors.New("no procedure")
)

// FitError reports a band whose model could not be fit over a window.
type FitError struct {
	Band     series.Band
	StartDay int
	EndDay   int
	Err      error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("fit failed for band %s over [%d, %d]: %v", e.Band, e.StartDay, e.EndDay, e.Err)
}

func (e *FitError) Unwrap() error {
	return e.Err
}

func (e *FitError) Is(target error) bool {
	return target == ErrFitFailure
}

// Mode is how a procedure turns its mask into segments.
type Mode int

const (
	// ModeScan runs the iterative windowed scan.
	ModeScan Mode = iota
	// ModeSingle fits one segment over every masked observation.
	ModeSingle
	// ModeNone produces no segments.
	ModeNone
)

// Procedure is the policy a detection runs under. Implementations live in
// package procedure; the engine only calls these hooks.
type Procedure interface {
	Name() string
	// Mask returns a fresh processing mask for s.
	Mask(s *series.Series, p Params) []bool
	// MinObservations is the masked count below which no segment is produced.
	MinObservations(p Params) int
	Mode() Mode
	// CurveQA is stamped on every segment the procedure produces.
	CurveQA() int
}

// Segment is one stable window and its per-band models.
type Segment struct {
	StartDay int
	EndDay   int
	// BreakDay is the date of the observation that closed the segment, zero
	// when the segment ran to the end of the series.
	BreakDay          int
	ObservationCount  int
	ChangeProbability float64
	NumCoefficients   int
	CurveQA           int
	Models            [series.NumBands]models.FittedModel
	Magnitudes        [series.NumBands]float64
}

// HasBreak reports whether a change closed the segment.
func (s Segment) HasBreak() bool {
	return s.BreakDay != 0
}

// Result is the outcome of one detection.
type Result struct {
	Procedure string
	// Mask marks the observations that were used in fitting.
	Mask     []bool
	Segments []Segment
}
