package change

import (
	"math"

	"go.uber.org/zap"

	"github.com/chrissnell/ccdetect/internal/log"
	"github.com/chrissnell/ccdetect/internal/models"
	"github.com/chrissnell/ccdetect/internal/series"
)

const (
	// tmaskIterations bounds the IRLS loop of the outlier screen.
	tmaskIterations = 5
	// minNormalizer keeps residual normalization finite on flat bands.
	minNormalizer = 1.0
)

// Detect runs proc over s and returns the segments it finds. The series is
// validated first; s is never modified.
func Detect(s *series.Series, proc Procedure, fitter models.Fitter, p Params, logger *zap.SugaredLogger) (*Result, error) {
	if fitter == nil {
		return nil, ErrNilFitter
	}
	if proc == nil {
		return nil, ErrNilProcedure
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	logger = log.OrNop(logger)

	d := &detector{
		s:       s,
		p:       p,
		fitter:  fitter,
		logger:  logger,
		mask:    proc.Mask(s, p),
		curveQA: proc.CurveQA(),
	}
	result := &Result{Procedure: proc.Name(), Mask: d.mask}

	count := len(d.included(0, s.Len()))
	if proc.Mode() == ModeNone || count < proc.MinObservations(p) {
		logger.Debugf("procedure %s: %d usable observations, no segments", proc.Name(), count)
		return result, nil
	}

	var err error
	switch proc.Mode() {
	case ModeSingle:
		result.Segments, err = d.single()
	default:
		result.Segments, err = d.scan()
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// window is a half-open range of series indices; only masked-in
// observations inside it belong to the model.
type window struct {
	start int
	stop  int
}

// fit is the set of per-band models for one window.
type fit struct {
	models   [series.NumBands]models.FittedModel
	numCoefs int
	count    int
}

type detector struct {
	s       *series.Series
	p       Params
	fitter  models.Fitter
	logger  *zap.SugaredLogger
	mask    []bool
	vario   [series.NumBands]float64
	curveQA int
}

func (d *detector) date(i int) int {
	return d.s.Dates[i]
}

// included lists the masked-in indices in [start, stop).
func (d *detector) included(start, stop int) []int {
	idx := make([]int, 0, stop-start)
	for i := start; i < stop; i++ {
		if d.mask[i] {
			idx = append(idx, i)
		}
	}
	return idx
}

// next lists up to k masked-in indices at or after from.
func (d *detector) next(from, k int) []int {
	idx := make([]int, 0, k)
	for i := from; i < len(d.mask) && len(idx) < k; i++ {
		if d.mask[i] {
			idx = append(idx, i)
		}
	}
	return idx
}

// previous lists up to k masked-in indices in [floor, before), nearest first.
func (d *detector) previous(floor, before, k int) []int {
	idx := make([]int, 0, k)
	for i := before - 1; i >= floor && len(idx) < k; i-- {
		if d.mask[i] {
			idx = append(idx, i)
		}
	}
	return idx
}

func (d *detector) fitAll(idx []int, numCoefs int) (fit, error) {
	dates := d.s.DatesAt(idx)
	X := models.CoefficientMatrix(dates, numCoefs, d.p.AvgDaysYear)
	f := fit{numCoefs: numCoefs, count: len(idx)}
	for b := series.Band(0); b < series.NumBands; b++ {
		_, y := d.s.Select(b, idx)
		m, err := d.fitter.Fit(X, y)
		if err != nil {
			return fit{}, &FitError{Band: b, StartDay: dates[0], EndDay: dates[len(dates)-1], Err: err}
		}
		f.models[b] = m
	}
	return f, nil
}

func (d *detector) normalizer(b series.Band, m models.FittedModel) float64 {
	return math.Max(math.Max(d.vario[b], m.RMSE), minNormalizer)
}

func (d *detector) residual(f fit, b series.Band, i int) float64 {
	row := models.DesignRow(d.date(i), f.numCoefs, d.p.AvgDaysYear)
	return d.s.Value(b, i) - f.models[b].Predict(row)
}

// magnitude is the squared normalized residual of observation i summed over
// the detection bands.
func (d *detector) magnitude(f fit, i int) float64 {
	var sum float64
	for _, b := range d.p.DetectionBands {
		r := d.residual(f, b, i) / d.normalizer(b, f.models[b])
		sum += r * r
	}
	return sum
}

func (d *detector) magnitudes(f fit, idx []int) []float64 {
	mags := make([]float64, len(idx))
	for k, i := range idx {
		mags[k] = d.magnitude(f, i)
	}
	return mags
}

// stable compares the window's drift and edge residuals to the change
// threshold. idx must be the indices f was fit over.
func (d *detector) stable(f fit, idx []int) bool {
	first, last := idx[0], idx[len(idx)-1]
	span := float64(d.date(last) - d.date(first))
	var sum float64
	for _, b := range d.p.DetectionBands {
		m := f.models[b]
		edges := math.Abs(d.residual(f, b, first)) + math.Abs(d.residual(f, b, last))
		check := (math.Abs(m.Slope()*span) + edges) / d.normalizer(b, m)
		sum += check * check
	}
	return sum < d.p.ChangeThreshold
}

// tmask returns the window indices whose robust residual exceeds
// TMaskConst variograms in any screening band.
func (d *detector) tmask(idx []int) ([]int, error) {
	if len(d.p.TMaskBands) == 0 || len(idx) <= 4 {
		return nil, nil
	}
	dates := d.s.DatesAt(idx)
	X := models.TMaskMatrix(dates, d.p.AvgDaysYear)
	flagged := make([]bool, len(idx))
	for _, b := range d.p.TMaskBands {
		if d.vario[b] <= 0 {
			continue
		}
		_, y := d.s.Select(b, idx)
		m, err := models.RobustFit(X, y, tmaskIterations)
		if err != nil {
			return nil, &FitError{Band: b, StartDay: dates[0], EndDay: dates[len(dates)-1], Err: err}
		}
		limit := d.p.TMaskConst * d.vario[b]
		for k, r := range m.Residuals {
			if math.Abs(r) > limit {
				flagged[k] = true
			}
		}
	}
	var out []int
	for k, ok := range flagged {
		if ok {
			out = append(out, idx[k])
		}
	}
	return out, nil
}

// initialize finds the first stable window starting at or after from. It
// reports false when the remaining observations cannot form one.
func (d *detector) initialize(from int) (window, fit, bool, error) {
	n := d.s.Len()
	startPos := 0
	for {
		idx := d.included(from, n)
		if startPos+d.p.MEOWSize > len(idx) {
			return window{}, fit{}, false, nil
		}

		endPos := startPos + d.p.MEOWSize
		for endPos <= len(idx) && d.date(idx[endPos-1])-d.date(idx[startPos]) < d.p.DayDelta {
			endPos++
		}
		if endPos > len(idx) {
			return window{}, fit{}, false, nil
		}
		win := idx[startPos:endPos]

		outliers, err := d.tmask(win)
		if err != nil {
			return window{}, fit{}, false, err
		}
		if len(outliers) > 0 {
			for _, i := range outliers {
				d.mask[i] = false
			}
			d.logger.Debugf("initialize: screened %d outliers in [%d, %d]", len(outliers), d.date(win[0]), d.date(win[len(win)-1]))
			continue
		}

		f, err := d.fitAll(win, d.p.CoefMin)
		if err != nil {
			return window{}, fit{}, false, err
		}
		if !d.stable(f, win) {
			startPos++
			continue
		}

		d.logger.Debugf("initialize: stable window [%d, %d] with %d observations", d.date(win[0]), d.date(win[len(win)-1]), len(win))
		return window{start: win[0], stop: win[len(win)-1] + 1}, f, true, nil
	}
}

// lookback extends w towards floor while earlier observations agree with f.
func (d *detector) lookback(w window, f fit, floor int) window {
	for {
		peek := d.previous(floor, w.start, d.p.PeekSize)
		if len(peek) == 0 {
			return w
		}
		mags := d.magnitudes(f, peek)
		if allExceed(mags, d.p.ChangeThreshold) {
			return w
		}
		if mags[0] > d.p.OutlierThreshold {
			d.mask[peek[0]] = false
			continue
		}
		w.start = peek[0]
	}
}

// lookforward grows w until a change is confirmed or the series ends. The
// returned bool reports whether a change closed the segment; the returned
// window is the final extent of the segment.
func (d *detector) lookforward(w window) (Segment, window, bool, error) {
	var (
		f      fit
		fitted bool
		err    error
	)
	for {
		win := d.included(w.start, w.stop)
		if !fitted || d.needsRefit(len(win), f.count) {
			f, err = d.fitAll(win, d.p.NumCoefficients(len(win)))
			if err != nil {
				return Segment{}, w, false, err
			}
			fitted = true
		}

		peek := d.next(w.stop, d.p.PeekSize)
		if len(peek) < d.p.PeekSize {
			seg, err := d.tail(w, f, peek)
			return seg, w, false, err
		}

		mags := d.magnitudes(f, peek)
		if allExceed(mags, d.p.ChangeThreshold) {
			var medians [series.NumBands]float64
			for b := series.Band(0); b < series.NumBands; b++ {
				res := make([]float64, len(peek))
				for k, i := range peek {
					res[k] = d.residual(f, b, i)
				}
				medians[b] = models.Median(res)
			}
			if f.count != len(win) {
				if f, err = d.fitAll(win, d.p.NumCoefficients(len(win))); err != nil {
					return Segment{}, w, false, err
				}
			}
			d.logger.Debugf("change at %d after window [%d, %d]", d.date(peek[0]), d.date(win[0]), d.date(win[len(win)-1]))
			seg := d.segment(win, f, d.date(peek[0]), 1, medians)
			return seg, window{start: w.start, stop: peek[0]}, true, nil
		}

		if mags[0] > d.p.OutlierThreshold {
			d.mask[peek[0]] = false
			continue
		}
		w.stop = peek[0] + 1
	}
}

// tail closes the final segment when fewer than PeekSize observations
// remain after w.
func (d *detector) tail(w window, f fit, rest []int) (Segment, error) {
	var prob float64
	if len(rest) > 0 {
		mags := d.magnitudes(f, rest)
		exceed := 0
		for k, i := range rest {
			if mags[k] > d.p.ChangeThreshold {
				exceed++
			}
			if mags[k] > d.p.OutlierThreshold {
				d.mask[i] = false
				continue
			}
			w.stop = i + 1
		}
		prob = float64(exceed) / float64(d.p.PeekSize)
	}

	win := d.included(w.start, w.stop)
	if len(win) != f.count {
		var err error
		if f, err = d.fitAll(win, d.p.NumCoefficients(len(win))); err != nil {
			return Segment{}, err
		}
	}
	return d.segment(win, f, 0, prob, [series.NumBands]float64{}), nil
}

func (d *detector) needsRefit(n, last int) bool {
	if n == last {
		return false
	}
	if n < d.p.CoefMax*d.p.NumObsFactor {
		return true
	}
	return float64(n) >= float64(last)*d.p.RefitGrowth
}

// catch fits a single segment over the masked-in observations of
// [start, stop) that no stable window claimed. Runs shorter than PeekSize
// are left unmodeled.
func (d *detector) catch(start, stop, breakDay int) (*Segment, error) {
	idx := d.included(start, stop)
	if len(idx) < d.p.PeekSize {
		return nil, nil
	}
	return d.fitSegment(idx, breakDay)
}

func (d *detector) fitSegment(idx []int, breakDay int) (*Segment, error) {
	if len(idx) == 0 {
		return nil, nil
	}
	f, err := d.fitAll(idx, d.p.CoefMin)
	if err != nil {
		return nil, err
	}
	seg := d.segment(idx, f, breakDay, 0, [series.NumBands]float64{})
	return &seg, nil
}

// single fits one segment over every masked-in observation.
func (d *detector) single() ([]Segment, error) {
	seg, err := d.fitSegment(d.included(0, d.s.Len()), 0)
	if err != nil || seg == nil {
		return nil, err
	}
	return []Segment{*seg}, nil
}

func (d *detector) scan() ([]Segment, error) {
	n := d.s.Len()
	d.vario = Variogram(d.s, d.mask, d.p.VariogramMinGap)

	var segments []Segment
	prevEnd := 0
	for prevEnd < n {
		w, f, ok, err := d.initialize(prevEnd)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		if w.start > prevEnd {
			w = d.lookback(w, f, prevEnd)
			if w.start > prevEnd {
				seg, err := d.catch(prevEnd, w.start, d.date(w.start))
				if err != nil {
					return nil, err
				}
				if seg != nil {
					segments = append(segments, *seg)
				}
			}
		}

		seg, extent, closed, err := d.lookforward(w)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
		if !closed {
			prevEnd = n
			break
		}
		prevEnd = extent.stop
	}

	if prevEnd < n {
		seg, err := d.catch(prevEnd, n, 0)
		if err != nil {
			return nil, err
		}
		if seg != nil {
			segments = append(segments, *seg)
		}
	}
	return segments, nil
}

func (d *detector) segment(idx []int, f fit, breakDay int, prob float64, mags [series.NumBands]float64) Segment {
	seg := Segment{
		StartDay:          d.date(idx[0]),
		EndDay:            d.date(idx[len(idx)-1]),
		BreakDay:          breakDay,
		ObservationCount:  len(idx),
		ChangeProbability: prob,
		NumCoefficients:   f.numCoefs,
		CurveQA:           d.curveQA,
		Magnitudes:        mags,
	}
	for b, m := range f.models {
		m.Residuals = nil
		seg.Models[b] = m
	}
	return seg
}

func allExceed(mags []float64, threshold float64) bool {
	for _, m := range mags {
		if m <= threshold {
			return false
		}
	}
	return len(mags) > 0
}
