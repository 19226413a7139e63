package change

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/chrissnell/ccdetect/internal/models"
	"github.com/chrissnell/ccdetect/internal/qa"
	"github.com/chrissnell/ccdetect/internal/series"
	"github.com/chrissnell/ccdetect/pkg/config"
)

const (
	firstDate = 730120
	step      = 32
)

type bandShape struct {
	base, amp, phase float64
}

var shapes = [series.NumBands]bandShape{
	series.Red:     {2500, 1000, 0.3},
	series.Green:   {2500, 1000, 0.8},
	series.Blue:    {2000, 800, 1.1},
	series.NIR:     {4000, 1500, 0},
	series.SWIR1:   {3000, 1200, 0.5},
	series.SWIR2:   {2500, 1000, 1.4},
	series.Thermal: {2900, 500, 0.2},
}

// seasonalSeries builds n clear observations, 32 days apart, each band a
// single annual harmonic.
func seasonalSeries(n int) *series.Series {
	s := &series.Series{
		Dates:   make([]int, n),
		Quality: make([]int, n),
	}
	w := 2 * math.Pi / 365.2425
	for b := range s.Bands {
		s.Bands[b] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		d := firstDate + step*i
		s.Dates[i] = d
		s.Quality[i] = qa.Clear
		for b, sh := range shapes {
			s.Bands[b][i] = sh.base + sh.amp*math.Sin(w*float64(d)+sh.phase)
		}
	}
	return s
}

func shift(s *series.Series, b series.Band, from, to int, delta float64) {
	for i := from; i < to; i++ {
		s.Bands[b][i] += delta
	}
}

type clearProcedure struct {
	mode Mode
}

func (clearProcedure) Name() string { return "test-clear" }

func (clearProcedure) Mask(s *series.Series, _ Params) []bool { return qa.ClearMask(s.Quality) }

func (clearProcedure) MinObservations(p Params) int { return p.MEOWSize }

func (c clearProcedure) Mode() Mode { return c.mode }

func (clearProcedure) CurveQA() int { return 7 }

type failingFitter struct{}

func (failingFitter) Fit(*mat.Dense, []float64) (models.FittedModel, error) {
	return models.FittedModel{}, models.ErrSingular
}

// bareFitter reports only coefficients, intercept and RMSE.
type bareFitter struct {
	models.Fitter
}

func (f bareFitter) Fit(X *mat.Dense, y []float64) (models.FittedModel, error) {
	m, err := f.Fitter.Fit(X, y)
	m.Residuals = nil
	return m, err
}

func lasso(t *testing.T) models.Fitter {
	t.Helper()
	f, err := models.NewLasso(models.Options{Alpha: 20})
	require.NoError(t, err)
	return f
}

func TestNewParams(t *testing.T) {
	p := DefaultParams()
	assert.InDelta(t, 15.0863, p.ChangeThreshold, 1e-3)
	assert.InDelta(t, 20.5150, p.OutlierThreshold, 1e-3)
	assert.Equal(t, []series.Band{series.Green, series.Red, series.NIR, series.SWIR1, series.SWIR2}, p.DetectionBands)
	assert.Equal(t, []series.Band{series.Green, series.SWIR1}, p.TMaskBands)

	assert.Equal(t, 4, p.NumCoefficients(12))
	assert.Equal(t, 4, p.NumCoefficients(17))
	assert.Equal(t, 6, p.NumCoefficients(18))
	assert.Equal(t, 6, p.NumCoefficients(23))
	assert.Equal(t, 8, p.NumCoefficients(24))

	th := p.Thresholds()
	assert.Equal(t, 12, th.MinObservations)
	assert.Equal(t, 0.25, th.ClearPct)

	d := config.DefaultDetection()
	d.DetectionBands = []string{"green", "nir"}
	p, err := NewParams(d)
	require.NoError(t, err)
	assert.InDelta(t, 9.2103, p.ChangeThreshold, 1e-3)

	d.DetectionBands = []string{"green", "uv"}
	_, err = NewParams(d)
	assert.Error(t, err)

	d = config.DefaultDetection()
	d.DetectionBands = nil
	_, err = NewParams(d)
	assert.Error(t, err)
}

func TestRangeAndInRange(t *testing.T) {
	r := Range{Min: 0, Max: 10}
	assert.True(t, r.Contains(5))
	assert.False(t, r.Contains(0))
	assert.False(t, r.Contains(10))

	p := DefaultParams()
	s := seasonalSeries(2)
	assert.True(t, p.InRange(s, 0))
	s.Bands[series.Thermal][1] = 8000
	assert.False(t, p.InRange(s, 1))
	s.Bands[series.Thermal][1] = -50
	assert.True(t, p.InRange(s, 1))
	s.Bands[series.Blue][1] = -50
	assert.False(t, p.InRange(s, 1))
}

func TestVariogram(t *testing.T) {
	s := &series.Series{
		Dates:   []int{100, 140, 150, 200, 260},
		Quality: []int{0, 0, 0, 0, 0},
	}
	for b := range s.Bands {
		s.Bands[b] = []float64{0, 10, 1000, 30, 0}
	}
	mask := []bool{true, true, true, true, true}

	// Gaps over 30 days: 100->140, 150->200, 200->260.
	v := Variogram(s, mask, 30)
	assert.Equal(t, 30.0, v[series.Red])

	// Without the third observation every gap qualifies.
	mask[2] = false
	v = Variogram(s, mask, 30)
	assert.Equal(t, 20.0, v[series.NIR])

	// No gap is wide enough, so all pairs are used.
	v = Variogram(s, []bool{true, true, true, false, false}, 100)
	assert.Equal(t, 500.0, v[series.Green])

	v = Variogram(s, []bool{true, false, false, false, false}, 30)
	assert.Equal(t, [series.NumBands]float64{}, v)
}

func TestDetectStableSeries(t *testing.T) {
	s := seasonalSeries(24)
	s.Quality[5] = qa.Cloud

	res, err := Detect(s, clearProcedure{}, lasso(t), DefaultParams(), nil)
	require.NoError(t, err)
	assert.Equal(t, "test-clear", res.Procedure)
	require.Len(t, res.Segments, 1)

	seg := res.Segments[0]
	assert.Equal(t, s.Dates[0], seg.StartDay)
	assert.Equal(t, s.Dates[23], seg.EndDay)
	assert.False(t, seg.HasBreak())
	assert.Equal(t, 23, seg.ObservationCount)
	assert.Equal(t, 0.0, seg.ChangeProbability)
	assert.Equal(t, 7, seg.CurveQA)
	assert.Equal(t, 6, seg.NumCoefficients)
	assert.Len(t, seg.Models[series.NIR].Coefficients, 5)
	for _, m := range seg.Models {
		assert.Nil(t, m.Residuals)
	}

	assert.False(t, res.Mask[5])
	assert.True(t, res.Mask[6])
}

func TestDetectBreak(t *testing.T) {
	s := seasonalSeries(36)
	shift(s, series.NIR, 18, 36, 4000)

	res, err := Detect(s, clearProcedure{}, lasso(t), DefaultParams(), nil)
	require.NoError(t, err)
	require.Len(t, res.Segments, 2)

	first, second := res.Segments[0], res.Segments[1]
	assert.Equal(t, s.Dates[0], first.StartDay)
	assert.Equal(t, s.Dates[17], first.EndDay)
	assert.Equal(t, s.Dates[18], first.BreakDay)
	assert.Equal(t, 18, first.ObservationCount)
	assert.Equal(t, 1.0, first.ChangeProbability)
	assert.InDelta(t, 4000, first.Magnitudes[series.NIR], 400)
	assert.InDelta(t, 0, first.Magnitudes[series.Red], 400)

	assert.Equal(t, s.Dates[18], second.StartDay)
	assert.Equal(t, s.Dates[35], second.EndDay)
	assert.False(t, second.HasBreak())
	assert.Equal(t, 18, second.ObservationCount)

	assert.Less(t, first.EndDay, second.StartDay)
	for _, ok := range res.Mask {
		assert.True(t, ok)
	}
}

func TestDetectBreakNearEnd(t *testing.T) {
	s := seasonalSeries(24)
	shift(s, series.NIR, 18, 24, 4000)

	res, err := Detect(s, clearProcedure{}, lasso(t), DefaultParams(), nil)
	require.NoError(t, err)
	require.Len(t, res.Segments, 2)

	first, second := res.Segments[0], res.Segments[1]
	assert.Equal(t, s.Dates[0], first.StartDay)
	assert.Equal(t, s.Dates[17], first.EndDay)
	assert.Equal(t, s.Dates[18], first.BreakDay)
	assert.Equal(t, 18, first.ObservationCount)
	assert.Equal(t, 1.0, first.ChangeProbability)
	assert.InDelta(t, 4000, first.Magnitudes[series.NIR], 400)

	assert.Equal(t, s.Dates[18], second.StartDay)
	assert.Equal(t, s.Dates[23], second.EndDay)
	assert.False(t, second.HasBreak())
	assert.Equal(t, 6, second.ObservationCount)
	assert.Equal(t, 4, second.NumCoefficients)
}

func TestDetectWithoutFitterResiduals(t *testing.T) {
	for _, tt := range []struct {
		name string
		s    *series.Series
	}{
		{"stable", seasonalSeries(24)},
		{"break", func() *series.Series {
			s := seasonalSeries(36)
			shift(s, series.NIR, 18, 36, 4000)
			return s
		}()},
	} {
		t.Run(tt.name, func(t *testing.T) {
			want, err := Detect(tt.s, clearProcedure{}, lasso(t), DefaultParams(), nil)
			require.NoError(t, err)

			got, err := Detect(tt.s, clearProcedure{}, bareFitter{lasso(t)}, DefaultParams(), nil)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("detection differs without residuals (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetectDropsOutlier(t *testing.T) {
	s := seasonalSeries(36)
	shift(s, series.NIR, 20, 21, 4000)

	res, err := Detect(s, clearProcedure{}, lasso(t), DefaultParams(), nil)
	require.NoError(t, err)
	require.Len(t, res.Segments, 1)

	seg := res.Segments[0]
	assert.Equal(t, s.Dates[0], seg.StartDay)
	assert.Equal(t, s.Dates[35], seg.EndDay)
	assert.False(t, seg.HasBreak())
	assert.Equal(t, 35, seg.ObservationCount)
	assert.False(t, res.Mask[20])
}

func TestDetectCatchesLeadingObservations(t *testing.T) {
	s := seasonalSeries(30)
	shift(s, series.NIR, 0, 6, 5000)

	res, err := Detect(s, clearProcedure{}, models.OLS{}, DefaultParams(), nil)
	require.NoError(t, err)
	require.Len(t, res.Segments, 2)

	lead, main := res.Segments[0], res.Segments[1]
	assert.Equal(t, s.Dates[0], lead.StartDay)
	assert.Equal(t, s.Dates[5], lead.EndDay)
	assert.Equal(t, s.Dates[6], lead.BreakDay)
	assert.Equal(t, 6, lead.ObservationCount)
	assert.Equal(t, 4, lead.NumCoefficients)

	assert.Equal(t, s.Dates[6], main.StartDay)
	assert.Equal(t, s.Dates[29], main.EndDay)
	assert.False(t, main.HasBreak())
	assert.Equal(t, 24, main.ObservationCount)
}

func TestDetectLeavesShortLeadUnmodeled(t *testing.T) {
	s := seasonalSeries(30)
	shift(s, series.NIR, 0, 3, 5000)

	res, err := Detect(s, clearProcedure{}, models.OLS{}, DefaultParams(), nil)
	require.NoError(t, err)
	require.Len(t, res.Segments, 1)

	seg := res.Segments[0]
	assert.Equal(t, s.Dates[3], seg.StartDay)
	assert.Equal(t, s.Dates[29], seg.EndDay)
	assert.False(t, seg.HasBreak())
	assert.Equal(t, 27, seg.ObservationCount)
	for i := 0; i < 3; i++ {
		assert.True(t, res.Mask[i])
	}
}

func TestDetectTooFewObservations(t *testing.T) {
	s := seasonalSeries(20)
	for i := 0; i < 10; i++ {
		s.Quality[i] = qa.Cloud
	}

	res, err := Detect(s, clearProcedure{}, lasso(t), DefaultParams(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Segments)
	assert.Equal(t, qa.ClearMask(s.Quality), res.Mask)
}

func TestDetectModes(t *testing.T) {
	s := seasonalSeries(24)

	res, err := Detect(s, clearProcedure{mode: ModeSingle}, lasso(t), DefaultParams(), nil)
	require.NoError(t, err)
	require.Len(t, res.Segments, 1)
	seg := res.Segments[0]
	assert.Equal(t, s.Dates[0], seg.StartDay)
	assert.Equal(t, s.Dates[23], seg.EndDay)
	assert.Equal(t, 24, seg.ObservationCount)
	assert.Equal(t, 4, seg.NumCoefficients)
	assert.False(t, seg.HasBreak())

	res, err = Detect(s, clearProcedure{mode: ModeNone}, lasso(t), DefaultParams(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Segments)
	assert.Len(t, res.Mask, 24)
}

func TestDetectErrors(t *testing.T) {
	s := seasonalSeries(24)

	_, err := Detect(s, clearProcedure{}, nil, DefaultParams(), nil)
	assert.ErrorIs(t, err, ErrNilFitter)

	_, err = Detect(s, nil, lasso(t), DefaultParams(), nil)
	assert.ErrorIs(t, err, ErrNilProcedure)

	bad := seasonalSeries(24)
	bad.Dates[3] = bad.Dates[2]
	_, err = Detect(bad, clearProcedure{}, lasso(t), DefaultParams(), nil)
	assert.ErrorIs(t, err, series.ErrInvalidInput)

	_, err = Detect(s, clearProcedure{}, failingFitter{}, DefaultParams(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFitFailure)
	assert.ErrorIs(t, err, models.ErrSingular)
	var fe *FitError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, series.Red, fe.Band)
	assert.Equal(t, s.Dates[0], fe.StartDay)
}

func TestDetectDeterministic(t *testing.T) {
	s := seasonalSeries(36)
	shift(s, series.NIR, 18, 36, 4000)

	a, err := Detect(s, clearProcedure{}, lasso(t), DefaultParams(), nil)
	require.NoError(t, err)
	b, err := Detect(s, clearProcedure{}, lasso(t), DefaultParams(), nil)
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("repeated detection differs (-first +second):\n%s", diff)
	}
}
