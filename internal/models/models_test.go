package models

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const avgDaysYear = 365.2425

func seasonalDates(n, step int) []int {
	dates := make([]int, n)
	for i := range dates {
		dates[i] = 730120 + step*i
	}
	return dates
}

func seasonal(dates []int, base, amp, slope float64) []float64 {
	w := 2 * math.Pi / avgDaysYear
	y := make([]float64, len(dates))
	for i, d := range dates {
		t := float64(d)
		y[i] = base + amp*math.Cos(w*t) + 0.5*amp*math.Sin(w*t) + slope*(t-float64(dates[0]))
	}
	return y
}

func TestDesignRow(t *testing.T) {
	row := DesignRow(730000, 8, avgDaysYear)
	require.Len(t, row, 7)
	w := 2 * math.Pi / avgDaysYear
	assert.Equal(t, 730000.0, row[0])
	assert.InDelta(t, math.Cos(w*730000), row[1], 1e-12)
	assert.InDelta(t, math.Sin(w*730000), row[2], 1e-12)
	assert.InDelta(t, math.Cos(2*w*730000), row[3], 1e-12)
	assert.InDelta(t, math.Sin(3*w*730000), row[6], 1e-12)

	assert.Len(t, DesignRow(730000, 4, avgDaysYear), 3)
	assert.Len(t, DesignRow(730000, 6, avgDaysYear), 5)

	X := CoefficientMatrix(seasonalDates(10, 16), 6, avgDaysYear)
	r, c := X.Dims()
	assert.Equal(t, 10, r)
	assert.Equal(t, 5, c)
	assert.Nil(t, CoefficientMatrix(nil, 4, avgDaysYear))
}

func TestOLSRecoversExactModel(t *testing.T) {
	dates := seasonalDates(30, 16)
	y := seasonal(dates, 1500, 400, 0.2)
	X := CoefficientMatrix(dates, 4, avgDaysYear)

	m, err := OLS{}.Fit(X, y)
	require.NoError(t, err)
	require.Len(t, m.Coefficients, 3)
	assert.InDelta(t, 0.2, m.Slope(), 1e-6)
	assert.InDelta(t, 400, m.Coefficients[1], 1e-4)
	assert.InDelta(t, 200, m.Coefficients[2], 1e-4)
	assert.Less(t, m.RMSE, 1e-6)
	assert.Len(t, m.Residuals, 30)

	row := DesignRow(dates[5], 4, avgDaysYear)
	assert.InDelta(t, y[5], m.Predict(row), 1e-6)
}

func TestOLSUnderdetermined(t *testing.T) {
	dates := seasonalDates(3, 16)
	_, err := OLS{}.Fit(CoefficientMatrix(dates, 8, avgDaysYear), seasonal(dates, 1, 1, 0))
	assert.True(t, errors.Is(err, ErrUnderdetermined))
}

func TestLassoShrinksTowardsOLS(t *testing.T) {
	dates := seasonalDates(40, 16)
	y := seasonal(dates, 2000, 800, 0)
	X := CoefficientMatrix(dates, 4, avgDaysYear)

	lasso, err := NewLasso(Options{Alpha: 20})
	require.NoError(t, err)
	m, err := lasso.Fit(X, y)
	require.NoError(t, err)

	// Harmonic coefficients shrink by roughly 2·Alpha but keep their sign.
	assert.InDelta(t, 800, m.Coefficients[1], 80)
	assert.Less(t, m.Coefficients[1], 800.0)
	assert.InDelta(t, 400, m.Coefficients[2], 80)
	assert.Less(t, m.RMSE, 100.0)

	zero, err := NewLasso(Options{Alpha: 0, MaxIter: 10000, Tol: 1e-10})
	require.NoError(t, err)
	exact, err := zero.Fit(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 800, exact.Coefficients[1], 1e-2)
	assert.Less(t, exact.RMSE, 1e-2)
}

func TestLassoDegenerateInputs(t *testing.T) {
	lasso, err := NewLasso(Options{Alpha: 20})
	require.NoError(t, err)

	// One observation: centered columns vanish, the intercept carries the value.
	X := CoefficientMatrix([]int{730000}, 4, avgDaysYear)
	m, err := lasso.Fit(X, []float64{1234})
	require.NoError(t, err)
	assert.Equal(t, 1234.0, m.Intercept)
	assert.Equal(t, []float64{0, 0, 0}, m.Coefficients)
	assert.Zero(t, m.RMSE)

	_, err = lasso.Fit(X, []float64{1, 2})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	_, err = NewLasso(Options{Alpha: -1})
	assert.Error(t, err)
}

func TestLassoNotConverged(t *testing.T) {
	dates := seasonalDates(40, 16)
	y := seasonal(dates, 2000, 800, 1)
	lasso := Lasso{Alpha: 1, MaxIter: 1, Tol: 1e-15}

	_, err := lasso.Fit(CoefficientMatrix(dates, 8, avgDaysYear), y)
	assert.True(t, errors.Is(err, ErrNotConverged))
}

func TestLassoDeterministic(t *testing.T) {
	dates := seasonalDates(25, 16)
	y := seasonal(dates, 900, 300, 0.1)
	X := CoefficientMatrix(dates, 6, avgDaysYear)
	lasso, _ := NewLasso(Options{Alpha: 20})

	a, err := lasso.Fit(X, y)
	require.NoError(t, err)
	b, err := lasso.Fit(X, y)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRobustFitIgnoresOutlier(t *testing.T) {
	dates := seasonalDates(30, 16)
	y := seasonal(dates, 1000, 300, 0)
	y[12] += 5000
	X := TMaskMatrix(dates, avgDaysYear)

	m, err := RobustFit(X, y, 10)
	require.NoError(t, err)
	assert.InDelta(t, 5000, m.Residuals[12], 50)
	for i, r := range m.Residuals {
		if i != 12 {
			assert.InDelta(t, 0, r, 50, "residual %d", i)
		}
	}

	_, err = RobustFit(mat.NewDense(2, 4, nil), []float64{1, 2}, 5)
	assert.True(t, errors.Is(err, ErrUnderdetermined))
}

func TestRegistry(t *testing.T) {
	assert.Contains(t, Names(), "lasso")
	assert.Contains(t, Names(), "ols")

	f, err := Resolve("lasso", Options{Alpha: 20, MaxIter: 500})
	require.NoError(t, err)
	assert.Equal(t, Lasso{Alpha: 20, MaxIter: 500, Tol: 1e-4}, f)

	_, err = Resolve("ccd.models.lasso.fitted_model", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownFitter))

	Register("constant", func(Options) (Fitter, error) { return OLS{}, nil })
	f, err = Resolve("constant", Options{})
	require.NoError(t, err)
	assert.Equal(t, OLS{}, f)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 3.0, Median([]float64{5, 3, 1}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
	assert.Equal(t, 1.0, MedianAbsoluteDeviation([]float64{1, 2, 3, 4, 100}))

	xs := []float64{3, 1, 2}
	Median(xs)
	assert.Equal(t, []float64{3, 1, 2}, xs)
}
