// Package models provides the regression capabilities used by the change
// detection engine: a harmonic design matrix, regularized and ordinary least
// squares fitters, an IRLS robust fit and a name-keyed fitter registry.
package models

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNoObservations    = errors.New("no observations to fit")
	ErrDimensionMismatch = errors.New("design matrix and response length differ")
	ErrNotConverged      = errors.New("fit did not converge")
	ErrUnderdetermined   = errors.New("not enough observations for the number of coefficients")
	ErrSingular          = errors.New("design matrix is singular")
	ErrUnknownFitter     = errors.New("unknown fitter")
)

// Fitter fits one band's responses against a design matrix. Implementations
// must be deterministic and must not retain X or y.
type Fitter interface {
	Fit(X *mat.Dense, y []float64) (FittedModel, error)
}

// FittedModel is the outcome of a single fit.
type FittedModel struct {
	Coefficients []float64
	Intercept    float64
	RMSE         float64
	Residuals    []float64
}

// Predict evaluates the model on one design row.
func (m FittedModel) Predict(row []float64) float64 {
	v := m.Intercept
	for j, c := range m.Coefficients {
		if j < len(row) {
			v += c * row[j]
		}
	}
	return v
}

// Slope is the trend coefficient (first design column), or zero.
func (m FittedModel) Slope() float64 {
	if len(m.Coefficients) == 0 {
		return 0
	}
	return m.Coefficients[0]
}

func newFittedModel(X *mat.Dense, y, coefs []float64, intercept float64) FittedModel {
	n, _ := X.Dims()
	residuals := make([]float64, n)
	var ss float64
	for i := 0; i < n; i++ {
		r := y[i] - (intercept + floats.Dot(X.RawRowView(i), coefs))
		residuals[i] = r
		ss += r * r
	}
	return FittedModel{
		Coefficients: coefs,
		Intercept:    intercept,
		RMSE:         math.Sqrt(ss / float64(n)),
		Residuals:    residuals,
	}
}

func checkShape(X *mat.Dense, y []float64) (n, p int, err error) {
	n, p = X.Dims()
	if n == 0 || len(y) == 0 {
		return 0, 0, ErrNoObservations
	}
	if len(y) != n {
		return 0, 0, fmt.Errorf("%w: %d rows, %d responses", ErrDimensionMismatch, n, len(y))
	}
	return n, p, nil
}

// centerColumns returns X with column means removed, the column-major
// centered columns and the means.
func centerColumns(X *mat.Dense) (*mat.Dense, [][]float64, []float64) {
	n, p := X.Dims()
	means := make([]float64, p)
	cols := make([][]float64, p)
	xc := mat.NewDense(n, p, nil)
	for j := 0; j < p; j++ {
		col := mat.Col(nil, j, X)
		means[j] = floats.Sum(col) / float64(n)
		floats.AddConst(-means[j], col)
		xc.SetCol(j, col)
		cols[j] = col
	}
	return xc, cols, means
}

// Options carries the tunables a registered fitter may use.
type Options struct {
	Alpha   float64
	MaxIter int
	Tol     float64
}

// Factory builds a Fitter from Options.
type Factory func(Options) (Fitter, error)

// UnknownFitterError reports a fitter name with no registration.
type UnknownFitterError struct {
	Name string
}

func (e *UnknownFitterError) Error() string {
	return fmt.Sprintf("unknown fitter %q (registered: %v)", e.Name, Names())
}

func (e *UnknownFitterError) Is(target error) bool {
	return target == ErrUnknownFitter
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"lasso": func(o Options) (Fitter, error) { return NewLasso(o) },
		"ols":   func(Options) (Fitter, error) { return OLS{}, nil },
	}
)

// Register adds or replaces a named fitter factory.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Resolve builds the fitter registered under name.
func Resolve(name string, opts Options) (Fitter, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownFitterError{Name: name}
	}
	return f(opts)
}

// Names lists registered fitter names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
