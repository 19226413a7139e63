package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Lasso is an L1-regularized linear model fit by cyclic coordinate descent.
// It minimizes (1/2n)·||y - b - Xw||² + Alpha·||w||₁ with an unpenalized
// intercept b.
type Lasso struct {
	Alpha   float64
	MaxIter int
	Tol     float64
}

// NewLasso builds a Lasso, filling unset options with defaults.
func NewLasso(o Options) (Lasso, error) {
	l := Lasso{Alpha: o.Alpha, MaxIter: o.MaxIter, Tol: o.Tol}
	if l.Alpha < 0 {
		return Lasso{}, fmt.Errorf("lasso alpha must not be negative, got %v", l.Alpha)
	}
	if l.MaxIter <= 0 {
		l.MaxIter = 1000
	}
	if l.Tol <= 0 {
		l.Tol = 1e-4
	}
	return l, nil
}

// Fit implements Fitter.
func (l Lasso) Fit(X *mat.Dense, y []float64) (FittedModel, error) {
	n, p, err := checkShape(X, y)
	if err != nil {
		return FittedModel{}, err
	}

	_, cols, xMean := centerColumns(X)
	yMean := floats.Sum(y) / float64(n)

	r := make([]float64, n)
	copy(r, y)
	floats.AddConst(-yMean, r)

	norms := make([]float64, p)
	for j := range cols {
		norms[j] = floats.Dot(cols[j], cols[j])
	}

	w := make([]float64, p)
	penalty := l.Alpha * float64(n)
	converged := false
	for iter := 0; iter < l.MaxIter; iter++ {
		var maxDelta, maxW float64
		for j := 0; j < p; j++ {
			if norms[j] == 0 {
				continue
			}
			old := w[j]
			rho := floats.Dot(cols[j], r) + old*norms[j]
			w[j] = softThreshold(rho, penalty) / norms[j]
			if d := w[j] - old; d != 0 {
				floats.AddScaled(r, -d, cols[j])
				maxDelta = math.Max(maxDelta, math.Abs(d))
			}
			maxW = math.Max(maxW, math.Abs(w[j]))
		}
		if maxW == 0 || maxDelta/maxW < l.Tol {
			converged = true
			break
		}
	}
	if !converged {
		return FittedModel{}, fmt.Errorf("%w: lasso after %d iterations", ErrNotConverged, l.MaxIter)
	}

	intercept := yMean - floats.Dot(xMean, w)
	return newFittedModel(X, y, w, intercept), nil
}

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	}
	return 0
}
