package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	bisquareTuning = 4.685
	madNormalizer  = 0.6745
	robustTol      = 1e-8
)

// RobustFit fits y against X (which must carry its own intercept column) by
// iteratively reweighted least squares with Tukey bisquare weights. The
// returned model has a zero Intercept; Coefficients align with X's columns.
func RobustFit(X *mat.Dense, y []float64, maxIter int) (FittedModel, error) {
	n, p, err := checkShape(X, y)
	if err != nil {
		return FittedModel{}, err
	}
	if n <= p {
		return FittedModel{}, fmt.Errorf("%w: %d rows, %d columns", ErrUnderdetermined, n, p)
	}

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}
	beta, err := weightedLeastSquares(X, y, weights)
	if err != nil {
		return FittedModel{}, err
	}

	residuals := make([]float64, n)
	for iter := 0; iter < maxIter; iter++ {
		for i := 0; i < n; i++ {
			residuals[i] = y[i] - floats.Dot(X.RawRowView(i), beta)
		}
		scale := MedianAbsoluteDeviation(residuals) / madNormalizer
		if scale < robustTol {
			break
		}
		for i, r := range residuals {
			u := r / (bisquareTuning * scale)
			if math.Abs(u) < 1 {
				weights[i] = (1 - u*u) * (1 - u*u)
			} else {
				weights[i] = 0
			}
		}
		next, err := weightedLeastSquares(X, y, weights)
		if err != nil {
			// Too many zero weights to identify the model; keep the last estimate.
			break
		}
		delta := 0.0
		for j := range beta {
			delta = math.Max(delta, math.Abs(next[j]-beta[j]))
		}
		beta = next
		if delta <= robustTol*math.Max(1, floats.Norm(beta, math.Inf(1))) {
			break
		}
	}

	return newFittedModel(X, y, beta, 0), nil
}

func weightedLeastSquares(X *mat.Dense, y, weights []float64) ([]float64, error) {
	n, p := X.Dims()
	a := mat.NewDense(n, p, nil)
	b := make([]float64, n)
	for i := 0; i < n; i++ {
		sw := math.Sqrt(weights[i])
		row := make([]float64, p)
		floats.ScaleTo(row, sw, X.RawRowView(i))
		a.SetRow(i, row)
		b[i] = sw * y[i]
	}
	return solveLeastSquares(a, b)
}
