package models

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// OLS is an ordinary least squares fit with an intercept, solved by QR on
// mean-centered columns.
type OLS struct{}

// Fit implements Fitter.
func (OLS) Fit(X *mat.Dense, y []float64) (FittedModel, error) {
	n, p, err := checkShape(X, y)
	if err != nil {
		return FittedModel{}, err
	}
	if n <= p {
		return FittedModel{}, fmt.Errorf("%w: %d rows, %d columns", ErrUnderdetermined, n, p)
	}

	xc, _, xMean := centerColumns(X)
	yMean := floats.Sum(y) / float64(n)
	yc := make([]float64, n)
	copy(yc, y)
	floats.AddConst(-yMean, yc)

	coefs, err := solveLeastSquares(xc, yc)
	if err != nil {
		return FittedModel{}, err
	}

	intercept := yMean - floats.Dot(xMean, coefs)
	return newFittedModel(X, y, coefs, intercept), nil
}

// solveLeastSquares solves min ||A·x - b|| for a tall A.
func solveLeastSquares(a *mat.Dense, b []float64) ([]float64, error) {
	_, p := a.Dims()
	var x mat.VecDense
	if err := x.SolveVec(a, mat.NewVecDense(len(b), b)); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: %v", ErrSingular, err)
		}
		return nil, err
	}
	out := make([]float64, p)
	for j := 0; j < p; j++ {
		out[j] = x.AtVec(j)
	}
	return out, nil
}
