package models

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// MaxCoefficients is the largest supported model: intercept, trend and three harmonics.
const MaxCoefficients = 8

// DesignRow builds one row of the harmonic design matrix for an ordinal
// date. The row has numCoefs-1 columns (the intercept is implicit):
// t, cos ωt, sin ωt, cos 2ωt, sin 2ωt, cos 3ωt, sin 3ωt.
func DesignRow(date, numCoefs int, avgDaysYear float64) []float64 {
	cols := numCoefs - 1
	if cols < 1 {
		cols = 1
	}
	if cols > MaxCoefficients-1 {
		cols = MaxCoefficients - 1
	}

	t := float64(date)
	w := 2 * math.Pi / avgDaysYear
	row := make([]float64, cols)
	row[0] = t
	for k := 1; k < cols; k++ {
		h := float64((k + 1) / 2)
		if k%2 == 1 {
			row[k] = math.Cos(h * w * t)
		} else {
			row[k] = math.Sin(h * w * t)
		}
	}
	return row
}

// CoefficientMatrix stacks DesignRow for each date.
func CoefficientMatrix(dates []int, numCoefs int, avgDaysYear float64) *mat.Dense {
	if len(dates) == 0 {
		return nil
	}
	first := DesignRow(dates[0], numCoefs, avgDaysYear)
	X := mat.NewDense(len(dates), len(first), nil)
	X.SetRow(0, first)
	for i := 1; i < len(dates); i++ {
		X.SetRow(i, DesignRow(dates[i], numCoefs, avgDaysYear))
	}
	return X
}

// TMaskMatrix is the design used to screen outliers before a window is
// accepted: an explicit intercept, one annual harmonic and a trend measured
// from the first date.
func TMaskMatrix(dates []int, avgDaysYear float64) *mat.Dense {
	if len(dates) == 0 {
		return nil
	}
	w := 2 * math.Pi / avgDaysYear
	t0 := float64(dates[0])
	X := mat.NewDense(len(dates), 4, nil)
	for i, d := range dates {
		t := float64(d)
		X.SetRow(i, []float64{1, math.Cos(w * t), math.Sin(w * t), t - t0})
	}
	return X
}
