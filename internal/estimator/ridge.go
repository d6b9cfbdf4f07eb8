// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

// Package estimator provides the regression model that sits at the end of
// the feature pipeline. The pipeline only depends on the Regressor
// interface, so the concrete model can be swapped without touching any
// transformation stage.
package estimator

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrNotFitted is returned when Predict is called before Fit.
var ErrNotFitted = errors.New("estimator not fitted")

// Regressor is the contract between the pipeline and its model.
// Fit consumes a design matrix and a target vector of matching length;
// Predict maps a design matrix with the same column count to one
// prediction per row.
type Regressor interface {
	Fit(x *mat.Dense, y []float64) error
	Predict(x *mat.Dense) ([]float64, error)
}

// Ridge is an L2-regularized linear regressor solved via the normal
// equations. The intercept is not penalized.
type Ridge struct {
	// Lambda is the L2 penalty. Zero gives ordinary least squares.
	Lambda float64

	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
	fitted    bool
}

// NewRidge returns an unfitted ridge regressor with the given penalty.
func NewRidge(lambda float64) *Ridge {
	return &Ridge{Lambda: lambda}
}

// Fit solves (X'X + lambda*I) w = X'y on centered data so the intercept
// absorbs the column and target means without being shrunk.
func (r *Ridge) Fit(x *mat.Dense, y []float64) error {
	rows, cols := x.Dims()
	if rows == 0 || cols == 0 {
		return errors.New("empty design matrix")
	}
	if rows != len(y) {
		return fmt.Errorf("design matrix has %d rows but target has %d values", rows, len(y))
	}
	if r.Lambda < 0 {
		return fmt.Errorf("negative penalty %v", r.Lambda)
	}

	colMeans := make([]float64, cols)
	for j := 0; j < cols; j++ {
		var sum float64
		for i := 0; i < rows; i++ {
			sum += x.At(i, j)
		}
		colMeans[j] = sum / float64(rows)
	}
	var yMean float64
	for _, v := range y {
		yMean += v
	}
	yMean /= float64(rows)

	centered := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			centered.Set(i, j, x.At(i, j)-colMeans[j])
		}
	}
	yc := mat.NewVecDense(rows, nil)
	for i, v := range y {
		yc.SetVec(i, v-yMean)
	}

	var gram mat.Dense
	gram.Mul(centered.T(), centered)
	for j := 0; j < cols; j++ {
		gram.Set(j, j, gram.At(j, j)+r.Lambda)
	}

	var rhs mat.VecDense
	rhs.MulVec(centered.T(), yc)

	var w mat.VecDense
	if err := w.SolveVec(&gram, &rhs); err != nil {
		return fmt.Errorf("solving normal equations: %w", err)
	}

	r.Weights = make([]float64, cols)
	r.Intercept = yMean
	for j := 0; j < cols; j++ {
		r.Weights[j] = w.AtVec(j)
		r.Intercept -= r.Weights[j] * colMeans[j]
	}
	r.fitted = true
	return nil
}

// Predict returns one prediction per row of x.
func (r *Ridge) Predict(x *mat.Dense) ([]float64, error) {
	if !r.fitted && r.Weights == nil {
		return nil, ErrNotFitted
	}
	rows, cols := x.Dims()
	if cols != len(r.Weights) {
		return nil, fmt.Errorf("design matrix has %d columns, model expects %d", cols, len(r.Weights))
	}

	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		sum := r.Intercept
		for j := 0; j < cols; j++ {
			sum += x.At(i, j) * r.Weights[j]
		}
		out[i] = sum
	}
	return out, nil
}

// MarkFitted restores the fitted flag after deserializing a saved model.
func (r *Ridge) MarkFitted() {
	r.fitted = true
}
