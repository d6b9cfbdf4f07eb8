// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRidgeRecoversLinearRelationship(t *testing.T) {
	// y = 2*x0 + 3*x1 + 5 exactly, no noise, no penalty.
	x := mat.NewDense(6, 2, []float64{
		1, 1,
		2, 0,
		0, 2,
		3, 1,
		1, 4,
		2, 2,
	})
	y := make([]float64, 6)
	for i := 0; i < 6; i++ {
		y[i] = 2*x.At(i, 0) + 3*x.At(i, 1) + 5
	}

	r := NewRidge(0)
	require.NoError(t, r.Fit(x, y))

	assert.InDelta(t, 2.0, r.Weights[0], 1e-9)
	assert.InDelta(t, 3.0, r.Weights[1], 1e-9)
	assert.InDelta(t, 5.0, r.Intercept, 1e-9)

	preds, err := r.Predict(mat.NewDense(1, 2, []float64{4, 1}))
	require.NoError(t, err)
	assert.InDelta(t, 16.0, preds[0], 1e-9)
}

func TestRidgePenaltyShrinksWeights(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := []float64{2, 4, 6, 8}

	ols := NewRidge(0)
	require.NoError(t, ols.Fit(x, y))

	shrunk := NewRidge(10)
	require.NoError(t, shrunk.Fit(x, y))

	assert.Less(t, shrunk.Weights[0], ols.Weights[0])
	assert.Greater(t, shrunk.Weights[0], 0.0)
}

func TestRidgePredictBeforeFit(t *testing.T) {
	r := NewRidge(1)
	_, err := r.Predict(mat.NewDense(1, 1, []float64{1}))
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestRidgeDimensionMismatch(t *testing.T) {
	r := NewRidge(0)
	err := r.Fit(mat.NewDense(3, 2, nil), []float64{1, 2})
	assert.Error(t, err)

	require.NoError(t, r.Fit(mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6}), []float64{1, 2, 3}))
	_, err = r.Predict(mat.NewDense(1, 3, nil))
	assert.Error(t, err)
}

func TestRidgeMarkFittedAfterRestore(t *testing.T) {
	restored := &Ridge{Weights: []float64{2}, Intercept: 1}
	restored.MarkFitted()

	preds, err := restored.Predict(mat.NewDense(2, 1, []float64{1, 3}))
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 7}, preds)
}

func TestRidgeConstantColumnWithPenalty(t *testing.T) {
	// A constant column centers to zero; the penalty keeps the gram
	// matrix invertible and the weight lands on zero.
	x := mat.NewDense(4, 2, []float64{
		1, 7,
		2, 7,
		3, 7,
		4, 7,
	})
	y := []float64{3, 5, 7, 9}

	r := NewRidge(0.001)
	require.NoError(t, r.Fit(x, y))
	assert.InDelta(t, 0.0, r.Weights[1], 1e-6)
	assert.InDelta(t, 2.0, r.Weights[0], 1e-2)
}
