// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package pipeline

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/tripcast/tripcast/internal/frame"
)

// Yeo-Johnson lambda search bounds and convergence tolerance.
const (
	yjLambdaMin = -5.0
	yjLambdaMax = 5.0
	yjTolerance = 1e-6
)

// YeoJohnson applies the Yeo-Johnson power transform to the configured
// variables. Unlike Box-Cox it is defined for zero and negative inputs, so
// no shifting is needed. Each variable's lambda is chosen at fit time by
// maximizing the transform's log-likelihood.
type YeoJohnson struct {
	vars    []string
	lambdas map[string]float64
}

// NewYeoJohnson returns a transformer for the given variables.
func NewYeoJohnson(vars ...string) *YeoJohnson {
	return &YeoJohnson{vars: vars}
}

// Name implements Stage.
func (y *YeoJohnson) Name() string { return "yeo-johnson" }

// Fit estimates one lambda per variable from the training values.
func (y *YeoJohnson) Fit(f *frame.Frame) error {
	lambdas := make(map[string]float64, len(y.vars))
	for _, name := range y.vars {
		col, err := f.Float(name)
		if err != nil {
			return err
		}
		if col.NullCount() > 0 {
			return fmt.Errorf("column %q still has nulls, imputation must run first", name)
		}
		lambdas[name] = estimateLambda(col.Values)
	}
	y.lambdas = lambdas
	return nil
}

// Apply transforms the configured variables with their learned lambdas.
func (y *YeoJohnson) Apply(f *frame.Frame) (*frame.Frame, error) {
	if y.lambdas == nil {
		return nil, fmt.Errorf("yeo-johnson transformer not fitted")
	}

	out := f.Clone()
	for _, name := range y.vars {
		col, err := out.Float(name)
		if err != nil {
			return nil, err
		}
		lambda := y.lambdas[name]
		transformed := &frame.FloatColumn{Values: make([]float64, len(col.Values))}
		for i, v := range col.Values {
			if col.IsNull(i) {
				return nil, fmt.Errorf("column %q has null at row %d", name, i)
			}
			transformed.Values[i] = yeoJohnson(v, lambda)
		}
		if err := out.SetFloat(name, transformed); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// yeoJohnson maps one value under the given lambda.
func yeoJohnson(x, lambda float64) float64 {
	if x >= 0 {
		if math.Abs(lambda) < 1e-12 {
			return math.Log1p(x)
		}
		return (math.Pow(x+1, lambda) - 1) / lambda
	}
	if math.Abs(lambda-2) < 1e-12 {
		return -math.Log1p(-x)
	}
	return -(math.Pow(1-x, 2-lambda) - 1) / (2 - lambda)
}

// logLikelihood of the Yeo-Johnson transform at the given lambda, assuming
// normally distributed transformed values.
func logLikelihood(values []float64, lambda float64) float64 {
	transformed := make([]float64, len(values))
	for i, v := range values {
		transformed[i] = yeoJohnson(v, lambda)
	}
	variance := stat.Variance(transformed, nil)
	if variance <= 0 || math.IsNaN(variance) || math.IsInf(variance, 0) {
		return math.Inf(-1)
	}

	n := float64(len(values))
	llf := -n / 2 * math.Log(variance)
	for _, v := range values {
		if v >= 0 {
			llf += (lambda - 1) * math.Log1p(v)
		} else {
			llf -= (lambda - 1) * math.Log1p(-v)
		}
	}
	return llf
}

// estimateLambda maximizes the log-likelihood over [-5, 5] by golden-section
// search. The likelihood is unimodal in lambda for any fixed sample.
func estimateLambda(values []float64) float64 {
	invPhi := (math.Sqrt(5) - 1) / 2

	lo, hi := yjLambdaMin, yjLambdaMax
	a := hi - invPhi*(hi-lo)
	b := lo + invPhi*(hi-lo)
	fa := logLikelihood(values, a)
	fb := logLikelihood(values, b)

	for hi-lo > yjTolerance {
		if fa > fb {
			hi = b
			b, fb = a, fa
			a = hi - invPhi*(hi-lo)
			fa = logLikelihood(values, a)
		} else {
			lo = a
			a, fa = b, fb
			b = lo + invPhi*(hi-lo)
			fb = logLikelihood(values, b)
		}
	}
	return (lo + hi) / 2
}
