// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package pipeline

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripcast/tripcast/internal/frame"
	"github.com/tripcast/tripcast/internal/schema"
)

func TestSelectorProjectsAndOrders(t *testing.T) {
	f := frame.New(1)
	require.NoError(t, f.AddFloat("a", &frame.FloatColumn{Values: []float64{1}}))
	require.NoError(t, f.AddFloat("b", &frame.FloatColumn{Values: []float64{2}}))

	s := NewSelector("b", "a")
	require.NoError(t, s.Fit(f))
	out, err := s.Apply(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, out.Columns())
}

func TestSelectorMissingColumn(t *testing.T) {
	f := frame.New(1)
	require.NoError(t, f.AddFloat("a", &frame.FloatColumn{Values: []float64{1}}))

	_, err := NewSelector("a", "ghost").Apply(f)
	assert.True(t, errors.Is(err, frame.ErrMissingColumn))
}

func TestImputerLearnsMedianAndAddsIndicator(t *testing.T) {
	train := frame.New(5)
	require.NoError(t, train.AddFloat("RatecodeID", &frame.FloatColumn{
		Values: []float64{1, 2, 0, 5, 3},
		Null:   []bool{false, false, true, false, false},
	}))

	imp := NewImputer("RatecodeID")
	require.NoError(t, imp.Fit(train))

	// Median of {1, 2, 5, 3} is 2.5.
	out, err := imp.Apply(train)
	require.NoError(t, err)

	col, err := out.Float("RatecodeID")
	require.NoError(t, err)
	assert.Equal(t, 2.5, col.Values[2])
	assert.Equal(t, 0, col.NullCount())

	ind, err := out.Float("RatecodeID_na")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 0, 0}, ind.Values)
}

func TestImputerAppliesTrainingMedianAtInference(t *testing.T) {
	train := frame.New(3)
	require.NoError(t, train.AddFloat("x", &frame.FloatColumn{Values: []float64{1, 7, 9}}))

	imp := NewImputer("x")
	require.NoError(t, imp.Fit(train))

	serve := frame.New(1)
	require.NoError(t, serve.AddFloat("x", &frame.FloatColumn{
		Values: []float64{0},
		Null:   []bool{true},
	}))

	out, err := imp.Apply(serve)
	require.NoError(t, err)
	col, err := out.Float("x")
	require.NoError(t, err)
	assert.Equal(t, 7.0, col.Values[0])
}

func TestImputerAllNullColumnFailsFit(t *testing.T) {
	train := frame.New(2)
	require.NoError(t, train.AddFloat("x", &frame.FloatColumn{
		Values: []float64{0, 0},
		Null:   []bool{true, true},
	}))

	assert.Error(t, NewImputer("x").Fit(train))
}

func TestImputerUnfittedApply(t *testing.T) {
	f := frame.New(1)
	require.NoError(t, f.AddFloat("x", &frame.FloatColumn{Values: []float64{1}}))

	_, err := NewImputer("x").Apply(f)
	assert.Error(t, err)
}

func TestTemporalDerivesDayAndHour(t *testing.T) {
	f := frame.New(3)
	require.NoError(t, f.AddTime(schema.ColPickupDatetime, &frame.TimeColumn{Values: []time.Time{
		time.Date(2022, 2, 1, 10, 15, 17, 0, time.UTC), // Tuesday
		time.Date(2022, 2, 6, 0, 5, 0, 0, time.UTC),    // Sunday
		time.Date(2022, 2, 7, 23, 59, 59, 0, time.UTC), // Monday
	}}))

	out, err := NewTemporal(schema.ColPickupDatetime).Apply(f)
	require.NoError(t, err)

	dow, err := out.Float(schema.ColDayOfWeek)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 6, 0}, dow.Values)

	hod, err := out.Float(schema.ColHourOfDay)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 0, 23}, hod.Values)

	// Source column stays; a later selector drops it.
	assert.True(t, out.Has(schema.ColPickupDatetime))
}

func TestYeoJohnsonIdentityLambda(t *testing.T) {
	for _, x := range []float64{-3.5, -1, 0, 0.5, 2, 10} {
		assert.InDelta(t, x, yeoJohnson(x, 1), 1e-12, "x=%v", x)
	}
}

func TestYeoJohnsonZeroLambdaIsLog1p(t *testing.T) {
	assert.InDelta(t, math.Log1p(4), yeoJohnson(4, 0), 1e-12)
	assert.InDelta(t, -math.Log1p(3), yeoJohnson(-3, 2), 1e-12)
}

func TestYeoJohnsonReducesSkew(t *testing.T) {
	// Heavily right-skewed sample; the fitted transform should pull the
	// tail in, i.e. lambda well below 1.
	values := make([]float64, 200)
	for i := range values {
		values[i] = math.Exp(float64(i) / 40)
	}

	lambda := estimateLambda(values)
	assert.Less(t, lambda, 0.5)
	assert.Greater(t, lambda, yjLambdaMin)
}

func TestYeoJohnsonStageFitApply(t *testing.T) {
	f := frame.New(4)
	require.NoError(t, f.AddFloat("total_amount", &frame.FloatColumn{Values: []float64{5, 12, 40, 90}}))

	yj := NewYeoJohnson("total_amount")
	require.NoError(t, yj.Fit(f))

	out, err := yj.Apply(f)
	require.NoError(t, err)
	col, err := out.Float("total_amount")
	require.NoError(t, err)

	lambda := yj.lambdas["total_amount"]
	assert.InDelta(t, yeoJohnson(5, lambda), col.Values[0], 1e-12)

	// Input frame untouched.
	orig, err := f.Float("total_amount")
	require.NoError(t, err)
	assert.Equal(t, 5.0, orig.Values[0])
}

func TestYeoJohnsonRejectsNulls(t *testing.T) {
	f := frame.New(2)
	require.NoError(t, f.AddFloat("x", &frame.FloatColumn{
		Values: []float64{1, 0},
		Null:   []bool{false, true},
	}))

	assert.Error(t, NewYeoJohnson("x").Fit(f))
}

func TestScalerStandardizes(t *testing.T) {
	f := frame.New(4)
	require.NoError(t, f.AddFloat("x", &frame.FloatColumn{Values: []float64{2, 4, 6, 8}}))

	s := NewScaler()
	require.NoError(t, s.Fit(f))
	out, err := s.Apply(f)
	require.NoError(t, err)

	col, err := out.Float("x")
	require.NoError(t, err)

	var sum float64
	for _, v := range col.Values {
		sum += v
	}
	assert.InDelta(t, 0, sum, 1e-12)
	assert.InDelta(t, -col.Values[3], col.Values[0], 1e-12)
}

func TestScalerConstantColumn(t *testing.T) {
	f := frame.New(3)
	require.NoError(t, f.AddFloat("x", &frame.FloatColumn{Values: []float64{7, 7, 7}}))

	s := NewScaler()
	require.NoError(t, s.Fit(f))
	out, err := s.Apply(f)
	require.NoError(t, err)

	col, err := out.Float("x")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, col.Values)
}

func TestScalerUnfittedApply(t *testing.T) {
	f := frame.New(1)
	require.NoError(t, f.AddFloat("x", &frame.FloatColumn{Values: []float64{1}}))

	_, err := NewScaler().Apply(f)
	assert.Error(t, err)
}
