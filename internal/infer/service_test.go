// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package infer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripcast/tripcast/internal/artifact"
	"github.com/tripcast/tripcast/internal/config"
	"github.com/tripcast/tripcast/internal/pipeline"
	"github.com/tripcast/tripcast/internal/schema"
)

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }
func ts(v time.Time) *schema.Timestamp {
	t := schema.Timestamp(v)
	return &t
}

// trainedPipeline fits a small pipeline on synthetic records that run
// through the real training schema.
func trainedPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()

	base := time.Date(2022, 2, 1, 8, 0, 0, 0, time.UTC)
	records := make([]schema.TripTraining, 60)
	for i := range records {
		dist := 1.0 + float64(i%20)
		pickup := base.Add(time.Duration(i) * 23 * time.Minute)
		rec := schema.TripTraining{
			TripInput: schema.TripInput{
				VendorID:       i64(int64(1 + i%2)),
				PULocationID:   i64(int64(100 + i%40)),
				DOLocationID:   i64(int64(60 + i%70)),
				RatecodeID:     f64(1),
				PaymentType:    i64(int64(1 + i%3)),
				TotalAmount:    f64(4 + dist*2.6),
				TripDistance:   f64(dist),
				PickupDatetime: ts(pickup),
			},
			DropoffDatetime: ts(pickup.Add(time.Duration(3*dist) * time.Minute)),
			TripDuration:    f64(2 + dist*3),
		}
		if i%9 == 4 {
			rec.RatecodeID = nil
		}
		records[i] = rec
	}

	f, errs := schema.ValidateTraining(records)
	require.Nil(t, errs)

	p := pipeline.New(pipeline.DefaultConfig())
	_, err := p.Fit(f)
	require.NoError(t, err)
	return p
}

func validInput() schema.TripInput {
	return schema.TripInput{
		VendorID:       i64(2),
		PULocationID:   i64(236),
		DOLocationID:   i64(122),
		RatecodeID:     f64(1),
		PaymentType:    i64(1),
		TotalAmount:    f64(12.36),
		TripDistance:   f64(3.17),
		PickupDatetime: ts(time.Date(2022, 2, 1, 10, 15, 17, 0, time.UTC)),
	}
}

func TestPredictValidBatch(t *testing.T) {
	svc := NewService(trainedPipeline(t), "trip_duration", "1.0.0", "run-1")

	result, err := svc.Predict([]schema.TripInput{validInput(), validInput()})
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", result.ModelVersion)
	require.Len(t, result.TripDuration, 2)
	assert.Greater(t, result.TripDuration[0], 0.0)
	assert.Equal(t, result.TripDuration[0], result.TripDuration[1])
}

func TestPredictMissingRequiredField(t *testing.T) {
	svc := NewService(trainedPipeline(t), "trip_duration", "1.0.0", "run-1")

	bad := validInput()
	bad.TotalAmount = nil

	result, err := svc.Predict([]schema.TripInput{bad})
	assert.ErrorIs(t, err, ErrInvalidInput)
	require.NotNil(t, result)
	assert.Empty(t, result.TripDuration)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "inputs[0].total_amount", result.Errors[0].Field)
}

func TestPredictNullRatecodeIsScored(t *testing.T) {
	svc := NewService(trainedPipeline(t), "trip_duration", "1.0.0", "run-1")

	in := validInput()
	in.RatecodeID = nil

	result, err := svc.Predict([]schema.TripInput{in})
	require.NoError(t, err)
	require.Len(t, result.TripDuration, 1)
	assert.Greater(t, result.TripDuration[0], 0.0)
}

func TestPredictTrustedMatchesValidatedPath(t *testing.T) {
	svc := NewService(trainedPipeline(t), "trip_duration", "1.0.0", "run-1")

	validated, err := svc.Predict([]schema.TripInput{validInput()})
	require.NoError(t, err)

	trusted, err := svc.PredictTrusted([]schema.TripInput{validInput()})
	require.NoError(t, err)
	require.Len(t, trusted, 1)
	assert.Equal(t, validated.TripDuration[0], trusted[0])
}

func TestPredictTrustedSurfacesUnusableNull(t *testing.T) {
	svc := NewService(trainedPipeline(t), "trip_duration", "1.0.0", "run-1")

	// A missing vendor would be a field error on the validated path; here
	// the null reaches the scaler and comes back as a pipeline error.
	bad := validInput()
	bad.VendorID = nil

	_, err := svc.PredictTrusted([]schema.TripInput{bad})
	assert.Error(t, err)
}

func TestPredictTrustedNullRatecodeIsScored(t *testing.T) {
	svc := NewService(trainedPipeline(t), "trip_duration", "1.0.0", "run-1")

	in := validInput()
	in.RatecodeID = nil

	durations, err := svc.PredictTrusted([]schema.TripInput{in})
	require.NoError(t, err)
	require.Len(t, durations, 1)
	assert.Greater(t, durations[0], 0.0)
}

func TestPredictTrustedEmptyBatch(t *testing.T) {
	svc := NewService(trainedPipeline(t), "trip_duration", "1.0.0", "run-1")
	_, err := svc.PredictTrusted(nil)
	assert.Error(t, err)
}

func TestPredictEmptyBatch(t *testing.T) {
	svc := NewService(trainedPipeline(t), "trip_duration", "1.0.0", "run-1")

	result, err := svc.Predict(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	require.Len(t, result.Errors, 1)
}

func TestLoadServiceLatestRun(t *testing.T) {
	store, err := artifact.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	p := trainedPipeline(t)
	blob, err := p.Encode()
	require.NoError(t, err)
	require.NoError(t, store.Save("run-7", blob))

	svc, err := LoadService(store, config.ModelConfig{Name: "trip_duration", Version: "1.2.0"})
	require.NoError(t, err)
	assert.Equal(t, "run-7", svc.RunID())
	assert.Equal(t, "1.2.0", svc.Version())

	result, err := svc.Predict([]schema.TripInput{validInput()})
	require.NoError(t, err)
	assert.Len(t, result.TripDuration, 1)
}

func TestLoadServiceSpecificRun(t *testing.T) {
	store, err := artifact.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	p := trainedPipeline(t)
	for _, run := range []string{"run-1", "run-2"} {
		blob, err := p.Encode()
		require.NoError(t, err)
		require.NoError(t, store.Save(run, blob))
	}

	svc, err := LoadService(store, config.ModelConfig{Name: "m", Version: "1", RunID: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", svc.RunID())
}

func TestLoadServiceFailsFast(t *testing.T) {
	store, err := artifact.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	// Nothing saved.
	_, err = LoadService(store, config.ModelConfig{Name: "m", Version: "1"})
	assert.ErrorIs(t, err, artifact.ErrNotFound)

	// Corrupt blob.
	require.NoError(t, store.Save("run-bad", []byte("junk")))
	_, err = LoadService(store, config.ModelConfig{Name: "m", Version: "1", RunID: "run-bad"})
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrBadArtifact)
}

func TestPredictionIsStableAcrossCalls(t *testing.T) {
	svc := NewService(trainedPipeline(t), "trip_duration", "1.0.0", "run-1")

	var first float64
	for i := 0; i < 5; i++ {
		result, err := svc.Predict([]schema.TripInput{validInput()})
		require.NoError(t, err, fmt.Sprintf("call %d", i))
		if i == 0 {
			first = result.TripDuration[0]
			continue
		}
		assert.Equal(t, first, result.TripDuration[0])
	}
}
