// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripcast/tripcast/internal/config"
	"github.com/tripcast/tripcast/internal/dataset"
	"github.com/tripcast/tripcast/internal/schema"
)

// flakyPredictor fails any record whose trip distance exceeds the limit.
type flakyPredictor struct {
	limit float64
}

func (p *flakyPredictor) PredictTrusted(inputs []schema.TripInput) ([]float64, error) {
	if *inputs[0].TripDistance > p.limit {
		return nil, errors.New("model exploded")
	}
	return []float64{*inputs[0].TripDistance * 3}, nil
}

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }

func trainingRecord(dist, duration float64) schema.TripTraining {
	pickup := schema.Timestamp(time.Date(2022, 2, 1, 9, 0, 0, 0, time.UTC))
	dropoff := schema.Timestamp(time.Date(2022, 2, 1, 9, 14, 0, 0, time.UTC))
	return schema.TripTraining{
		TripInput: schema.TripInput{
			VendorID:       i64(1),
			PULocationID:   i64(100),
			DOLocationID:   i64(50),
			RatecodeID:     f64(1),
			PaymentType:    i64(1),
			TotalAmount:    f64(dist * 2.5),
			TripDistance:   &dist,
			PickupDatetime: &pickup,
		},
		DropoffDatetime: &dropoff,
		TripDuration:    &duration,
	}
}

func testScorer(workers int) *Scorer {
	return NewScorer(config.BatchConfig{
		TaxiCategory:  "yellow",
		Workers:       workers,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	}, nil, &flakyPredictor{limit: 100})
}

func TestScoreRecordsComputesDiff(t *testing.T) {
	s := testScorer(2)
	records := []schema.TripTraining{trainingRecord(4, 14)}

	rows := s.scoreRecords(context.Background(), records)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Predicted)
	assert.Equal(t, 12.0, *rows[0].Predicted)
	assert.Equal(t, 14.0, rows[0].ActualDuration)
	require.NotNil(t, rows[0].Diff)
	assert.Equal(t, 2.0, *rows[0].Diff)
}

func TestScoreRecordsIsolatesFailures(t *testing.T) {
	s := testScorer(3)
	records := []schema.TripTraining{
		trainingRecord(4, 14),
		trainingRecord(500, 20), // predictor fails on this one
		trainingRecord(2, 7),
	}

	rows := s.scoreRecords(context.Background(), records)
	require.Len(t, rows, 3)

	assert.NotNil(t, rows[0].Predicted)
	assert.Nil(t, rows[1].Predicted)
	assert.Nil(t, rows[1].Diff)
	assert.Equal(t, 20.0, rows[1].ActualDuration)
	assert.NotNil(t, rows[2].Predicted)
}

func TestScoreRecordsKeepsRowOrder(t *testing.T) {
	s := testScorer(4)
	records := make([]schema.TripTraining, 50)
	for i := range records {
		records[i] = trainingRecord(float64(i+1), float64(i))
	}

	rows := s.scoreRecords(context.Background(), records)
	require.Len(t, rows, 50)
	for i, row := range rows {
		require.NotNil(t, row.Predicted, "row %d", i)
		assert.Equal(t, float64(i+1)*3, *row.Predicted, "row %d", i)
	}
}

func TestScoreRecordsSingleWorkerFloor(t *testing.T) {
	s := testScorer(0)
	rows := s.scoreRecords(context.Background(), []schema.TripTraining{trainingRecord(3, 9)})
	require.Len(t, rows, 1)
	assert.NotNil(t, rows[0].Predicted)
}

// tripFileCSV is a small February 2022 trip file: three in-domain rows (one
// with a null ratecode) and one odometer glitch the loader must drop.
const tripFileCSV = `VendorID,PULocationID,DOLocationID,RatecodeID,payment_type,total_amount,trip_distance,tpep_pickup_datetime,tpep_dropoff_datetime
1,100,50,1.0,1,14.5,3.2,2022-02-01 09:00:00,2022-02-01 09:14:00
2,120,60,1.0,2,9.0,1.8,2022-02-02 18:30:00,2022-02-02 18:39:00
1,80,40,,1,22.0,6.5,2022-02-03 07:05:00,2022-02-03 07:31:00
2,90,45,1.0,1,55.0,80.0,2022-02-04 11:00:00,2022-02-04 11:20:00
`

func fullScorer(t *testing.T, inputDir, outputDir string) *Scorer {
	t.Helper()

	path := filepath.Join(inputDir, "yellow_tripdata_2022-02.csv")
	require.NoError(t, os.WriteFile(path, []byte(tripFileCSV), 0o600))

	db, err := dataset.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewScorer(config.BatchConfig{
		InputDir:      inputDir,
		OutputDir:     outputDir,
		TaxiCategory:  "yellow",
		Workers:       2,
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	}, db, &flakyPredictor{limit: 100})
}

func TestRunSameRunIDResolvesSameOutput(t *testing.T) {
	outputDir := t.TempDir()
	s := fullScorer(t, t.TempDir(), outputDir)
	month := Month{Year: 2022, Month: time.February}

	first, err := s.Run(context.Background(), month, "nightly")
	require.NoError(t, err)
	assert.Equal(t, "nightly", first.RunID)
	assert.Equal(t, 3, first.Total)
	assert.Equal(t, 3, first.Scored)

	second, err := s.Run(context.Background(), month, "nightly")
	require.NoError(t, err)
	assert.Equal(t, first.OutputPath, second.OutputPath)

	// Re-driving the run overwrote in place; no stray output files.
	matches, err := filepath.Glob(filepath.Join(outputDir, "yellow", "2022", "02", "*.parquet"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, first.OutputPath, matches[0])
}

func TestRunDefaultsToFreshRunID(t *testing.T) {
	s := fullScorer(t, t.TempDir(), t.TempDir())
	month := Month{Year: 2022, Month: time.February}

	first, err := s.Run(context.Background(), month, "")
	require.NoError(t, err)
	second, err := s.Run(context.Background(), month, "")
	require.NoError(t, err)

	assert.NotEmpty(t, first.RunID)
	assert.NotEmpty(t, second.RunID)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.NotEqual(t, first.OutputPath, second.OutputPath)
}
