// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

// Package main trains a trip-duration pipeline from a monthly TLC trip
// file and saves the fitted artifact:
//
//	tripcast-train -input /data/raw/yellow_tripdata_2022-01.parquet
//
// The run fits the full feature pipeline, reports holdout metrics, stores
// the encoded artifact under a fresh run ID, and captures the training
// feature distributions as the monitoring reference sample for that run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tripcast/tripcast/internal/artifact"
	"github.com/tripcast/tripcast/internal/config"
	"github.com/tripcast/tripcast/internal/dataset"
	"github.com/tripcast/tripcast/internal/frame"
	"github.com/tripcast/tripcast/internal/logging"
	"github.com/tripcast/tripcast/internal/pipeline"
	"github.com/tripcast/tripcast/internal/schema"
)

func main() {
	input := flag.String("input", "", "trip file to train on (parquet, csv or csv.gz)")
	runID := flag.String("run-id", "", "run ID for the saved artifact (default: random)")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: tripcast-train -input <trip file> [-run-id <id>]")
		os.Exit(2)
	}

	if err := run(*input, *runID); err != nil {
		logging.Fatal().Err(err).Msg("Training run failed")
	}
}

func run(input, runID string) error {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if runID == "" {
		runID = uuid.NewString()
	}
	logging.Info().Str("run_id", runID).Str("input", input).Msg("Training run started")

	db, err := dataset.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.LoadTrips(context.Background(), input)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no usable records in %s", input)
	}

	f, fieldErrs := schema.ValidateTraining(records)
	if len(fieldErrs) > 0 {
		return fmt.Errorf("%d record(s) failed schema validation, first: %s",
			len(fieldErrs), fieldErrs[0].Reason)
	}

	p := pipeline.New(cfg.Model.PipelineConfig())
	report, err := p.Fit(f)
	if err != nil {
		return fmt.Errorf("fitting pipeline: %w", err)
	}
	logging.Info().
		Int("train_rows", report.TrainRows).
		Int("valid_rows", report.ValidRows).
		Float64("rmse", report.RMSE).
		Float64("mae", report.MAE).
		Float64("r2", report.R2).
		Msg("Pipeline fitted")

	blob, err := p.Encode()
	if err != nil {
		return err
	}

	store, err := artifact.Open(cfg.Model.ArtifactPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Save(runID, blob); err != nil {
		return err
	}

	reference, err := referenceSample(f)
	if err != nil {
		return fmt.Errorf("building reference sample: %w", err)
	}
	refBlob, err := json.Marshal(reference)
	if err != nil {
		return err
	}
	if err := store.SaveReference(runID, refBlob); err != nil {
		return err
	}

	summary := map[string]interface{}{
		"run_id":     runID,
		"train_rows": report.TrainRows,
		"valid_rows": report.ValidRows,
		"rmse":       report.RMSE,
		"mae":        report.MAE,
		"r2":         report.R2,
	}
	return json.NewEncoder(os.Stdout).Encode(summary)
}

// referenceSample captures the raw training feature distributions that the
// monitoring engine compares live traffic against. Columns with nulls are
// skipped; the imputed indicator covers them downstream.
func referenceSample(f *frame.Frame) (map[string][]float64, error) {
	reference := make(map[string][]float64)
	for _, name := range f.Columns() {
		if name == schema.ColTripDuration {
			continue
		}
		col, err := f.Float(name)
		if err != nil {
			return nil, err
		}
		if col.NullCount() > 0 {
			continue
		}
		values := make([]float64, len(col.Values))
		copy(values, col.Values)
		reference[name] = values
	}
	return reference, nil
}
