// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

// Package infer serves predictions from a trained pipeline artifact. The
// service loads exactly one pipeline at startup and fails fast if it cannot;
// a process that cannot predict must not accept traffic.
package infer

import (
	"errors"
	"fmt"

	"github.com/tripcast/tripcast/internal/artifact"
	"github.com/tripcast/tripcast/internal/config"
	"github.com/tripcast/tripcast/internal/logging"
	"github.com/tripcast/tripcast/internal/metrics"
	"github.com/tripcast/tripcast/internal/models"
	"github.com/tripcast/tripcast/internal/pipeline"
	"github.com/tripcast/tripcast/internal/schema"
)

// ErrInvalidInput is returned when a prediction batch fails schema
// validation. The returned result carries the per-field errors.
var ErrInvalidInput = errors.New("invalid prediction input")

// Service predicts trip durations with one immutable fitted pipeline.
// Safe for concurrent use.
type Service struct {
	pipe      *pipeline.Pipeline
	modelName string
	version   string
	runID     string
}

// NewService wraps an already fitted pipeline.
func NewService(p *pipeline.Pipeline, modelName, version, runID string) *Service {
	return &Service{pipe: p, modelName: modelName, version: version, runID: runID}
}

// LoadService restores the configured pipeline artifact from the store.
// An empty run ID loads the latest saved run. Any failure is fatal to the
// caller; there is no degraded mode.
func LoadService(store *artifact.Store, cfg config.ModelConfig) (*Service, error) {
	var (
		runID = cfg.RunID
		blob  []byte
		err   error
	)
	if runID == "" {
		runID, blob, err = store.Latest()
	} else {
		blob, err = store.Load(runID)
	}
	if err != nil {
		metrics.ArtifactLoads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("loading model artifact: %w", err)
	}

	pipe, err := pipeline.Decode(blob)
	if err != nil {
		metrics.ArtifactLoads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decoding model artifact %s: %w", runID, err)
	}

	metrics.ArtifactLoads.WithLabelValues("ok").Inc()
	logging.Info().
		Str("model", cfg.Name).
		Str("version", cfg.Version).
		Str("run_id", runID).
		Msg("Model artifact loaded")
	return NewService(pipe, cfg.Name, cfg.Version, runID), nil
}

// ModelName returns the served model's name.
func (s *Service) ModelName() string { return s.modelName }

// Version returns the served model's version string.
func (s *Service) Version() string { return s.version }

// RunID returns the artifact run backing this service.
func (s *Service) RunID() string { return s.runID }

// Predict validates the batch and returns one duration per record, in
// minutes. Validation failures return ErrInvalidInput with the field
// errors attached to the result; nothing is partially scored.
func (s *Service) Predict(inputs []schema.TripInput) (*models.PredictionResult, error) {
	f, fieldErrs := schema.ValidateInput(inputs)
	if len(fieldErrs) > 0 {
		return &models.PredictionResult{
			ModelVersion: s.version,
			Errors:       fieldErrs,
		}, ErrInvalidInput
	}

	durations, err := s.pipe.PredictDuration(f)
	if err != nil {
		return nil, fmt.Errorf("predicting batch of %d: %w", len(inputs), err)
	}

	return &models.PredictionResult{
		TripDuration: durations,
		ModelVersion: s.version,
	}, nil
}

// PredictTrusted scores records without schema validation, for callers whose
// data already passed upstream domain filtering. A record that still carries
// an unusable null surfaces as a pipeline error rather than a field error.
func (s *Service) PredictTrusted(inputs []schema.TripInput) ([]float64, error) {
	if len(inputs) == 0 {
		return nil, errors.New("empty prediction batch")
	}

	durations, err := s.pipe.PredictDuration(schema.InputFrame(inputs))
	if err != nil {
		return nil, fmt.Errorf("predicting batch of %d: %w", len(inputs), err)
	}
	return durations, nil
}
