// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tripcast/tripcast/internal/config"
	"github.com/tripcast/tripcast/internal/dataset"
	"github.com/tripcast/tripcast/internal/logging"
	"github.com/tripcast/tripcast/internal/metrics"
	"github.com/tripcast/tripcast/internal/schema"
	"github.com/tripcast/tripcast/internal/task"
)

// Predictor is the slice of the inference service the scorer needs. Batch
// records come out of the load query already domain-filtered, so they take
// the trusted path and skip per-record schema validation.
type Predictor interface {
	PredictTrusted(inputs []schema.TripInput) ([]float64, error)
}

// RunSummary reports what one batch run did.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	Month      string        `json:"month"`
	InputPath  string        `json:"input_path"`
	OutputPath string        `json:"output_path"`
	Total      int           `json:"total"`
	Scored     int           `json:"scored"`
	Failed     int           `json:"failed"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Scorer runs monthly scoring jobs. Each stage (resolve, load, score,
// write) runs under the retry policy; inside the score stage, individual
// record failures produce null predictions instead of failing the run.
type Scorer struct {
	cfg    config.BatchConfig
	db     *dataset.DB
	svc    Predictor
	policy task.RetryPolicy
}

// NewScorer wires the batch scorer.
func NewScorer(cfg config.BatchConfig, db *dataset.DB, svc Predictor) *Scorer {
	return &Scorer{
		cfg: cfg,
		db:  db,
		svc: svc,
		policy: task.RetryPolicy{
			MaxAttempts: cfg.RetryAttempts,
			Delay:       cfg.RetryDelay,
		},
	}
}

// RunForDate scores the month preceding the run date.
func (s *Scorer) RunForDate(ctx context.Context, runDate time.Time, runID string) (*RunSummary, error) {
	return s.Run(ctx, PreviousMonth(runDate), runID)
}

// Run scores one specific month. The run ID keys the output path, so re-
// driving a run with the same ID overwrites its previous output instead of
// scattering files; an empty ID gets a fresh UUID.
func (s *Scorer) Run(ctx context.Context, month Month, runID string) (*RunSummary, error) {
	started := time.Now()
	if runID == "" {
		runID = uuid.NewString()
	}

	summary := &RunSummary{RunID: runID, Month: month.String()}
	logging.Info().
		Str("run_id", runID).
		Str("month", summary.Month).
		Str("category", s.cfg.TaxiCategory).
		Msg("Batch scoring run started")

	err := task.Run(ctx, "resolve-input", s.policy, func(context.Context) error {
		path, err := InputPath(s.cfg.InputDir, s.cfg.TaxiCategory, month)
		if err != nil {
			return err
		}
		summary.InputPath = path
		return nil
	})
	if err != nil {
		return nil, err
	}

	var records []schema.TripTraining
	err = task.Run(ctx, "load", s.policy, func(ctx context.Context) error {
		var loadErr error
		records, loadErr = s.db.LoadTrips(ctx, summary.InputPath)
		return loadErr
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, task.Permanent(fmt.Errorf("no usable records in %s", summary.InputPath))
	}

	var rows []dataset.ScoredRow
	err = task.Run(ctx, "score", s.policy, func(ctx context.Context) error {
		rows = s.scoreRecords(ctx, records)
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary.OutputPath = OutputPath(s.cfg.OutputDir, s.cfg.TaxiCategory, month, runID)
	err = task.Run(ctx, "write", s.policy, func(ctx context.Context) error {
		return s.db.WriteScored(ctx, summary.OutputPath, rows)
	})
	if err != nil {
		return nil, err
	}

	summary.Total = len(rows)
	for _, row := range rows {
		if row.Predicted != nil {
			summary.Scored++
		} else {
			summary.Failed++
		}
	}
	summary.Elapsed = time.Since(started)

	metrics.BatchRunDuration.Observe(summary.Elapsed.Seconds())
	logging.Info().
		Str("run_id", runID).
		Int("total", summary.Total).
		Int("scored", summary.Scored).
		Int("failed", summary.Failed).
		Dur("elapsed", summary.Elapsed).
		Msg("Batch scoring run finished")
	return summary, nil
}

// scoreRecords scores every record across the worker pool. A record that
// fails prediction keeps a null prediction; the run continues.
func (s *Scorer) scoreRecords(ctx context.Context, records []schema.TripTraining) []dataset.ScoredRow {
	rows := make([]dataset.ScoredRow, len(records))
	indices := make(chan int)

	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				rows[i] = s.scoreOne(&records[i])
			}
		}()
	}

feed:
	for i := range records {
		select {
		case <-ctx.Done():
			break feed
		case indices <- i:
		}
	}
	close(indices)
	wg.Wait()
	return rows
}

func (s *Scorer) scoreOne(rec *schema.TripTraining) dataset.ScoredRow {
	row := dataset.ScoredRow{
		ActualDuration: *rec.TripDuration,
	}
	if rec.PickupDatetime != nil {
		row.PickupDatetime = rec.PickupDatetime.Time()
	}

	durations, err := s.svc.PredictTrusted([]schema.TripInput{rec.TripInput})
	if err != nil {
		metrics.BatchRecordsScored.WithLabelValues("failed").Inc()
		logging.Warn().Err(err).Time("pickup", row.PickupDatetime).Msg("Record scoring failed")
		return row
	}

	predicted := durations[0]
	diff := row.ActualDuration - predicted
	row.Predicted = &predicted
	row.Diff = &diff
	metrics.BatchRecordsScored.WithLabelValues("scored").Inc()
	return row
}

// Backfill runs every month in [from, to] in order. A caller-supplied run
// ID is shared across the months; output paths stay distinct because they
// are also keyed by month. Failed months are logged and skipped; the joined
// error is returned after the loop.
func (s *Scorer) Backfill(ctx context.Context, from, to Month, runID string) ([]*RunSummary, error) {
	var (
		summaries []*RunSummary
		errs      []error
	)
	for m := from; !to.Before(m); m = m.Next() {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		summary, err := s.Run(ctx, m, runID)
		if err != nil {
			logging.Error().Err(err).Str("month", m.String()).Msg("Backfill month failed")
			errs = append(errs, fmt.Errorf("month %s: %w", m, err))
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, errors.Join(errs...)
}
