// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package monitor

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/tripcast/tripcast/internal/config"
	"github.com/tripcast/tripcast/internal/frame"
	"github.com/tripcast/tripcast/internal/logging"
	"github.com/tripcast/tripcast/internal/metrics"
)

// resampleSeed keeps reference downsampling deterministic across runs.
const resampleSeed = 42

// ErrNoReference is returned when a report is requested before a reference
// sample has been set.
var ErrNoReference = errors.New("no reference sample set")

// Engine ingests served predictions, gates report computation on window
// size and elapsed time, and publishes results to Prometheus.
type Engine struct {
	cfg    config.MonitorConfig
	window *Window
	store  *Store

	mu         sync.Mutex
	reference  map[string][]float64
	lastRun    time.Time
	lastReport *Report

	// now is injectable for tests.
	now func() time.Time
}

// NewEngine builds an engine over the given store. Records already in the
// store are replayed into the window in arrival order so a restart does not
// reset gating or reshuffle eviction; records that no longer fit the window
// are dropped from the store.
func NewEngine(cfg config.MonitorConfig, store *Store) (*Engine, error) {
	e := &Engine{
		cfg:    cfg,
		window: NewWindow(cfg.WindowSize),
		store:  store,
		now:    time.Now,
	}

	if store != nil {
		records, err := store.All()
		if err != nil {
			return nil, fmt.Errorf("replaying stored records: %w", err)
		}
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		})
		for i := range records {
			rec := records[i]
			e.dropEvicted(e.window.Add(&rec))
		}
		metrics.MonitorWindowSize.Set(float64(e.window.Size()))

		report, err := store.LatestReport()
		if err != nil {
			return nil, fmt.Errorf("loading last report: %w", err)
		}
		e.lastReport = report
	}
	return e, nil
}

// SetReference fixes the reference sample the window is compared against.
func (e *Engine) SetReference(reference map[string][]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reference = reference
}

// ReferenceFromFrame extracts per-feature value slices from a transformed
// training frame, typically saved at training time.
func ReferenceFromFrame(f *frame.Frame) (map[string][]float64, error) {
	out := make(map[string][]float64, len(f.Columns()))
	for _, name := range f.Columns() {
		col, err := f.Float(name)
		if err != nil {
			return nil, err
		}
		if col.NullCount() > 0 {
			return nil, fmt.Errorf("reference column %q has nulls", name)
		}
		values := make([]float64, len(col.Values))
		copy(values, col.Values)
		out[name] = values
	}
	return out, nil
}

// Ingest records a served prediction into the store and the live window.
func (e *Engine) Ingest(rec *Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = e.now()
	}

	if e.store != nil {
		if err := e.store.Insert(rec); err != nil {
			return err
		}
	}
	e.dropEvicted(e.window.Add(rec))
	metrics.MonitorWindowSize.Set(float64(e.window.Size()))
	return nil
}

// dropEvicted removes aged-out records from the store so it tracks the
// window instead of growing without bound.
func (e *Engine) dropEvicted(rideIDs []string) {
	if e.store == nil {
		return
	}
	for _, rideID := range rideIDs {
		if err := e.store.Delete(rideID); err != nil {
			logging.Warn().Err(err).Str("ride_id", rideID).Msg("Dropping evicted monitoring record failed")
		}
	}
}

// BackfillActual attaches ground truth to a previously ingested record.
func (e *Engine) BackfillActual(rideID string, actual float64) error {
	if e.store != nil {
		if err := e.store.UpdateActual(rideID, actual); err != nil {
			return err
		}
	}
	if !e.window.SetActual(rideID, actual) && e.store == nil {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, rideID)
	}
	return nil
}

// BackfillCSV reads "ride_id,duration" rows and backfills each one.
// Unknown ride IDs are skipped; the count of applied rows is returned.
func (e *Engine) BackfillCSV(r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2

	applied := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return applied, fmt.Errorf("reading ground truth: %w", err)
		}

		actual, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return applied, fmt.Errorf("bad duration %q for ride %s: %w", row[1], row[0], err)
		}
		if err := e.BackfillActual(row[0], actual); err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				continue
			}
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// WindowSize returns the current live window size.
func (e *Engine) WindowSize() int {
	return e.window.Size()
}

// LastReport returns the most recent report, or nil.
func (e *Engine) LastReport() *Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastReport
}

// MaybeReport computes a report if the gate allows: the window must hold at
// least MinWindowSize records and CalculationPeriod must have elapsed since
// the previous run. Returns (nil, false, nil) when gated.
func (e *Engine) MaybeReport() (*Report, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if e.window.Size() < e.cfg.MinWindowSize {
		metrics.MonitorReportsTotal.WithLabelValues("skipped").Inc()
		return nil, false, nil
	}
	if !e.lastRun.IsZero() && now.Sub(e.lastRun) < e.cfg.CalculationPeriod {
		metrics.MonitorReportsTotal.WithLabelValues("skipped").Inc()
		return nil, false, nil
	}
	if e.reference == nil {
		return nil, false, ErrNoReference
	}

	records := e.window.Snapshot()
	reference := resampleReference(e.reference, len(records))

	report := &Report{
		GeneratedAt: now,
		WindowSize:  len(records),
		Drift:       computeDrift(reference, records, e.cfg.Alpha, e.cfg.PSIThreshold),
	}
	for _, fd := range report.Drift {
		if fd.Drifted {
			report.DriftedFeatures++
		}
		metrics.MonitorFeaturePSI.WithLabelValues(fd.Feature).Set(fd.PSI)
	}
	report.Performance, report.LabeledCount = computePerformance(records)

	metrics.MonitorDriftedFeatures.Set(float64(report.DriftedFeatures))
	if report.Performance != nil {
		metrics.MonitorMAE.Set(report.Performance.MAE)
		metrics.MonitorRMSE.Set(report.Performance.RMSE)
		metrics.MonitorR2.Set(report.Performance.R2)
	}
	metrics.MonitorReportsTotal.WithLabelValues("computed").Inc()

	e.lastRun = now
	e.lastReport = report

	if e.store != nil {
		if err := e.store.SaveLatestReport(report); err != nil {
			logging.Warn().Err(err).Msg("Persisting monitoring report failed")
		}
	}

	logging.Info().
		Int("window_size", report.WindowSize).
		Int("labeled", report.LabeledCount).
		Int("drifted_features", report.DriftedFeatures).
		Msg("Monitoring report computed")
	return report, true, nil
}

// resampleReference downsamples oversized reference features to the window
// size with a fixed seed, so repeated reports over the same window agree.
func resampleReference(reference map[string][]float64, target int) map[string][]float64 {
	out := make(map[string][]float64, len(reference))
	for name, values := range reference {
		if target <= 0 || len(values) <= target {
			out[name] = values
			continue
		}
		rng := rand.New(rand.NewSource(resampleSeed))
		sampled := make([]float64, target)
		for i := range sampled {
			sampled[i] = values[rng.Intn(len(values))]
		}
		out[name] = sampled
	}
	return out
}

// String identifies the engine in supervisor logs.
func (e *Engine) String() string {
	return "monitor-engine"
}

// Serve runs the report loop until the context is canceled, satisfying
// suture.Service.
func (e *Engine) Serve(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.CalculationPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, _, err := e.MaybeReport(); err != nil && !errors.Is(err, ErrNoReference) {
				logging.Error().Err(err).Msg("Monitoring report failed")
			}
		}
	}
}
