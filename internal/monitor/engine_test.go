// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package monitor

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripcast/tripcast/internal/config"
)

func testMonitorConfig() config.MonitorConfig {
	return config.MonitorConfig{
		Enabled:           true,
		WindowSize:        1000,
		MinWindowSize:     10,
		CalculationPeriod: time.Minute,
		Alpha:             0.05,
		PSIThreshold:      0.2,
	}
}

func newTestEngine(t *testing.T, cfg config.MonitorConfig) *Engine {
	t.Helper()
	store := newTestStore(t)
	e, err := NewEngine(cfg, store)
	require.NoError(t, err)
	return e
}

func fillEngine(t *testing.T, e *Engine, n int) {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < n; i++ {
		require.NoError(t, e.Ingest(&Record{
			RideID:    fmt.Sprintf("r%d", i),
			Features:  map[string]float64{"trip_distance": rng.NormFloat64()},
			Predicted: 10 + rng.Float64(),
		}))
	}
}

func referenceFor(n int) map[string][]float64 {
	rng := rand.New(rand.NewSource(12))
	return map[string][]float64{"trip_distance": normalSample(rng, n, 0, 1)}
}

func TestReportGateOnWindowSize(t *testing.T) {
	e := newTestEngine(t, testMonitorConfig())
	e.SetReference(referenceFor(100))
	fillEngine(t, e, 5)

	report, computed, err := e.MaybeReport()
	require.NoError(t, err)
	assert.False(t, computed)
	assert.Nil(t, report)
}

func TestReportGateOnCalculationPeriod(t *testing.T) {
	e := newTestEngine(t, testMonitorConfig())
	e.SetReference(referenceFor(100))
	fillEngine(t, e, 20)

	current := time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return current }

	_, computed, err := e.MaybeReport()
	require.NoError(t, err)
	assert.True(t, computed)

	// Too soon.
	current = current.Add(30 * time.Second)
	_, computed, err = e.MaybeReport()
	require.NoError(t, err)
	assert.False(t, computed)

	// Period elapsed.
	current = current.Add(time.Minute)
	_, computed, err = e.MaybeReport()
	require.NoError(t, err)
	assert.True(t, computed)
}

func TestReportRequiresReference(t *testing.T) {
	e := newTestEngine(t, testMonitorConfig())
	fillEngine(t, e, 20)

	_, _, err := e.MaybeReport()
	assert.ErrorIs(t, err, ErrNoReference)
}

func TestReportContents(t *testing.T) {
	e := newTestEngine(t, testMonitorConfig())
	e.SetReference(referenceFor(500))
	fillEngine(t, e, 400)

	require.NoError(t, e.BackfillActual("r0", 10.5))
	require.NoError(t, e.BackfillActual("r1", 11.0))
	require.NoError(t, e.BackfillActual("r2", 9.5))

	report, computed, err := e.MaybeReport()
	require.NoError(t, err)
	require.True(t, computed)

	assert.Equal(t, 400, report.WindowSize)
	assert.Equal(t, 3, report.LabeledCount)
	require.Len(t, report.Drift, 1)
	assert.Equal(t, "trip_distance", report.Drift[0].Feature)
	assert.False(t, report.Drift[0].Drifted)
	require.NotNil(t, report.Performance)
	assert.Greater(t, report.Performance.MAE, 0.0)

	assert.Equal(t, report, e.LastReport())
}

func TestReportDetectsDrift(t *testing.T) {
	e := newTestEngine(t, testMonitorConfig())
	e.SetReference(referenceFor(500))

	rng := rand.New(rand.NewSource(13))
	for i := 0; i < 50; i++ {
		require.NoError(t, e.Ingest(&Record{
			RideID:    fmt.Sprintf("d%d", i),
			Features:  map[string]float64{"trip_distance": 4 + rng.NormFloat64()},
			Predicted: 10,
		}))
	}

	report, computed, err := e.MaybeReport()
	require.NoError(t, err)
	require.True(t, computed)
	assert.Equal(t, 1, report.DriftedFeatures)
	assert.True(t, report.Drift[0].Drifted)
}

func TestEngineReplaysStoreOnRestart(t *testing.T) {
	store := newTestStore(t)
	cfg := testMonitorConfig()

	e1, err := NewEngine(cfg, store)
	require.NoError(t, err)
	e1.SetReference(referenceFor(100))
	fillEngine(t, e1, 15)

	_, computed, err := e1.MaybeReport()
	require.NoError(t, err)
	require.True(t, computed)

	e2, err := NewEngine(cfg, store)
	require.NoError(t, err)
	assert.Equal(t, 15, e2.WindowSize())

	replayed := e2.LastReport()
	require.NotNil(t, replayed)
	assert.Equal(t, 15, replayed.WindowSize)
}

func windowIDs(e *Engine) []string {
	snap := e.window.Snapshot()
	ids := make([]string, len(snap))
	for i := range snap {
		ids[i] = snap[i].RideID
	}
	return ids
}

func ingestAt(t *testing.T, e *Engine, rideID string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, e.Ingest(&Record{
		RideID:    rideID,
		Features:  map[string]float64{"trip_distance": 1},
		Predicted: 10,
		CreatedAt: createdAt,
	}))
}

func TestEngineReplaysInArrivalOrder(t *testing.T) {
	store := newTestStore(t)
	cfg := testMonitorConfig()
	cfg.WindowSize = 2
	cfg.MinWindowSize = 2

	e1, err := NewEngine(cfg, store)
	require.NoError(t, err)

	// Arrival order deliberately disagrees with ride ID order.
	base := time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC)
	ingestAt(t, e1, "b", base)
	ingestAt(t, e1, "a", base.Add(time.Second))
	ingestAt(t, e1, "c", base.Add(2*time.Second))
	require.Equal(t, []string{"a", "c"}, windowIDs(e1))

	e2, err := NewEngine(cfg, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, windowIDs(e2))
}

func TestEngineEvictionPrunesStore(t *testing.T) {
	store := newTestStore(t)
	cfg := testMonitorConfig()
	cfg.WindowSize = 2
	cfg.MinWindowSize = 2

	e, err := NewEngine(cfg, store)
	require.NoError(t, err)

	base := time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC)
	ingestAt(t, e, "r1", base)
	ingestAt(t, e, "r2", base.Add(time.Second))
	ingestAt(t, e, "r3", base.Add(2*time.Second))

	records, err := store.All()
	require.NoError(t, err)
	assert.Len(t, records, 2)
	_, err = store.Get("r1")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestBackfillCSV(t *testing.T) {
	e := newTestEngine(t, testMonitorConfig())
	fillEngine(t, e, 3)

	input := strings.NewReader("r0,12.5\nr1,8.0\nghost,3.0\n")
	applied, err := e.BackfillCSV(input)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	got, err := e.store.Get("r0")
	require.NoError(t, err)
	require.True(t, got.Labeled())
	assert.Equal(t, 12.5, *got.Actual)
}

func TestBackfillCSVBadDuration(t *testing.T) {
	e := newTestEngine(t, testMonitorConfig())
	fillEngine(t, e, 1)

	_, err := e.BackfillCSV(strings.NewReader("r0,notanumber\n"))
	assert.Error(t, err)
}

func TestIngestValidates(t *testing.T) {
	e := newTestEngine(t, testMonitorConfig())
	assert.Error(t, e.Ingest(&Record{RideID: "x"}))
}
