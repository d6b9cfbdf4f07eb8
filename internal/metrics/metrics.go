// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

// Package metrics registers the Prometheus collectors shared across the
// Tripcast binaries. All collectors use promauto, so importing this package
// is enough to expose them on the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PredictionsTotal counts served predictions by surface (api, batch,
	// stream) and outcome (ok, error).
	PredictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripcast_predictions_total",
		Help: "Total number of predictions served",
	}, []string{"surface", "outcome"})

	// PredictionDuration observes end-to-end prediction latency per surface.
	PredictionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tripcast_prediction_duration_seconds",
		Help:    "Prediction latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"surface"})

	// ValidationFailures counts rejected input records by surface.
	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripcast_validation_failures_total",
		Help: "Total number of input records rejected by schema validation",
	}, []string{"surface"})

	// BatchRecordsScored counts per-record outcomes of batch scoring runs.
	BatchRecordsScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripcast_batch_records_total",
		Help: "Total records processed by the batch scorer",
	}, []string{"outcome"})

	// BatchRunDuration observes full batch run duration.
	BatchRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tripcast_batch_run_duration_seconds",
		Help:    "Duration of a complete batch scoring run",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	// StreamEventsTotal counts stream events by outcome (scored, published,
	// decode_error, predict_error, publish_error, suppressed).
	StreamEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripcast_stream_events_total",
		Help: "Total ride events handled by the stream scorer",
	}, []string{"outcome"})

	// MonitorWindowSize tracks the current live window size.
	MonitorWindowSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tripcast_monitor_window_size",
		Help: "Number of records currently in the monitoring window",
	})

	// MonitorDriftedFeatures tracks how many features the latest drift
	// report flagged.
	MonitorDriftedFeatures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tripcast_monitor_drifted_features",
		Help: "Number of features flagged as drifted in the latest report",
	})

	// MonitorFeaturePSI exposes the latest PSI value per feature.
	MonitorFeaturePSI = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tripcast_monitor_feature_psi",
		Help: "Latest population stability index per feature",
	}, []string{"feature"})

	// MonitorMAE, MonitorRMSE and MonitorR2 expose the latest performance
	// report, computed only over records with ground truth.
	MonitorMAE = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tripcast_monitor_mae_minutes",
		Help: "Latest mean absolute error in minutes",
	})
	MonitorRMSE = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tripcast_monitor_rmse_minutes",
		Help: "Latest root mean squared error in minutes",
	})
	MonitorR2 = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tripcast_monitor_r2",
		Help: "Latest coefficient of determination",
	})

	// MonitorReportsTotal counts report runs by outcome (computed, skipped).
	MonitorReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripcast_monitor_reports_total",
		Help: "Total monitoring report runs",
	}, []string{"outcome"})

	// ArtifactLoads counts pipeline artifact loads by outcome.
	ArtifactLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripcast_artifact_loads_total",
		Help: "Total pipeline artifact load attempts",
	}, []string{"outcome"})
)
