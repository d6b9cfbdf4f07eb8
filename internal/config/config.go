// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

// Package config defines the Tripcast configuration tree and loads it from
// layered sources: struct defaults, an optional YAML file, then environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/tripcast/tripcast/internal/pipeline"
)

// Config is the root configuration for every Tripcast binary.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Model    ModelConfig    `koanf:"model"`
	Database DatabaseConfig `koanf:"database"`
	Batch    BatchConfig    `koanf:"batch"`
	Stream   StreamConfig   `koanf:"stream"`
	Monitor  MonitorConfig  `koanf:"monitor"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// ModelConfig names the served model and fixes its training knobs.
type ModelConfig struct {
	// Name and Version identify the model in prediction responses and
	// published events.
	Name    string `koanf:"name"`
	Version string `koanf:"version"`

	// ArtifactPath is the badger directory holding trained pipelines.
	ArtifactPath string `koanf:"artifact_path"`

	// RunID selects which stored artifact to serve. Empty means the
	// latest saved run.
	RunID string `koanf:"run_id"`

	Seed               int64   `koanf:"seed"`
	ValidationFraction float64 `koanf:"validation_fraction"`
	RidgeLambda        float64 `koanf:"ridge_lambda"`
}

// PipelineConfig materializes the feature pipeline configuration with this
// model's training knobs applied.
func (m ModelConfig) PipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Seed = m.Seed
	cfg.ValidationFraction = m.ValidationFraction
	cfg.RidgeLambda = m.RidgeLambda
	return cfg
}

// DatabaseConfig holds the DuckDB settings used by training and batch runs.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// BatchConfig drives the monthly scoring job.
type BatchConfig struct {
	// InputDir holds the raw monthly trip files, named
	// {category}_tripdata_{year}-{month}.
	InputDir string `koanf:"input_dir"`

	// OutputDir receives scored files under {category}/{year}/{month}/.
	OutputDir string `koanf:"output_dir"`

	// TaxiCategory selects the fleet, e.g. "yellow" or "green".
	TaxiCategory string `koanf:"taxi_category"`

	Workers       int           `koanf:"workers"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
}

// StreamConfig wires the NATS event scorer.
type StreamConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`

	// EventsSubject carries incoming ride events; PredictionsSubject
	// carries scored output.
	EventsSubject      string `koanf:"events_subject"`
	PredictionsSubject string `koanf:"predictions_subject"`

	QueueGroup string `koanf:"queue_group"`

	// TestRun scores events without publishing predictions.
	TestRun bool `koanf:"test_run"`
}

// MonitorConfig drives the drift and performance monitor.
type MonitorConfig struct {
	Enabled bool `koanf:"enabled"`

	// StorePath is the badger directory for live prediction records.
	StorePath string `koanf:"store_path"`

	// WindowSize caps the live window; MinWindowSize gates report
	// computation.
	WindowSize    int `koanf:"window_size"`
	MinWindowSize int `koanf:"min_window_size"`

	// CalculationPeriod is the minimum spacing between report runs.
	CalculationPeriod time.Duration `koanf:"calculation_period"`

	// Drift thresholds: KS p-value below Alpha or PSI above PSIThreshold
	// flags a feature as drifted.
	Alpha        float64 `koanf:"alpha"`
	PSIThreshold float64 `koanf:"psi_threshold"`
}

// LoggingConfig mirrors the logging package settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks cross-field constraints that tags cannot express.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name must not be empty")
	}
	if c.Model.ValidationFraction < 0 || c.Model.ValidationFraction >= 1 {
		return fmt.Errorf("model.validation_fraction %v must be in [0,1)", c.Model.ValidationFraction)
	}
	if c.Model.RidgeLambda < 0 {
		return fmt.Errorf("model.ridge_lambda must not be negative")
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be at least 1")
	}
	if c.Batch.RetryAttempts < 1 {
		return fmt.Errorf("batch.retry_attempts must be at least 1")
	}
	if c.Monitor.WindowSize < 1 {
		return fmt.Errorf("monitor.window_size must be at least 1")
	}
	if c.Monitor.MinWindowSize < 2 {
		return fmt.Errorf("monitor.min_window_size must be at least 2")
	}
	if c.Monitor.MinWindowSize > c.Monitor.WindowSize {
		return fmt.Errorf("monitor.min_window_size %d exceeds window_size %d",
			c.Monitor.MinWindowSize, c.Monitor.WindowSize)
	}
	if c.Monitor.Alpha <= 0 || c.Monitor.Alpha >= 1 {
		return fmt.Errorf("monitor.alpha %v must be in (0,1)", c.Monitor.Alpha)
	}
	if c.Monitor.CalculationPeriod <= 0 {
		return fmt.Errorf("monitor.calculation_period must be positive")
	}
	if c.Stream.Enabled {
		if c.Stream.URL == "" {
			return fmt.Errorf("stream.url required when stream is enabled")
		}
		if c.Stream.EventsSubject == "" || c.Stream.PredictionsSubject == "" {
			return fmt.Errorf("stream subjects must not be empty")
		}
	}
	return nil
}
