// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tripcast/config.yaml",
	"/etc/tripcast/config.yml",
}

// ConfigPathEnvVar overrides the config file search entirely.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults, applied before the config
// file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8086,
			Timeout: 30 * time.Second,
		},
		Model: ModelConfig{
			Name:               "trip_duration",
			Version:            "1.0.0",
			ArtifactPath:       "/data/tripcast/artifacts",
			RunID:              "",
			Seed:               42,
			ValidationFraction: 0.2,
			RidgeLambda:        1.0,
		},
		Database: DatabaseConfig{
			Path:      "/data/tripcast/tripcast.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Batch: BatchConfig{
			InputDir:      "/data/tripcast/raw",
			OutputDir:     "/data/tripcast/scored",
			TaxiCategory:  "yellow",
			Workers:       4,
			RetryAttempts: 4,
			RetryDelay:    10 * time.Second,
		},
		Stream: StreamConfig{
			Enabled:            false,
			URL:                "nats://127.0.0.1:4222",
			EventsSubject:      "ride.events",
			PredictionsSubject: "ride.predictions",
			QueueGroup:         "scorers",
			TestRun:            false,
		},
		Monitor: MonitorConfig{
			Enabled:           true,
			StorePath:         "/data/tripcast/monitor",
			WindowSize:        3000,
			MinWindowSize:     30,
			CalculationPeriod: 15 * time.Second,
			Alpha:             0.05,
			PSIThreshold:      0.2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration with layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are dropped so stray environment noise cannot leak
// into the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// Model mappings
		"model_name":                "model.name",
		"model_version":             "model.version",
		"model_artifact_path":       "model.artifact_path",
		"model_run_id":              "model.run_id",
		"model_seed":                "model.seed",
		"model_validation_fraction": "model.validation_fraction",
		"model_ridge_lambda":        "model.ridge_lambda",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Batch mappings
		"batch_input_dir":      "batch.input_dir",
		"batch_output_dir":     "batch.output_dir",
		"batch_taxi_category":  "batch.taxi_category",
		"batch_workers":        "batch.workers",
		"batch_retry_attempts": "batch.retry_attempts",
		"batch_retry_delay":    "batch.retry_delay",

		// Stream mappings
		"stream_enabled":             "stream.enabled",
		"nats_url":                   "stream.url",
		"stream_events_subject":      "stream.events_subject",
		"stream_predictions_subject": "stream.predictions_subject",
		"stream_queue_group":         "stream.queue_group",
		"test_run":                   "stream.test_run",

		// Monitor mappings
		"monitor_enabled":            "monitor.enabled",
		"monitor_store_path":         "monitor.store_path",
		"monitor_window_size":        "monitor.window_size",
		"monitor_min_window_size":    "monitor.min_window_size",
		"monitor_calculation_period": "monitor.calculation_period",
		"monitor_alpha":              "monitor.alpha",
		"monitor_psi_threshold":      "monitor.psi_threshold",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
