// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8086, cfg.Server.Port)
	assert.Equal(t, "ride.events", cfg.Stream.EventsSubject)
	assert.Equal(t, "trip_duration", cfg.Model.Name)
}

func TestLoadWithKoanfDefaultsOnly(t *testing.T) {
	cfg, err := LoadWithKoanf()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Monitor.WindowSize)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("MODEL_VERSION", "2.1.0")
	t.Setenv("TEST_RUN", "true")
	t.Setenv("MONITOR_CALCULATION_PERIOD", "1m")

	cfg, err := LoadWithKoanf()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "2.1.0", cfg.Model.Version)
	assert.True(t, cfg.Stream.TestRun)
	assert.Equal(t, time.Minute, cfg.Monitor.CalculationPeriod)
}

func TestUnmappedEnvVarsAreIgnored(t *testing.T) {
	t.Setenv("SOME_RANDOM_VAR", "surprise")

	cfg, err := LoadWithKoanf()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
}

func TestConfigFileLayer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 4242\nbatch:\n  taxi_category: green\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadWithKoanf()
	require.NoError(t, err)
	assert.Equal(t, 4242, cfg.Server.Port)
	assert.Equal(t, "green", cfg.Batch.TaxiCategory)
	// Untouched sections keep defaults.
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestEnvBeatsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 4242\n"), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "5151")

	cfg, err := LoadWithKoanf()
	require.NoError(t, err)
	assert.Equal(t, 5151, cfg.Server.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 0 }},
		{"empty model name", func(c *Config) { c.Model.Name = "" }},
		{"validation fraction too high", func(c *Config) { c.Model.ValidationFraction = 1.0 }},
		{"negative ridge lambda", func(c *Config) { c.Model.RidgeLambda = -1 }},
		{"zero workers", func(c *Config) { c.Batch.Workers = 0 }},
		{"min window above window", func(c *Config) {
			c.Monitor.WindowSize = 10
			c.Monitor.MinWindowSize = 20
		}},
		{"alpha out of range", func(c *Config) { c.Monitor.Alpha = 1.5 }},
		{"zero calculation period", func(c *Config) { c.Monitor.CalculationPeriod = 0 }},
		{"stream enabled without url", func(c *Config) {
			c.Stream.Enabled = true
			c.Stream.URL = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPipelineConfigAppliesKnobs(t *testing.T) {
	m := ModelConfig{Seed: 7, ValidationFraction: 0.3, RidgeLambda: 2.5}
	pc := m.PipelineConfig()
	assert.Equal(t, int64(7), pc.Seed)
	assert.Equal(t, 0.3, pc.ValidationFraction)
	assert.Equal(t, 2.5, pc.RidgeLambda)
	assert.NotEmpty(t, pc.InputFeatures)
	assert.NotEmpty(t, pc.ImportantFeatures)
}
