// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

// Package main is the Tripcast serving daemon.
//
// The daemon loads a trained pipeline artifact and serves it three ways:
//
//  1. HTTP API: POST /api/v1/predict scores trip batches, with health,
//     model info, monitoring report and Prometheus endpoints alongside.
//  2. Stream scorer (optional): consumes ride events from NATS and
//     publishes prediction events, enabled with STREAM_ENABLED=true.
//  3. Monitoring engine (optional): tracks served predictions against the
//     training reference sample and periodically reports drift and
//     regression performance.
//
// Configuration is loaded via Koanf with layered sources (highest wins):
// environment variables, config file (CONFIG_PATH or config.yaml), then
// built-in defaults.
//
// Startup is fail-fast: if the artifact store has no usable model the
// process exits instead of serving errors. All long-lived services run
// under a suture supervision tree and are restarted on failure; SIGINT
// and SIGTERM trigger a bounded graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/goccy/go-json"

	"github.com/tripcast/tripcast/internal/api"
	"github.com/tripcast/tripcast/internal/artifact"
	"github.com/tripcast/tripcast/internal/config"
	"github.com/tripcast/tripcast/internal/infer"
	"github.com/tripcast/tripcast/internal/logging"
	"github.com/tripcast/tripcast/internal/monitor"
	"github.com/tripcast/tripcast/internal/stream"
	"github.com/tripcast/tripcast/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Tripcast daemon failed")
	}
}

func run() error {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("model", cfg.Model.Name).
		Str("version", cfg.Model.Version).
		Msg("Tripcast daemon starting")

	store, err := artifact.Open(cfg.Model.ArtifactPath)
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := infer.LoadService(store, cfg.Model)
	if err != nil {
		return err
	}

	var engine *monitor.Engine
	if cfg.Monitor.Enabled {
		var mstore *monitor.Store
		engine, mstore, err = buildEngine(cfg.Monitor, store, svc.RunID())
		if err != nil {
			return err
		}
		defer mstore.Close()
	}

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(api.NewHandler(svc, engine)),
		ReadHeaderTimeout: cfg.Server.Timeout,
	}
	tree.AddServingService(supervisor.NewHTTPService(server, cfg.Server.Timeout))

	if engine != nil {
		tree.AddScoringService(engine)
	}

	if cfg.Stream.Enabled {
		logger := watermill.NewSlogLogger(logging.NewSlogLogger())
		publisher, err := stream.NewPublisher(cfg.Stream, logger)
		if err != nil {
			return fmt.Errorf("connecting stream publisher: %w", err)
		}
		defer publisher.Close()

		handler := stream.NewHandler(svc, publisher, cfg.Stream.TestRun)
		tree.AddScoringService(stream.NewService(cfg.Stream, handler, logger))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().
		Str("addr", server.Addr).
		Bool("stream", cfg.Stream.Enabled).
		Bool("monitor", cfg.Monitor.Enabled).
		Msg("Tripcast daemon ready")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("Tripcast daemon stopped")
	return nil
}

// buildEngine opens the monitoring store and seeds the engine with the
// reference sample captured when the served run was trained. A missing
// reference is not fatal; drift reports stay disabled until one is set.
func buildEngine(cfg config.MonitorConfig, store *artifact.Store, runID string) (*monitor.Engine, *monitor.Store, error) {
	mstore, err := monitor.OpenStore(cfg.StorePath)
	if err != nil {
		return nil, nil, err
	}

	engine, err := monitor.NewEngine(cfg, mstore)
	if err != nil {
		mstore.Close()
		return nil, nil, err
	}

	blob, err := store.LoadReference(runID)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			logging.Warn().Str("run_id", runID).Msg("No reference sample for run, drift reporting disabled")
			return engine, mstore, nil
		}
		mstore.Close()
		return nil, nil, err
	}

	var reference map[string][]float64
	if err := json.Unmarshal(blob, &reference); err != nil {
		mstore.Close()
		return nil, nil, fmt.Errorf("decoding reference sample for run %s: %w", runID, err)
	}
	engine.SetReference(reference)
	logging.Info().Str("run_id", runID).Int("features", len(reference)).Msg("Reference sample loaded")
	return engine, mstore, nil
}
