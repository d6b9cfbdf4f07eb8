// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

// Package main runs the monthly batch scorer.
//
// Without flags it scores the month preceding today, matching a
// first-of-month cron schedule:
//
//	tripcast-batch
//	tripcast-batch -month 2022-02
//	tripcast-batch -month 2022-02 -run-id nightly
//	tripcast-batch -from 2021-11 -to 2022-02
//
// Each run loads the month's trip file, scores every in-domain record
// through the stored pipeline artifact, and writes a scored parquet file
// under the output tree. Record-level failures produce null predictions;
// the run itself only fails when a whole stage exhausts its retries.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/tripcast/tripcast/internal/artifact"
	"github.com/tripcast/tripcast/internal/batch"
	"github.com/tripcast/tripcast/internal/config"
	"github.com/tripcast/tripcast/internal/dataset"
	"github.com/tripcast/tripcast/internal/infer"
	"github.com/tripcast/tripcast/internal/logging"
)

func main() {
	month := flag.String("month", "", "score one specific month (YYYY-MM)")
	from := flag.String("from", "", "backfill start month (YYYY-MM), requires -to")
	to := flag.String("to", "", "backfill end month (YYYY-MM), requires -from")
	runID := flag.String("run-id", "", "run identifier keying the output path; re-running with the same ID overwrites (default: random)")
	flag.Parse()

	if err := run(*month, *from, *to, *runID); err != nil {
		logging.Fatal().Err(err).Msg("Batch scoring failed")
	}
}

func run(monthFlag, fromFlag, toFlag, runIDFlag string) error {
	if (fromFlag == "") != (toFlag == "") {
		return fmt.Errorf("-from and -to must be used together")
	}
	if monthFlag != "" && fromFlag != "" {
		return fmt.Errorf("-month and -from/-to are mutually exclusive")
	}

	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	store, err := artifact.Open(cfg.Model.ArtifactPath)
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := infer.LoadService(store, cfg.Model)
	if err != nil {
		return err
	}

	db, err := dataset.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	scorer := batch.NewScorer(cfg.Batch, db, svc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case fromFlag != "":
		fromMonth, err := parseMonth(fromFlag)
		if err != nil {
			return err
		}
		toMonth, err := parseMonth(toFlag)
		if err != nil {
			return err
		}
		if toMonth.Before(fromMonth) {
			return fmt.Errorf("backfill range %s..%s is reversed", fromMonth, toMonth)
		}
		summaries, err := scorer.Backfill(ctx, fromMonth, toMonth, runIDFlag)
		if encodeErr := json.NewEncoder(os.Stdout).Encode(summaries); encodeErr != nil {
			return encodeErr
		}
		return err

	case monthFlag != "":
		m, err := parseMonth(monthFlag)
		if err != nil {
			return err
		}
		summary, err := scorer.Run(ctx, m, runIDFlag)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(summary)

	default:
		summary, err := scorer.RunForDate(ctx, time.Now().UTC(), runIDFlag)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(summary)
	}
}

// parseMonth parses the YYYY-MM flag format.
func parseMonth(value string) (batch.Month, error) {
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return batch.Month{}, fmt.Errorf("month %q is not in YYYY-MM form: %w", value, err)
	}
	return batch.Month{Year: t.Year(), Month: t.Month()}, nil
}
