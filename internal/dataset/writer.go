// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tripcast/tripcast/internal/logging"
)

// ScoredRow is one batch-scored trip. Predicted and Diff stay nil when the
// record could not be scored; the row is still written so the output file
// accounts for every input record.
type ScoredRow struct {
	PickupDatetime time.Time
	ActualDuration float64
	Predicted      *float64
	Diff           *float64
}

// WriteScored writes scored rows to a parquet or CSV file chosen by the
// path extension. The output directory is created if needed.
func (db *DB) WriteScored(ctx context.Context, path string, rows []ScoredRow) error {
	format, err := copyFormat(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating output directory for %s: %w", path, err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning scored write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		CREATE OR REPLACE TEMP TABLE scored_trips (
			tpep_pickup_datetime TIMESTAMP,
			trip_duration DOUBLE,
			predicted_trip_duration DOUBLE,
			diff DOUBLE
		)`); err != nil {
		return fmt.Errorf("creating scored table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO scored_trips VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing scored insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		var predicted, diff interface{}
		if row.Predicted != nil {
			predicted = *row.Predicted
		}
		if row.Diff != nil {
			diff = *row.Diff
		}
		if _, err := stmt.ExecContext(ctx, row.PickupDatetime, row.ActualDuration, predicted, diff); err != nil {
			return fmt.Errorf("inserting scored row %d: %w", i, err)
		}
	}

	copySQL := fmt.Sprintf("COPY scored_trips TO '%s' (%s)", escapePath(path), format)
	if _, err := tx.ExecContext(ctx, copySQL); err != nil {
		return fmt.Errorf("writing scored output %s: %w", path, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing scored write: %w", err)
	}

	logging.Info().Str("path", path).Int("rows", len(rows)).Msg("Scored output written")
	return nil
}

// copyFormat maps an output path to DuckDB COPY options.
func copyFormat(path string) (string, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".parquet"):
		return "FORMAT PARQUET", nil
	case strings.HasSuffix(lower, ".csv"):
		return "FORMAT CSV, HEADER", nil
	default:
		return "", fmt.Errorf("unsupported scored output format: %s", path)
	}
}
