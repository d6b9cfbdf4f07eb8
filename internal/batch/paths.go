// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

// Package batch scores one month of trips at a time. A run resolves its
// input file from the run date, scores every record through the trained
// pipeline, and writes a scored file under an output tree keyed by
// category, year, month and run ID.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Month is a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// String renders the TLC file convention, e.g. "2022-02".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return Month{Year: t.Year(), Month: t.Month()}
}

// Before reports whether m precedes other.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// PreviousMonth returns the month before the run date. A job running on
// 2022-03-05 scores the February file.
func PreviousMonth(runDate time.Time) Month {
	t := time.Date(runDate.Year(), runDate.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return Month{Year: t.Year(), Month: t.Month()}
}

// InputPath returns the raw trip file for a month, preferring parquet and
// falling back to CSV when only that exists.
func InputPath(dir, category string, m Month) (string, error) {
	stem := fmt.Sprintf("%s_tripdata_%s", category, m)
	candidates := []string{
		filepath.Join(dir, stem+".parquet"),
		filepath.Join(dir, stem+".csv"),
		filepath.Join(dir, stem+".csv.gz"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no trip file for %s %s under %s", category, m, dir)
}

// OutputPath returns the scored file location for a run.
func OutputPath(dir, category string, m Month, runID string) string {
	return filepath.Join(dir, category,
		fmt.Sprintf("%04d", m.Year),
		fmt.Sprintf("%02d", int(m.Month)),
		runID+".parquet")
}
