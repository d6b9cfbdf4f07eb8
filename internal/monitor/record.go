// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

// Package monitor watches served predictions for feature drift and, once
// ground truth arrives, for regression error. Records flow into a bounded
// live window; reports are computed against a fixed reference sample drawn
// from training data.
package monitor

import (
	"errors"
	"time"
)

// Record is one served prediction under observation. Actual stays nil until
// ground truth is backfilled.
type Record struct {
	RideID    string             `json:"ride_id"`
	Features  map[string]float64 `json:"features"`
	Predicted float64            `json:"predicted"`
	Actual    *float64           `json:"actual,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Validate checks the record before it enters the window.
func (r *Record) Validate() error {
	if r.RideID == "" {
		return errors.New("record has no ride_id")
	}
	if len(r.Features) == 0 {
		return errors.New("record has no features")
	}
	return nil
}

// Labeled reports whether ground truth has arrived.
func (r *Record) Labeled() bool {
	return r.Actual != nil
}
