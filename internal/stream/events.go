// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

// Package stream scores ride events from NATS and publishes prediction
// events. Each incoming event carries one ride; failures are isolated per
// event so one malformed payload never stalls the stream.
package stream

import (
	"errors"
	"fmt"

	"github.com/tripcast/tripcast/internal/schema"
)

// RideEvent is one incoming ride to score.
type RideEvent struct {
	Ride   schema.TripInput `json:"ride"`
	RideID string           `json:"ride_id"`
}

// Validate checks the event envelope. Field-level ride validation happens
// in the schema package when the ride is scored.
func (e *RideEvent) Validate() error {
	if e.RideID == "" {
		return errors.New("ride event has no ride_id")
	}
	return nil
}

// PredictionPayload is the scored portion of a prediction event.
type PredictionPayload struct {
	RideDuration float64 `json:"ride_duration"`
	RideID       string  `json:"ride_id"`
}

// PredictionEvent is the published result for one scored ride.
type PredictionEvent struct {
	Model      string            `json:"model"`
	Version    string            `json:"version"`
	Prediction PredictionPayload `json:"prediction"`
}

// Validate checks the event before publishing.
func (e *PredictionEvent) Validate() error {
	if e.Model == "" {
		return errors.New("prediction event has no model name")
	}
	if e.Prediction.RideID == "" {
		return errors.New("prediction event has no ride_id")
	}
	if e.Prediction.RideDuration < 0 {
		return fmt.Errorf("prediction event has negative duration %v", e.Prediction.RideDuration)
	}
	return nil
}
