// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

// Package pipeline assembles the feature transformations and the regressor
// into one fit/transform/predict unit. The stage order is fixed at
// construction; every stage learns its parameters from training data only
// and replays them unchanged at inference time.
package pipeline

import (
	"github.com/tripcast/tripcast/internal/frame"
)

// Stage is one step of the feature pipeline. Fit learns parameters from a
// training frame; Apply produces a new frame and never mutates its input.
// Stateless stages implement Fit as a no-op.
type Stage interface {
	Name() string
	Fit(f *frame.Frame) error
	Apply(f *frame.Frame) (*frame.Frame, error)
}
