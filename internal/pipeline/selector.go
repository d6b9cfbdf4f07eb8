// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package pipeline

import (
	"github.com/tripcast/tripcast/internal/frame"
)

// Selector restricts a frame to a fixed, ordered column list. It doubles as
// the drop step: anything not named is gone after Apply. A missing column
// fails the whole batch, since it signals training/serving skew rather than
// a bad record.
type Selector struct {
	columns []string
}

// NewSelector returns a selector for the given columns in the given order.
func NewSelector(columns ...string) *Selector {
	return &Selector{columns: columns}
}

// Name implements Stage.
func (s *Selector) Name() string { return "select" }

// Fit is a no-op; the column list is configuration, not learned state.
func (s *Selector) Fit(*frame.Frame) error { return nil }

// Apply projects the frame onto the configured columns.
func (s *Selector) Apply(f *frame.Frame) (*frame.Frame, error) {
	return f.Select(s.columns...)
}
