// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package pipeline

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/tripcast/tripcast/internal/frame"
)

// Scaler standardizes every column of the frame to zero mean and unit
// variance using statistics learned at fit time. A constant training column
// gets a unit divisor so it maps to zero instead of NaN.
type Scaler struct {
	columns []string
	means   map[string]float64
	stds    map[string]float64
}

// NewScaler returns an unfitted standard scaler.
func NewScaler() *Scaler {
	return &Scaler{}
}

// Name implements Stage.
func (s *Scaler) Name() string { return "scale" }

// Fit learns per-column mean and standard deviation. The column set is
// recorded so Apply can reject a frame with a different shape.
func (s *Scaler) Fit(f *frame.Frame) error {
	columns := f.Columns()
	means := make(map[string]float64, len(columns))
	stds := make(map[string]float64, len(columns))

	for _, name := range columns {
		col, err := f.Float(name)
		if err != nil {
			return err
		}
		if col.NullCount() > 0 {
			return fmt.Errorf("column %q still has nulls, imputation must run first", name)
		}
		mean, std := stat.MeanStdDev(col.Values, nil)
		if std == 0 || std != std {
			std = 1
		}
		means[name] = mean
		stds[name] = std
	}

	s.columns = columns
	s.means = means
	s.stds = stds
	return nil
}

// Apply standardizes the frame with the learned statistics.
func (s *Scaler) Apply(f *frame.Frame) (*frame.Frame, error) {
	if s.means == nil {
		return nil, fmt.Errorf("scaler not fitted")
	}

	out := f.Clone()
	for _, name := range s.columns {
		col, err := out.Float(name)
		if err != nil {
			return nil, err
		}
		scaled := &frame.FloatColumn{Values: make([]float64, len(col.Values))}
		for i, v := range col.Values {
			if col.IsNull(i) {
				return nil, fmt.Errorf("column %q has null at row %d", name, i)
			}
			scaled.Values[i] = (v - s.means[name]) / s.stds[name]
		}
		if err := out.SetFloat(name, scaled); err != nil {
			return nil, err
		}
	}
	return out, nil
}
