// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package pipeline

import (
	"fmt"

	"github.com/tripcast/tripcast/internal/frame"
	"github.com/tripcast/tripcast/internal/schema"
)

// Temporal derives day_of_week and hour_of_day from a timestamp column.
// day_of_week runs Monday=0 through Sunday=6; hour_of_day is 0 through 23.
// The source timestamp column is left in place for a later selector to drop.
type Temporal struct {
	source string
}

// NewTemporal returns a temporal extractor reading from the named
// timestamp column.
func NewTemporal(source string) *Temporal {
	return &Temporal{source: source}
}

// Name implements Stage.
func (t *Temporal) Name() string { return "temporal" }

// Fit is a no-op; the extraction is purely calendrical.
func (t *Temporal) Fit(*frame.Frame) error { return nil }

// Apply appends the two derived columns.
func (t *Temporal) Apply(f *frame.Frame) (*frame.Frame, error) {
	col, err := f.Time(t.source)
	if err != nil {
		return nil, err
	}

	dow := &frame.FloatColumn{Values: make([]float64, len(col.Values))}
	hod := &frame.FloatColumn{Values: make([]float64, len(col.Values))}
	for i, ts := range col.Values {
		if col.IsNull(i) {
			return nil, fmt.Errorf("column %q has null timestamp at row %d", t.source, i)
		}
		// time.Weekday counts Sunday=0; shift to Monday=0.
		dow.Values[i] = float64((int(ts.Weekday()) + 6) % 7)
		hod.Values[i] = float64(ts.Hour())
	}

	out := f.Clone()
	if err := out.AddFloat(schema.ColDayOfWeek, dow); err != nil {
		return nil, err
	}
	if err := out.AddFloat(schema.ColHourOfDay, hod); err != nil {
		return nil, err
	}
	return out, nil
}
