// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package pipeline

import (
	"fmt"
	"sort"

	"github.com/tripcast/tripcast/internal/frame"
)

// IndicatorSuffix is appended to a variable name to form its missingness
// indicator column.
const IndicatorSuffix = "_na"

// Imputer handles missing values for the configured variables. For each
// variable it appends a 0/1 indicator column recording which cells were
// null, then fills the nulls with the median learned from training data.
// The indicator is added before filling, so downstream stages see both the
// imputed value and the fact that it was imputed.
type Imputer struct {
	vars    []string
	medians map[string]float64
}

// NewImputer returns an imputer for the given variables.
func NewImputer(vars ...string) *Imputer {
	return &Imputer{vars: vars}
}

// Name implements Stage.
func (m *Imputer) Name() string { return "impute" }

// Fit learns the median of the non-null training values for each variable.
// A variable with no non-null values cannot be imputed and fails the fit.
func (m *Imputer) Fit(f *frame.Frame) error {
	medians := make(map[string]float64, len(m.vars))
	for _, name := range m.vars {
		col, err := f.Float(name)
		if err != nil {
			return err
		}
		values := col.NonNull()
		if len(values) == 0 {
			return fmt.Errorf("column %q is entirely null, cannot learn imputation value", name)
		}
		sort.Float64s(values)
		medians[name] = median(values)
	}
	m.medians = medians
	return nil
}

// Apply adds the indicator columns and fills nulls with the learned medians.
func (m *Imputer) Apply(f *frame.Frame) (*frame.Frame, error) {
	if m.medians == nil {
		return nil, fmt.Errorf("imputer not fitted")
	}

	out := f.Clone()
	for _, name := range m.vars {
		col, err := out.Float(name)
		if err != nil {
			return nil, err
		}

		indicator := &frame.FloatColumn{Values: make([]float64, len(col.Values))}
		filled := &frame.FloatColumn{Values: make([]float64, len(col.Values))}
		for i, v := range col.Values {
			if col.IsNull(i) {
				indicator.Values[i] = 1
				filled.Values[i] = m.medians[name]
			} else {
				filled.Values[i] = v
			}
		}

		if err := out.SetFloat(name, filled); err != nil {
			return nil, err
		}
		if err := out.AddFloat(name+IndicatorSuffix, indicator); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// median of an already-sorted slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
