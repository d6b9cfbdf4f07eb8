// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

// Package frame implements the column-oriented table that flows through the
// feature pipeline. A Frame holds named, ordered columns of float64 values
// (with per-cell null masks) plus timestamp columns for temporal fields.
//
// Nulls are first class: a missing value is represented in the mask, never
// by a NaN sentinel, so the imputation stage can act on it directly.
//
// Row order is stable across every operation; transform stages rely on that
// to keep feature rows aligned with their source records.
package frame

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// ErrMissingColumn is the sentinel for a requested column that is absent.
// A selector hitting this during inference indicates training/serving skew
// and is deliberately fatal.
var ErrMissingColumn = errors.New("missing column")

// MissingColumnError reports which column was requested but absent.
type MissingColumnError struct {
	Column string
}

// Error implements the error interface.
func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %q", e.Column)
}

// Unwrap allows errors.Is(err, ErrMissingColumn).
func (e *MissingColumnError) Unwrap() error {
	return ErrMissingColumn
}

// FloatColumn is a numeric column with an optional null mask.
// A nil Null mask means every value is present.
type FloatColumn struct {
	Values []float64
	Null   []bool
}

// IsNull reports whether row i is null.
func (c *FloatColumn) IsNull(i int) bool {
	return c.Null != nil && c.Null[i]
}

// NonNull returns the non-null values in row order.
func (c *FloatColumn) NonNull() []float64 {
	if c.Null == nil {
		out := make([]float64, len(c.Values))
		copy(out, c.Values)
		return out
	}
	out := make([]float64, 0, len(c.Values))
	for i, v := range c.Values {
		if !c.Null[i] {
			out = append(out, v)
		}
	}
	return out
}

// NullCount returns the number of null cells.
func (c *FloatColumn) NullCount() int {
	n := 0
	for _, isNull := range c.Null {
		if isNull {
			n++
		}
	}
	return n
}

// clone returns a deep copy of the column.
func (c *FloatColumn) clone() *FloatColumn {
	out := &FloatColumn{Values: make([]float64, len(c.Values))}
	copy(out.Values, c.Values)
	if c.Null != nil {
		out.Null = make([]bool, len(c.Null))
		copy(out.Null, c.Null)
	}
	return out
}

// TimeColumn is a timestamp column with an optional null mask.
type TimeColumn struct {
	Values []time.Time
	Null   []bool
}

// IsNull reports whether row i is null.
func (c *TimeColumn) IsNull(i int) bool {
	return c.Null != nil && c.Null[i]
}

// clone returns a deep copy of the column.
func (c *TimeColumn) clone() *TimeColumn {
	out := &TimeColumn{Values: make([]time.Time, len(c.Values))}
	copy(out.Values, c.Values)
	if c.Null != nil {
		out.Null = make([]bool, len(c.Null))
		copy(out.Null, c.Null)
	}
	return out
}

// Frame is an ordered collection of named columns with a common row count.
type Frame struct {
	order  []string
	floats map[string]*FloatColumn
	times  map[string]*TimeColumn
	rows   int
}

// New creates an empty frame expecting the given number of rows.
func New(rows int) *Frame {
	return &Frame{
		floats: make(map[string]*FloatColumn),
		times:  make(map[string]*TimeColumn),
		rows:   rows,
	}
}

// NumRows returns the row count.
func (f *Frame) NumRows() int {
	return f.rows
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Has reports whether a column of either kind exists.
func (f *Frame) Has(name string) bool {
	_, fok := f.floats[name]
	_, tok := f.times[name]
	return fok || tok
}

// AddFloat appends a numeric column. The values length must match the frame
// row count; the null mask may be nil.
func (f *Frame) AddFloat(name string, col *FloatColumn) error {
	if err := f.checkAdd(name, len(col.Values), len(col.Null)); err != nil {
		return err
	}
	f.floats[name] = col
	f.order = append(f.order, name)
	return nil
}

// AddTime appends a timestamp column.
func (f *Frame) AddTime(name string, col *TimeColumn) error {
	if err := f.checkAdd(name, len(col.Values), len(col.Null)); err != nil {
		return err
	}
	f.times[name] = col
	f.order = append(f.order, name)
	return nil
}

func (f *Frame) checkAdd(name string, values, nulls int) error {
	if f.Has(name) {
		return fmt.Errorf("duplicate column %q", name)
	}
	if values != f.rows {
		return fmt.Errorf("column %q has %d values, frame has %d rows", name, values, f.rows)
	}
	if nulls != 0 && nulls != f.rows {
		return fmt.Errorf("column %q null mask has %d entries, frame has %d rows", name, nulls, f.rows)
	}
	return nil
}

// Float returns a numeric column or a MissingColumnError.
func (f *Frame) Float(name string) (*FloatColumn, error) {
	col, ok := f.floats[name]
	if !ok {
		return nil, &MissingColumnError{Column: name}
	}
	return col, nil
}

// Time returns a timestamp column or a MissingColumnError.
func (f *Frame) Time(name string) (*TimeColumn, error) {
	col, ok := f.times[name]
	if !ok {
		return nil, &MissingColumnError{Column: name}
	}
	return col, nil
}

// SetFloat replaces or appends a numeric column in place.
func (f *Frame) SetFloat(name string, col *FloatColumn) error {
	if _, ok := f.floats[name]; ok {
		if len(col.Values) != f.rows {
			return fmt.Errorf("column %q has %d values, frame has %d rows", name, len(col.Values), f.rows)
		}
		f.floats[name] = col
		return nil
	}
	if _, ok := f.times[name]; ok {
		return fmt.Errorf("column %q already exists as a timestamp column", name)
	}
	return f.AddFloat(name, col)
}

// Select returns a new frame restricted to exactly the named columns in
// exactly that order. Any absent column yields a MissingColumnError.
func (f *Frame) Select(names ...string) (*Frame, error) {
	out := New(f.rows)
	for _, name := range names {
		if col, ok := f.floats[name]; ok {
			out.floats[name] = col.clone()
			out.order = append(out.order, name)
			continue
		}
		if col, ok := f.times[name]; ok {
			out.times[name] = col.clone()
			out.order = append(out.order, name)
			continue
		}
		return nil, &MissingColumnError{Column: name}
	}
	return out, nil
}

// Take returns a new frame containing the given rows in the given order.
// Indices may repeat; out-of-range indices are an error.
func (f *Frame) Take(indices []int) (*Frame, error) {
	for _, idx := range indices {
		if idx < 0 || idx >= f.rows {
			return nil, fmt.Errorf("row index %d out of range [0,%d)", idx, f.rows)
		}
	}

	out := New(len(indices))
	out.order = make([]string, len(f.order))
	copy(out.order, f.order)

	for name, col := range f.floats {
		taken := &FloatColumn{Values: make([]float64, len(indices))}
		if col.Null != nil {
			taken.Null = make([]bool, len(indices))
		}
		for i, idx := range indices {
			taken.Values[i] = col.Values[idx]
			if col.Null != nil {
				taken.Null[i] = col.Null[idx]
			}
		}
		out.floats[name] = taken
	}
	for name, col := range f.times {
		taken := &TimeColumn{Values: make([]time.Time, len(indices))}
		if col.Null != nil {
			taken.Null = make([]bool, len(indices))
		}
		for i, idx := range indices {
			taken.Values[i] = col.Values[idx]
			if col.Null != nil {
				taken.Null[i] = col.Null[idx]
			}
		}
		out.times[name] = taken
	}
	return out, nil
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	out := New(f.rows)
	out.order = make([]string, len(f.order))
	copy(out.order, f.order)
	for name, col := range f.floats {
		out.floats[name] = col.clone()
	}
	for name, col := range f.times {
		out.times[name] = col.clone()
	}
	return out
}

// Matrix materializes the frame as a dense row-major matrix with columns in
// frame order. It fails if any timestamp column remains or any cell is null;
// both conditions mean an upstream stage was skipped.
func (f *Frame) Matrix() (*mat.Dense, error) {
	if len(f.times) > 0 {
		for _, name := range f.order {
			if _, ok := f.times[name]; ok {
				return nil, fmt.Errorf("column %q is a timestamp, not a feature", name)
			}
		}
	}
	if f.rows == 0 || len(f.order) == 0 {
		return nil, errors.New("empty frame")
	}

	m := mat.NewDense(f.rows, len(f.order), nil)
	for j, name := range f.order {
		col := f.floats[name]
		for i, v := range col.Values {
			if col.IsNull(i) {
				return nil, fmt.Errorf("column %q has null at row %d", name, i)
			}
			m.Set(i, j, v)
		}
	}
	return m, nil
}
