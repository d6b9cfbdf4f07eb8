// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package monitor

import (
	"sync"
)

// Window is a bounded FIFO of recent records. When full, adding a record
// evicts the oldest one. All operations are safe for concurrent use; Add
// performs the append and the trim under one lock so readers never observe
// an oversized window.
type Window struct {
	mu       sync.RWMutex
	capacity int
	records  []*Record
	byID     map[string]*Record
}

// NewWindow creates a window holding at most capacity records.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		capacity: capacity,
		byID:     make(map[string]*Record, capacity),
	}
}

// Add appends a record, evicting the oldest if the window is full. The
// evicted ride IDs are returned so callers can drop any backing storage.
func (w *Window) Add(rec *Record) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if old, ok := w.byID[rec.RideID]; ok {
		// Same ride scored again: replace in place.
		*old = *rec
		return nil
	}

	w.records = append(w.records, rec)
	w.byID[rec.RideID] = rec

	var evicted []string
	for len(w.records) > w.capacity {
		oldest := w.records[0]
		w.records = w.records[1:]
		delete(w.byID, oldest.RideID)
		evicted = append(evicted, oldest.RideID)
	}
	return evicted
}

// SetActual backfills ground truth for a ride still in the window.
// Returns false if the ride has already been evicted.
func (w *Window) SetActual(rideID string, actual float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec, ok := w.byID[rideID]
	if !ok {
		return false
	}
	rec.Actual = &actual
	return true
}

// Size returns the current record count.
func (w *Window) Size() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.records)
}

// Snapshot returns a copy of the current records, oldest first.
func (w *Window) Snapshot() []Record {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Record, len(w.records))
	for i, rec := range w.records {
		out[i] = *rec
		if rec.Actual != nil {
			v := *rec.Actual
			out[i].Actual = &v
		}
		features := make(map[string]float64, len(rec.Features))
		for k, val := range rec.Features {
			features[k] = val
		}
		out[i].Features = features
	}
	return out
}
