// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

// Package models defines the shared data transfer types used across the
// Tripcast API, batch scorer, and monitoring subsystem.
package models

import "time"

// APIResponse is the standard envelope for every HTTP response.
// Callers always receive a well-formed envelope; errors are carried in the
// Error field, never surfaced as unhandled failures.
type APIResponse struct {
	Status   string      `json:"status"` // "success" or "error"
	Data     interface{} `json:"data,omitempty"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// APIError carries a machine-readable code plus human-readable message.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Metadata holds per-response diagnostics.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// FieldError describes a single field that failed schema validation.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// PredictionResult is the outcome of scoring a batch of trip records.
// Exactly one of TripDuration or Errors is populated.
type PredictionResult struct {
	// TripDuration holds predicted durations in minutes, rounded to one
	// decimal place, in input order. Nil when validation failed.
	TripDuration []float64 `json:"trip_duration"`

	// ModelVersion identifies the fitted pipeline that produced the
	// predictions (the training run id).
	ModelVersion string `json:"model_version"`

	// Errors lists field-level validation failures. Nil on success.
	Errors []FieldError `json:"errors"`
}
