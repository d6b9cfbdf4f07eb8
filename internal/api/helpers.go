// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

// Package api exposes the prediction and monitoring HTTP surface with Chi.
package api

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tripcast/tripcast/internal/logging"
	"github.com/tripcast/tripcast/internal/models"
)

// Error codes returned in the response envelope.
const (
	codeInvalidRequest  = "INVALID_REQUEST"
	codeValidationError = "VALIDATION_ERROR"
	codePredictionError = "PREDICTION_ERROR"
	codeNotFound        = "NOT_FOUND"
)

// maxRequestBody caps prediction request bodies at 4 MiB.
const maxRequestBody = 4 << 20

// respondJSON writes the standard response envelope. An ETag is attached so
// monitoring dashboards polling the report endpoint can use conditional
// requests.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	response.Metadata.Timestamp = time.Now().UTC()

	body, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Response marshalling failed")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"status":"error","error":{"code":"INTERNAL_ERROR","message":"response encoding failed"}}`)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", generateETag(body))
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Debug().Err(err).Msg("Response write failed, client likely disconnected")
	}
}

// respondError writes an error envelope and logs the underlying cause.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().
			Err(err).
			Str("code", code).
			Int("status", status).
			Msg(sanitizeLogValue(message))
	}
	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Error:  &models.APIError{Code: code, Message: message},
	})
}

// respondValidationError writes the 422 envelope carrying per-field errors.
func respondValidationError(w http.ResponseWriter, fieldErrs []models.FieldError) {
	details := make(map[string]interface{}, 1)
	details["errors"] = fieldErrs
	respondJSON(w, http.StatusUnprocessableEntity, &models.APIResponse{
		Status: "error",
		Error: &models.APIError{
			Code:    codeValidationError,
			Message: fmt.Sprintf("%d field(s) failed validation", len(fieldErrs)),
			Details: details,
		},
	})
}

// generateETag returns a weak ETag over the response body.
func generateETag(body []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(body)
	return fmt.Sprintf(`W/"%x"`, h.Sum64())
}

// sanitizeLogValue strips control characters so request-derived strings
// cannot forge log lines.
func sanitizeLogValue(value string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, value)
}
