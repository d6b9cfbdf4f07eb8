// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tripcast/tripcast/internal/infer"
	"github.com/tripcast/tripcast/internal/logging"
	"github.com/tripcast/tripcast/internal/metrics"
	"github.com/tripcast/tripcast/internal/models"
	"github.com/tripcast/tripcast/internal/monitor"
	"github.com/tripcast/tripcast/internal/schema"
	"github.com/tripcast/tripcast/internal/validation"
)

// Handler serves the prediction and monitoring endpoints. The monitoring
// engine is optional; without one, served predictions are simply not
// tracked for drift.
type Handler struct {
	svc    *infer.Service
	engine *monitor.Engine
}

// NewHandler wires the HTTP handlers.
func NewHandler(svc *infer.Service, engine *monitor.Engine) *Handler {
	return &Handler{svc: svc, engine: engine}
}

// predictRequest is the body of POST /api/v1/predict.
type predictRequest struct {
	Inputs []schema.TripInput `json:"inputs" validate:"required,min=1"`
}

// predictResponse wraps the scoring result with the ride IDs assigned to
// each input, so callers can backfill actual durations later.
type predictResponse struct {
	*models.PredictionResult
	RideIDs []string `json:"ride_ids,omitempty"`
}

// Predict scores a batch of trip records.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	defer func() {
		metrics.PredictionDuration.WithLabelValues("api").Observe(time.Since(started).Seconds())
	}()

	var req predictRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		metrics.PredictionsTotal.WithLabelValues("api", "error").Inc()
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "request body is not valid JSON", err)
		return
	}

	if verr := validation.ValidateStruct(&req); verr != nil {
		metrics.PredictionsTotal.WithLabelValues("api", "error").Inc()
		metrics.ValidationFailures.WithLabelValues("api").Inc()
		respondValidationError(w, envelopeFieldErrors(verr))
		return
	}

	result, err := h.svc.Predict(req.Inputs)
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues("api", "error").Inc()
		if errors.Is(err, infer.ErrInvalidInput) {
			metrics.ValidationFailures.WithLabelValues("api").Inc()
			respondValidationError(w, result.Errors)
			return
		}
		respondError(w, http.StatusInternalServerError, codePredictionError, "scoring failed", err)
		return
	}

	rideIDs := h.trackPredictions(req.Inputs, result.TripDuration)
	metrics.PredictionsTotal.WithLabelValues("api", "ok").Inc()
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     &predictResponse{PredictionResult: result, RideIDs: rideIDs},
		Metadata: models.Metadata{QueryTimeMS: time.Since(started).Milliseconds()},
	})
}

// trackPredictions feeds served predictions into the monitoring window and
// returns the ride IDs assigned to them. Monitoring failures never fail
// the request.
func (h *Handler) trackPredictions(inputs []schema.TripInput, durations []float64) []string {
	if h.engine == nil {
		return nil
	}

	rideIDs := make([]string, len(inputs))
	for i := range inputs {
		rideIDs[i] = uuid.NewString()
		rec := &monitor.Record{
			RideID:    rideIDs[i],
			Features:  monitorFeatures(&inputs[i]),
			Predicted: durations[i],
		}
		if err := h.engine.Ingest(rec); err != nil {
			logging.Warn().Err(err).Str("ride_id", rec.RideID).Msg("Monitoring ingest failed")
		}
	}
	return rideIDs
}

// monitorFeatures extracts the numeric feature values tracked for drift.
func monitorFeatures(in *schema.TripInput) map[string]float64 {
	features := make(map[string]float64, 7)
	if in.TripDistance != nil {
		features[schema.ColTripDistance] = *in.TripDistance
	}
	if in.TotalAmount != nil {
		features[schema.ColTotalAmount] = *in.TotalAmount
	}
	if in.RatecodeID != nil {
		features[schema.ColRatecodeID] = *in.RatecodeID
	}
	if in.VendorID != nil {
		features[schema.ColVendorID] = float64(*in.VendorID)
	}
	if in.PULocationID != nil {
		features[schema.ColPULocationID] = float64(*in.PULocationID)
	}
	if in.DOLocationID != nil {
		features[schema.ColDOLocationID] = float64(*in.DOLocationID)
	}
	if in.PaymentType != nil {
		features[schema.ColPaymentType] = float64(*in.PaymentType)
	}
	return features
}

// actualRequest is the body of POST /api/v1/monitor/actuals.
type actualRequest struct {
	RideID       string  `json:"ride_id" validate:"required"`
	RideDuration float64 `json:"ride_duration" validate:"required,gt=0"`
}

// BackfillActual attaches an observed trip duration to a served prediction.
func (h *Handler) BackfillActual(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		respondError(w, http.StatusNotFound, codeNotFound, "monitoring is disabled", nil)
		return
	}

	var req actualRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "request body is not valid JSON", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, envelopeFieldErrors(verr))
		return
	}

	if err := h.engine.BackfillActual(req.RideID, req.RideDuration); err != nil {
		if errors.Is(err, monitor.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, codeNotFound, "no prediction with that ride id", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, codePredictionError, "backfill failed", err)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Status: "success"})
}

// MonitorReport returns the latest drift and performance report.
func (h *Handler) MonitorReport(w http.ResponseWriter, _ *http.Request) {
	if h.engine == nil {
		respondError(w, http.StatusNotFound, codeNotFound, "monitoring is disabled", nil)
		return
	}
	report := h.engine.LastReport()
	if report == nil {
		respondError(w, http.StatusNotFound, codeNotFound, "no monitoring report generated yet", nil)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Status: "success", Data: report})
}

// modelInfo describes the currently served model.
type modelInfo struct {
	Model      string `json:"model"`
	Version    string `json:"version"`
	RunID      string `json:"run_id"`
	WindowSize int    `json:"monitor_window_size,omitempty"`
}

// ModelInfo returns the identity of the loaded artifact.
func (h *Handler) ModelInfo(w http.ResponseWriter, _ *http.Request) {
	info := modelInfo{
		Model:   h.svc.ModelName(),
		Version: h.svc.Version(),
		RunID:   h.svc.RunID(),
	}
	if h.engine != nil {
		info.WindowSize = h.engine.WindowSize()
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Status: "success", Data: info})
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   map[string]string{"status": "alive"},
	})
}

// HealthReady reports whether the service can score traffic. The model is
// loaded before the server starts, so readiness follows from liveness
// unless the service was wired without one.
func (h *Handler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	if h.svc == nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "no model loaded", nil)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]string{
			"status": "ready",
			"run_id": h.svc.RunID(),
		},
	})
}

// envelopeFieldErrors converts request envelope validation failures into
// the per-field error shape used for record validation.
func envelopeFieldErrors(verr *validation.RequestValidationError) []models.FieldError {
	fieldErrs := make([]models.FieldError, 0, len(verr.Errors()))
	for _, fe := range verr.Errors() {
		fieldErrs = append(fieldErrs, models.FieldError{Field: fe.Field(), Reason: fe.Error()})
	}
	return fieldErrs
}
