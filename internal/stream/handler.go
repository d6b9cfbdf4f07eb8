// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package stream

import (
	"context"
	"errors"

	"github.com/tripcast/tripcast/internal/infer"
	"github.com/tripcast/tripcast/internal/logging"
	"github.com/tripcast/tripcast/internal/metrics"
	"github.com/tripcast/tripcast/internal/schema"
)

// Handler scores one ride event at a time. Decode and validation failures
// are terminal for that event: they are logged and dropped, never
// redelivered. Publish failures are returned so the transport can retry.
type Handler struct {
	svc        *infer.Service
	publisher  PredictionPublisher
	serializer *Serializer

	// testRun scores events normally but suppresses publishing.
	testRun bool
}

// NewHandler wires the scorer to its output publisher.
func NewHandler(svc *infer.Service, publisher PredictionPublisher, testRun bool) *Handler {
	return &Handler{
		svc:        svc,
		publisher:  publisher,
		serializer: NewSerializer(),
		testRun:    testRun,
	}
}

// Handle processes one raw event payload. The returned event is the
// prediction that was (or in test mode, would have been) published; nil
// with a nil error means the event was dropped as malformed.
func (h *Handler) Handle(ctx context.Context, payload []byte) (*PredictionEvent, error) {
	event, err := h.serializer.DecodeRideEvent(payload)
	if err != nil {
		metrics.StreamEventsTotal.WithLabelValues("decode_error").Inc()
		logging.Warn().Err(err).Msg("Dropping undecodable ride event")
		return nil, nil
	}

	result, err := h.svc.Predict([]schema.TripInput{event.Ride})
	if err != nil {
		if errors.Is(err, infer.ErrInvalidInput) {
			metrics.StreamEventsTotal.WithLabelValues("invalid").Inc()
			metrics.ValidationFailures.WithLabelValues("stream").Inc()
			logging.Warn().
				Str("ride_id", event.RideID).
				Interface("field_errors", result.Errors).
				Msg("Dropping invalid ride event")
			return nil, nil
		}
		metrics.StreamEventsTotal.WithLabelValues("predict_error").Inc()
		return nil, err
	}

	prediction := &PredictionEvent{
		Model:   h.svc.ModelName(),
		Version: h.svc.Version(),
		Prediction: PredictionPayload{
			RideDuration: result.TripDuration[0],
			RideID:       event.RideID,
		},
	}
	metrics.StreamEventsTotal.WithLabelValues("scored").Inc()
	metrics.PredictionsTotal.WithLabelValues("stream", "ok").Inc()

	if h.testRun {
		metrics.StreamEventsTotal.WithLabelValues("suppressed").Inc()
		logging.Debug().
			Str("ride_id", event.RideID).
			Float64("ride_duration", prediction.Prediction.RideDuration).
			Msg("Test run, prediction not published")
		return prediction, nil
	}

	if err := h.publisher.PublishPrediction(ctx, prediction); err != nil {
		metrics.StreamEventsTotal.WithLabelValues("publish_error").Inc()
		return nil, err
	}
	metrics.StreamEventsTotal.WithLabelValues("published").Inc()
	return prediction, nil
}

// HandleBatch processes a slice of payloads with per-event isolation and
// returns the predictions that were produced.
func (h *Handler) HandleBatch(ctx context.Context, payloads [][]byte) []*PredictionEvent {
	out := make([]*PredictionEvent, 0, len(payloads))
	for _, payload := range payloads {
		prediction, err := h.Handle(ctx, payload)
		if err != nil {
			logging.Error().Err(err).Msg("Ride event handling failed")
			continue
		}
		if prediction != nil {
			out = append(out, prediction)
		}
	}
	return out
}
