// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package stream

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/goccy/go-json"
)

// Serializer handles event encoding and decoding for NATS messages.
// Incoming ride events may arrive base64-encoded (producers that relay
// from record-oriented transports wrap payloads that way) or as plain
// JSON; both are accepted.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// DecodeRideEvent parses a ride event from raw or base64-encoded JSON.
func (s *Serializer) DecodeRideEvent(data []byte) (*RideEvent, error) {
	payload := bytes.TrimSpace(data)
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty ride event payload")
	}

	if payload[0] != '{' {
		decoded, err := base64.StdEncoding.DecodeString(string(payload))
		if err != nil {
			return nil, fmt.Errorf("payload is neither JSON nor base64: %w", err)
		}
		payload = decoded
	}

	var event RideEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("unmarshal ride event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return &event, nil
}

// EncodePrediction marshals a prediction event for publishing.
func (s *Serializer) EncodePrediction(event *PredictionEvent) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate prediction event: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal prediction event: %w", err)
	}
	return data, nil
}

// DecodePrediction parses a published prediction event.
func (s *Serializer) DecodePrediction(data []byte) (*PredictionEvent, error) {
	var event PredictionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal prediction event: %w", err)
	}
	return &event, nil
}
