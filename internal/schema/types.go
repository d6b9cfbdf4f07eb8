// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

// Package schema declares the field contract for raw trip records and
// validates/coerces them into frames before any transformation runs.
//
// Two variants exist: the input schema (inference-time fields only) and the
// training schema (input fields plus dropoff timestamp and target). Nullable
// fields use pointers so that a missing value survives decoding and reaches
// the imputation stage instead of being silently dropped.
package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Column names shared by the schema, the pipeline, and the dataset loader.
const (
	ColVendorID       = "VendorID"
	ColPULocationID   = "PULocationID"
	ColDOLocationID   = "DOLocationID"
	ColRatecodeID     = "RatecodeID"
	ColPaymentType    = "payment_type"
	ColTotalAmount    = "total_amount"
	ColTripDistance   = "trip_distance"
	ColPickupDatetime = "tpep_pickup_datetime"
	ColDropoffTime    = "tpep_dropoff_datetime"
	ColTripDuration   = "trip_duration"
	ColDayOfWeek      = "day_of_week"
	ColHourOfDay      = "hour_of_day"
)

// timestampLayouts are the accepted wire formats for pickup/dropoff times,
// tried in order.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Timestamp is a time.Time that unmarshals from the TLC record format
// ("2022-02-01 10:15:17") as well as RFC3339.
type Timestamp time.Time

// UnmarshalJSON parses a quoted timestamp string.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			*t = Timestamp(parsed)
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", raw)
}

// MarshalJSON renders the TLC record format.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format("2006-01-02 15:04:05"))
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// TripInput is one raw record under the input schema. RatecodeID is the one
// optional field: a null rides on the pipeline's learned imputation rather
// than rejecting the record.
type TripInput struct {
	VendorID       *int64     `json:"VendorID" validate:"required"`
	PULocationID   *int64     `json:"PULocationID" validate:"required"`
	DOLocationID   *int64     `json:"DOLocationID" validate:"required"`
	RatecodeID     *float64   `json:"RatecodeID"`
	PaymentType    *int64     `json:"payment_type" validate:"required"`
	TotalAmount    *float64   `json:"total_amount" validate:"required"`
	TripDistance   *float64   `json:"trip_distance" validate:"required"`
	PickupDatetime *Timestamp `json:"tpep_pickup_datetime" validate:"required"`
}

// TripTraining is one raw record under the training schema: the input
// fields plus the dropoff timestamp and the derived target.
type TripTraining struct {
	TripInput

	DropoffDatetime *Timestamp `json:"tpep_dropoff_datetime" validate:"required"`
	TripDuration    *float64   `json:"trip_duration" validate:"required"`
}
