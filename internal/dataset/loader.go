// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tripcast/tripcast/internal/logging"
	"github.com/tripcast/tripcast/internal/schema"
)

// LoadTrips reads one monthly trip file and returns the records inside the
// modeling domain, with trip_duration derived in minutes. Records with a
// missing pickup or dropoff timestamp cannot be used and are dropped.
func (db *DB) LoadTrips(ctx context.Context, path string) ([]schema.TripTraining, error) {
	source, err := sourceExpr(path)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT
			VendorID,
			PULocationID,
			DOLocationID,
			RatecodeID,
			payment_type,
			total_amount,
			trip_distance,
			tpep_pickup_datetime,
			tpep_dropoff_datetime
		FROM %s`, source)

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reading trips from %s: %w", path, err)
	}
	defer rows.Close()

	var (
		out     []schema.TripTraining
		total   int
		dropped int
	)
	for rows.Next() {
		total++

		var (
			vendorID, puLocation, doLocation, paymentType sql.NullInt64
			ratecodeID, totalAmount, tripDistance         sql.NullFloat64
			pickup, dropoff                               sql.NullTime
		)
		if err := rows.Scan(
			&vendorID, &puLocation, &doLocation, &ratecodeID, &paymentType,
			&totalAmount, &tripDistance, &pickup, &dropoff,
		); err != nil {
			return nil, fmt.Errorf("scanning trip row %d: %w", total, err)
		}

		if !pickup.Valid || !dropoff.Valid || !totalAmount.Valid || !tripDistance.Valid {
			dropped++
			continue
		}

		duration := dropoff.Time.Sub(pickup.Time).Minutes()
		if !InDomain(duration, tripDistance.Float64, totalAmount.Float64) {
			dropped++
			continue
		}

		rec := schema.TripTraining{
			TripInput: schema.TripInput{
				VendorID:       nullableInt(vendorID),
				PULocationID:   nullableInt(puLocation),
				DOLocationID:   nullableInt(doLocation),
				RatecodeID:     nullableFloat(ratecodeID),
				PaymentType:    nullableInt(paymentType),
				TotalAmount:    &totalAmount.Float64,
				TripDistance:   &tripDistance.Float64,
				PickupDatetime: timestampPtr(pickup.Time),
			},
			DropoffDatetime: timestampPtr(dropoff.Time),
			TripDuration:    &duration,
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trips from %s: %w", path, err)
	}

	logging.Info().
		Str("path", path).
		Int("total", total).
		Int("kept", len(out)).
		Int("dropped", dropped).
		Msg("Monthly trip file loaded")
	return out, nil
}

func nullableInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	value := v.Int64
	return &value
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	value := v.Float64
	return &value
}

func timestampPtr(t time.Time) *schema.Timestamp {
	ts := schema.Timestamp(t)
	return &ts
}
