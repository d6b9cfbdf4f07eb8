// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package dataset

// Domain bounds for a usable trip record. Values at the upper bound are
// kept; zero and below, or above the bound, are discarded as data errors
// (negative fares, odometer glitches, multi-hour outliers).
const (
	MaxDurationMinutes = 60.0
	MaxDistanceMiles   = 30.0
	MaxTotalAmount     = 100.0
)

// InDomain reports whether a trip's derived duration and raw measurements
// fall inside the modeling domain.
func InDomain(durationMinutes, distanceMiles, totalAmount float64) bool {
	if durationMinutes <= 0 || durationMinutes > MaxDurationMinutes {
		return false
	}
	if distanceMiles <= 0 || distanceMiles > MaxDistanceMiles {
		return false
	}
	if totalAmount <= 0 || totalAmount > MaxTotalAmount {
		return false
	}
	return true
}
