// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package schema

import (
	"fmt"
	"time"

	"github.com/tripcast/tripcast/internal/frame"
	"github.com/tripcast/tripcast/internal/models"
	"github.com/tripcast/tripcast/internal/validation"
)

// ValidateInput checks a batch of raw records against the input schema and
// coerces them into a frame. On any validation failure it returns
// (nil, errors) and the caller must not proceed to transform.
func ValidateInput(inputs []TripInput) (*frame.Frame, []models.FieldError) {
	if len(inputs) == 0 {
		return nil, []models.FieldError{{Field: "inputs", Reason: "at least one record is required"}}
	}

	var fieldErrs []models.FieldError
	for i := range inputs {
		fieldErrs = append(fieldErrs, validateRecord(&inputs[i], i)...)
	}
	if len(fieldErrs) > 0 {
		return nil, fieldErrs
	}
	return InputFrame(inputs), nil
}

// InputFrame coerces records into a frame without validating them first.
// Batch scoring uses it for records the load query has already filtered:
// nulls survive into the frame and are imputed or rejected by the pipeline
// stage that owns them.
func InputFrame(inputs []TripInput) *frame.Frame {
	f := frame.New(len(inputs))
	addIntCol(f, ColVendorID, inputs, func(r *TripInput) *int64 { return r.VendorID })
	addIntCol(f, ColPULocationID, inputs, func(r *TripInput) *int64 { return r.PULocationID })
	addIntCol(f, ColDOLocationID, inputs, func(r *TripInput) *int64 { return r.DOLocationID })
	addFloatCol(f, ColRatecodeID, inputs, func(r *TripInput) *float64 { return r.RatecodeID })
	addIntCol(f, ColPaymentType, inputs, func(r *TripInput) *int64 { return r.PaymentType })
	addFloatCol(f, ColTotalAmount, inputs, func(r *TripInput) *float64 { return r.TotalAmount })
	addFloatCol(f, ColTripDistance, inputs, func(r *TripInput) *float64 { return r.TripDistance })
	addTimeCol(f, ColPickupDatetime, inputs, func(r *TripInput) *Timestamp { return r.PickupDatetime })
	return f
}

// ValidateTraining checks a batch of raw records against the training
// schema (input fields + dropoff timestamp + target) and coerces them into
// a frame that includes the target column.
func ValidateTraining(records []TripTraining) (*frame.Frame, []models.FieldError) {
	if len(records) == 0 {
		return nil, []models.FieldError{{Field: "inputs", Reason: "at least one record is required"}}
	}

	var fieldErrs []models.FieldError
	inputs := make([]TripInput, len(records))
	for i := range records {
		fieldErrs = append(fieldErrs, validateRecord(&records[i], i)...)
		inputs[i] = records[i].TripInput
	}
	if len(fieldErrs) > 0 {
		return nil, fieldErrs
	}

	f, errs := ValidateInput(inputs)
	if len(errs) > 0 {
		return nil, errs
	}

	target := &frame.FloatColumn{Values: make([]float64, len(records))}
	dropoff := &frame.TimeColumn{Values: make([]time.Time, len(records))}
	for i := range records {
		target.Values[i] = *records[i].TripDuration
		dropoff.Values[i] = records[i].DropoffDatetime.Time()
	}
	if err := f.AddTime(ColDropoffTime, dropoff); err != nil {
		return nil, []models.FieldError{{Field: ColDropoffTime, Reason: err.Error()}}
	}
	if err := f.AddFloat(ColTripDuration, target); err != nil {
		return nil, []models.FieldError{{Field: ColTripDuration, Reason: err.Error()}}
	}
	return f, nil
}

// validateRecord runs struct validation on one record and prefixes field
// errors with the record index so batch callers can attribute failures.
func validateRecord(record interface{}, index int) []models.FieldError {
	verr := validation.ValidateStruct(record)
	if verr == nil {
		return nil
	}
	out := make([]models.FieldError, 0, len(verr.Errors()))
	for _, fe := range verr.Errors() {
		out = append(out, models.FieldError{
			Field:  fmt.Sprintf("inputs[%d].%s", index, jsonFieldName(fe.Field())),
			Reason: fe.Error(),
		})
	}
	return out
}

// jsonFieldName maps Go struct field names to their wire names.
var structToJSONField = map[string]string{
	"VendorID":        ColVendorID,
	"PULocationID":    ColPULocationID,
	"DOLocationID":    ColDOLocationID,
	"RatecodeID":      ColRatecodeID,
	"PaymentType":     ColPaymentType,
	"TotalAmount":     ColTotalAmount,
	"TripDistance":    ColTripDistance,
	"PickupDatetime":  ColPickupDatetime,
	"DropoffDatetime": ColDropoffTime,
	"TripDuration":    ColTripDuration,
}

func jsonFieldName(structField string) string {
	if name, ok := structToJSONField[structField]; ok {
		return name
	}
	return structField
}

func addIntCol(f *frame.Frame, name string, inputs []TripInput, get func(*TripInput) *int64) {
	col := &frame.FloatColumn{Values: make([]float64, len(inputs)), Null: make([]bool, len(inputs))}
	for i := range inputs {
		if v := get(&inputs[i]); v != nil {
			col.Values[i] = float64(*v)
		} else {
			col.Null[i] = true
		}
	}
	// AddFloat cannot fail here: the frame was sized from the same slice.
	_ = f.AddFloat(name, col)
}

func addFloatCol(f *frame.Frame, name string, inputs []TripInput, get func(*TripInput) *float64) {
	col := &frame.FloatColumn{Values: make([]float64, len(inputs)), Null: make([]bool, len(inputs))}
	for i := range inputs {
		if v := get(&inputs[i]); v != nil {
			col.Values[i] = *v
		} else {
			col.Null[i] = true
		}
	}
	_ = f.AddFloat(name, col)
}

func addTimeCol(f *frame.Frame, name string, inputs []TripInput, get func(*TripInput) *Timestamp) {
	col := &frame.TimeColumn{Values: make([]time.Time, len(inputs)), Null: make([]bool, len(inputs))}
	for i := range inputs {
		if v := get(&inputs[i]); v != nil {
			col.Values[i] = v.Time()
		} else {
			col.Null[i] = true
		}
	}
	_ = f.AddTime(name, col)
}
