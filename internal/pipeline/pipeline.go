// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package pipeline

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/tripcast/tripcast/internal/estimator"
	"github.com/tripcast/tripcast/internal/frame"
	"github.com/tripcast/tripcast/internal/schema"
)

var (
	// ErrNotFitted is returned by Transform/Predict before a successful Fit.
	ErrNotFitted = errors.New("pipeline not fitted")

	// ErrAlreadyFitted is returned by a second Fit call. A fitted pipeline
	// is immutable; train a new one instead.
	ErrAlreadyFitted = errors.New("pipeline already fitted")

	// ErrTargetMissing is returned when the training frame lacks the target.
	ErrTargetMissing = errors.New("training frame has no target column")
)

// Config fixes the pipeline's feature lists and training knobs. All fields
// are plain data so the fitted pipeline can be serialized alongside them.
type Config struct {
	// InputFeatures are the raw columns the first selector keeps, in order.
	InputFeatures []string `json:"input_features"`

	// ImportantFeatures are the model's feature columns after derivation,
	// in design-matrix order.
	ImportantFeatures []string `json:"important_features"`

	// ImputeVars are the nullable variables the imputer handles.
	ImputeVars []string `json:"impute_vars"`

	// TransformVars get the Yeo-Johnson treatment.
	TransformVars []string `json:"transform_vars"`

	// Seed drives the train/validation shuffle.
	Seed int64 `json:"seed"`

	// ValidationFraction of rows held out for the fit report. Zero skips
	// validation entirely.
	ValidationFraction float64 `json:"validation_fraction"`

	// RidgeLambda is the regressor's L2 penalty.
	RidgeLambda float64 `json:"ridge_lambda"`
}

// DefaultConfig returns the trip-duration feature setup.
func DefaultConfig() Config {
	return Config{
		InputFeatures: []string{
			schema.ColDOLocationID,
			schema.ColPaymentType,
			schema.ColPULocationID,
			schema.ColRatecodeID,
			schema.ColTotalAmount,
			schema.ColPickupDatetime,
			schema.ColTripDistance,
			schema.ColVendorID,
		},
		ImportantFeatures: []string{
			schema.ColDOLocationID,
			schema.ColPaymentType,
			schema.ColPULocationID,
			schema.ColRatecodeID,
			schema.ColRatecodeID + IndicatorSuffix,
			schema.ColTotalAmount,
			schema.ColTripDistance,
			schema.ColVendorID,
			schema.ColDayOfWeek,
			schema.ColHourOfDay,
		},
		ImputeVars:         []string{schema.ColRatecodeID},
		TransformVars:      []string{schema.ColTotalAmount, schema.ColTripDistance},
		Seed:               42,
		ValidationFraction: 0.2,
		RidgeLambda:        1.0,
	}
}

// Report summarizes a fit: how the data was split and how the model scored
// on the held-out rows. Metrics are in log-duration space.
type Report struct {
	TrainRows int     `json:"train_rows"`
	ValidRows int     `json:"valid_rows"`
	RMSE      float64 `json:"rmse"`
	MAE       float64 `json:"mae"`
	R2        float64 `json:"r2"`
}

// Pipeline chains the feature stages and the regressor. Construct with New,
// call Fit exactly once, then Transform/Predict any number of times from
// any goroutine.
type Pipeline struct {
	cfg    Config
	stages []Stage
	model  *estimator.Ridge
	fitted bool

	imputer *Imputer
	power   *YeoJohnson
	scaler  *Scaler
}

// New builds an unfitted pipeline from the config.
func New(cfg Config) *Pipeline {
	imputer := NewImputer(cfg.ImputeVars...)
	power := NewYeoJohnson(cfg.TransformVars...)
	scaler := NewScaler()

	return &Pipeline{
		cfg: cfg,
		stages: []Stage{
			NewSelector(cfg.InputFeatures...),
			imputer,
			NewTemporal(schema.ColPickupDatetime),
			NewSelector(cfg.ImportantFeatures...),
			power,
			scaler,
		},
		model:   estimator.NewRidge(cfg.RidgeLambda),
		imputer: imputer,
		power:   power,
		scaler:  scaler,
	}
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Fit trains every stage and the regressor on the given frame, which must
// carry the target column. The target is modeled in log1p space. Returns a
// validation report when a holdout fraction is configured.
func (p *Pipeline) Fit(f *frame.Frame) (*Report, error) {
	if p.fitted {
		return nil, ErrAlreadyFitted
	}

	targetCol, err := f.Float(schema.ColTripDuration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTargetMissing, err)
	}
	if targetCol.NullCount() > 0 {
		return nil, fmt.Errorf("target column has %d null values", targetCol.NullCount())
	}

	trainIdx, validIdx := splitIndices(f.NumRows(), p.cfg.ValidationFraction, p.cfg.Seed)
	if len(trainIdx) == 0 {
		return nil, errors.New("no training rows after split")
	}

	train, err := f.Take(trainIdx)
	if err != nil {
		return nil, err
	}

	yTrain := make([]float64, len(trainIdx))
	for i, idx := range trainIdx {
		yTrain[i] = math.Log1p(targetCol.Values[idx])
	}

	x := train
	for _, stage := range p.stages {
		if err := stage.Fit(x); err != nil {
			return nil, fmt.Errorf("fitting stage %s: %w", stage.Name(), err)
		}
		if x, err = stage.Apply(x); err != nil {
			return nil, fmt.Errorf("applying stage %s: %w", stage.Name(), err)
		}
	}

	m, err := x.Matrix()
	if err != nil {
		return nil, fmt.Errorf("materializing design matrix: %w", err)
	}
	if err := p.model.Fit(m, yTrain); err != nil {
		return nil, fmt.Errorf("fitting regressor: %w", err)
	}
	p.fitted = true

	report := &Report{TrainRows: len(trainIdx), ValidRows: len(validIdx)}
	if len(validIdx) > 0 {
		valid, err := f.Take(validIdx)
		if err != nil {
			return nil, err
		}
		preds, err := p.Predict(valid)
		if err != nil {
			return nil, fmt.Errorf("scoring holdout: %w", err)
		}
		yValid := make([]float64, len(validIdx))
		for i, idx := range validIdx {
			yValid[i] = math.Log1p(targetCol.Values[idx])
		}
		report.RMSE, report.MAE = regressionErrors(preds, yValid)
		report.R2 = stat.RSquaredFrom(preds, yValid, nil)
	}
	return report, nil
}

// Transform runs the fitted feature stages without predicting.
func (p *Pipeline) Transform(f *frame.Frame) (*frame.Frame, error) {
	if !p.fitted {
		return nil, ErrNotFitted
	}
	x := f
	var err error
	for _, stage := range p.stages {
		if x, err = stage.Apply(x); err != nil {
			return nil, fmt.Errorf("applying stage %s: %w", stage.Name(), err)
		}
	}
	return x, nil
}

// Predict returns one log-space prediction per row.
func (p *Pipeline) Predict(f *frame.Frame) ([]float64, error) {
	x, err := p.Transform(f)
	if err != nil {
		return nil, err
	}
	m, err := x.Matrix()
	if err != nil {
		return nil, fmt.Errorf("materializing design matrix: %w", err)
	}
	return p.model.Predict(m)
}

// PredictDuration returns trip durations in minutes, inverted out of log
// space and rounded to one decimal place.
func (p *Pipeline) PredictDuration(f *frame.Frame) ([]float64, error) {
	preds, err := p.Predict(f)
	if err != nil {
		return nil, err
	}
	for i, v := range preds {
		preds[i] = math.Round(math.Expm1(v)*10) / 10
	}
	return preds, nil
}

// splitIndices shuffles [0,n) with the seed and carves off the validation
// tail. The same seed and n always produce the same split.
func splitIndices(n int, validFraction float64, seed int64) (train, valid []int) {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	validCount := int(float64(n) * validFraction)
	if validCount >= n {
		validCount = n - 1
	}
	return indices[validCount:], indices[:validCount]
}

// regressionErrors returns RMSE and MAE between predictions and actuals.
func regressionErrors(preds, actual []float64) (rmse, mae float64) {
	var sq, abs float64
	for i := range preds {
		d := preds[i] - actual[i]
		sq += d * d
		abs += math.Abs(d)
	}
	n := float64(len(preds))
	return math.Sqrt(sq / n), abs / n
}
