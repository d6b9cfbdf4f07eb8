// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package pipeline

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tripcast/tripcast/internal/estimator"
)

// artifactFormatVersion is bumped whenever the encoded layout changes.
// Decode rejects anything else outright.
const artifactFormatVersion = 1

// ErrBadArtifact is returned when an encoded pipeline cannot be restored.
var ErrBadArtifact = errors.New("bad pipeline artifact")

// artifactState is the serialized form of a fitted pipeline.
type artifactState struct {
	FormatVersion int                `json:"format_version"`
	Config        Config             `json:"config"`
	Medians       map[string]float64 `json:"medians"`
	Lambdas       map[string]float64 `json:"lambdas"`
	ScaleColumns  []string           `json:"scale_columns"`
	ScaleMeans    map[string]float64 `json:"scale_means"`
	ScaleStds     map[string]float64 `json:"scale_stds"`
	Model         *estimator.Ridge   `json:"model"`
}

// Encode serializes a fitted pipeline to JSON.
func (p *Pipeline) Encode() ([]byte, error) {
	if !p.fitted {
		return nil, ErrNotFitted
	}

	state := artifactState{
		FormatVersion: artifactFormatVersion,
		Config:        p.cfg,
		Medians:       p.imputer.medians,
		Lambdas:       p.power.lambdas,
		ScaleColumns:  p.scaler.columns,
		ScaleMeans:    p.scaler.means,
		ScaleStds:     p.scaler.stds,
		Model:         p.model,
	}
	return json.Marshal(state)
}

// Decode restores a fitted pipeline from its encoded form. Any structural
// problem fails immediately; a half-restored pipeline must never serve.
func Decode(data []byte) (*Pipeline, error) {
	var state artifactState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArtifact, err)
	}
	if state.FormatVersion != artifactFormatVersion {
		return nil, fmt.Errorf("%w: format version %d, want %d",
			ErrBadArtifact, state.FormatVersion, artifactFormatVersion)
	}
	if state.Model == nil || len(state.Model.Weights) == 0 {
		return nil, fmt.Errorf("%w: no model weights", ErrBadArtifact)
	}
	if len(state.ScaleColumns) == 0 || state.ScaleMeans == nil || state.ScaleStds == nil {
		return nil, fmt.Errorf("%w: missing scaler state", ErrBadArtifact)
	}
	if len(state.Model.Weights) != len(state.ScaleColumns) {
		return nil, fmt.Errorf("%w: model has %d weights for %d feature columns",
			ErrBadArtifact, len(state.Model.Weights), len(state.ScaleColumns))
	}
	for _, name := range state.Config.ImputeVars {
		if _, ok := state.Medians[name]; !ok {
			return nil, fmt.Errorf("%w: no median for %q", ErrBadArtifact, name)
		}
	}
	for _, name := range state.Config.TransformVars {
		if _, ok := state.Lambdas[name]; !ok {
			return nil, fmt.Errorf("%w: no lambda for %q", ErrBadArtifact, name)
		}
	}

	p := New(state.Config)
	p.imputer.medians = state.Medians
	p.power.lambdas = state.Lambdas
	p.scaler.columns = state.ScaleColumns
	p.scaler.means = state.ScaleMeans
	p.scaler.stds = state.ScaleStds
	p.model = state.Model
	p.model.MarkFitted()
	p.fitted = true
	return p, nil
}
