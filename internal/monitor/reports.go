// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package monitor

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// psiBins is the quantile bin count for the population stability index.
const psiBins = 10

// FeatureDrift reports drift statistics for one feature.
type FeatureDrift struct {
	Feature string  `json:"feature"`
	KS      float64 `json:"ks_statistic"`
	PValue  float64 `json:"p_value"`
	PSI     float64 `json:"psi"`
	// MissingRate is the share of window records without this feature.
	MissingRate float64 `json:"missing_rate"`
	Drifted     bool    `json:"drifted"`
}

// Performance summarizes regression error over labeled records. Errors are
// in minutes, the served unit.
type Performance struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// Report is one monitoring computation over the live window.
type Report struct {
	GeneratedAt     time.Time      `json:"generated_at"`
	WindowSize      int            `json:"window_size"`
	LabeledCount    int            `json:"labeled_count"`
	Drift           []FeatureDrift `json:"drift"`
	DriftedFeatures int            `json:"drifted_features"`
	Performance     *Performance   `json:"performance,omitempty"`
}

// ksStatistic is the two-sample Kolmogorov-Smirnov statistic.
func ksStatistic(reference, current []float64) float64 {
	ref := append([]float64(nil), reference...)
	cur := append([]float64(nil), current...)
	sort.Float64s(ref)
	sort.Float64s(cur)
	return stat.KolmogorovSmirnov(ref, nil, cur, nil)
}

// ksPValue approximates the two-sided p-value of the two-sample KS
// statistic via the asymptotic Kolmogorov distribution.
func ksPValue(d float64, n1, n2 int) float64 {
	if d <= 0 {
		return 1
	}
	en := math.Sqrt(float64(n1) * float64(n2) / float64(n1+n2))
	lambda := (en + 0.12 + 0.11/en) * d

	sum := 0.0
	for j := 1; j <= 100; j++ {
		term := math.Exp(-2 * float64(j*j) * lambda * lambda)
		if j%2 == 1 {
			sum += term
		} else {
			sum -= term
		}
		if term < 1e-10 {
			break
		}
	}
	p := 2 * sum
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// psi computes the population stability index of current against reference
// using quantile bins from the reference distribution.
func psi(reference, current []float64) float64 {
	if len(reference) == 0 || len(current) == 0 {
		return 0
	}

	ref := append([]float64(nil), reference...)
	sort.Float64s(ref)

	edges := make([]float64, 0, psiBins-1)
	for i := 1; i < psiBins; i++ {
		q := stat.Quantile(float64(i)/psiBins, stat.Empirical, ref, nil)
		if len(edges) == 0 || q > edges[len(edges)-1] {
			edges = append(edges, q)
		}
	}

	bins := len(edges) + 1
	refCounts := binCounts(reference, edges, bins)
	curCounts := binCounts(current, edges, bins)

	// Laplace smoothing keeps empty bins from producing infinities.
	var out float64
	for i := 0; i < bins; i++ {
		p := (refCounts[i] + 1) / (float64(len(reference)) + float64(bins))
		q := (curCounts[i] + 1) / (float64(len(current)) + float64(bins))
		out += (q - p) * math.Log(q/p)
	}
	return out
}

func binCounts(values, edges []float64, bins int) []float64 {
	counts := make([]float64, bins)
	for _, v := range values {
		idx := sort.SearchFloat64s(edges, v)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	return counts
}

// computeDrift scores every reference feature against the current window.
func computeDrift(reference map[string][]float64, records []Record, alpha, psiThreshold float64) []FeatureDrift {
	features := make([]string, 0, len(reference))
	for name := range reference {
		features = append(features, name)
	}
	sort.Strings(features)

	out := make([]FeatureDrift, 0, len(features))
	for _, name := range features {
		current := make([]float64, 0, len(records))
		for _, rec := range records {
			if v, ok := rec.Features[name]; ok {
				current = append(current, v)
			}
		}
		if len(current) == 0 {
			continue
		}

		refValues := reference[name]
		d := ksStatistic(refValues, current)
		p := ksPValue(d, len(refValues), len(current))
		stability := psi(refValues, current)

		out = append(out, FeatureDrift{
			Feature:     name,
			KS:          d,
			PValue:      p,
			PSI:         stability,
			MissingRate: float64(len(records)-len(current)) / float64(len(records)),
			Drifted:     p < alpha || stability > psiThreshold,
		})
	}
	return out
}

// computePerformance returns nil when fewer than two labeled records exist.
func computePerformance(records []Record) (*Performance, int) {
	var preds, actuals []float64
	for _, rec := range records {
		if rec.Labeled() {
			preds = append(preds, rec.Predicted)
			actuals = append(actuals, *rec.Actual)
		}
	}
	labeled := len(preds)
	if labeled < 2 {
		return nil, labeled
	}

	var sq, abs float64
	for i := range preds {
		d := preds[i] - actuals[i]
		sq += d * d
		abs += math.Abs(d)
	}
	n := float64(labeled)

	return &Performance{
		MAE:  abs / n,
		RMSE: math.Sqrt(sq / n),
		R2:   stat.RSquaredFrom(preds, actuals, nil),
	}, labeled
}
