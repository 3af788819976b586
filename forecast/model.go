// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package forecast provides per-asset univariate models that produce
// expected-return forecasts from a single return series. Models are fit only
// on the data they are given; callers are responsible for passing in-sample
// observations.
package forecast

import (
	"fmt"
	"math"
	"strings"
)

type Kind string

const (
	HistoricalMean Kind = "historical_mean"
	EWMA           Kind = "ewma"
	SARIMA         Kind = "sarima"
)

const (
	DefaultHalfLife         = 12.0
	DefaultMinObservations  = 2
	DefaultSARIMAMinObs     = 36
	DefaultMaxEvaluations   = 5000
	DefaultSeasonalPeriod   = 12
	defaultCoefficientBound = 0.99
)

// Order is the non-seasonal (p, d, q) order of an ARIMA model
type Order struct {
	P int `json:"p" yaml:"p" toml:"p"`
	D int `json:"d" yaml:"d" toml:"d"`
	Q int `json:"q" yaml:"q" toml:"q"`
}

// SeasonalOrder is the seasonal (P, D, Q, s) order of a SARIMA model
type SeasonalOrder struct {
	P      int `json:"p" yaml:"p" toml:"p"`
	D      int `json:"d" yaml:"d" toml:"d"`
	Q      int `json:"q" yaml:"q" toml:"q"`
	Period int `json:"period" yaml:"period" toml:"period"`
}

// Spec selects and parameterizes a forecast model
type Spec struct {
	Kind            Kind          `json:"kind" yaml:"kind" toml:"kind"`
	HalfLife        float64       `json:"half_life,omitempty" yaml:"half_life" toml:"half_life"`
	Order           Order         `json:"order" yaml:"order" toml:"order"`
	Seasonal        SeasonalOrder `json:"seasonal" yaml:"seasonal" toml:"seasonal"`
	MinObservations int           `json:"min_observations,omitempty" yaml:"min_observations" toml:"min_observations"`
	MaxEvaluations  int           `json:"max_evaluations,omitempty" yaml:"max_evaluations" toml:"max_evaluations"`
}

// Diagnostics summarize a fitted model. Numeric fields that do not apply to
// a model are left at zero.
type Diagnostics struct {
	Model        Kind      `json:"model"`
	Observations int       `json:"observations"`
	HistMean     float64   `json:"hist_mean"`
	HistStd      float64   `json:"hist_std"`
	AIC          float64   `json:"aic,omitempty"`
	Sigma2       float64   `json:"sigma2,omitempty"`
	Params       []float64 `json:"params,omitempty"`
	Converged    bool      `json:"converged"`
	Fallback     bool      `json:"fallback,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Model is a univariate time-series model. A Model is fit once; Predict
// returns horizon point predictions in the same return scale as the series
// passed to Fit.
type Model interface {
	Fit(series []float64) error
	Predict(horizon int) ([]float64, error)
	Kind() Kind
	Diagnostics() Diagnostics
}

// ParseKind converts a configuration string to a Kind
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case HistoricalMean, EWMA, SARIMA:
		return k, nil
	case "mean", "historical":
		return HistoricalMean, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, s)
	}
}

// DefaultSpec returns the default parameters for kind. The SARIMA default is
// (1,1,1)(1,1,1,12) with a 36 observation minimum.
func DefaultSpec(kind Kind) Spec {
	spec := Spec{
		Kind:            kind,
		MinObservations: DefaultMinObservations,
	}

	switch kind {
	case EWMA:
		spec.HalfLife = DefaultHalfLife
	case SARIMA:
		spec.Order = Order{P: 1, D: 1, Q: 1}
		spec.Seasonal = SeasonalOrder{P: 1, D: 1, Q: 1, Period: DefaultSeasonalPeriod}
		spec.MinObservations = DefaultSARIMAMinObs
		spec.MaxEvaluations = DefaultMaxEvaluations
	}

	return spec
}

// Validate checks that the spec describes a model that can be built
func (spec Spec) Validate() error {
	switch spec.Kind {
	case HistoricalMean:
	case EWMA:
		if spec.HalfLife < 0 || math.IsNaN(spec.HalfLife) {
			return fmt.Errorf("%w: half_life must be positive, got %v", ErrInvalidSpec, spec.HalfLife)
		}
	case SARIMA:
		o, s := spec.Order, spec.Seasonal
		if o.P < 0 || o.D < 0 || o.Q < 0 || s.P < 0 || s.D < 0 || s.Q < 0 {
			return fmt.Errorf("%w: orders must be non-negative", ErrInvalidSpec)
		}
		if (s.P > 0 || s.D > 0 || s.Q > 0) && s.Period < 2 {
			return fmt.Errorf("%w: seasonal period must be at least 2, got %d", ErrInvalidSpec, s.Period)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownModel, spec.Kind)
	}

	if spec.MinObservations < 0 {
		return fmt.Errorf("%w: min_observations must be non-negative", ErrInvalidSpec)
	}

	return nil
}

func (spec Spec) minObservations() int {
	if spec.MinObservations > 0 {
		return spec.MinObservations
	}
	if spec.Kind == SARIMA {
		return DefaultSARIMAMinObs
	}
	return DefaultMinObservations
}

// New creates an unfitted model for spec
func New(spec Spec) (Model, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	switch spec.Kind {
	case HistoricalMean:
		return &historicalMean{minObs: spec.minObservations()}, nil
	case EWMA:
		halfLife := spec.HalfLife
		if halfLife == 0 {
			halfLife = DefaultHalfLife
		}
		return &ewma{minObs: spec.minObservations(), halfLife: halfLife}, nil
	case SARIMA:
		maxEval := spec.MaxEvaluations
		if maxEval <= 0 {
			maxEval = DefaultMaxEvaluations
		}
		return &sarima{
			order:    spec.Order,
			seasonal: spec.Seasonal,
			minObs:   spec.minObservations(),
			maxEval:  maxEval,
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownModel, spec.Kind)
}

// checkSeries verifies the series has enough finite observations
func checkSeries(series []float64, minObs int) error {
	if len(series) < minObs || len(series) == 0 {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, len(series), minObs)
	}
	for _, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidSeries
		}
	}
	return nil
}

func constant(v float64, horizon int) ([]float64, error) {
	if horizon < 1 {
		return nil, ErrInvalidHorizon
	}
	res := make([]float64, horizon)
	for idx := range res {
		res[idx] = v
	}
	return res, nil
}
