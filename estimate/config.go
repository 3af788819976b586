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

package estimate

import (
	"fmt"
	"math"

	"github.com/penny-vault/pv-optimizer/dataframe"
	"github.com/penny-vault/pv-optimizer/forecast"
)

type Mode string

const (
	Historical Mode = "historical"
	Forecast   Mode = "forecast"
	Hybrid     Mode = "hybrid"
)

// Target is the matrix covariance is shrunk towards
type Target string

const (
	Diagonal            Target = "diagonal"
	ConstantCorrelation Target = "constant_correlation"
)

const (
	DefaultConditionTolerance = 1e-10
	DefaultPeriodsPerYear     = 252
	DefaultForecastWeight     = 0.5
	DefaultHistoricalWeight   = 0.5
)

// Config controls how an Estimator turns a window of returns into moments.
// Start from DefaultConfig; zero numeric fields fall back to their defaults.
type Config struct {
	Mode Mode `json:"mode" yaml:"mode"`

	// Forecast selects the per-asset model used in forecast and hybrid mode
	Forecast forecast.Spec `json:"forecast" yaml:"forecast"`

	// ForecastFrequency resamples the window before fitting; empty fits the
	// series at its native frequency
	ForecastFrequency dataframe.Frequency `json:"forecast_frequency,omitempty" yaml:"forecast_frequency"`

	// ForecastHorizon is the number of forecast periods averaged into μ
	ForecastHorizon int `json:"forecast_horizon" yaml:"forecast_horizon"`

	// ForecastFallback replaces a failed per-asset forecast with the
	// historical mean instead of failing the estimate
	ForecastFallback bool `json:"forecast_fallback" yaml:"forecast_fallback"`

	ForecastWeight   float64 `json:"forecast_weight" yaml:"forecast_weight"`
	HistoricalWeight float64 `json:"historical_weight" yaml:"historical_weight"`

	// MinObservations is the minimum number of in-window returns; 0 means
	// twice the number of assets
	MinObservations int `json:"min_observations" yaml:"min_observations"`

	// Shrinkage is λ in Σ' = (1-λ)Σ + λF
	Shrinkage       float64 `json:"shrinkage" yaml:"shrinkage"`
	ShrinkageTarget Target  `json:"shrinkage_target" yaml:"shrinkage_target"`

	// Jitter is added to the diagonal of Σ after shrinkage
	Jitter float64 `json:"jitter" yaml:"jitter"`

	ConditionTolerance float64 `json:"condition_tolerance" yaml:"condition_tolerance"`

	// ClipMu bounds the annualized μ to [MuMin, MuMax]
	ClipMu bool    `json:"clip_mu" yaml:"clip_mu"`
	MuMin  float64 `json:"mu_min" yaml:"mu_min"`
	MuMax  float64 `json:"mu_max" yaml:"mu_max"`

	// SimpleMoments converts moments of log returns to moments of simple
	// returns
	SimpleMoments bool `json:"simple_moments" yaml:"simple_moments"`

	PeriodsPerYear int `json:"periods_per_year" yaml:"periods_per_year"`
}

// DefaultConfig returns a historical estimator with no shrinkage
func DefaultConfig() Config {
	return Config{
		Mode:               Historical,
		Forecast:           forecast.DefaultSpec(forecast.SARIMA),
		ForecastFrequency:  dataframe.MonthEnd,
		ForecastHorizon:    1,
		ForecastFallback:   true,
		ForecastWeight:     DefaultForecastWeight,
		HistoricalWeight:   DefaultHistoricalWeight,
		ShrinkageTarget:    Diagonal,
		ConditionTolerance: DefaultConditionTolerance,
		MuMin:              -0.5,
		MuMax:              1.5,
		SimpleMoments:      true,
		PeriodsPerYear:     DefaultPeriodsPerYear,
	}
}

// ParseMode converts a configuration string to a Mode
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Historical, "":
		return Historical, nil
	case Forecast, Hybrid:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Validate checks the configuration and fills zero values with defaults
func (cfg Config) Validate() (Config, error) {
	if cfg.Mode == "" {
		cfg.Mode = Historical
	}
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return cfg, err
	}

	if cfg.Shrinkage < 0 || cfg.Shrinkage > 1 || math.IsNaN(cfg.Shrinkage) {
		return cfg, fmt.Errorf("%w: shrinkage must be in [0, 1], got %v", ErrInvalidConfig, cfg.Shrinkage)
	}

	switch cfg.ShrinkageTarget {
	case "":
		cfg.ShrinkageTarget = Diagonal
	case Diagonal, ConstantCorrelation:
	default:
		return cfg, fmt.Errorf("%w: %q", ErrUnknownShrinkage, cfg.ShrinkageTarget)
	}

	if cfg.Jitter < 0 {
		return cfg, fmt.Errorf("%w: jitter must be non-negative", ErrInvalidConfig)
	}
	if cfg.MinObservations < 0 {
		return cfg, fmt.Errorf("%w: min_observations must be non-negative", ErrInvalidConfig)
	}
	if cfg.ConditionTolerance <= 0 {
		cfg.ConditionTolerance = DefaultConditionTolerance
	}
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = DefaultPeriodsPerYear
	}
	if cfg.ForecastHorizon <= 0 {
		cfg.ForecastHorizon = 1
	}
	if cfg.ClipMu && cfg.MuMin > cfg.MuMax {
		return cfg, fmt.Errorf("%w: mu_min %v exceeds mu_max %v", ErrInvalidConfig, cfg.MuMin, cfg.MuMax)
	}

	if cfg.Mode != Historical {
		if cfg.Forecast.Kind == "" {
			cfg.Forecast = forecast.DefaultSpec(forecast.SARIMA)
		}
		if err := cfg.Forecast.Validate(); err != nil {
			return cfg, err
		}
	}

	if cfg.Mode == Hybrid {
		if cfg.ForecastWeight < 0 || cfg.HistoricalWeight < 0 {
			return cfg, fmt.Errorf("%w: hybrid weights must be non-negative", ErrInvalidConfig)
		}
		total := cfg.ForecastWeight + cfg.HistoricalWeight
		if total == 0 {
			cfg.ForecastWeight, cfg.HistoricalWeight = DefaultForecastWeight, DefaultHistoricalWeight
		} else {
			cfg.ForecastWeight /= total
			cfg.HistoricalWeight /= total
		}
	}

	return cfg, nil
}
