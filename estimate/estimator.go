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

// Package estimate turns a window of asset returns into the expected return
// vector and covariance matrix consumed by the allocator.
package estimate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/penny-vault/pv-optimizer/forecast"
	"github.com/penny-vault/pv-optimizer/observability/opentelemetry"
	"github.com/penny-vault/pv-optimizer/returns"
)

// Estimator computes moment estimates. It holds only configuration; fitted
// forecast models live for a single Estimate call.
type Estimator struct {
	cfg Config
}

func New(cfg Config) (*Estimator, error) {
	validated, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	return &Estimator{cfg: validated}, nil
}

// Config returns the validated configuration
func (e *Estimator) Config() Config {
	return e.cfg
}

// Estimate computes μ and Σ from the returns of series realized inside
// window. The mode selects how μ is computed; Σ is always the sample
// covariance of the window, shrunk and jittered per the configuration.
func (e *Estimator) Estimate(ctx context.Context, series *returns.Series, window Window) (*MomentEstimate, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "estimate.Estimate")
	defer span.End()

	span.SetAttributes(
		attribute.String("mode", string(e.cfg.Mode)),
		attribute.String("window", window.String()),
	)

	if window.IsZero() {
		return nil, ErrInvalidWindow
	}

	sub := series.Window(window.Start(), window.End())
	assets := sub.Assets()
	n := len(assets)
	if n == 0 {
		err := fmt.Errorf("%w: no assets", ErrInsufficientData)
		opentelemetry.Fail(span, err, "no assets")
		return nil, err
	}

	minObs := e.cfg.MinObservations
	if minObs == 0 {
		minObs = 2 * n
	}
	if minObs < 2 {
		minObs = 2
	}
	if sub.Len() < minObs {
		err := fmt.Errorf("%w: %d observations in %s, need %d", ErrInsufficientData, sub.Len(), window, minObs)
		opentelemetry.Fail(span, err, "insufficient data")
		return nil, err
	}

	x := sub.Matrix()
	hist := make([]float64, n)
	for idx := range hist {
		hist[idx] = stat.Mean(mat.Col(nil, idx, x), nil)
	}

	var sigma mat.SymDense
	stat.CovarianceMatrix(&sigma, x, nil)

	mu := hist
	var diagnostics map[string]forecast.Diagnostics
	if e.cfg.Mode != Historical {
		forecastMu, diags, err := e.forecastMeans(ctx, sub, hist)
		if err != nil {
			opentelemetry.Fail(span, err, "forecast failed")
			return nil, err
		}
		diagnostics = diags

		mu = make([]float64, n)
		for idx := range mu {
			if e.cfg.Mode == Forecast {
				mu[idx] = forecastMu[idx]
			} else {
				mu[idx] = e.cfg.ForecastWeight*forecastMu[idx] + e.cfg.HistoricalWeight*hist[idx]
			}
		}
	}

	kind := series.Kind()
	var cov mat.Symmetric = &sigma
	if kind == returns.Log && e.cfg.SimpleMoments {
		simpleMu, simpleSigma, err := returns.LogToSimpleMoments(mu, &sigma)
		if err != nil {
			return nil, err
		}
		mu, cov, kind = simpleMu, simpleSigma, returns.Simple
	}

	shrunk, err := Shrink(cov, e.cfg.Shrinkage, e.cfg.ShrinkageTarget)
	if err != nil {
		return nil, err
	}
	AddJitter(shrunk, e.cfg.Jitter)

	if e.cfg.ClipMu {
		ppy := float64(e.cfg.PeriodsPerYear)
		for idx, v := range mu {
			annual := v * ppy
			if annual < e.cfg.MuMin {
				mu[idx] = e.cfg.MuMin / ppy
			} else if annual > e.cfg.MuMax {
				mu[idx] = e.cfg.MuMax / ppy
			}
		}
	}

	if err := CheckCovariance(shrunk, e.cfg.ConditionTolerance); err != nil {
		opentelemetry.Fail(span, err, "degenerate covariance")
		return nil, err
	}

	est := &MomentEstimate{
		assets:         assets,
		mu:             mu,
		sigma:          shrunk,
		mode:           e.cfg.Mode,
		kind:           kind,
		window:         window,
		periodsPerYear: e.cfg.PeriodsPerYear,
		observations:   sub.Len(),
		diagnostics:    diagnostics,
	}

	log.Debug().Object("Estimate", est).Msg("estimated moments")
	return est, nil
}

// forecastMeans fits one forecast model per asset on the window's returns
// and returns the per-period expected return of each
func (e *Estimator) forecastMeans(ctx context.Context, sub *returns.Series, hist []float64) ([]float64, map[string]forecast.Diagnostics, error) {
	fitSeries := sub
	fitPPY := e.cfg.PeriodsPerYear
	if e.cfg.ForecastFrequency != "" {
		fitSeries = sub.Resample(e.cfg.ForecastFrequency)
		fitPPY = e.cfg.ForecastFrequency.PeriodsPerYear()
	}

	assets := fitSeries.Assets()
	mu := make([]float64, len(assets))
	diags := make([]forecast.Diagnostics, len(assets))

	g, ctx := errgroup.WithContext(ctx)
	for idx, asset := range assets {
		idx, asset := idx, asset
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			vals, err := fitSeries.Asset(asset)
			if err != nil {
				return err
			}

			res, err := forecast.Forecast(e.cfg.Forecast, vals, e.cfg.ForecastHorizon)
			if err != nil {
				if !e.cfg.ForecastFallback {
					return fmt.Errorf("forecast %s: %w", asset, err)
				}
				log.Warn().Err(err).Str("Asset", asset).Str("Model", string(e.cfg.Forecast.Kind)).
					Msg("forecast failed; falling back to historical mean")
				mu[idx] = hist[idx]
				diags[idx] = forecast.Diagnostics{
					Model:        e.cfg.Forecast.Kind,
					Observations: len(vals),
					HistMean:     hist[idx],
					Fallback:     true,
					Error:        err.Error(),
				}
				return nil
			}

			mu[idx] = returns.RescaleMean(res.Mean(), sub.Kind(), fitPPY, e.cfg.PeriodsPerYear)
			diags[idx] = res.Diagnostics
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	res := make(map[string]forecast.Diagnostics, len(assets))
	for idx, asset := range assets {
		res[asset] = diags[idx]
	}
	return mu, res, nil
}
