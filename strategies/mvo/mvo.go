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

/*
 * Mean-Variance Optimization
 * https://en.wikipedia.org/wiki/Modern_portfolio_theory
 *
 * Estimates expected returns and covariances on the history preceding each
 * trade date and holds the maximum Sharpe portfolio under the configured
 * constraints.
 */

package mvo

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/penny-vault/pv-optimizer/allocate"
	"github.com/penny-vault/pv-optimizer/observability/opentelemetry"
	"github.com/penny-vault/pv-optimizer/strategies/strategy"
)

type MeanVariance struct {
	reestimate bool
	lookback   int
	fallback   bool
	initial    *allocate.WeightVector
}

// New Construct a new mean-variance strategy. Arguments:
//
//	reestimate - re-fit moments at every rebalance (default true); when false
//	             every rebalance resets to the weights chosen on the first date
//	lookback   - number of return periods in the estimation window; 0 uses the
//	             full history since the start of training
//	fallback   - hold equal weights when estimation or optimization fails
func New(args map[string]json.RawMessage) (strategy.Strategy, error) {
	mv := &MeanVariance{
		reestimate: true,
	}

	if raw, ok := args["reestimate"]; ok {
		if err := json.Unmarshal(raw, &mv.reestimate); err != nil {
			return nil, fmt.Errorf("%w: reestimate: %s", strategy.ErrInvalidArgument, err)
		}
	}

	if raw, ok := args["lookback"]; ok {
		if err := json.Unmarshal(raw, &mv.lookback); err != nil {
			return nil, fmt.Errorf("%w: lookback: %s", strategy.ErrInvalidArgument, err)
		}
		if mv.lookback < 0 {
			return nil, fmt.Errorf("%w: lookback must not be negative", strategy.ErrInvalidArgument)
		}
	}

	if raw, ok := args["fallback"]; ok {
		if err := json.Unmarshal(raw, &mv.fallback); err != nil {
			return nil, fmt.Errorf("%w: fallback: %s", strategy.ErrInvalidArgument, err)
		}
	}

	return mv, nil
}

// Target estimates moments on the window ending just before date and
// optimizes them. Not safe for concurrent use.
func (mv *MeanVariance) Target(ctx context.Context, env *strategy.Env, date time.Time) (*allocate.WeightVector, error) {
	if !mv.reestimate && mv.initial != nil {
		return mv.initial, nil
	}

	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "mvo.Target")
	defer span.End()

	span.SetAttributes(attribute.String("date", date.Format("2006-01-02")))

	wv, err := mv.optimize(ctx, env, date)
	if err != nil {
		if !mv.fallback {
			opentelemetry.Fail(span, err, "mean-variance target failed")
			return nil, err
		}
		log.Warn().Stack().Err(err).Str("Portfolio", env.Portfolio).Time("Date", date).Msg("mean-variance optimization failed; holding equal weights")
		if wv, err = allocate.Equal(env.Assets); err != nil {
			return nil, err
		}
	}

	log.Debug().Str("Portfolio", env.Portfolio).Time("Date", date).Object("Weights", wv).Msg("mean-variance target")

	if mv.initial == nil {
		mv.initial = wv
	}
	return wv, nil
}

func (mv *MeanVariance) optimize(ctx context.Context, env *strategy.Env, date time.Time) (*allocate.WeightVector, error) {
	if env.Estimator == nil || env.Allocator == nil {
		return nil, fmt.Errorf("%w: mean-variance needs an estimator and an allocator", strategy.ErrMissingEnv)
	}

	window, err := env.Window(date, mv.lookback)
	if err != nil {
		return nil, err
	}

	est, err := env.Estimator.Estimate(ctx, env.Returns, window)
	if err != nil {
		return nil, err
	}

	return env.Allocator.Allocate(ctx, est, env.Constraints)
}
