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

// Package allocate solves the constrained mean-variance problem that turns a
// moment estimate into portfolio weights.
package allocate

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gonum.org/v1/gonum/mat"

	"github.com/penny-vault/pv-optimizer/estimate"
	"github.com/penny-vault/pv-optimizer/observability/opentelemetry"
)

// Allocator maximizes the Sharpe ratio (μᵀw - r_f)/sqrt(wᵀΣw) subject to
// Σw = 1 and the per-asset bounds of a ConstraintSet. When no asset has an
// expected return above the risk-free rate the Sharpe ratio has no maximum
// and the allocator minimizes variance instead.
type Allocator struct {
	RiskFreeRate       float64
	MaxIterations      int
	Tolerance          float64
	ConditionTolerance float64
}

func New(riskFreeRate float64) *Allocator {
	return &Allocator{
		RiskFreeRate:       riskFreeRate,
		MaxIterations:      defaultMaxIterations,
		Tolerance:          defaultTolerance,
		ConditionTolerance: estimate.DefaultConditionTolerance,
	}
}

// Allocate annualizes the estimate and optimizes it. The risk-free rate is
// an annual rate.
func (a *Allocator) Allocate(ctx context.Context, est *estimate.MomentEstimate, constraints ConstraintSet) (*WeightVector, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "allocate.Allocate")
	defer span.End()

	span.SetAttributes(
		attribute.Float64("max_weight", constraints.MaxWeight),
		attribute.Bool("long_only", constraints.LongOnly),
		attribute.Int("assets", len(est.Assets())),
	)

	annual := est.Annualized()
	wv, err := a.Optimize(annual.Assets(), annual.Mu(), annual.Sigma(), constraints)
	if err != nil {
		opentelemetry.Fail(span, err, "optimization failed")
		return nil, err
	}

	span.SetAttributes(attribute.String("objective", string(wv.Objective())))
	return wv, nil
}

// Optimize solves the allocation problem for the given moments. mu and sigma
// must be on the same time scale as RiskFreeRate. Optimize is a pure
// function of its inputs.
func (a *Allocator) Optimize(assets []string, mu []float64, sigma mat.Symmetric, constraints ConstraintSet) (*WeightVector, error) {
	n := len(mu)
	if len(assets) != n || sigma.SymmetricDim() != n {
		return nil, fmt.Errorf("%w: %d assets, %d means, %d×%d covariance", ErrShapeMismatch,
			len(assets), n, sigma.SymmetricDim(), sigma.SymmetricDim())
	}
	if err := constraints.Validate(n); err != nil {
		return nil, err
	}
	for idx, v := range mu {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidInput, assets[idx])
		}
	}

	tol := a.ConditionTolerance
	if tol <= 0 {
		tol = estimate.DefaultConditionTolerance
	}
	if err := estimate.CheckCovariance(sigma, tol); err != nil {
		return nil, err
	}

	maxIter := a.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	ftol := a.Tolerance
	if ftol <= 0 {
		ftol = defaultTolerance
	}

	lo, hi := constraints.Bounds()

	beatsRiskFree := false
	for _, v := range mu {
		if v > a.RiskFreeRate {
			beatsRiskFree = true
			break
		}
	}

	if beatsRiskFree {
		sharpe := newNegSharpe(mu, sigma, a.RiskFreeRate)
		x, converged := spg(sharpe, sharpeStart(mu, a.RiskFreeRate), lo, hi, maxIter, ftol)
		if excess, _ := sharpe.moments(x); excess > 0 {
			if !converged {
				log.Warn().Strs("Assets", assets).Int("MaxIterations", maxIter).Msg("max sharpe solver hit iteration limit")
			}
			return NewWeightVector(assets, x, constraints, MaxSharpe)
		}
		log.Warn().Strs("Assets", assets).Float64("RiskFreeRate", a.RiskFreeRate).
			Msg("no feasible portfolio beats the risk-free rate; using minimum volatility")
	} else {
		log.Warn().Strs("Assets", assets).Float64("RiskFreeRate", a.RiskFreeRate).
			Msg("no asset beats the risk-free rate; using minimum volatility")
	}

	equal := make([]float64, n)
	for idx := range equal {
		equal[idx] = 1 / float64(n)
	}
	x, converged := spg(newVariance(sigma), equal, lo, hi, maxIter, ftol)
	if !converged {
		log.Warn().Strs("Assets", assets).Int("MaxIterations", maxIter).Msg("min volatility solver hit iteration limit")
	}
	return NewWeightVector(assets, x, constraints, MinVolatility)
}

// sharpeStart weights assets by their excess return over the risk-free rate
// so the solver starts where the excess return is positive
func sharpeStart(mu []float64, riskFree float64) []float64 {
	res := make([]float64, len(mu))
	sum := 0.0
	for idx, v := range mu {
		if v > riskFree {
			res[idx] = v - riskFree
			sum += res[idx]
		}
	}
	for idx := range res {
		res[idx] /= sum
	}
	return res
}
