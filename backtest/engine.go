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

// Package backtest replays target weight vectors over held-out prices and
// produces an equity curve.
package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/penny-vault/pv-optimizer/allocate"
	"github.com/penny-vault/pv-optimizer/dataframe"
	"github.com/penny-vault/pv-optimizer/observability/opentelemetry"
	"github.com/penny-vault/pv-optimizer/portfolio"
	"github.com/penny-vault/pv-optimizer/tradecron"
)

const DefaultBase = 1.0

// Rebalancer supplies the target weights traded on date. Implementations
// must only use information dated strictly before date.
type Rebalancer interface {
	Target(ctx context.Context, date time.Time) (*allocate.WeightVector, error)
}

// RebalancerFunc adapts a function to the Rebalancer interface
type RebalancerFunc func(ctx context.Context, date time.Time) (*allocate.WeightVector, error)

func (f RebalancerFunc) Target(ctx context.Context, date time.Time) (*allocate.WeightVector, error) {
	return f(ctx, date)
}

// Config controls an Engine. An empty schedule holds the initial weights
// for the whole run (buy and hold).
type Config struct {
	Schedule string   `json:"schedule" yaml:"schedule" toml:"schedule"`
	Base     float64  `json:"base" yaml:"base" toml:"base"`
	Cost     CostFunc `json:"-" yaml:"-" toml:"-"`
}

// Engine runs backtests. An Engine holds no per-run state and may be shared
// by concurrent runs.
type Engine struct {
	base     float64
	cost     CostFunc
	schedule *tradecron.TradeCron
}

// Rebalance records one trade made during a backtest
type Rebalance struct {
	Date     time.Time          `json:"date"`
	Value    float64            `json:"value"`
	Turnover float64            `json:"turnover"`
	Cost     float64            `json:"cost"`
	Weights  map[string]float64 `json:"weights"`
}

// Result is the output of a single backtest
type Result struct {
	Curve      *portfolio.EquityCurve `json:"-"`
	Rebalances []*Rebalance           `json:"rebalances"`
	Holdings   map[string]float64     `json:"holdings"`
}

func New(cfg Config) (*Engine, error) {
	spec := cfg.Schedule
	if spec == "" {
		spec = tradecron.AtNever
	}
	schedule, err := tradecron.New(spec)
	if err != nil {
		return nil, err
	}

	base := cfg.Base
	if base == 0 {
		base = DefaultBase
	}
	if base < 0 || math.IsNaN(base) || math.IsInf(base, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase, base)
	}

	cost := cfg.Cost
	if cost == nil {
		cost = ZeroCost
	}

	return &Engine{
		base:     base,
		cost:     cost,
		schedule: schedule,
	}, nil
}

// Schedule returns the rebalance schedule of the engine
func (e *Engine) Schedule() *tradecron.TradeCron {
	return e.schedule
}

// Run backtests rebalancer over the rows of prices dated in [begin, end]. A
// zero end runs through the last row. The first evaluation date receives the
// initial allocation and the curve starts there at the engine's base value.
// On every later date the holdings earn that date's price return; on dates
// matching the schedule the holdings are first reset to a new target.
func (e *Engine) Run(ctx context.Context, prices *dataframe.DataFrame, begin, end time.Time, rebalancer Rebalancer) (*Result, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "backtest.Run")
	defer span.End()

	if rebalancer == nil {
		return nil, ErrNoRebalancer
	}
	if err := prices.Validate(); err != nil {
		opentelemetry.Fail(span, err, "invalid price panel")
		return nil, err
	}

	if end.IsZero() {
		end = prices.End()
	}
	eval := prices.Trim(begin, end)
	if eval.Len() == 0 {
		return nil, fmt.Errorf("%w: %s to %s", ErrNoEvaluationDates, begin.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	span.SetAttributes(
		attribute.String("schedule", e.schedule.ScheduleString),
		attribute.Int("dates", eval.Len()),
	)

	r := &run{
		engine:     e,
		prices:     eval,
		calendar:   prices.Dates,
		offset:     sort.Search(len(prices.Dates), func(i int) bool { return !prices.Dates[i].Before(eval.Start()) }),
		rebalancer: rebalancer,
		state:      AwaitingStart,
		values:     make([]float64, 0, eval.Len()),
	}

	for idx := range eval.Dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.step(ctx, idx); err != nil {
			opentelemetry.Fail(span, err, "backtest failed")
			return nil, err
		}
	}

	if err := r.transition(Finished); err != nil {
		return nil, err
	}

	curve, err := portfolio.NewEquityCurve(eval.Dates, r.values)
	if err != nil {
		opentelemetry.Fail(span, err, "could not build equity curve")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("rebalances", len(r.rebalances)),
		attribute.Float64("final_value", curve.Final()),
	)

	log.Debug().Int("Dates", eval.Len()).Int("Rebalances", len(r.rebalances)).Float64("FinalValue", curve.Final()).Msg("backtest finished")

	return &Result{
		Curve:      curve,
		Rebalances: r.rebalances,
		Holdings:   r.holdingsMap(),
	}, nil
}

// run is the state of one backtest
type run struct {
	engine     *Engine
	prices     *dataframe.DataFrame
	rebalancer Rebalancer

	// calendar is the full price panel; offset is the calendar index of the
	// first evaluation date
	calendar []time.Time
	offset   int

	state      State
	assets     []string
	columns    []int
	weights    []float64
	values     []float64
	rebalances []*Rebalance
	wipedOut   bool
}

func (r *run) transition(next State) error {
	if !r.state.canTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalStateChange, r.state, next)
	}
	r.state = next
	return nil
}

func (r *run) step(ctx context.Context, idx int) error {
	switch r.state {
	case AwaitingStart:
		target, err := r.target(ctx, idx)
		if err != nil {
			return err
		}
		if err := r.hold(target); err != nil {
			return err
		}
		if err := r.checkPrices(idx); err != nil {
			return err
		}
		r.values = append(r.values, r.engine.base)
		return r.transition(Holding)

	case Holding:
		value := r.values[idx-1]
		if !r.wipedOut && r.isTradeDay(idx) {
			if err := r.transition(Rebalancing); err != nil {
				return err
			}
			var err error
			if value, err = r.rebalance(ctx, idx, value); err != nil {
				return err
			}
			if err := r.transition(Holding); err != nil {
				return err
			}
		}
		next, err := r.grow(idx, value)
		if err != nil {
			return err
		}
		r.values = append(r.values, next)
		return r.transition(Holding)

	default:
		return fmt.Errorf("%w: step called in state %s", ErrIllegalStateChange, r.state)
	}
}

// isTradeDay evaluates the schedule on the whole price calendar so a period
// end is recognized by the next available date, not by the end of the
// evaluation window. The last calendar date never closes a period.
func (r *run) isTradeDay(idx int) bool {
	pos := r.offset + idx
	if pos == len(r.calendar)-1 && r.engine.schedule.ClosesPeriod() {
		return false
	}
	return r.engine.schedule.IsTradeDay(r.calendar, pos)
}

func (r *run) target(ctx context.Context, idx int) (*allocate.WeightVector, error) {
	target, err := r.rebalancer.Target(ctx, r.prices.Dates[idx])
	if err != nil {
		return nil, err
	}
	if target == nil || target.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTarget, r.prices.Dates[idx].Format("2006-01-02"))
	}
	return target, nil
}

// hold replaces the holdings with target
func (r *run) hold(target *allocate.WeightVector) error {
	assets := target.Assets()
	columns := make([]int, len(assets))
	for idx, asset := range assets {
		columns[idx] = r.prices.ColIndex(asset)
		if columns[idx] < 0 && target.Weight(asset) != 0 {
			return fmt.Errorf("%w: no prices for %s", ErrMissingPriceData, asset)
		}
	}
	r.assets = assets
	r.columns = columns
	r.weights = target.Weights()
	return nil
}

// rebalance trades the drifted holdings to a new target and returns the
// portfolio value after costs
func (r *run) rebalance(ctx context.Context, idx int, value float64) (float64, error) {
	target, err := r.target(ctx, idx)
	if err != nil {
		return 0, err
	}

	old := r.holdingsMap()
	next := target.Map()
	trade := turnover(old, next)
	cost := r.engine.cost(old, next, trade)
	if math.IsNaN(cost) || cost < 0 || cost >= 1 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCost, cost)
	}

	if err := r.hold(target); err != nil {
		return 0, err
	}

	rb := &Rebalance{
		Date:     r.prices.Dates[idx],
		Value:    value,
		Turnover: trade,
		Cost:     cost,
		Weights:  next,
	}
	r.rebalances = append(r.rebalances, rb)
	log.Debug().Object("Rebalance", rb).Msg("rebalanced portfolio")

	return value * (1 - cost), nil
}

// grow applies the price returns of date idx to the holdings and lets the
// weights drift
func (r *run) grow(idx int, value float64) (float64, error) {
	if r.wipedOut {
		return 0, nil
	}
	if err := r.checkPrices(idx - 1); err != nil {
		return 0, err
	}
	if err := r.checkPrices(idx); err != nil {
		return 0, err
	}

	rets := make([]float64, len(r.weights))
	growth := 1.0
	for ii, w := range r.weights {
		if w == 0 {
			continue
		}
		col := r.prices.Vals[r.columns[ii]]
		rets[ii] = col[idx]/col[idx-1] - 1
		growth += w * rets[ii]
	}

	if growth <= 0 {
		log.Warn().Time("Date", r.prices.Dates[idx]).Msg("portfolio value fell to zero")
		r.wipedOut = true
		return 0, nil
	}

	for ii, w := range r.weights {
		r.weights[ii] = w * (1 + rets[ii]) / growth
	}

	return value * growth, nil
}

// checkPrices verifies every held asset has a usable price on date idx
func (r *run) checkPrices(idx int) error {
	for ii, w := range r.weights {
		if w == 0 {
			continue
		}
		price := r.prices.Vals[r.columns[ii]][idx]
		if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
			return fmt.Errorf("%w: %s on %s", ErrMissingPriceData, r.assets[ii], r.prices.Dates[idx].Format("2006-01-02"))
		}
	}
	return nil
}

func (r *run) holdingsMap() map[string]float64 {
	res := make(map[string]float64, len(r.assets))
	for idx, asset := range r.assets {
		res[asset] = r.weights[idx]
	}
	return res
}
