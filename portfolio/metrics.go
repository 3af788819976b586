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

package portfolio

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	DefaultPeriodsPerYear = 252
	topDrawDownCount      = 10
)

// DrawDown is a decline from a running peak. Recovery is zero if the curve
// never regained the peak.
type DrawDown struct {
	Begin       time.Time `json:"begin"`
	End         time.Time `json:"end"`
	Recovery    time.Time `json:"recovery"`
	LossPercent float64   `json:"loss_percent"`
}

// Metrics is the standard set of risk/return statistics for an equity curve.
// Every field is finite; cases where a ratio is undefined report zero.
type Metrics struct {
	TotalReturn          float64 `json:"total_return"`
	CAGR                 float64 `json:"cagr"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	Sharpe               float64 `json:"sharpe"`
	MaxDrawDown          float64 `json:"max_drawdown"`
	Calmar               float64 `json:"calmar"`

	FinalValue        float64     `json:"final_value"`
	Sortino           float64     `json:"sortino"`
	DownsideDeviation float64     `json:"downside_deviation"`
	AvgDrawDown       float64     `json:"avg_drawdown"`
	UlcerIndex        float64     `json:"ulcer_index"`
	Periods           int         `json:"periods"`
	TopDrawDowns      []*DrawDown `json:"top_drawdowns,omitempty"`
}

// ComputeMetrics calculates the metrics for curve. periodsPerYear scales
// per-period statistics to annual ones and riskFree is an annual rate.
func ComputeMetrics(curve *EquityCurve, periodsPerYear int, riskFree float64) (*Metrics, error) {
	if curve.Periods() == 0 {
		return nil, fmt.Errorf("%w: curve has %d points", ErrDegenerateCurve, curve.Len())
	}
	if curve.Initial() <= 0 {
		return nil, fmt.Errorf("%w: starting value %v is not positive", ErrDegenerateCurve, curve.Initial())
	}
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultPeriodsPerYear
	}

	metrics := &Metrics{
		TotalReturn:          curve.TotalReturn(),
		CAGR:                 curve.CAGR(periodsPerYear),
		AnnualizedVolatility: curve.AnnualizedVolatility(periodsPerYear),
		Sharpe:               curve.SharpeRatio(periodsPerYear, riskFree),
		MaxDrawDown:          curve.MaxDrawDown(),
		Calmar:               curve.CalmarRatio(periodsPerYear),
		FinalValue:           curve.Final(),
		Sortino:              curve.SortinoRatio(periodsPerYear, riskFree),
		DownsideDeviation:    curve.DownsideDeviation(periodsPerYear, riskFree),
		AvgDrawDown:          curve.AverageDrawDown(),
		UlcerIndex:           curve.UlcerIndex(),
		Periods:              curve.Periods(),
		TopDrawDowns:         curve.TopDrawDowns(topDrawDownCount),
	}

	return metrics, nil
}

// TotalReturn is curve[-1]/curve[0] - 1
func (curve *EquityCurve) TotalReturn() float64 {
	if curve.Periods() == 0 || curve.Initial() <= 0 {
		return 0
	}
	return curve.Final()/curve.Initial() - 1
}

// CAGR is the compound annual growth rate (curve[-1]/curve[0])^(ppy/n) - 1.
// A curve that ends at or below zero has lost everything and reports -1.
func (curve *EquityCurve) CAGR(periodsPerYear int) float64 {
	n := curve.Periods()
	if n == 0 || curve.Initial() <= 0 {
		return 0
	}
	ratio := curve.Final() / curve.Initial()
	if ratio <= 0 {
		return -1
	}
	return math.Pow(ratio, float64(periodsPerYear)/float64(n)) - 1
}

// AnnualizedVolatility is the population standard deviation of the periodic
// returns scaled by sqrt(ppy); a single period has no volatility
func (curve *EquityCurve) AnnualizedVolatility(periodsPerYear int) float64 {
	rets := curve.Returns()
	if len(rets) < 2 {
		return 0
	}
	_, std := stat.PopMeanStdDev(rets, nil)
	return std * math.Sqrt(float64(periodsPerYear))
}

// SharpeRatio The ratio is the average return earned in excess of the risk-free
// rate per unit of volatility or total risk.
//
// Sharpe = (mean(r) · ppy - Rf) / (annualized std. dev)
func (curve *EquityCurve) SharpeRatio(periodsPerYear int, riskFree float64) float64 {
	vol := curve.AnnualizedVolatility(periodsPerYear)
	if vol == 0 {
		return 0
	}
	rets := curve.Returns()
	return (stat.Mean(rets, nil)*float64(periodsPerYear) - riskFree) / vol
}

// DownsideDeviation computes the root mean square of returns below the
// per-period risk-free rate, annualized
func (curve *EquityCurve) DownsideDeviation(periodsPerYear int, riskFree float64) float64 {
	rets := curve.Returns()
	if len(rets) == 0 {
		return 0
	}

	rf := riskFree / float64(periodsPerYear)
	downside := 0.0
	for _, r := range rets {
		excessReturn := r - rf
		if excessReturn < 0 {
			downside += excessReturn * excessReturn // much faster than math.Pow
		}
	}

	return math.Sqrt(downside/float64(len(rets))) * math.Sqrt(float64(periodsPerYear))
}

// SortinoRatio a variation of the Sharpe ratio that differentiates harmful
// volatility from total overall volatility by using the downside deviation
// instead of the total standard deviation of portfolio returns.
func (curve *EquityCurve) SortinoRatio(periodsPerYear int, riskFree float64) float64 {
	dd := curve.DownsideDeviation(periodsPerYear, riskFree)
	if dd == 0 {
		return 0
	}
	rets := curve.Returns()
	return (stat.Mean(rets, nil)*float64(periodsPerYear) - riskFree) / dd
}

// MaxDrawDown is min_t(curve[t]/runmax_t - 1); zero for a curve that never
// falls below its running peak
func (curve *EquityCurve) MaxDrawDown() float64 {
	if curve.Len() == 0 {
		return 0
	}
	peak := curve.values[0]
	worst := 0.0
	for _, v := range curve.values {
		peak = math.Max(peak, v)
		if peak <= 0 {
			continue
		}
		if dd := v/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

// CalmarRatio is a gauge of the risk adjusted performance of a portfolio.
// It is a function of the fund's average compounded annual rate of return
// versus its maximum drawdown.
func (curve *EquityCurve) CalmarRatio(periodsPerYear int) float64 {
	mdd := curve.MaxDrawDown()
	if mdd == 0 {
		return 0
	}
	return curve.CAGR(periodsPerYear) / math.Abs(mdd)
}

// AllDrawDowns computes all portfolio draw downs. A draw down
// is defined as the period in which a portfolio falls from its previous peak.
// Draw downs include the time period of the loss, percent of loss, and when
// the portfolio recovered
func (curve *EquityCurve) AllDrawDowns() []*DrawDown {
	allDrawDowns := []*DrawDown{}
	if curve.Len() < 2 {
		return allDrawDowns
	}

	peak := curve.values[0]
	var drawDown *DrawDown
	var prev time.Time
	for idx, value := range curve.values {
		dt := curve.dates[idx]
		peak = math.Max(peak, value)
		diff := value - peak
		if diff < 0 && peak > 0 {
			loss := value/peak - 1.0
			if drawDown == nil {
				drawDown = &DrawDown{
					Begin:       prev,
					End:         dt,
					LossPercent: loss,
				}
			}
			if loss < drawDown.LossPercent {
				drawDown.End = dt
				drawDown.LossPercent = loss
			}
		} else if drawDown != nil {
			drawDown.Recovery = dt
			allDrawDowns = append(allDrawDowns, drawDown)
			drawDown = nil
		}
		prev = dt
	}

	if drawDown != nil {
		allDrawDowns = append(allDrawDowns, drawDown)
	}

	return allDrawDowns
}

// TopDrawDowns returns the n deepest draw downs, deepest first
func (curve *EquityCurve) TopDrawDowns(n int) []*DrawDown {
	allDrawDowns := curve.AllDrawDowns()
	sort.SliceStable(allDrawDowns, func(i, j int) bool {
		return allDrawDowns[i].LossPercent < allDrawDowns[j].LossPercent
	})
	if len(allDrawDowns) > n {
		allDrawDowns = allDrawDowns[:n]
	}
	return allDrawDowns
}

// AverageDrawDown is the mean loss of all draw downs; zero if there were none
func (curve *EquityCurve) AverageDrawDown() float64 {
	allDrawDowns := curve.AllDrawDowns()
	if len(allDrawDowns) == 0 {
		return 0
	}
	dd := make([]float64, len(allDrawDowns))
	for ii, xx := range allDrawDowns {
		dd[ii] = xx.LossPercent
	}
	return stat.Mean(dd, nil)
}

// UlcerIndex measures downside risk in terms of both the depth and duration
// of declines from the running peak:
//
//	Ulcer Index = sqrt(mean((curve[t]/runmax_t - 1)^2))
//
// The result is a fraction, not a percentage.
func (curve *EquityCurve) UlcerIndex() float64 {
	if curve.Len() == 0 {
		return 0
	}
	peak := curve.values[0]
	var sqSum float64
	for _, v := range curve.values {
		peak = math.Max(peak, v)
		if peak <= 0 {
			continue
		}
		dd := v/peak - 1
		sqSum += dd * dd
	}
	return math.Sqrt(sqSum / float64(curve.Len()))
}
