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
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/penny-vault/pv-optimizer/dataframe"
)

var (
	ErrDegenerateCurve    = errors.New("equity curve cannot produce metrics")
	ErrCurveShapeMismatch = errors.New("equity curve dates and values differ in length")
	ErrCurveNotIncreasing = errors.New("equity curve dates must be strictly increasing")
	ErrCurveInvalidValue  = errors.New("equity curve contains NaN or infinite values")
)

// EquityCurve is the value of a portfolio through time, normalized so the
// first value is the starting capital (1.0 unless configured otherwise). It
// is immutable once built.
type EquityCurve struct {
	dates  []time.Time
	values []float64
}

// NewEquityCurve copies dates and values into a new curve
func NewEquityCurve(dates []time.Time, values []float64) (*EquityCurve, error) {
	if len(dates) != len(values) {
		return nil, fmt.Errorf("%w: %d dates, %d values", ErrCurveShapeMismatch, len(dates), len(values))
	}
	for idx := 1; idx < len(dates); idx++ {
		if !dates[idx-1].Before(dates[idx]) {
			return nil, fmt.Errorf("%w: %s follows %s", ErrCurveNotIncreasing,
				dates[idx].Format("2006-01-02"), dates[idx-1].Format("2006-01-02"))
		}
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrCurveInvalidValue
		}
	}

	return &EquityCurve{
		dates:  append([]time.Time(nil), dates...),
		values: append([]float64(nil), values...),
	}, nil
}

func (curve *EquityCurve) Len() int {
	return len(curve.values)
}

// Periods is the number of return periods covered by the curve
func (curve *EquityCurve) Periods() int {
	if len(curve.values) == 0 {
		return 0
	}
	return len(curve.values) - 1
}

func (curve *EquityCurve) Dates() []time.Time {
	return append([]time.Time(nil), curve.dates...)
}

func (curve *EquityCurve) Values() []float64 {
	return append([]float64(nil), curve.values...)
}

// Start returns the first date of the curve
func (curve *EquityCurve) Start() time.Time {
	if len(curve.dates) == 0 {
		return time.Time{}
	}
	return curve.dates[0]
}

// End returns the last date of the curve
func (curve *EquityCurve) End() time.Time {
	if len(curve.dates) == 0 {
		return time.Time{}
	}
	return curve.dates[len(curve.dates)-1]
}

// Initial returns the first value of the curve
func (curve *EquityCurve) Initial() float64 {
	if len(curve.values) == 0 {
		return 0
	}
	return curve.values[0]
}

// Final returns the last value of the curve
func (curve *EquityCurve) Final() float64 {
	if len(curve.values) == 0 {
		return 0
	}
	return curve.values[len(curve.values)-1]
}

// Returns computes the simple periodic returns of the curve. A period that
// starts at a non-positive value has a return of zero.
func (curve *EquityCurve) Returns() []float64 {
	if len(curve.values) < 2 {
		return []float64{}
	}
	res := make([]float64, len(curve.values)-1)
	for idx := 1; idx < len(curve.values); idx++ {
		prev := curve.values[idx-1]
		if prev > 0 {
			res[idx-1] = curve.values[idx]/prev - 1
		}
	}
	return res
}

// DataFrame returns the curve as a single column dataframe named name
func (curve *EquityCurve) DataFrame(name string) *dataframe.DataFrame {
	return &dataframe.DataFrame{
		Dates:    curve.Dates(),
		ColNames: []string{name},
		Vals:     [][]float64{curve.Values()},
	}
}
