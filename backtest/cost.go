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

package backtest

import (
	"math"
	"sort"
)

// CostFunc returns the fraction of portfolio value paid to move from the
// drifted weights old to the target weights new. turnover is Σ|new - old|.
type CostFunc func(old, new map[string]float64, turnover float64) float64

// ZeroCost is frictionless trading
func ZeroCost(_, _ map[string]float64, _ float64) float64 {
	return 0
}

// ProportionalCost charges bps basis points on every unit of turnover
func ProportionalCost(bps float64) CostFunc {
	rate := bps / 10_000
	return func(_, _ map[string]float64, turnover float64) float64 {
		return rate * turnover
	}
}

// turnover is Σ|a_i - b_i| over the union of assets
func turnover(a, b map[string]float64) float64 {
	union := make([]string, 0, len(a)+len(b))
	for asset := range a {
		union = append(union, asset)
	}
	for asset := range b {
		if _, ok := a[asset]; !ok {
			union = append(union, asset)
		}
	}
	sort.Strings(union)

	sum := 0.0
	for _, asset := range union {
		sum += math.Abs(a[asset] - b[asset])
	}
	return sum
}
