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

package allocate

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Objective names the function an allocation optimized
type Objective string

const (
	MaxSharpe     Objective = "max_sharpe"
	MinVolatility Objective = "min_volatility"
	EqualWeight   Objective = "equal_weight"
	Fixed         Objective = "fixed"
)

const (
	sumTolerance    = 1e-6
	weightTolerance = 1e-9
)

// WeightVector maps assets to portfolio weights. Weights sum to one within
// 1e-6 and respect the constraint set the vector was built under.
type WeightVector struct {
	assets    []string
	weights   []float64
	objective Objective
}

// NewWeightVector validates weights against constraints and returns an
// immutable vector
func NewWeightVector(assets []string, weights []float64, constraints ConstraintSet, objective Objective) (*WeightVector, error) {
	if len(assets) != len(weights) {
		return nil, fmt.Errorf("%w: %d assets, %d weights", ErrShapeMismatch, len(assets), len(weights))
	}
	if err := constraints.Validate(len(assets)); err != nil {
		return nil, err
	}

	lo, hi := constraints.Bounds()
	sum := 0.0
	for idx, w := range weights {
		if math.IsNaN(w) || w < lo-weightTolerance || w > hi+weightTolerance {
			return nil, fmt.Errorf("%w: %s has weight %v outside [%v, %v]", ErrInvalidWeights, assets[idx], w, lo, hi)
		}
		sum += w
	}
	if math.Abs(sum-1) > sumTolerance {
		return nil, fmt.Errorf("%w: weights sum to %v", ErrInvalidWeights, sum)
	}

	seen := make(map[string]bool, len(assets))
	for _, asset := range assets {
		if seen[asset] {
			return nil, fmt.Errorf("%w: duplicate asset %s", ErrInvalidWeights, asset)
		}
		seen[asset] = true
	}

	return &WeightVector{
		assets:    append([]string(nil), assets...),
		weights:   append([]float64(nil), weights...),
		objective: objective,
	}, nil
}

// Equal returns the 1/n portfolio
func Equal(assets []string) (*WeightVector, error) {
	weights := make([]float64, len(assets))
	for idx := range weights {
		weights[idx] = 1 / float64(len(assets))
	}
	return NewWeightVector(assets, weights, DefaultConstraints(), EqualWeight)
}

// Single returns the portfolio fully invested in target
func Single(assets []string, target string) (*WeightVector, error) {
	weights := make([]float64, len(assets))
	found := false
	for idx, asset := range assets {
		if asset == target {
			weights[idx] = 1
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, target)
	}
	return NewWeightVector(assets, weights, DefaultConstraints(), Fixed)
}

func (wv *WeightVector) Assets() []string {
	return append([]string(nil), wv.assets...)
}

// Weights returns a copy of the weights in asset order
func (wv *WeightVector) Weights() []float64 {
	return append([]float64(nil), wv.weights...)
}

// Weight returns the weight of asset; assets not in the vector have zero weight
func (wv *WeightVector) Weight(asset string) float64 {
	if idx, ok := wv.index(asset); ok {
		return wv.weights[idx]
	}
	return 0
}

func (wv *WeightVector) Objective() Objective {
	return wv.objective
}

func (wv *WeightVector) Len() int {
	return len(wv.assets)
}

// Map returns the weights keyed by asset
func (wv *WeightVector) Map() map[string]float64 {
	res := make(map[string]float64, len(wv.assets))
	for idx, a := range wv.assets {
		res[a] = wv.weights[idx]
	}
	return res
}

// Turnover returns Σ|w_i - other_i| over the union of both vectors' assets
func (wv *WeightVector) Turnover(other *WeightVector) float64 {
	if other == nil {
		sum := 0.0
		for _, w := range wv.weights {
			sum += math.Abs(w)
		}
		return sum
	}

	union := wv.Assets()
	for _, a := range other.assets {
		if _, ok := wv.index(a); !ok {
			union = append(union, a)
		}
	}
	sort.Strings(union)

	sum := 0.0
	for _, a := range union {
		sum += math.Abs(wv.Weight(a) - other.Weight(a))
	}
	return sum
}

func (wv *WeightVector) index(asset string) (int, bool) {
	for idx, a := range wv.assets {
		if a == asset {
			return idx, true
		}
	}
	return -1, false
}

func (wv *WeightVector) String() string {
	parts := make([]string, 0, len(wv.assets))
	order := make([]int, len(wv.assets))
	for idx := range order {
		order[idx] = idx
	}
	sort.SliceStable(order, func(i, j int) bool {
		return wv.weights[order[i]] > wv.weights[order[j]]
	})
	for _, idx := range order {
		parts = append(parts, fmt.Sprintf("%s:%.4f", wv.assets[idx], wv.weights[idx]))
	}
	return strings.Join(parts, " ")
}
