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
)

// ConstraintSet bounds the weights an allocation may take. Weights always
// sum to one.
type ConstraintSet struct {
	LongOnly      bool    `json:"long_only" yaml:"long_only"`
	MaxWeight     float64 `json:"max_weight" yaml:"max_weight"`
	AllowLeverage bool    `json:"allow_leverage" yaml:"allow_leverage"`
}

// DefaultConstraints is long-only with no per-asset cap
func DefaultConstraints() ConstraintSet {
	return ConstraintSet{
		LongOnly:  true,
		MaxWeight: 1,
	}
}

// Shorting reports whether negative weights are permitted. A fully invested
// portfolio with short positions has gross exposure above one, so shorting
// needs both LongOnly off and AllowLeverage on.
func (c ConstraintSet) Shorting() bool {
	return !c.LongOnly && c.AllowLeverage
}

// Bounds returns the per-asset weight bounds
func (c ConstraintSet) Bounds() (lo, hi float64) {
	if c.Shorting() {
		return -c.MaxWeight, c.MaxWeight
	}
	return 0, c.MaxWeight
}

// Validate checks the constraint set for n assets
func (c ConstraintSet) Validate(n int) error {
	if c.MaxWeight <= 0 || c.MaxWeight > 1 || math.IsNaN(c.MaxWeight) {
		return fmt.Errorf("%w: max_weight must be in (0, 1], got %v", ErrInvalidConstraints, c.MaxWeight)
	}
	if n <= 0 {
		return fmt.Errorf("%w: no assets", ErrInvalidConstraints)
	}
	if c.MaxWeight*float64(n) < 1-weightTolerance {
		return fmt.Errorf("%w: max_weight %v × %d assets < 1", ErrInfeasibleConstraints, c.MaxWeight, n)
	}
	return nil
}

func (c ConstraintSet) String() string {
	lo, hi := c.Bounds()
	return fmt.Sprintf("w ∈ [%g, %g], Σw = 1", lo, hi)
}
