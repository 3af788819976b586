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

	"gonum.org/v1/gonum/mat"
)

// Shrink returns (1-λ)Σ + λF where F is the shrinkage target built from Σ:
//
//	diagonal:             F = diag(Σ)
//	constant_correlation: F_ii = Σ_ii, F_ij = r̄·sqrt(Σ_ii Σ_jj)
//
// r̄ is the average pairwise correlation. λ = 0 returns a copy of Σ.
func Shrink(sigma mat.Symmetric, lambda float64, target Target) (*mat.SymDense, error) {
	if lambda < 0 || lambda > 1 || math.IsNaN(lambda) {
		return nil, fmt.Errorf("%w: shrinkage must be in [0, 1], got %v", ErrInvalidConfig, lambda)
	}

	n := sigma.SymmetricDim()
	res := mat.NewSymDense(n, nil)
	res.CopySym(sigma)
	if lambda == 0 {
		return res, nil
	}

	var rbar float64
	switch target {
	case Diagonal, "":
	case ConstantCorrelation:
		rbar = averageCorrelation(sigma)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownShrinkage, target)
	}

	for ii := 0; ii < n; ii++ {
		for jj := ii + 1; jj < n; jj++ {
			f := rbar * math.Sqrt(sigma.At(ii, ii)*sigma.At(jj, jj))
			res.SetSym(ii, jj, (1-lambda)*sigma.At(ii, jj)+lambda*f)
		}
	}

	return res, nil
}

func averageCorrelation(sigma mat.Symmetric) float64 {
	n := sigma.SymmetricDim()
	if n < 2 {
		return 0
	}

	sum := 0.0
	count := 0
	for ii := 0; ii < n; ii++ {
		for jj := ii + 1; jj < n; jj++ {
			denom := math.Sqrt(sigma.At(ii, ii) * sigma.At(jj, jj))
			if denom > 0 {
				sum += sigma.At(ii, jj) / denom
			}
			count++
		}
	}
	return sum / float64(count)
}

// AddJitter adds eps to every diagonal element of sigma in place
func AddJitter(sigma *mat.SymDense, eps float64) {
	if eps == 0 {
		return
	}
	n := sigma.SymmetricDim()
	for ii := 0; ii < n; ii++ {
		sigma.SetSym(ii, ii, sigma.At(ii, ii)+eps)
	}
}

// CheckCovariance returns ErrDegenerateCovariance when sigma is not
// positive definite or its smallest to largest eigenvalue ratio is at or
// below tolerance
func CheckCovariance(sigma mat.Symmetric, tolerance float64) error {
	n := sigma.SymmetricDim()
	for ii := 0; ii < n; ii++ {
		for jj := ii; jj < n; jj++ {
			if v := sigma.At(ii, jj); math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: non-finite entry at (%d, %d)", ErrDegenerateCovariance, ii, jj)
			}
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sigma); !ok {
		return fmt.Errorf("%w: cholesky factorization failed", ErrDegenerateCovariance)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sigma, false); !ok {
		return fmt.Errorf("%w: eigen decomposition failed", ErrDegenerateCovariance)
	}
	values := eig.Values(nil)
	lmin, lmax := values[0], values[len(values)-1]
	if lmax <= 0 || lmin/lmax <= tolerance {
		return fmt.Errorf("%w: eigenvalue ratio %g at or below %g", ErrDegenerateCovariance, lmin/lmax, tolerance)
	}

	return nil
}
