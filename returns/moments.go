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

package returns

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LogToSimpleMoments converts the mean vector and covariance matrix of
// per-period log returns into the moments of the corresponding simple
// returns, assuming log returns are jointly normal:
//
//	E[R_i]        = exp(μ_i + Σ_ii/2) - 1
//	Cov[R_i, R_j] = exp(μ_i + μ_j + (Σ_ii + Σ_jj)/2) · (exp(Σ_ij) - 1)
func LogToSimpleMoments(mu []float64, sigma mat.Symmetric) ([]float64, *mat.SymDense, error) {
	n := len(mu)
	if sigma.SymmetricDim() != n {
		return nil, nil, fmt.Errorf("%w: %d means, %d×%d covariance", ErrShapeMismatch, n, sigma.SymmetricDim(), sigma.SymmetricDim())
	}

	simpleMu := make([]float64, n)
	for ii := 0; ii < n; ii++ {
		simpleMu[ii] = math.Exp(mu[ii]+sigma.At(ii, ii)/2) - 1
	}

	simpleSigma := mat.NewSymDense(n, nil)
	for ii := 0; ii < n; ii++ {
		for jj := ii; jj < n; jj++ {
			scale := math.Exp(mu[ii] + mu[jj] + (sigma.At(ii, ii)+sigma.At(jj, jj))/2)
			simpleSigma.SetSym(ii, jj, scale*math.Expm1(sigma.At(ii, jj)))
		}
	}

	return simpleMu, simpleSigma, nil
}

// LogToSimple converts a single log return to a simple return
func LogToSimple(r float64) float64 {
	return math.Expm1(r)
}

// RescaleMean converts a mean per-period return observed at fromPPY periods
// per year into the equivalent return at toPPY periods per year. Simple
// returns compound, log returns scale linearly.
func RescaleMean(m float64, kind Kind, fromPPY, toPPY int) float64 {
	if fromPPY == toPPY || fromPPY <= 0 || toPPY <= 0 {
		return m
	}

	ratio := float64(fromPPY) / float64(toPPY)
	if kind == Log {
		return m * ratio
	}
	return math.Pow(1+m, ratio) - 1
}
