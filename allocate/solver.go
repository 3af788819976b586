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
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultMaxIterations = 5000
	defaultTolerance     = 1e-10
	spgMemory            = 10
	spgGamma             = 1e-4
	spgAlphaMin          = 1e-12
	spgAlphaMax          = 1e12
	bisectIterations     = 200
)

// objective is a differentiable function over weight vectors
type objective interface {
	value(w []float64) float64
	gradient(dst, w []float64)
}

// project writes the Euclidean projection of v onto
// {w : Σw = 1, lo ≤ w_i ≤ hi} into dst. The projection is
// w_i = clip(v_i - τ, lo, hi) where τ solves Σw = 1; the sum is
// non-increasing in τ so τ is found by bisection.
func project(dst, v []float64, lo, hi float64) {
	sumAt := func(tau float64) float64 {
		sum := 0.0
		for _, x := range v {
			sum += math.Min(hi, math.Max(lo, x-tau))
		}
		return sum
	}

	tauLo := floats.Min(v) - hi - 1
	tauHi := floats.Max(v) - lo + 1
	for iter := 0; iter < bisectIterations; iter++ {
		mid := 0.5 * (tauLo + tauHi)
		if mid == tauLo || mid == tauHi {
			break
		}
		if sumAt(mid) > 1 {
			tauLo = mid
		} else {
			tauHi = mid
		}
	}

	tau := 0.5 * (tauLo + tauHi)
	for idx, x := range v {
		dst[idx] = math.Min(hi, math.Max(lo, x-tau))
	}
}

// spg minimizes obj over the box-constrained simplex with the spectral
// projected gradient method and a non-monotone line search (Birgin, Martínez
// and Raydan). It returns the final iterate and whether the projected
// gradient vanished before the iteration limit.
func spg(obj objective, x0 []float64, lo, hi float64, maxIter int, tol float64) ([]float64, bool) {
	n := len(x0)
	x := make([]float64, n)
	project(x, x0, lo, hi)

	g := make([]float64, n)
	obj.gradient(g, x)
	f := obj.value(x)

	history := make([]float64, 0, spgMemory)
	history = append(history, f)

	trial := make([]float64, n)
	d := make([]float64, n)
	xn := make([]float64, n)
	gn := make([]float64, n)
	s := make([]float64, n)
	y := make([]float64, n)

	// step size from the initial gradient
	alpha := 1.0
	if norm := floats.Norm(g, math.Inf(1)); norm > 0 {
		alpha = math.Min(spgAlphaMax, math.Max(spgAlphaMin, 1/norm))
	}

	for iter := 0; iter < maxIter; iter++ {
		// optimality: projected gradient with unit step
		floats.SubTo(trial, x, g)
		project(trial, trial, lo, hi)
		floats.Sub(trial, x)
		if floats.Norm(trial, math.Inf(1)) <= tol {
			return x, true
		}

		// search direction
		floats.AddScaledTo(trial, x, -alpha, g)
		project(trial, trial, lo, hi)
		floats.SubTo(d, trial, x)
		gd := floats.Dot(g, d)

		fmax := floats.Max(history)
		lambda := 1.0
		var fn float64
		for {
			floats.AddScaledTo(xn, x, lambda, d)
			fn = obj.value(xn)
			if fn <= fmax+spgGamma*lambda*gd {
				break
			}
			lambda *= 0.5
			if lambda < 1e-20 {
				return x, false
			}
		}

		obj.gradient(gn, xn)
		floats.SubTo(s, xn, x)
		floats.SubTo(y, gn, g)
		sy := floats.Dot(s, y)
		if sy <= 0 {
			alpha = spgAlphaMax
		} else {
			alpha = math.Min(spgAlphaMax, math.Max(spgAlphaMin, floats.Dot(s, s)/sy))
		}

		copy(x, xn)
		copy(g, gn)
		f = fn

		if len(history) == spgMemory {
			history = history[1:]
		}
		history = append(history, f)
	}

	return x, false
}

// negSharpe is -(μᵀw - r_f)/sqrt(wᵀΣw)
type negSharpe struct {
	mu       []float64
	sigma    mat.Symmetric
	riskFree float64
	sw       *mat.VecDense
}

func newNegSharpe(mu []float64, sigma mat.Symmetric, riskFree float64) *negSharpe {
	return &negSharpe{
		mu:       mu,
		sigma:    sigma,
		riskFree: riskFree,
		sw:       mat.NewVecDense(len(mu), nil),
	}
}

func (o *negSharpe) moments(w []float64) (excess, vol float64) {
	wv := mat.NewVecDense(len(w), w)
	o.sw.MulVec(o.sigma, wv)
	variance := mat.Dot(wv, o.sw)
	return floats.Dot(o.mu, w) - o.riskFree, math.Sqrt(math.Max(variance, 0))
}

func (o *negSharpe) value(w []float64) float64 {
	excess, vol := o.moments(w)
	if vol == 0 {
		return math.Inf(1)
	}
	return -excess / vol
}

// ∇S = μ/σ - (μᵀw - r_f) Σw / σ³
func (o *negSharpe) gradient(dst, w []float64) {
	excess, vol := o.moments(w)
	vol3 := vol * vol * vol
	for idx := range dst {
		dst[idx] = -(o.mu[idx]/vol - excess*o.sw.AtVec(idx)/vol3)
	}
}

// variance is wᵀΣw
type variance struct {
	sigma mat.Symmetric
	sw    *mat.VecDense
}

func newVariance(sigma mat.Symmetric) *variance {
	return &variance{sigma: sigma, sw: mat.NewVecDense(sigma.SymmetricDim(), nil)}
}

func (o *variance) value(w []float64) float64 {
	wv := mat.NewVecDense(len(w), w)
	o.sw.MulVec(o.sigma, wv)
	return mat.Dot(wv, o.sw)
}

func (o *variance) gradient(dst, w []float64) {
	wv := mat.NewVecDense(len(w), w)
	o.sw.MulVec(o.sigma, wv)
	for idx := range dst {
		dst[idx] = 2 * o.sw.AtVec(idx)
	}
}
