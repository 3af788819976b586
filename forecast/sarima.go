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

package forecast

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// sarima is a seasonal ARIMA(p,d,q)(P,D,Q)s model fit by conditional sum of
// squares. The series is differenced by (1-B)^d (1-B^s)^D, the differenced
// series w follows
//
//	φ(B) Φ(B^s) w_t = θ(B) Θ(B^s) e_t
//
// and forecasts are integrated back through the differencing polynomial.
// Each coefficient is constrained to (-0.99, 0.99) through a tanh transform.
// When the series is not differenced a constant mean is removed before the
// fit and added back to the forecasts.
type sarima struct {
	order    Order
	seasonal SeasonalOrder
	minObs   int
	maxEval  int

	fitted bool
	y      []float64 // original series
	w      []float64 // differenced, demeaned series
	resid  []float64 // in-sample residuals aligned with w
	delta  []float64 // differencing polynomial
	ar     []float64 // expanded AR polynomial, ar[0] = 1
	ma     []float64 // expanded MA polynomial, ma[0] = 1
	mean   float64
	diag   Diagnostics
}

func (m *sarima) Kind() Kind {
	return SARIMA
}

func (m *sarima) numParams() int {
	return m.order.P + m.order.Q + m.seasonal.P + m.seasonal.Q
}

func (m *sarima) Fit(series []float64) error {
	if err := checkSeries(series, m.minObs); err != nil {
		return err
	}

	period := m.seasonal.Period
	delta := polyPow([]float64{1, -1}, m.order.D)
	delta = polyMul(delta, polyPow(seasonalPoly([]float64{1, -1}, period), m.seasonal.D))

	w := applyPoly(delta, series)
	mean := 0.0
	if m.order.D+m.seasonal.D == 0 {
		mean = stat.Mean(w, nil)
		for idx := range w {
			w[idx] -= mean
		}
	}

	k := m.numParams()
	cond := m.order.P + period*m.seasonal.P
	nEff := len(w) - cond
	if nEff <= k+1 {
		return fmt.Errorf("%w: %d usable observations after differencing for %d parameters", ErrInsufficientData, nEff, k)
	}

	objective := func(x []float64) float64 {
		ar, ma := m.polynomials(x)
		css := conditionalSumOfSquares(w, ar, ma, cond, nil)
		if math.IsNaN(css) || math.IsInf(css, 0) {
			return math.MaxFloat64
		}
		return css / float64(nEff)
	}

	x := make([]float64, k)
	converged := true
	if k > 0 {
		result, err := optimize.Minimize(optimize.Problem{Func: objective}, x,
			&optimize.Settings{FuncEvaluations: m.maxEval}, &optimize.NelderMead{})
		if result == nil {
			return fmt.Errorf("%w: %s", ErrFitFailed, err)
		}
		if err != nil {
			log.Warn().Err(err).Str("Status", result.Status.String()).Msg("sarima fit stopped before convergence")
			converged = false
		}
		x = result.X
	}

	ar, ma := m.polynomials(x)
	resid := make([]float64, len(w))
	css := conditionalSumOfSquares(w, ar, ma, cond, resid)
	sigma2 := css / float64(nEff)
	if sigma2 <= 0 {
		sigma2 = math.SmallestNonzeroFloat64
	}

	m.y = append([]float64(nil), series...)
	m.w = w
	m.resid = resid
	m.delta = delta
	m.ar = ar
	m.ma = ma
	m.mean = mean

	m.diag = describe(SARIMA, series)
	m.diag.Params = m.coefficients(x)
	m.diag.Sigma2 = sigma2
	m.diag.AIC = float64(nEff)*(math.Log(2*math.Pi*sigma2)+1) + 2*float64(k+1)
	m.diag.Converged = converged
	m.fitted = true

	return nil
}

func (m *sarima) Predict(horizon int) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if horizon < 1 {
		return nil, ErrInvalidHorizon
	}

	w := append(make([]float64, 0, len(m.w)+horizon), m.w...)
	e := append(make([]float64, 0, len(m.resid)+horizon), m.resid...)
	y := append(make([]float64, 0, len(m.y)+horizon), m.y...)

	res := make([]float64, horizon)
	for step := 0; step < horizon; step++ {
		t := len(w)
		next := 0.0
		for k := 1; k < len(m.ar) && t-k >= 0; k++ {
			next -= m.ar[k] * w[t-k]
		}
		for k := 1; k < len(m.ma) && t-k >= 0; k++ {
			next += m.ma[k] * e[t-k]
		}
		w = append(w, next)
		e = append(e, 0)

		// integrate: Σ delta[k] y[t-k] = w_t + mean
		val := next + m.mean
		ty := len(y)
		for k := 1; k < len(m.delta); k++ {
			val -= m.delta[k] * y[ty-k]
		}
		y = append(y, val)
		res[step] = val
	}

	return res, nil
}

func (m *sarima) Diagnostics() Diagnostics {
	return m.diag.clone()
}

// coefficients maps unconstrained optimizer coordinates to (φ, θ, Φ, Θ)
func (m *sarima) coefficients(x []float64) []float64 {
	res := make([]float64, len(x))
	for idx, v := range x {
		res[idx] = defaultCoefficientBound * math.Tanh(v)
	}
	return res
}

// polynomials expands φ(B)Φ(B^s) and θ(B)Θ(B^s) for the optimizer
// coordinates x
func (m *sarima) polynomials(x []float64) (ar, ma []float64) {
	coef := m.coefficients(x)
	p, q, sp, sq := m.order.P, m.order.Q, m.seasonal.P, m.seasonal.Q

	phi := make([]float64, p+1)
	phi[0] = 1
	for idx := 0; idx < p; idx++ {
		phi[idx+1] = -coef[idx]
	}
	coef = coef[p:]

	theta := make([]float64, q+1)
	theta[0] = 1
	for idx := 0; idx < q; idx++ {
		theta[idx+1] = coef[idx]
	}
	coef = coef[q:]

	sPhi := make([]float64, sp+1)
	sPhi[0] = 1
	for idx := 0; idx < sp; idx++ {
		sPhi[idx+1] = -coef[idx]
	}
	coef = coef[sp:]

	sTheta := make([]float64, sq+1)
	sTheta[0] = 1
	for idx := 0; idx < sq; idx++ {
		sTheta[idx+1] = coef[idx]
	}

	period := m.seasonal.Period
	ar = polyMul(phi, seasonalPoly(sPhi, period))
	ma = polyMul(theta, seasonalPoly(sTheta, period))
	return ar, ma
}

// conditionalSumOfSquares runs the residual recursion
//
//	e_t = Σ ar[k] w_{t-k} - Σ_{k≥1} ma[k] e_{t-k}
//
// from t = cond with pre-sample residuals set to zero. When resid is not nil
// the residuals are written into it.
func conditionalSumOfSquares(w, ar, ma []float64, cond int, resid []float64) float64 {
	e := resid
	if e == nil {
		e = make([]float64, len(w))
	}

	css := 0.0
	for t := cond; t < len(w); t++ {
		v := w[t]
		for k := 1; k < len(ar) && t-k >= 0; k++ {
			v += ar[k] * w[t-k]
		}
		for k := 1; k < len(ma) && t-k >= 0; k++ {
			v -= ma[k] * e[t-k]
		}
		e[t] = v
		css += v * v
	}
	return css
}

func polyMul(a, b []float64) []float64 {
	res := make([]float64, len(a)+len(b)-1)
	for i, av := range a {
		if av == 0 {
			continue
		}
		for j, bv := range b {
			res[i+j] += av * bv
		}
	}
	return res
}

func polyPow(a []float64, n int) []float64 {
	res := []float64{1}
	for idx := 0; idx < n; idx++ {
		res = polyMul(res, a)
	}
	return res
}

// seasonalPoly spreads the coefficients of a polynomial in B^s over powers of B
func seasonalPoly(a []float64, period int) []float64 {
	if period < 1 {
		period = 1
	}
	res := make([]float64, (len(a)-1)*period+1)
	for idx, v := range a {
		res[idx*period] = v
	}
	return res
}

// applyPoly computes Σ poly[k] x_{t-k} for every t with a full history
func applyPoly(poly, x []float64) []float64 {
	lag := len(poly) - 1
	if len(x) <= lag {
		return []float64{}
	}
	res := make([]float64, len(x)-lag)
	for t := lag; t < len(x); t++ {
		v := 0.0
		for k, c := range poly {
			v += c * x[t-k]
		}
		res[t-lag] = v
	}
	return res
}
