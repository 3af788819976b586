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
	"gonum.org/v1/gonum/mat"

	"github.com/penny-vault/pv-optimizer/forecast"
	"github.com/penny-vault/pv-optimizer/returns"
)

// MomentEstimate holds the expected returns and covariance of a set of
// assets over one estimation window. Values are per period unless the
// estimate was produced by Annualized. A MomentEstimate is never modified
// after construction.
type MomentEstimate struct {
	assets         []string
	mu             []float64
	sigma          *mat.SymDense
	mode           Mode
	kind           returns.Kind
	window         Window
	periodsPerYear int
	annualized     bool
	observations   int
	diagnostics    map[string]forecast.Diagnostics
}

// NewMomentEstimate builds an estimate from caller supplied moments; mu and
// sigma are copied
func NewMomentEstimate(assets []string, mu []float64, sigma mat.Symmetric, periodsPerYear int) (*MomentEstimate, error) {
	if len(assets) != len(mu) || sigma.SymmetricDim() != len(mu) {
		return nil, ErrInvalidConfig
	}
	sym := mat.NewSymDense(len(mu), nil)
	sym.CopySym(sigma)
	return &MomentEstimate{
		assets:         append([]string(nil), assets...),
		mu:             append([]float64(nil), mu...),
		sigma:          sym,
		mode:           Historical,
		kind:           returns.Simple,
		periodsPerYear: periodsPerYear,
	}, nil
}

func (m *MomentEstimate) Assets() []string {
	return append([]string(nil), m.assets...)
}

// Mu returns a copy of the expected return vector
func (m *MomentEstimate) Mu() []float64 {
	return append([]float64(nil), m.mu...)
}

// Sigma returns a copy of the covariance matrix
func (m *MomentEstimate) Sigma() *mat.SymDense {
	res := mat.NewSymDense(len(m.mu), nil)
	res.CopySym(m.sigma)
	return res
}

func (m *MomentEstimate) Mode() Mode {
	return m.mode
}

// Kind is the return kind the moments describe
func (m *MomentEstimate) Kind() returns.Kind {
	return m.kind
}

func (m *MomentEstimate) Window() Window {
	return m.window
}

func (m *MomentEstimate) PeriodsPerYear() int {
	return m.periodsPerYear
}

func (m *MomentEstimate) IsAnnualized() bool {
	return m.annualized
}

func (m *MomentEstimate) Observations() int {
	return m.observations
}

// Diagnostics returns the forecast diagnostics per asset; empty in
// historical mode
func (m *MomentEstimate) Diagnostics() map[string]forecast.Diagnostics {
	res := make(map[string]forecast.Diagnostics, len(m.diagnostics))
	for k, v := range m.diagnostics {
		res[k] = v
	}
	return res
}

// Annualized returns a copy scaled to annual values (μ×P, Σ×P). Calling
// Annualized on an annualized estimate returns it unchanged.
func (m *MomentEstimate) Annualized() *MomentEstimate {
	if m.annualized {
		return m
	}

	scale := float64(m.periodsPerYear)
	res := *m
	res.mu = make([]float64, len(m.mu))
	for idx, v := range m.mu {
		res.mu[idx] = v * scale
	}
	res.sigma = mat.NewSymDense(len(m.mu), nil)
	res.sigma.ScaleSym(scale, m.sigma)
	res.annualized = true
	return &res
}
