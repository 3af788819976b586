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
	"math"

	"gonum.org/v1/gonum/stat"
)

type historicalMean struct {
	minObs int
	fitted bool
	diag   Diagnostics
}

func (m *historicalMean) Kind() Kind {
	return HistoricalMean
}

func (m *historicalMean) Fit(series []float64) error {
	if err := checkSeries(series, m.minObs); err != nil {
		return err
	}

	m.diag = describe(HistoricalMean, series)
	m.diag.Converged = true
	m.fitted = true
	return nil
}

func (m *historicalMean) Predict(horizon int) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	return constant(m.diag.HistMean, horizon)
}

func (m *historicalMean) Diagnostics() Diagnostics {
	return m.diag.clone()
}

// ewma predicts the exponentially weighted mean of the series; the weight of
// an observation halves every halfLife periods back from the most recent one
type ewma struct {
	minObs   int
	halfLife float64
	fitted   bool
	mean     float64
	diag     Diagnostics
}

func (m *ewma) Kind() Kind {
	return EWMA
}

func (m *ewma) Fit(series []float64) error {
	if err := checkSeries(series, m.minObs); err != nil {
		return err
	}

	n := len(series)
	weights := make([]float64, n)
	decay := math.Ln2 / m.halfLife
	for idx := range series {
		lag := float64(n - 1 - idx)
		weights[idx] = math.Exp(-decay * lag)
	}

	m.mean = stat.Mean(series, weights)
	m.diag = describe(EWMA, series)
	m.diag.Params = []float64{m.halfLife}
	m.diag.Converged = true
	m.fitted = true
	return nil
}

func (m *ewma) Predict(horizon int) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	return constant(m.mean, horizon)
}

func (m *ewma) Diagnostics() Diagnostics {
	return m.diag.clone()
}

func describe(kind Kind, series []float64) Diagnostics {
	diag := Diagnostics{
		Model:        kind,
		Observations: len(series),
	}
	if len(series) > 1 {
		diag.HistMean, diag.HistStd = stat.MeanStdDev(series, nil)
	} else if len(series) == 1 {
		diag.HistMean = series[0]
	}
	return diag
}

func (d Diagnostics) clone() Diagnostics {
	if d.Params != nil {
		params := make([]float64, len(d.Params))
		copy(params, d.Params)
		d.Params = params
	}
	return d
}
