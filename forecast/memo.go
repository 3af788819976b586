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
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/penny-vault/pv-optimizer/common"
)

// Result is the output of fitting a model and predicting a horizon
type Result struct {
	Predictions []float64   `json:"predictions"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Key identifies a (spec, series, horizon) forecast for memoization
func Key(spec Spec, series []float64, horizon int) string {
	h := common.NewHasher().
		String("forecast").
		String(string(spec.Kind)).
		Float64(spec.HalfLife).
		Uint64(uint64(spec.Order.P)).Uint64(uint64(spec.Order.D)).Uint64(uint64(spec.Order.Q)).
		Uint64(uint64(spec.Seasonal.P)).Uint64(uint64(spec.Seasonal.D)).Uint64(uint64(spec.Seasonal.Q)).
		Uint64(uint64(spec.Seasonal.Period)).
		Uint64(uint64(spec.MinObservations)).
		Uint64(uint64(spec.MaxEvaluations)).
		Uint64(uint64(horizon)).
		Floats(series)
	return h.Sum()
}

// Forecast fits a fresh model described by spec to series and predicts
// horizon periods. Successful results are memoized in the process cache so
// that re-running an experiment over the same windows does not refit.
// Failures are not cached.
func Forecast(spec Spec, series []float64, horizon int) (*Result, error) {
	key := Key(spec, series, horizon)

	if data, ok, err := common.CacheGet(key); err == nil && ok {
		res := &Result{}
		if err := json.Unmarshal(data, res); err == nil {
			return res, nil
		}
		log.Warn().Str("Key", key).Msg("could not decode cached forecast; refitting")
	}

	model, err := New(spec)
	if err != nil {
		return nil, err
	}
	if err := model.Fit(series); err != nil {
		return nil, err
	}
	preds, err := model.Predict(horizon)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Predictions: preds,
		Diagnostics: model.Diagnostics(),
	}

	if data, err := json.Marshal(res); err == nil {
		if err := common.CacheSet(key, data); err != nil {
			log.Warn().Err(err).Str("Key", key).Msg("could not cache forecast")
		}
	}

	return res, nil
}

// Mean returns the mean of the predictions, the horizon-matched point
// forecast used as an expected return
func (r *Result) Mean() float64 {
	if len(r.Predictions) == 0 {
		return 0
	}
	return stat.Mean(r.Predictions, nil)
}
