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

import "github.com/rs/zerolog"

func (d Diagnostics) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Model", string(d.Model)).
		Int("Observations", d.Observations).
		Float64("HistMean", d.HistMean).
		Float64("HistStd", d.HistStd).
		Bool("Converged", d.Converged)
	if d.Model == SARIMA {
		e.Float64("AIC", d.AIC).Float64("Sigma2", d.Sigma2).Floats64("Params", d.Params)
	}
	if d.Fallback {
		e.Bool("Fallback", true).Str("Error", d.Error)
	}
}
