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

package portfolio

import (
	"github.com/rs/zerolog"
)

func (o *DrawDown) MarshalZerologObject(e *zerolog.Event) {
	e.Time("Begin", o.Begin).Time("End", o.End).Time("RecoveryDate", o.Recovery).Float64("LossPercent", o.LossPercent)
}

func (metrics *Metrics) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("TotalReturn", metrics.TotalReturn)
	e.Float64("CAGR", metrics.CAGR)
	e.Float64("AnnualizedVolatility", metrics.AnnualizedVolatility)
	e.Float64("Sharpe", metrics.Sharpe)
	e.Float64("MaxDrawDown", metrics.MaxDrawDown)
	e.Float64("Calmar", metrics.Calmar)
	e.Float64("FinalValue", metrics.FinalValue)
	e.Float64("Sortino", metrics.Sortino)
	e.Float64("DownsideDeviation", metrics.DownsideDeviation)
	e.Float64("AvgDrawDown", metrics.AvgDrawDown)
	e.Float64("UlcerIndex", metrics.UlcerIndex)
	e.Int("Periods", metrics.Periods)
}

func (curve *EquityCurve) MarshalZerologObject(e *zerolog.Event) {
	e.Time("Start", curve.Start()).
		Time("End", curve.End()).
		Int("Points", curve.Len()).
		Float64("Initial", curve.Initial()).
		Float64("Final", curve.Final())
}
