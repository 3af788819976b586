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

package backtest

import "github.com/rs/zerolog"

func (rb *Rebalance) MarshalZerologObject(e *zerolog.Event) {
	e.Time("Date", rb.Date)
	e.Float64("Value", rb.Value)
	e.Float64("Turnover", rb.Turnover)
	e.Float64("Cost", rb.Cost)
	weights := zerolog.Dict()
	for asset, w := range rb.Weights {
		weights.Float64(asset, w)
	}
	e.Dict("Weights", weights)
}
