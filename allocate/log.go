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

import "github.com/rs/zerolog"

func (wv *WeightVector) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Objective", string(wv.objective))
	dict := zerolog.Dict()
	for idx, asset := range wv.assets {
		dict.Float64(asset, wv.weights[idx])
	}
	e.Dict("Weights", dict)
}

func (c ConstraintSet) MarshalZerologObject(e *zerolog.Event) {
	e.Bool("LongOnly", c.LongOnly).
		Float64("MaxWeight", c.MaxWeight).
		Bool("AllowLeverage", c.AllowLeverage)
}
