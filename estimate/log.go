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
	"time"

	"github.com/rs/zerolog"
)

func (m *MomentEstimate) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Mode", string(m.mode)).
		Str("Kind", string(m.kind)).
		Time("WindowStart", m.window.start).
		Time("WindowEnd", m.window.end).
		Int("Observations", m.observations).
		Bool("Annualized", m.annualized).
		Strs("Assets", m.assets).
		Floats64("Mu", m.mu)
}

func (w Window) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Start", w.start.Format(time.RFC3339)).Str("End", w.end.Format(time.RFC3339))
}
