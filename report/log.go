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

package report

import "github.com/rs/zerolog"

func (row *Row) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Model", row.Model)
	e.Str("Status", string(row.Status))
	if row.Error != "" {
		e.Str("Error", row.Error)
	}
	if row.Metrics != nil {
		e.Object("Metrics", row.Metrics)
	}
}
