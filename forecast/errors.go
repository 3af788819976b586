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

import "errors"

var (
	ErrInsufficientData = errors.New("not enough observations to fit forecast model")
	ErrInvalidSeries    = errors.New("series contains NaN or infinite values")
	ErrInvalidSpec      = errors.New("invalid forecast model specification")
	ErrInvalidHorizon   = errors.New("forecast horizon must be at least 1")
	ErrNotFitted        = errors.New("forecast model has not been fit")
	ErrUnknownModel     = errors.New("unknown forecast model")
	ErrFitFailed        = errors.New("forecast model fit failed")
)
