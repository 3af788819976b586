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

import "errors"

var (
	ErrInsufficientData     = errors.New("not enough observations in estimation window")
	ErrDegenerateCovariance = errors.New("covariance matrix is singular or ill-conditioned")
	ErrLookAhead            = errors.New("estimation window overlaps evaluation window")
	ErrInvalidWindow        = errors.New("estimation window start must precede its end")
	ErrUnknownMode          = errors.New("unknown estimation mode")
	ErrUnknownShrinkage     = errors.New("unknown shrinkage target")
	ErrInvalidConfig        = errors.New("invalid estimator configuration")
)
