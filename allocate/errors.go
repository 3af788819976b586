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

import "errors"

var (
	ErrInfeasibleConstraints = errors.New("constraints admit no fully invested portfolio")
	ErrInvalidConstraints    = errors.New("invalid constraint set")
	ErrInvalidWeights        = errors.New("weights violate the constraint set")
	ErrShapeMismatch         = errors.New("expected returns and covariance dimensions do not match")
	ErrInvalidInput          = errors.New("expected returns contain NaN or infinite values")
	ErrUnknownAsset          = errors.New("asset not in weight vector")
)
