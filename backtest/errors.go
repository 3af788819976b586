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

import "errors"

var (
	ErrMissingPriceData   = errors.New("missing price data for held asset")
	ErrNoEvaluationDates  = errors.New("no evaluation dates in range")
	ErrNoRebalancer       = errors.New("backtest requires a rebalancer")
	ErrInvalidBase        = errors.New("starting value must be positive")
	ErrInvalidCost        = errors.New("transaction cost must be a finite fraction in [0, 1)")
	ErrIllegalStateChange = errors.New("illegal backtest state transition")
	ErrEmptyTarget        = errors.New("rebalancer returned an empty target")
)
