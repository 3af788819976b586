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

package pipeline

import "errors"

var (
	ErrInvalidExperiment = errors.New("invalid experiment")
	ErrNoPortfolios      = errors.New("experiment has no portfolio with tickers")
	ErrNoModels          = errors.New("experiment has no enabled models")
	ErrDuplicateModel    = errors.New("duplicate model name")
	ErrNoSource          = errors.New("price source is required")
	ErrNoTestData        = errors.New("no prices in the test window")
	ErrNoTrainingData    = errors.New("no prices before the test window")
)
