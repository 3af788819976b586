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

// Package equalweight holds 1/n of the portfolio in every asset.
package equalweight

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/penny-vault/pv-optimizer/allocate"
	"github.com/penny-vault/pv-optimizer/strategies/strategy"
)

type EqualWeight struct{}

func New(_ map[string]json.RawMessage) (strategy.Strategy, error) {
	return &EqualWeight{}, nil
}

func (ew *EqualWeight) Target(_ context.Context, env *strategy.Env, _ time.Time) (*allocate.WeightVector, error) {
	return allocate.Equal(env.Assets)
}
