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

// Package buyhold puts the whole portfolio in one asset and never trades.
package buyhold

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/penny-vault/pv-optimizer/allocate"
	"github.com/penny-vault/pv-optimizer/strategies/strategy"
)

type BuyHold struct {
	ticker string
}

func New(args map[string]json.RawMessage) (strategy.Strategy, error) {
	var ticker string
	raw, ok := args["ticker"]
	if !ok {
		return nil, fmt.Errorf("%w: ticker is required", strategy.ErrInvalidArgument)
	}
	if err := json.Unmarshal(raw, &ticker); err != nil {
		return nil, fmt.Errorf("%w: ticker: %s", strategy.ErrInvalidArgument, err)
	}

	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", strategy.ErrInvalidArgument)
	}

	return &BuyHold{ticker: ticker}, nil
}

// Ticker returns the asset the strategy holds
func (bh *BuyHold) Ticker() string {
	return bh.ticker
}

func (bh *BuyHold) Target(_ context.Context, env *strategy.Env, _ time.Time) (*allocate.WeightVector, error) {
	return allocate.Single(env.Assets, bh.ticker)
}
