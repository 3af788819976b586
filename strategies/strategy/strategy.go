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

// Package strategy defines the contract between the backtest pipeline and the
// strategies that choose target weights.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/penny-vault/pv-optimizer/allocate"
	"github.com/penny-vault/pv-optimizer/backtest"
	"github.com/penny-vault/pv-optimizer/estimate"
	"github.com/penny-vault/pv-optimizer/returns"
)

var (
	ErrInvalidArgument = errors.New("invalid strategy argument")
	ErrMissingEnv      = errors.New("strategy environment is incomplete")
	ErrNoTarget        = errors.New("no target weights for date")
)

// Factory builds a strategy from its JSON encoded arguments
type Factory func(args map[string]json.RawMessage) (Strategy, error)

// Argument an argument to a strategy
type Argument struct {
	Name        string   `json:"name" toml:"name"`
	Description string   `json:"description" toml:"description"`
	Typecode    string   `json:"typecode" toml:"typecode"`
	Default     string   `json:"default" toml:"default"`
	Advanced    bool     `json:"advanced" toml:"advanced"`
	Options     []string `json:"options" toml:"options"`
}

// Info information about a strategy
type Info struct {
	Name            string              `json:"name" toml:"name"`
	Shortcode       string              `json:"shortcode" toml:"shortcode"`
	Description     string              `json:"description" toml:"description"`
	LongDescription string              `json:"longDescription" toml:"-"`
	Source          string              `json:"source" toml:"source"`
	Version         string              `json:"version" toml:"version"`
	Schedule        string              `json:"schedule" toml:"schedule"`
	Baseline        bool                `json:"baseline" toml:"baseline"`
	Arguments       map[string]Argument `json:"arguments" toml:"arguments"`
	Factory         Factory             `json:"-" toml:"-"`
}

// Strategy chooses target weights for a trade date. Target must only use
// information dated strictly before date.
type Strategy interface {
	Target(ctx context.Context, env *Env, date time.Time) (*allocate.WeightVector, error)
}

// Env is everything a strategy may consult while choosing targets for one
// portfolio. TrainStart is the first date of the estimation history and
// TestStart the first evaluation date. A non-zero TrainEnd is the last
// return date the targets chosen on or before TestStart may be fitted on.
type Env struct {
	Portfolio   string
	Assets      []string
	Returns     *returns.Series
	TrainStart  time.Time
	TrainEnd    time.Time
	TestStart   time.Time
	Estimator   *estimate.Estimator
	Allocator   *allocate.Allocator
	Constraints allocate.ConstraintSet
}

// Rebalancer binds strat to the environment so the backtest engine can ask
// it for targets
func (env *Env) Rebalancer(strat Strategy) backtest.Rebalancer {
	return backtest.RebalancerFunc(func(ctx context.Context, date time.Time) (*allocate.WeightVector, error) {
		return strat.Target(ctx, env, date)
	})
}

// Window returns the estimation window that ends just before date, or just
// after TrainEnd for the initial target. lookback limits the window to that
// many return periods; zero uses all history since TrainStart.
func (env *Env) Window(date time.Time, lookback int) (estimate.Window, error) {
	if env.Returns == nil {
		return estimate.Window{}, fmt.Errorf("%w: no return series", ErrMissingEnv)
	}

	end := date
	if !env.TrainEnd.IsZero() && !date.After(env.TestStart) {
		for _, dt := range env.Returns.Dates() {
			if dt.After(env.TrainEnd) {
				if dt.Before(end) {
					end = dt
				}
				break
			}
		}
	}

	start := env.TrainStart
	if lookback > 0 {
		dates := env.Returns.Window(time.Time{}, end).Dates()
		if len(dates) > lookback {
			start = dates[len(dates)-lookback]
		}
		if start.Before(env.TrainStart) {
			start = env.TrainStart
		}
	}

	return estimate.NewWindow(start, end, date)
}

// Args merges overrides into the default arguments of the strategy. String
// arguments take their default verbatim; every other type is JSON.
func (info *Info) Args(overrides map[string]any) (map[string]json.RawMessage, error) {
	args := make(map[string]json.RawMessage, len(info.Arguments)+len(overrides))
	for k, v := range info.Arguments {
		if v.Default == "" {
			continue
		}
		if v.Typecode == "string" {
			raw, err := json.Marshal(v.Default)
			if err != nil {
				return nil, err
			}
			args[k] = raw
		} else {
			args[k] = json.RawMessage(v.Default)
		}
	}

	for k, v := range overrides {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrInvalidArgument, k, err)
		}
		args[k] = raw
	}

	return args, nil
}
