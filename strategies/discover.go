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

// Package strategies is the registry of strategies available to experiments.
package strategies

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pv-optimizer/strategies/buyhold"
	"github.com/penny-vault/pv-optimizer/strategies/equalweight"
	"github.com/penny-vault/pv-optimizer/strategies/mvo"
	"github.com/penny-vault/pv-optimizer/strategies/sequence"
	"github.com/penny-vault/pv-optimizer/strategies/strategy"
)

//go:embed **/*.md **/*.toml
var resources embed.FS

var (
	ErrStrategyNotFound = errors.New("strategy not found")
)

// StrategyList List of all strategies
var StrategyList = []*strategy.Info{}

// StrategyMap Map of strategies
var StrategyMap = make(map[string]*strategy.Info)

var initOnce sync.Once

// InitializeStrategyMap configure the strategy map
func InitializeStrategyMap() {
	initOnce.Do(func() {
		for _, reg := range []struct {
			pkg     string
			factory strategy.Factory
		}{
			{"mvo", mvo.New},
			{"equalweight", equalweight.New},
			{"buyhold", buyhold.New},
			{"sequence", sequence.New},
		} {
			if err := Register(reg.pkg, reg.factory); err != nil {
				log.Error().Stack().Err(err).Str("Strategy", reg.pkg).Msg("could not register strategy")
			}
		}
	})
}

// Register loads the embedded metadata of strategyPkg and adds it to the
// registry
func Register(strategyPkg string, factory strategy.Factory) error {
	longDescription, err := readResource(fmt.Sprintf("%s/description.md", strategyPkg))
	if err != nil {
		return err
	}

	doc, err := readResource(fmt.Sprintf("%s/strategy.toml", strategyPkg))
	if err != nil {
		return err
	}

	strat := &strategy.Info{}
	if err := toml.Unmarshal(doc, strat); err != nil {
		log.Error().Err(err).Str("File", fmt.Sprintf("%s/strategy.toml", strategyPkg)).Msg("failed to parse toml file")
		return err
	}

	strat.LongDescription = string(longDescription)
	strat.Factory = factory

	StrategyList = append(StrategyList, strat)
	sort.SliceStable(StrategyList, func(i, j int) bool {
		return StrategyList[i].Shortcode < StrategyList[j].Shortcode
	})
	StrategyMap[strat.Shortcode] = strat

	return nil
}

// Get returns the registered strategy with shortcode
func Get(shortcode string) (*strategy.Info, error) {
	InitializeStrategyMap()
	if info, ok := StrategyMap[shortcode]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, shortcode)
}

func readResource(fn string) ([]byte, error) {
	file, err := resources.Open(fn)
	if err != nil {
		log.Error().Err(err).Str("File", fn).Msg("failed to open file")
		return nil, err
	}
	defer file.Close()

	doc, err := io.ReadAll(file)
	if err != nil {
		log.Error().Err(err).Str("File", fn).Msg("failed to read file")
		return nil, err
	}
	return doc, nil
}
