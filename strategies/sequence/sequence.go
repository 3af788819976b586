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

// Package sequence replays a dated list of target weights produced outside
// the pipeline, such as the actions of a reinforcement learning policy.
package sequence

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/penny-vault/pv-optimizer/allocate"
	"github.com/penny-vault/pv-optimizer/strategies/strategy"
)

type entry struct {
	Date           string             `json:"date"`
	Weights        map[string]float64 `json:"weights"`
	Justifications map[string]float64 `json:"justifications,omitempty"`
}

type Sequence struct {
	history *strategy.PieHistory
}

// New builds a sequence from either an inline "targets" array or a "path"
// to a JSON array or JSON lines file. Each target is
// {"date": "2006-01-02", "weights": {"VTI": 0.6, "TLT": 0.4}}.
func New(args map[string]json.RawMessage) (strategy.Strategy, error) {
	var entries []*entry

	if raw, ok := args["targets"]; ok && len(bytes.TrimSpace(raw)) > 0 && string(bytes.TrimSpace(raw)) != "null" {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("%w: targets: %s", strategy.ErrInvalidArgument, err)
		}
	} else if raw, ok := args["path"]; ok {
		var path string
		if err := json.Unmarshal(raw, &path); err != nil {
			return nil, fmt.Errorf("%w: path: %s", strategy.ErrInvalidArgument, err)
		}
		var err error
		if entries, err = readEntries(path); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("%w: one of targets or path is required", strategy.ErrInvalidArgument)
	}

	history, err := buildHistory(entries)
	if err != nil {
		return nil, err
	}

	return &Sequence{history: history}, nil
}

// History returns the targets of the sequence
func (seq *Sequence) History() *strategy.PieHistory {
	return seq.history
}

// Target returns the most recent target dated on or before date
func (seq *Sequence) Target(_ context.Context, env *strategy.Env, date time.Time) (*allocate.WeightVector, error) {
	pie, ok := seq.history.Lookup(date)
	if !ok {
		return nil, fmt.Errorf("%w: sequence starts %s, requested %s", strategy.ErrNoTarget,
			seq.history.StartDate().Format("2006-01-02"), date.Format("2006-01-02"))
	}

	weights := make([]float64, len(env.Assets))
	matched := 0
	for idx, asset := range env.Assets {
		if w, ok := pie.Members[asset]; ok {
			weights[idx] = w
			matched++
		}
	}
	if matched != len(pie.Members) {
		for asset := range pie.Members {
			if !contains(env.Assets, asset) {
				return nil, fmt.Errorf("%w: %s", allocate.ErrUnknownAsset, asset)
			}
		}
	}

	return allocate.NewWeightVector(env.Assets, weights, env.Constraints, allocate.Fixed)
}

func buildHistory(entries []*entry) (*strategy.PieHistory, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: sequence has no targets", strategy.ErrInvalidArgument)
	}

	history := &strategy.PieHistory{}
	for _, e := range entries {
		date, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: date %q: %s", strategy.ErrInvalidArgument, e.Date, err)
		}
		members := make(map[string]float64, len(e.Weights))
		for asset, w := range e.Weights {
			members[strings.ToUpper(asset)] = w
		}
		history.Add(date, &strategy.Pie{
			Members:        members,
			Justifications: e.Justifications,
		})
	}

	return history, nil
}

func readEntries(path string) ([]*entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []*entry
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			e := &entry{}
			if err := json.Unmarshal(line, e); err != nil {
				return nil, fmt.Errorf("%w: %s: %s", strategy.ErrInvalidArgument, path, err)
			}
			entries = append(entries, e)
		}
		return entries, scanner.Err()
	}

	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", strategy.ErrInvalidArgument, path, err)
	}
	return entries, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
