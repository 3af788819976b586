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

import "fmt"

// State is a step of the backtest state machine
type State int

const (
	AwaitingStart State = iota
	Holding
	Rebalancing
	Finished
)

func (s State) String() string {
	switch s {
	case AwaitingStart:
		return "awaiting_start"
	case Holding:
		return "holding"
	case Rebalancing:
		return "rebalancing"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions lists the legal next states for each state
var transitions = map[State][]State{
	AwaitingStart: {Holding, Finished},
	Holding:       {Holding, Rebalancing, Finished},
	Rebalancing:   {Holding},
}

func (s State) canTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
