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

package strategy

import (
	"sort"
	"time"
)

// Pie is a target allocation. Justifications carries optional per-asset
// scores explaining the choice (policy logits, signal values).
type Pie struct {
	Members        map[string]float64 `json:"weights"`
	Justifications map[string]float64 `json:"justifications,omitempty"`
}

// PieHistory is a dated list of target allocations ordered by date
type PieHistory struct {
	Dates []time.Time
	Pies  []*Pie
}

type PieHistoryIterator struct {
	CurrentIndex int
	History      *PieHistory
}

// Add inserts pie at date, replacing any pie already on that date
func (ph *PieHistory) Add(date time.Time, pie *Pie) {
	idx := sort.Search(len(ph.Dates), func(i int) bool {
		return !ph.Dates[i].Before(date)
	})
	if idx < len(ph.Dates) && ph.Dates[idx].Equal(date) {
		ph.Pies[idx] = pie
		return
	}
	ph.Dates = append(ph.Dates, time.Time{})
	ph.Pies = append(ph.Pies, nil)
	copy(ph.Dates[idx+1:], ph.Dates[idx:])
	copy(ph.Pies[idx+1:], ph.Pies[idx:])
	ph.Dates[idx] = date
	ph.Pies[idx] = pie
}

// Lookup returns the most recent pie dated on or before date
func (ph *PieHistory) Lookup(date time.Time) (*Pie, bool) {
	idx := sort.Search(len(ph.Dates), func(i int) bool {
		return ph.Dates[i].After(date)
	})
	if idx == 0 {
		return nil, false
	}
	return ph.Pies[idx-1], true
}

func (ph *PieHistory) Len() int {
	return len(ph.Dates)
}

func (ph *PieHistory) Iterator() *PieHistoryIterator {
	return &PieHistoryIterator{
		CurrentIndex: -1,
		History:      ph,
	}
}

// Next advances the iterator and reports whether a pie is available
func (iter *PieHistoryIterator) Next() bool {
	iter.CurrentIndex++
	return iter.CurrentIndex < len(iter.History.Dates)
}

func (iter *PieHistoryIterator) Date() time.Time {
	if iter.CurrentIndex < 0 || iter.CurrentIndex >= len(iter.History.Dates) {
		return time.Time{}
	}
	return iter.History.Dates[iter.CurrentIndex]
}

func (iter *PieHistoryIterator) Val() *Pie {
	if iter.CurrentIndex < 0 || iter.CurrentIndex >= len(iter.History.Dates) {
		return nil
	}
	return iter.History.Pies[iter.CurrentIndex]
}

// Trim returns the pies dated in [begin, end]. The receiver is not modified.
func (ph *PieHistory) Trim(begin, end time.Time) *PieHistory {
	if end.Before(begin) || len(ph.Dates) == 0 {
		return &PieHistory{}
	}

	beginIdx := sort.Search(len(ph.Dates), func(i int) bool {
		return !ph.Dates[i].Before(begin)
	})

	endIdx := sort.Search(len(ph.Dates), func(i int) bool {
		return ph.Dates[i].After(end)
	})

	if endIdx < beginIdx {
		endIdx = beginIdx
	}

	return &PieHistory{
		Dates: append([]time.Time(nil), ph.Dates[beginIdx:endIdx]...),
		Pies:  append([]*Pie(nil), ph.Pies[beginIdx:endIdx]...),
	}
}

func (ph *PieHistory) StartDate() time.Time {
	if len(ph.Dates) > 0 {
		return ph.Dates[0]
	}
	return time.Time{}
}

func (ph *PieHistory) EndDate() time.Time {
	if len(ph.Dates) > 0 {
		return ph.Dates[len(ph.Dates)-1]
	}
	return time.Time{}
}
