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

package dataframe

import (
	"sort"
	"time"
)

// Map holds single or multi column dataframes keyed by name (typically the ticker)
type Map map[string]*DataFrame

// Align restricts every dataframe to the dates common to all of them
func (dfMap Map) Align() Map {
	counts := make(map[int64]int)
	for _, df := range dfMap {
		for _, dt := range df.Dates {
			counts[dt.UnixNano()]++
		}
	}

	aligned := make(Map, len(dfMap))
	for k, df := range dfMap {
		keep := make([]int, 0, len(df.Dates))
		for rowIdx, dt := range df.Dates {
			if counts[dt.UnixNano()] == len(dfMap) {
				keep = append(keep, rowIdx)
			}
		}

		df2 := &DataFrame{
			Dates:    make([]time.Time, len(keep)),
			ColNames: df.ColNames,
			Vals:     make([][]float64, len(df.Vals)),
		}
		for ii, rowIdx := range keep {
			df2.Dates[ii] = df.Dates[rowIdx]
		}
		for colIdx, col := range df.Vals {
			df2.Vals[colIdx] = make([]float64, len(keep))
			for ii, rowIdx := range keep {
				df2.Vals[colIdx][ii] = col[rowIdx]
			}
		}
		aligned[k] = df2
	}

	return aligned
}

// DataFrame converts each item in the map to columns of a single dataframe. Rows
// are restricted to the dates every member shares; columns are ordered by key.
func (dfMap Map) DataFrame() *DataFrame {
	keys := make([]string, 0, len(dfMap))
	for k := range dfMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	df := &DataFrame{
		Dates:    []time.Time{},
		ColNames: []string{},
		Vals:     [][]float64{},
	}

	aligned := dfMap.Align()
	for idx, k := range keys {
		v := aligned[k]
		if idx == 0 {
			df.Dates = v.Dates
		}
		df.ColNames = append(df.ColNames, v.ColNames...)
		df.Vals = append(df.Vals, v.Vals...)
	}

	return df
}
