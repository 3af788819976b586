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
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// AddScalar adds the scalar value to all columns in dataframe df and returns a new dataframe
func (df *DataFrame) AddScalar(scalar float64) *DataFrame {
	df = df.Copy()
	for colIdx := range df.Vals {
		floats.AddConst(scalar, df.Vals[colIdx])
	}
	return df
}

// MulScalar multiplies all columns in dataframe df by the scalar and returns a new dataframe
func (df *DataFrame) MulScalar(scalar float64) *DataFrame {
	df = df.Copy()
	for colIdx := range df.Vals {
		floats.Scale(scalar, df.Vals[colIdx])
	}
	return df
}

// ColMeans returns the arithmetic mean of every column
func (df *DataFrame) ColMeans() []float64 {
	res := make([]float64, len(df.Vals))
	for colIdx, col := range df.Vals {
		res[colIdx] = stat.Mean(col, nil)
	}
	return res
}

// PctChange computes the period over period simple return of each column,
// x[t]/x[t-1] - 1. The resulting dataframe is one row shorter than df and is
// indexed by the later date of each pair.
func (df *DataFrame) PctChange() *DataFrame {
	return df.change(func(prev, curr float64) float64 {
		return curr/prev - 1.0
	})
}

// LogChange computes the period over period log return of each column,
// ln(x[t]/x[t-1]). Indexed like PctChange.
func (df *DataFrame) LogChange() *DataFrame {
	return df.change(func(prev, curr float64) float64 {
		return math.Log(curr / prev)
	})
}

func (df *DataFrame) change(fn func(prev, curr float64) float64) *DataFrame {
	if df.Len() < 2 {
		return &DataFrame{
			Dates:    []time.Time{},
			ColNames: df.ColNames,
			Vals:     make([][]float64, len(df.Vals)),
		}
	}

	res := &DataFrame{
		Dates:    make([]time.Time, df.Len()-1),
		ColNames: df.ColNames,
		Vals:     make([][]float64, len(df.Vals)),
	}
	copy(res.Dates, df.Dates[1:])

	for colIdx, col := range df.Vals {
		out := make([]float64, len(col)-1)
		for rowIdx := 1; rowIdx < len(col); rowIdx++ {
			out[rowIdx-1] = fn(col[rowIdx-1], col[rowIdx])
		}
		res.Vals[colIdx] = out
	}

	return res
}

// Growth compounds a dataframe of returns into a growth index that starts at
// base on the date prior to the first return. prior is that date. logReturns selects
// log returns (exp of the running sum) instead of simple returns.
func (df *DataFrame) Growth(prior time.Time, base float64, logReturns bool) *DataFrame {
	res := &DataFrame{
		Dates:    make([]time.Time, 0, df.Len()+1),
		ColNames: df.ColNames,
		Vals:     make([][]float64, len(df.Vals)),
	}
	res.Dates = append(res.Dates, prior)
	res.Dates = append(res.Dates, df.Dates...)

	for colIdx, col := range df.Vals {
		out := make([]float64, len(col)+1)
		out[0] = base
		for rowIdx, r := range col {
			if logReturns {
				out[rowIdx+1] = out[rowIdx] * math.Exp(r)
			} else {
				out[rowIdx+1] = out[rowIdx] * (1.0 + r)
			}
		}
		res.Vals[colIdx] = out
	}

	return res
}
