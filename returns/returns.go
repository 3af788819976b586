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

// Package returns converts aligned price panels into per-asset return series.
package returns

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/penny-vault/pv-optimizer/dataframe"
)

// Kind selects how period returns are computed
type Kind string

const (
	Simple Kind = "simple"
	Log    Kind = "log"
)

var (
	ErrUnknownKind   = errors.New("unknown return kind")
	ErrInvalidPrice  = errors.New("price panel contains a missing or non-positive price")
	ErrTooFewPrices  = errors.New("price panel needs at least two dates")
	ErrShapeMismatch = errors.New("moment dimensions do not match")
)

// ParseKind converts a configuration string to a Kind; empty means simple
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Simple, "":
		return Simple, nil
	case Log:
		return Log, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Series is an immutable set of per-asset return series sharing one date
// index. Dates[i] is the date at which return i was realized.
type Series struct {
	kind   Kind
	prior  time.Time
	frame  *dataframe.DataFrame
	assets []string
}

// Build converts a price panel into returns of the requested kind. The panel
// must be validated, aligned, and strictly positive; the result has one row
// fewer than the panel.
func Build(prices *dataframe.DataFrame, kind Kind) (*Series, error) {
	if err := prices.Validate(); err != nil {
		return nil, err
	}

	if prices.Len() < 2 {
		return nil, ErrTooFewPrices
	}

	for colIdx, col := range prices.Vals {
		for rowIdx, v := range col {
			if math.IsNaN(v) || v <= 0 {
				return nil, fmt.Errorf("%w: %s on %s", ErrInvalidPrice, prices.ColNames[colIdx], prices.Dates[rowIdx].Format("2006-01-02"))
			}
		}
	}

	var frame *dataframe.DataFrame
	switch kind {
	case Simple:
		frame = prices.PctChange()
	case Log:
		frame = prices.LogChange()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	return newSeries(kind, prices.Start(), frame), nil
}

// FromFrame wraps an existing dataframe of returns. prior is the date of the
// price observation preceding the first return. The frame is copied.
func FromFrame(kind Kind, prior time.Time, frame *dataframe.DataFrame) (*Series, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	if kind != Simple && kind != Log {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return newSeries(kind, prior, frame.Copy()), nil
}

func newSeries(kind Kind, prior time.Time, frame *dataframe.DataFrame) *Series {
	assets := make([]string, len(frame.ColNames))
	copy(assets, frame.ColNames)
	frame.ColNames = assets
	return &Series{
		kind:   kind,
		prior:  prior,
		frame:  frame,
		assets: assets,
	}
}

func (s *Series) Kind() Kind {
	return s.kind
}

// Assets returns a copy of the asset names in column order
func (s *Series) Assets() []string {
	res := make([]string, len(s.assets))
	copy(res, s.assets)
	return res
}

func (s *Series) Len() int {
	return s.frame.Len()
}

// Dates returns a copy of the return dates
func (s *Series) Dates() []time.Time {
	res := make([]time.Time, len(s.frame.Dates))
	copy(res, s.frame.Dates)
	return res
}

// Asset returns a copy of the named asset's returns
func (s *Series) Asset(name string) ([]float64, error) {
	col, err := s.frame.Column(name)
	if err != nil {
		return nil, err
	}
	res := make([]float64, len(col))
	copy(res, col)
	return res, nil
}

// Frame returns a copy of the underlying dataframe
func (s *Series) Frame() *dataframe.DataFrame {
	return s.frame.Copy()
}

// Window returns the returns realized in [begin, end)
func (s *Series) Window(begin, end time.Time) *Series {
	sub := s.frame.Window(begin, end)
	prior := s.prior
	if sub.Len() > 0 {
		idx := indexOf(s.frame.Dates, sub.Dates[0])
		if idx > 0 {
			prior = s.frame.Dates[idx-1]
		}
	}
	return &Series{
		kind:   s.kind,
		prior:  prior,
		frame:  sub,
		assets: s.assets,
	}
}

// Matrix returns the returns as a (dates × assets) dense matrix
func (s *Series) Matrix() *mat.Dense {
	rows, cols := s.frame.Len(), len(s.assets)
	if rows == 0 || cols == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(rows, cols, nil)
	for colIdx, col := range s.frame.Vals {
		m.SetCol(colIdx, col)
	}
	return m
}

// Resample compounds the returns into a growth index, samples it at the
// requested frequency, and converts the samples back into returns of the same
// kind. The period containing the first return is anchored at the prior
// price date.
func (s *Series) Resample(frequency dataframe.Frequency) *Series {
	growth := s.frame.Growth(s.prior, 1.0, s.kind == Log)
	sampled := growth.Frequency(frequency)

	// keep the anchor so the first sampled period has a starting value
	if sampled.Len() == 0 || !sampled.Dates[0].Equal(growth.Dates[0]) {
		anchored := &dataframe.DataFrame{ColNames: sampled.ColNames}
		anchored.InsertRow(growth.Dates[0], growth.Row(0)...)
		for idx := range sampled.Dates {
			anchored.InsertRow(sampled.Dates[idx], sampled.Row(idx)...)
		}
		sampled = anchored
	}

	var frame *dataframe.DataFrame
	if s.kind == Log {
		frame = sampled.LogChange()
	} else {
		frame = sampled.PctChange()
	}

	return newSeries(s.kind, sampled.Dates[0], frame)
}

func indexOf(dates []time.Time, dt time.Time) int {
	for idx, d := range dates {
		if d.Equal(dt) {
			return idx
		}
	}
	return -1
}
