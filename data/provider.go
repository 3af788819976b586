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

// Package data loads aligned price panels from files on disk.
package data

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/dataframe"
)

const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// PriceSource returns a close price panel with one column per ticker, in
// the order requested, for the dates in [begin, end]. A zero begin or end
// leaves that side of the range open.
type PriceSource interface {
	Prices(ctx context.Context, tickers []string, begin, end time.Time) (*dataframe.DataFrame, error)
}

// NewSource returns the PriceSource for format rooted at path. path may be
// a single file or a directory with one file per ticker.
func NewSource(format, path string) (PriceSource, error) {
	switch strings.ToLower(format) {
	case FormatCSV, "":
		return NewCSVSource(path), nil
	case FormatParquet:
		return NewParquetSource(path), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Align marks missing or non-positive prices as gaps (NaN). With dropGaps
// every row that has a gap in any column is removed; otherwise gaps are kept
// and left for the caller to reject.
func Align(prices *dataframe.DataFrame, dropGaps bool) *dataframe.DataFrame {
	cleaned := prices.Copy()
	gaps := 0
	for _, col := range cleaned.Vals {
		for idx, v := range col {
			if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
				col[idx] = math.NaN()
				gaps++
			}
		}
	}

	if gaps == 0 || !dropGaps {
		return cleaned
	}

	aligned := cleaned.DropNA()
	log.Info().Int("Gaps", gaps).Int("RowsBefore", cleaned.Len()).Int("RowsAfter", aligned.Len()).Msg("dropped rows with missing prices")
	return aligned
}

// Fingerprint identifies the exact contents of a price panel
func Fingerprint(prices *dataframe.DataFrame) string {
	h := common.NewHasher()
	h.Uint64(uint64(len(prices.ColNames)))
	for _, name := range prices.ColNames {
		h.String(name)
	}
	h.Uint64(uint64(len(prices.Dates)))
	for _, dt := range prices.Dates {
		h.Time(dt)
	}
	for _, col := range prices.Vals {
		h.Floats(col)
	}
	return h.Sum()
}

// normalizeTickers upper cases tickers and rejects an empty request
func normalizeTickers(tickers []string) ([]string, error) {
	if len(tickers) == 0 {
		return nil, ErrNoTickers
	}
	res := make([]string, len(tickers))
	for idx, t := range tickers {
		res[idx] = strings.ToUpper(strings.TrimSpace(t))
	}
	return res, nil
}

// restrict trims prices to [begin, end] with open ends for zero times and
// orders the columns as tickers
func restrict(prices *dataframe.DataFrame, tickers []string, begin, end time.Time) (*dataframe.DataFrame, error) {
	if !begin.IsZero() && !end.IsZero() && end.Before(begin) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTimeRange, begin.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	selected, err := prices.Select(tickers...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, err)
	}

	if end.IsZero() {
		end = selected.End()
	}
	trimmed := selected.Trim(begin, end)
	if trimmed.Len() == 0 {
		return nil, ErrNoTradingDays
	}
	return trimmed.Copy(), nil
}

// parseDate accepts ISO dates with or without a time component; the result
// is midnight UTC of the calendar date
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized date %q", ErrMalformedFile, s)
}
