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

package data

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pv-optimizer/dataframe"
)

// PriceRecord is the on-disk schema of parquet price files: one row per
// (symbol, date)
type PriceRecord struct {
	Symbol string  `parquet:"symbol"`
	Date   int64   `parquet:"date,timestamp(millisecond)"` // Unix ms
	Close  float64 `parquet:"close"`
}

// ParquetSource reads long format price records. If Path is a file every
// symbol is read from it; if Path is a directory each ticker is read from
// <TICKER>.parquet.
type ParquetSource struct {
	Path string
}

func NewParquetSource(path string) *ParquetSource {
	return &ParquetSource{Path: path}
}

func (src *ParquetSource) Prices(ctx context.Context, tickers []string, begin, end time.Time) (*dataframe.DataFrame, error) {
	tickers, err := normalizeTickers(tickers)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(src.Path)
	if err != nil {
		return nil, err
	}

	var records []PriceRecord
	if info.IsDir() {
		for _, ticker := range tickers {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			fn := filepath.Join(src.Path, fmt.Sprintf("%s.parquet", ticker))
			rows, err := parquet.ReadFile[PriceRecord](fn)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil, fmt.Errorf("%w: %s", ErrNotFound, ticker)
				}
				return nil, err
			}
			records = append(records, rows...)
		}
	} else {
		if records, err = parquet.ReadFile[PriceRecord](src.Path); err != nil {
			return nil, err
		}
	}

	log.Debug().Str("Path", src.Path).Int("Records", len(records)).Msg("read parquet prices")

	prices, err := recordsToFrame(src.Path, records)
	if err != nil {
		return nil, err
	}
	return restrict(prices, tickers, begin, end)
}

// WriteParquet stores a price panel as long format records
func WriteParquet(path string, prices *dataframe.DataFrame) error {
	records := make([]PriceRecord, 0, len(prices.Dates)*len(prices.ColNames))
	for colIdx, name := range prices.ColNames {
		for rowIdx, dt := range prices.Dates {
			v := prices.Vals[colIdx][rowIdx]
			if math.IsNaN(v) {
				continue
			}
			records = append(records, PriceRecord{
				Symbol: name,
				Date:   dt.UnixMilli(),
				Close:  v,
			})
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

// recordsToFrame pivots long records into a wide panel
func recordsToFrame(fn string, records []PriceRecord) (*dataframe.DataFrame, error) {
	bySymbol := make(map[string][]priceRow)
	for _, r := range records {
		ts := time.UnixMilli(r.Date).UTC()
		dt := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		symbol := strings.ToUpper(r.Symbol)
		bySymbol[symbol] = append(bySymbol[symbol], priceRow{date: dt, vals: []float64{r.Close}})
	}

	frames := make(dataframe.Map, len(bySymbol))
	for symbol, rows := range bySymbol {
		df, err := buildFrame(fn, []string{symbol}, rows)
		if err != nil {
			return nil, err
		}
		frames[symbol] = df
	}

	return widen(fn, frames)
}
