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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pv-optimizer/dataframe"
)

// price columns searched in per-ticker files, most preferred first
var priceColumns = []string{"adjclose", "adj_close", "adj close", "adjusted_close", "close", "price"}

// CSVSource reads close prices from CSV files. If Path is a file it is wide:
// a date column followed by one column per ticker. If Path is a directory it
// holds one <TICKER>.csv per ticker with a date column and a close column
// (adjusted close preferred).
type CSVSource struct {
	Path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

func (src *CSVSource) Prices(ctx context.Context, tickers []string, begin, end time.Time) (*dataframe.DataFrame, error) {
	tickers, err := normalizeTickers(tickers)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(src.Path)
	if err != nil {
		return nil, err
	}

	var prices *dataframe.DataFrame
	if info.IsDir() {
		dfMap := make(dataframe.Map, len(tickers))
		for _, ticker := range tickers {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			fn := filepath.Join(src.Path, fmt.Sprintf("%s.csv", ticker))
			df, err := readTickerCSV(fn, ticker)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil, fmt.Errorf("%w: %s", ErrNotFound, ticker)
				}
				return nil, err
			}
			dfMap[ticker] = df
		}
		if prices, err = widen(src.Path, dfMap); err != nil {
			return nil, err
		}
	} else {
		if prices, err = readWideCSV(src.Path); err != nil {
			return nil, err
		}
	}

	return restrict(prices, tickers, begin, end)
}

// readWideCSV parses a file whose first column is the date and whose other
// columns are prices named by ticker. Empty cells become NaN.
func readWideCSV(fn string) (*dataframe.DataFrame, error) {
	records, err := readCSV(fn)
	if err != nil {
		return nil, err
	}

	header := records[0]
	if len(header) < 2 {
		return nil, fmt.Errorf("%w: %s needs a date column and at least one ticker", ErrMalformedFile, fn)
	}

	colNames := make([]string, len(header)-1)
	for idx, name := range header[1:] {
		colNames[idx] = strings.ToUpper(strings.TrimSpace(name))
	}

	rows := make([]priceRow, 0, len(records)-1)
	for lineNo, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("%w: %s line %d has %d fields, expected %d", ErrMalformedFile, fn, lineNo+2, len(rec), len(header))
		}
		dt, err := parseDate(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", fn, lineNo+2, err)
		}
		vals := make([]float64, len(colNames))
		for idx, cell := range rec[1:] {
			if vals[idx], err = parsePrice(cell); err != nil {
				return nil, fmt.Errorf("%s line %d: %w", fn, lineNo+2, err)
			}
		}
		rows = append(rows, priceRow{date: dt, vals: vals})
	}

	return buildFrame(fn, colNames, rows)
}

// readTickerCSV parses a single ticker file
func readTickerCSV(fn, ticker string) (*dataframe.DataFrame, error) {
	records, err := readCSV(fn)
	if err != nil {
		return nil, err
	}

	dateIdx, priceIdx := -1, -1
	priceRank := len(priceColumns)
	for idx, name := range records[0] {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "date" || name == "timestamp" || name == "time" {
			if dateIdx == -1 {
				dateIdx = idx
			}
			continue
		}
		for rank, candidate := range priceColumns {
			if name == candidate && rank < priceRank {
				priceIdx = idx
				priceRank = rank
			}
		}
	}
	if dateIdx == -1 || priceIdx == -1 {
		return nil, fmt.Errorf("%w: %s needs date and close columns", ErrMalformedFile, fn)
	}

	rows := make([]priceRow, 0, len(records)-1)
	for lineNo, rec := range records[1:] {
		if len(rec) <= dateIdx || len(rec) <= priceIdx {
			return nil, fmt.Errorf("%w: %s line %d is short", ErrMalformedFile, fn, lineNo+2)
		}
		dt, err := parseDate(rec[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", fn, lineNo+2, err)
		}
		price, err := parsePrice(rec[priceIdx])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", fn, lineNo+2, err)
		}
		rows = append(rows, priceRow{date: dt, vals: []float64{price}})
	}

	log.Debug().Str("File", fn).Str("Ticker", ticker).Int("Rows", len(rows)).Msg("read price file")
	return buildFrame(fn, []string{ticker}, rows)
}

func readCSV(fn string) ([][]string, error) {
	fh, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	reader := csv.NewReader(fh)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrMalformedFile, fn, err)
		}
		records = append(records, rec)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("%w: %s has no data rows", ErrMalformedFile, fn)
	}
	return records, nil
}

func parsePrice(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	switch strings.ToLower(cell) {
	case "", "na", "nan", "null":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad price %q", ErrMalformedFile, cell)
	}
	return v, nil
}

type priceRow struct {
	date time.Time
	vals []float64
}

// buildFrame sorts rows by date and rejects duplicate dates
func buildFrame(fn string, colNames []string, rows []priceRow) (*dataframe.DataFrame, error) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].date.Before(rows[j].date)
	})

	df := &dataframe.DataFrame{
		Dates:    make([]time.Time, 0, len(rows)),
		ColNames: colNames,
		Vals:     make([][]float64, len(colNames)),
	}
	for idx := range df.Vals {
		df.Vals[idx] = make([]float64, 0, len(rows))
	}

	for idx, row := range rows {
		if idx > 0 && row.date.Equal(rows[idx-1].date) {
			return nil, fmt.Errorf("%w: %s has duplicate date %s", ErrMalformedFile, fn, row.date.Format("2006-01-02"))
		}
		df.Dates = append(df.Dates, row.date)
		for colIdx, v := range row.vals {
			df.Vals[colIdx] = append(df.Vals[colIdx], v)
		}
	}

	return df, nil
}

// widen joins single column frames on the union of their dates; a ticker
// without a price on a date gets a NaN gap
func widen(fn string, frames dataframe.Map) (*dataframe.DataFrame, error) {
	dates := make(map[int64]time.Time)
	for _, df := range frames {
		for _, dt := range df.Dates {
			dates[dt.Unix()] = dt
		}
	}

	union := make([]priceRow, 0, len(dates))
	for _, dt := range dates {
		union = append(union, priceRow{date: dt})
	}
	index, err := buildFrame(fn, nil, union)
	if err != nil {
		return nil, err
	}

	pos := make(map[int64]int, len(index.Dates))
	for idx, dt := range index.Dates {
		pos[dt.Unix()] = idx
	}

	names := make([]string, 0, len(frames))
	for name := range frames {
		names = append(names, name)
	}
	sort.Strings(names)

	wide := &dataframe.DataFrame{
		Dates:    index.Dates,
		ColNames: make([]string, 0, len(names)),
		Vals:     make([][]float64, 0, len(names)),
	}
	for _, name := range names {
		df := frames[name]
		for colIdx, colName := range df.ColNames {
			col := make([]float64, len(index.Dates))
			for idx := range col {
				col[idx] = math.NaN()
			}
			for rowIdx, dt := range df.Dates {
				col[pos[dt.Unix()]] = df.Vals[colIdx][rowIdx]
			}
			wide.ColNames = append(wide.ColNames, colName)
			wide.Vals = append(wide.Vals, col)
		}
	}

	return wide, nil
}
