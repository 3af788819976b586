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

// Package report collects the metrics of every model run on a portfolio into
// one comparable table.
package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"

	"github.com/penny-vault/pv-optimizer/portfolio"
)

var (
	ErrDuplicateModel = errors.New("model already present in report")
	ErrEmptyModelName = errors.New("model name is required")
	ErrModelNotFound  = errors.New("model not found in report")
)

// Status of a model run
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Row is the outcome of one model on one portfolio
type Row struct {
	Model       string                 `json:"model"`
	Status      Status                 `json:"status"`
	Error       string                 `json:"error,omitempty"`
	Description string                 `json:"description,omitempty"`
	Objective   string                 `json:"objective,omitempty"`
	Metrics     *portfolio.Metrics     `json:"metrics,omitempty"`
	Weights     map[string]float64     `json:"weights,omitempty"`
	Rebalances  int                    `json:"rebalances"`
	Curve       *portfolio.EquityCurve `json:"-"`
}

// ComparisonReport holds one row per model for a portfolio. It is safe for
// concurrent use.
type ComparisonReport struct {
	portfolio string

	mu   sync.Mutex
	rows map[string]*Row
}

func New(portfolioName string) *ComparisonReport {
	return &ComparisonReport{
		portfolio: portfolioName,
		rows:      make(map[string]*Row),
	}
}

func (r *ComparisonReport) Portfolio() string {
	return r.portfolio
}

// Add inserts row; model names must be unique within a report
func (r *ComparisonReport) Add(row *Row) error {
	if strings.TrimSpace(row.Model) == "" {
		return ErrEmptyModelName
	}
	if row.Status == "" {
		row.Status = StatusOK
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[row.Model]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateModel, row.Model)
	}
	r.rows[row.Model] = row
	return nil
}

// AddFailure records a model that could not be evaluated
func (r *ComparisonReport) AddFailure(model string, err error) error {
	return r.Add(&Row{
		Model:  model,
		Status: StatusFailed,
		Error:  err.Error(),
	})
}

func (r *ComparisonReport) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// Get returns the row for model
func (r *ComparisonReport) Get(model string) (*Row, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[model]; ok {
		return row, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrModelNotFound, model)
}

// Rows returns the rows in report order: successful models by Sharpe ratio
// (highest first, ties broken by name) followed by failed models by name
func (r *ComparisonReport) Rows() []*Row {
	r.mu.Lock()
	rows := make([]*Row, 0, len(r.rows))
	for _, row := range r.rows {
		rows = append(rows, row)
	}
	r.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		aOK, bOK := a.ok(), b.ok()
		if aOK != bOK {
			return aOK
		}
		if aOK && a.Metrics.Sharpe != b.Metrics.Sharpe {
			return a.Metrics.Sharpe > b.Metrics.Sharpe
		}
		return a.Model < b.Model
	})

	return rows
}

// Best returns the top row; false if no model succeeded
func (r *ComparisonReport) Best() (*Row, bool) {
	rows := r.Rows()
	if len(rows) == 0 || !rows[0].ok() {
		return nil, false
	}
	return rows[0], true
}

// Table renders the report as a text table
func (r *ComparisonReport) Table() string {
	rows := r.Rows()
	if len(rows) == 0 {
		return "<NO DATA>"
	}

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Model", "Total Return", "CAGR", "Volatility", "Sharpe", "Max Drawdown", "Calmar", "Status"})
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, row := range rows {
		if !row.ok() {
			table.Append([]string{row.Model, "-", "-", "-", "-", "-", "-", fmt.Sprintf("%s: %s", row.Status, row.Error)})
			continue
		}
		m := row.Metrics
		table.Append([]string{
			row.Model,
			fmt.Sprintf("%.2f%%", m.TotalReturn*100),
			fmt.Sprintf("%.2f%%", m.CAGR*100),
			fmt.Sprintf("%.2f%%", m.AnnualizedVolatility*100),
			fmt.Sprintf("%.3f", m.Sharpe),
			fmt.Sprintf("%.2f%%", m.MaxDrawDown*100),
			fmt.Sprintf("%.3f", m.Calmar),
			string(row.Status),
		})
	}

	footer := make([]string, 8)
	footer[0] = r.portfolio
	if best, ok := r.Best(); ok {
		footer[1] = "Best"
		footer[2] = best.Model
	}
	table.SetFooter(footer)

	table.Render()
	return s.String()
}

// Plot draws the equity curve of model as an ASCII chart
func (r *ComparisonReport) Plot(model string, width, height int) (string, error) {
	row, err := r.Get(model)
	if err != nil {
		return "", err
	}
	if row.Curve == nil || row.Curve.Len() == 0 {
		return "", fmt.Errorf("%w: %s has no equity curve", ErrModelNotFound, model)
	}

	opts := []asciigraph.Option{
		asciigraph.Caption(fmt.Sprintf("%s %s (%s to %s)", r.portfolio, model,
			row.Curve.Start().Format("2006-01-02"), row.Curve.End().Format("2006-01-02"))),
	}
	if width > 0 {
		opts = append(opts, asciigraph.Width(width))
	}
	if height > 0 {
		opts = append(opts, asciigraph.Height(height))
	}

	return asciigraph.Plot(row.Curve.Values(), opts...), nil
}

func (row *Row) ok() bool {
	return row.Status == StatusOK && row.Metrics != nil
}
