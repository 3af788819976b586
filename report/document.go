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

package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/penny-vault/pv-optimizer/allocate"
)

// Metadata records what is needed to reproduce a report
type Metadata struct {
	RunID            string                 `json:"run_id"`
	Tag              string                 `json:"tag"`
	Created          time.Time              `json:"created"`
	Version          string                 `json:"version"`
	CommitHash       string                 `json:"commit_hash"`
	PriceFingerprint string                 `json:"price_fingerprint"`
	TrainStart       time.Time              `json:"train_start"`
	TrainEnd         time.Time              `json:"train_end"`
	TestStart        time.Time              `json:"test_start"`
	TestEnd          time.Time              `json:"test_end"`
	Schedule         string                 `json:"schedule"`
	RiskFreeRate     float64                `json:"risk_free_rate"`
	ReturnKind       string                 `json:"return_kind"`
	EstimatorMode    string                 `json:"estimator_mode"`
	Constraints      allocate.ConstraintSet `json:"constraints"`
	OutputDir        string                 `json:"output_dir,omitempty"`
}

// Document is the persisted form of a ComparisonReport
type Document struct {
	Portfolio string   `json:"portfolio"`
	Tickers   []string `json:"tickers"`
	BestModel string   `json:"best_model"`
	Metadata  Metadata `json:"metadata"`
	Models    []*Row   `json:"models"`
	Notes     []string `json:"notes,omitempty"`
}

// Document snapshots the report
func (r *ComparisonReport) Document(tickers []string, meta Metadata, notes ...string) *Document {
	doc := &Document{
		Portfolio: r.portfolio,
		Tickers:   append([]string(nil), tickers...),
		Metadata:  meta,
		Models:    r.Rows(),
		Notes:     notes,
	}
	if best, ok := r.Best(); ok {
		doc.BestModel = best.Model
	}
	return doc
}

// WriteJSON encodes docs as an indented JSON array
func WriteJSON(w io.Writer, docs []*Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}

// WriteFile writes docs to path, creating parent directories as needed
func WriteFile(path string, docs []*Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	fh, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := WriteJSON(fh, docs); err != nil {
		fh.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return fh.Close()
}

// ReadFile loads documents written by WriteFile
func ReadFile(path string) ([]*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var docs []*Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return docs, nil
}

// FromDocument rebuilds a report from a stored document. Equity curves are
// not persisted so the result cannot be plotted.
func FromDocument(doc *Document) (*ComparisonReport, error) {
	r := New(doc.Portfolio)
	for _, row := range doc.Models {
		if err := r.Add(row); err != nil {
			return nil, err
		}
	}
	return r, nil
}
