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

// Package pipeline runs an experiment: every model and baseline of every
// portfolio is backtested on the held-out window and collected into one
// comparison report per portfolio.
package pipeline

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/penny-vault/pv-optimizer/allocate"
	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/estimate"
	"github.com/penny-vault/pv-optimizer/returns"
	"github.com/penny-vault/pv-optimizer/strategies"
)

const (
	// DefaultPortfolioName is used when an experiment lists tickers but no
	// portfolios
	DefaultPortfolioName = "DEFAULT"

	unnamedPortfolio = "PORTFOLIO"
	dateLayout       = "2006-01-02"
	tagTickers       = 4
)

// Date is a calendar date written as YYYY-MM-DD
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: expected a date", ErrInvalidExperiment, node.Line)
	}
	if node.Value == "" || node.Tag == "!!null" {
		d.Time = time.Time{}
		return nil
	}

	t, err := time.Parse(dateLayout, node.Value)
	if err != nil {
		return fmt.Errorf("%w: line %d: %q is not a YYYY-MM-DD date", ErrInvalidExperiment, node.Line, node.Value)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalYAML() (any, error) {
	if d.IsZero() {
		return "", nil
	}
	return d.Format(dateLayout), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Tickers accepts either a YAML list or a single comma separated string.
// Symbols are upper cased.
type Tickers []string

func (t *Tickers) UnmarshalYAML(node *yaml.Node) error {
	var list []string
	switch node.Kind {
	case yaml.ScalarNode:
		for _, s := range strings.Split(node.Value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				list = append(list, s)
			}
		}
	case yaml.SequenceNode:
		if err := node.Decode(&list); err != nil {
			return fmt.Errorf("%w: line %d: %s", ErrInvalidExperiment, node.Line, err)
		}
	default:
		return fmt.Errorf("%w: line %d: tickers must be a list or a string", ErrInvalidExperiment, node.Line)
	}

	common.ArrToUpper(list)
	*t = list
	return nil
}

// DataConfig selects the price source
type DataConfig struct {
	Format   string  `yaml:"format"`
	Path     string  `yaml:"path"`
	Tickers  Tickers `yaml:"tickers"`
	Start    Date    `yaml:"start_date"`
	End      Date    `yaml:"end_date"`
	DropGaps bool    `yaml:"drop_gaps"`
}

// SplitConfig is the chronological train/test split. Only TestStart is
// required; the others default to the ends of the loaded prices.
type SplitConfig struct {
	TrainStart Date `yaml:"train_start"`
	TrainEnd   Date `yaml:"train_end"`
	TestStart  Date `yaml:"test_start"`
	TestEnd    Date `yaml:"test_end"`
}

type PortfolioConfig struct {
	Name    string  `yaml:"name"`
	Tickers Tickers `yaml:"tickers"`
}

// ModelConfig is one strategy run against every portfolio
type ModelConfig struct {
	Name          string         `yaml:"name"`
	Strategy      string         `yaml:"strategy"`
	Enabled       *bool          `yaml:"enabled"`
	Schedule      string         `yaml:"schedule"`
	EstimatorMode estimate.Mode  `yaml:"estimator_mode"`
	Arguments     map[string]any `yaml:"arguments"`
}

// IsEnabled is true unless the model is explicitly disabled
func (m ModelConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// BaselineConfig toggles the passive models added to every portfolio
type BaselineConfig struct {
	EqualWeight bool `yaml:"equal_weight"`
	BuyHold     bool `yaml:"buy_hold"`
}

// Experiment describes a batch of backtests
type Experiment struct {
	Tag            string            `yaml:"tag"`
	PortfoliosFile string            `yaml:"portfolios_file"`
	Data           DataConfig        `yaml:"data"`
	Portfolios     []PortfolioConfig `yaml:"portfolios"`
	Split          SplitConfig       `yaml:"split"`
	ReturnKind     returns.Kind      `yaml:"returns"`

	// Schedule overrides the rebalance schedule of non-baseline models
	Schedule string `yaml:"schedule"`

	// RiskFreeRate is annual and used by both the allocator and the metrics
	RiskFreeRate       float64 `yaml:"risk_free_rate"`
	PeriodsPerYear     int     `yaml:"periods_per_year"`
	TransactionCostBps float64 `yaml:"transaction_cost_bps"`
	Base               float64 `yaml:"base"`

	Constraints allocate.ConstraintSet `yaml:"constraints"`
	Estimator   estimate.Config        `yaml:"estimator"`
	Baselines   BaselineConfig         `yaml:"baselines"`
	Models      []ModelConfig          `yaml:"models"`

	FailFast bool `yaml:"fail_fast"`
	Workers  int  `yaml:"workers"`
}

// DefaultExperiment is the starting point every experiment file is decoded
// on top of
func DefaultExperiment() *Experiment {
	return &Experiment{
		Data: DataConfig{
			DropGaps: true,
		},
		ReturnKind:     returns.Simple,
		PeriodsPerYear: estimate.DefaultPeriodsPerYear,
		Base:           1,
		Constraints:    allocate.DefaultConstraints(),
		Estimator:      estimate.DefaultConfig(),
		Baselines: BaselineConfig{
			EqualWeight: true,
			BuyHold:     true,
		},
	}
}

// LoadExperiment reads and validates the experiment at path. A relative
// portfolios_file is resolved against the experiment's directory.
func LoadExperiment(path string) (*Experiment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	exp, err := decodeExperiment(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if exp.PortfoliosFile != "" {
		portfoliosPath := exp.PortfoliosFile
		if !filepath.IsAbs(portfoliosPath) {
			portfoliosPath = filepath.Join(filepath.Dir(path), portfoliosPath)
		}
		if exp.Portfolios, err = loadPortfolios(portfoliosPath); err != nil {
			return nil, err
		}
	}

	if err := exp.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	log.Debug().Str("Path", path).Str("Tag", exp.RunTag()).Int("NumModels", len(exp.Models)).Msg("loaded experiment")
	return exp, nil
}

// ParseExperiment decodes and validates an experiment document
func ParseExperiment(raw []byte) (*Experiment, error) {
	exp, err := decodeExperiment(raw)
	if err != nil {
		return nil, err
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return exp, nil
}

func decodeExperiment(raw []byte) (*Experiment, error) {
	exp := DefaultExperiment()
	if err := yaml.Unmarshal(raw, exp); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidExperiment, err)
	}
	return exp, nil
}

func loadPortfolios(path string) ([]PortfolioConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc := struct {
		Portfolios *[]PortfolioConfig `yaml:"portfolios"`
	}{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidExperiment, path, err)
	}
	if doc.Portfolios == nil {
		return nil, fmt.Errorf("%w: %s must contain a portfolios key", ErrInvalidExperiment, path)
	}
	return *doc.Portfolios, nil
}

// Validate checks the experiment and fills defaults. It is called by
// LoadExperiment and ParseExperiment.
func (exp *Experiment) Validate() error {
	kind, err := returns.ParseKind(string(exp.ReturnKind))
	if err != nil {
		return err
	}
	exp.ReturnKind = kind

	if exp.PeriodsPerYear <= 0 {
		exp.PeriodsPerYear = estimate.DefaultPeriodsPerYear
	}
	exp.Estimator.PeriodsPerYear = exp.PeriodsPerYear

	if exp.Estimator, err = exp.Estimator.Validate(); err != nil {
		return err
	}

	if exp.Constraints.MaxWeight == 0 {
		exp.Constraints.MaxWeight = 1
	}

	if math.IsNaN(exp.RiskFreeRate) || math.IsInf(exp.RiskFreeRate, 0) {
		return fmt.Errorf("%w: risk_free_rate must be finite", ErrInvalidExperiment)
	}
	if exp.TransactionCostBps < 0 || exp.TransactionCostBps >= 10000 || math.IsNaN(exp.TransactionCostBps) {
		return fmt.Errorf("%w: transaction_cost_bps must be in [0, 10000), got %v", ErrInvalidExperiment, exp.TransactionCostBps)
	}
	if exp.Base < 0 || math.IsNaN(exp.Base) || math.IsInf(exp.Base, 0) {
		return fmt.Errorf("%w: base must be positive, got %v", ErrInvalidExperiment, exp.Base)
	}
	if exp.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidExperiment)
	}

	if err := exp.validateSplit(); err != nil {
		return err
	}

	if len(exp.Models) == 0 {
		exp.Models = []ModelConfig{{Name: "MVO", Strategy: "mvo"}}
	}

	seen := make(map[string]bool, len(exp.Models))
	for idx := range exp.Models {
		m := &exp.Models[idx]
		m.Strategy = strings.ToLower(strings.TrimSpace(m.Strategy))
		if m.Strategy == "" {
			return fmt.Errorf("%w: model %d has no strategy", ErrInvalidExperiment, idx)
		}
		if _, err := strategies.Get(m.Strategy); err != nil {
			return err
		}
		if m.Name == "" {
			m.Name = strings.ToUpper(m.Strategy)
		}
		if m.EstimatorMode != "" {
			if _, err := estimate.ParseMode(string(m.EstimatorMode)); err != nil {
				return err
			}
		}
		if seen[m.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateModel, m.Name)
		}
		seen[m.Name] = true
	}

	return nil
}

func (exp *Experiment) validateSplit() error {
	split := exp.Split
	if split.TestStart.IsZero() {
		return fmt.Errorf("%w: split.test_start is required", ErrInvalidExperiment)
	}
	if !split.TrainStart.IsZero() && !split.TrainStart.Before(split.TestStart.Time) {
		return fmt.Errorf("%w: split.train_start must be before split.test_start", ErrInvalidExperiment)
	}
	if split.TrainEnd.After(split.TestStart.Time) {
		return fmt.Errorf("%w: split.train_end %s is after split.test_start %s", estimate.ErrLookAhead, split.TrainEnd, split.TestStart)
	}
	if !split.TestEnd.IsZero() && split.TestEnd.Before(split.TestStart.Time) {
		return fmt.Errorf("%w: split.test_end must not be before split.test_start", ErrInvalidExperiment)
	}
	if !exp.Data.Start.IsZero() && !exp.Data.End.IsZero() && exp.Data.End.Before(exp.Data.Start.Time) {
		return fmt.Errorf("%w: data.end_date must not be before data.start_date", ErrInvalidExperiment)
	}
	return nil
}

// PortfolioList returns the portfolios to run. An experiment without
// portfolios runs a single DEFAULT portfolio over data.tickers; portfolios
// without tickers are skipped.
func (exp *Experiment) PortfolioList() ([]PortfolioConfig, error) {
	candidates := exp.Portfolios
	if len(candidates) == 0 {
		candidates = []PortfolioConfig{{Name: DefaultPortfolioName, Tickers: exp.Data.Tickers}}
	}

	res := make([]PortfolioConfig, 0, len(candidates))
	for _, p := range candidates {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = unnamedPortfolio
		}
		if len(p.Tickers) == 0 {
			log.Warn().Str("Portfolio", name).Msg("portfolio has no tickers; skipping")
			continue
		}
		res = append(res, PortfolioConfig{Name: name, Tickers: append(Tickers(nil), p.Tickers...)})
	}

	if len(res) == 0 {
		return nil, ErrNoPortfolios
	}
	return res, nil
}

// RunTag is the slug used in the run directory name. Without an explicit
// tag it is built from the first few tickers and the date range.
func (exp *Experiment) RunTag() string {
	if exp.Tag != "" {
		return common.Slugify(exp.Tag)
	}

	tickers := exp.Data.Tickers
	if len(tickers) == 0 && len(exp.Portfolios) > 0 {
		tickers = exp.Portfolios[0].Tickers
	}
	if len(tickers) > tagTickers {
		tickers = tickers[:tagTickers]
	}

	start := exp.Data.Start
	if start.IsZero() {
		start = exp.Split.TrainStart
	}
	end := exp.Data.End
	if end.IsZero() {
		end = exp.Split.TestEnd
	}

	parts := append([]string{}, tickers...)
	parts = append(parts, start.String(), end.String())
	return common.Slugify(strings.Join(parts, "_"))
}
