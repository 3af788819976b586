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

package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/penny-vault/pv-optimizer/allocate"
	"github.com/penny-vault/pv-optimizer/backtest"
	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/data"
	"github.com/penny-vault/pv-optimizer/dataframe"
	"github.com/penny-vault/pv-optimizer/estimate"
	"github.com/penny-vault/pv-optimizer/observability/opentelemetry"
	"github.com/penny-vault/pv-optimizer/portfolio"
	"github.com/penny-vault/pv-optimizer/report"
	"github.com/penny-vault/pv-optimizer/returns"
	"github.com/penny-vault/pv-optimizer/runindex"
	"github.com/penny-vault/pv-optimizer/strategies"
	"github.com/penny-vault/pv-optimizer/strategies/strategy"
)

const (
	ReportFileName = "report.json"

	EqualWeightModel   = "EqualWeight"
	BuyHoldModelPrefix = "BuyHold_"

	runDirLayout = "20060102-150405"
)

// Options are the process level settings of a Runner
type Options struct {
	// RunsDir is the parent of the per-run output directory; empty skips
	// writing the report file
	RunsDir string

	// Index receives one entry per portfolio when set
	Index *runindex.Index

	// Workers overrides the experiment's worker count when positive
	Workers int

	Now func() time.Time
}

// Runner executes an experiment against a price source
type Runner struct {
	exp     *Experiment
	source  data.PriceSource
	opts    Options
	workers int
}

// Result describes a finished run
type Result struct {
	RunID      string
	Tag        string
	Created    time.Time
	OutputDir  string
	ReportPath string
	Reports    []*report.ComparisonReport
	Documents  []*report.Document
}

// model is a strategy resolved for one portfolio
type model struct {
	name     string
	info     *strategy.Info
	args     map[string]json.RawMessage
	schedule string
	mode     estimate.Mode
}

// portfolioRun is the shared read-only input of every task of a portfolio
type portfolioRun struct {
	name        string
	tickers     []string
	prices      *dataframe.DataFrame
	series      *returns.Series
	fingerprint string
	trainStart  time.Time
	trainEnd    time.Time
	testStart   time.Time
	testEnd     time.Time
	models      []*model
	report      *report.ComparisonReport

	// err is set when the portfolio's data could not be prepared; every
	// model of the portfolio then fails with it
	err error
}

func NewRunner(exp *Experiment, source data.PriceSource, opts Options) (*Runner, error) {
	if exp == nil {
		return nil, fmt.Errorf("%w: experiment is required", ErrInvalidExperiment)
	}
	if source == nil {
		return nil, ErrNoSource
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = exp.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		exp:     exp,
		source:  source,
		opts:    opts,
		workers: workers,
	}, nil
}

// Workers is the maximum number of concurrent backtests
func (r *Runner) Workers() int {
	return r.workers
}

// Run backtests every (portfolio, model) pair. Unless the experiment is
// fail-fast a failing model is recorded as a failed row and the batch
// continues.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pipeline.Run")
	defer span.End()

	res := &Result{
		RunID:   runindex.NewRunID(),
		Tag:     r.exp.RunTag(),
		Created: r.opts.Now(),
	}
	span.SetAttributes(
		attribute.String("run_id", res.RunID),
		attribute.String("tag", res.Tag),
		attribute.Int("workers", r.workers),
	)

	subLog := log.With().Str("RunID", res.RunID).Str("Tag", res.Tag).Logger()

	portfolios, err := r.exp.PortfolioList()
	if err != nil {
		opentelemetry.Fail(span, err, "no portfolios")
		return nil, err
	}

	runs := make([]*portfolioRun, 0, len(portfolios))
	for _, pc := range portfolios {
		pr := r.preparePortfolio(ctx, pc)
		if pr.err != nil && r.exp.FailFast {
			opentelemetry.Fail(span, pr.err, "portfolio preparation failed")
			return nil, fmt.Errorf("%s: %w", pr.name, pr.err)
		}
		runs = append(runs, pr)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, pr := range runs {
		for _, m := range pr.models {
			g.Go(func() error {
				return r.runTask(gctx, pr, m)
			})
		}
	}
	if err := g.Wait(); err != nil {
		opentelemetry.Fail(span, err, "pipeline failed")
		return nil, err
	}

	if r.opts.RunsDir != "" {
		res.OutputDir = filepath.Join(r.opts.RunsDir, fmt.Sprintf("%s_%s", res.Created.Format(runDirLayout), res.Tag))
		res.ReportPath = filepath.Join(res.OutputDir, ReportFileName)
	}

	for _, pr := range runs {
		res.Reports = append(res.Reports, pr.report)
		res.Documents = append(res.Documents, pr.report.Document(pr.tickers, r.metadata(res, pr), r.notes(pr)...))
	}

	if res.ReportPath != "" {
		if err := report.WriteFile(res.ReportPath, res.Documents); err != nil {
			opentelemetry.Fail(span, err, "could not write report")
			return nil, err
		}
		subLog.Info().Str("Path", res.ReportPath).Msg("wrote report")
	}

	if r.opts.Index != nil {
		for _, doc := range res.Documents {
			if _, err := r.opts.Index.Append(ctx, doc, res.ReportPath); err != nil {
				opentelemetry.Fail(span, err, "could not index run")
				return nil, err
			}
		}
	}

	subLog.Info().Int("NumPortfolios", len(runs)).Msg("run complete")
	return res, nil
}

// preparePortfolio loads prices, builds returns, and resolves the split for
// one portfolio. Errors are stored on the result.
func (r *Runner) preparePortfolio(ctx context.Context, pc PortfolioConfig) *portfolioRun {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pipeline.portfolio")
	defer span.End()

	span.SetAttributes(attribute.String("portfolio", pc.Name))

	pr := &portfolioRun{
		name:    pc.Name,
		tickers: append([]string(nil), pc.Tickers...),
		report:  report.New(pc.Name),
	}
	pr.models = r.models(pr.tickers)

	if err := r.loadPortfolio(ctx, pr); err != nil {
		opentelemetry.Fail(span, err, "could not prepare portfolio")
		log.Error().Stack().Err(err).Str("Portfolio", pr.name).Msg("could not prepare portfolio")
		pr.err = err
	}
	return pr
}

func (r *Runner) loadPortfolio(ctx context.Context, pr *portfolioRun) error {
	prices, err := r.source.Prices(ctx, pr.tickers, r.exp.Data.Start.Time, r.exp.Data.End.Time)
	if err != nil {
		return err
	}

	// the backtest sees gaps so a missing price on a held asset is caught;
	// estimation always runs on complete rows
	pr.prices = data.Align(prices, r.exp.Data.DropGaps)
	if pr.prices.Len() == 0 {
		return fmt.Errorf("%w: every row has a gap", ErrNoTrainingData)
	}
	if pr.series, err = returns.Build(pr.prices.DropNA(), r.exp.ReturnKind); err != nil {
		return err
	}
	pr.fingerprint = data.Fingerprint(pr.prices)

	split := r.exp.Split
	pr.trainStart = split.TrainStart.Time
	if pr.trainStart.IsZero() || pr.trainStart.Before(pr.prices.Start()) {
		pr.trainStart = pr.prices.Start()
	}
	pr.testStart = split.TestStart.Time
	pr.testEnd = split.TestEnd.Time
	if pr.testEnd.IsZero() || pr.testEnd.After(pr.prices.End()) {
		pr.testEnd = pr.prices.End()
	}

	test := pr.prices.Trim(pr.testStart, pr.testEnd)
	if test.Len() == 0 {
		return fmt.Errorf("%w: %s to %s", ErrNoTestData, pr.testStart.Format(dateLayout), pr.testEnd.Format(dateLayout))
	}
	pr.testStart = test.Start()

	train := pr.prices.Window(pr.trainStart, pr.testStart)
	if train.Len() == 0 {
		return fmt.Errorf("%w: test starts %s", ErrNoTrainingData, pr.testStart.Format(dateLayout))
	}
	pr.trainEnd = train.End()
	if !split.TrainEnd.IsZero() && split.TrainEnd.Before(pr.trainEnd) {
		pr.trainEnd = split.TrainEnd.Time
	}

	log.Info().Str("Portfolio", pr.name).Strs("Tickers", pr.tickers).
		Time("TrainStart", pr.trainStart).Time("TestStart", pr.testStart).Time("TestEnd", pr.testEnd).
		Int("NumPrices", pr.prices.Len()).Msg("prepared portfolio")
	return nil
}

// models resolves the configured models plus the baselines for tickers.
// The experiment has already been validated so strategy lookups succeed.
func (r *Runner) models(tickers []string) []*model {
	var res []*model

	add := func(name, shortcode, schedule string, mode estimate.Mode, args map[string]any) {
		info, err := strategies.Get(shortcode)
		if err != nil {
			log.Panic().Err(err).Str("Strategy", shortcode).Msg("strategy vanished after validation")
		}
		m := &model{
			name:     name,
			info:     info,
			schedule: info.Schedule,
			mode:     mode,
		}
		if schedule != "" {
			m.schedule = schedule
		}
		if m.args, err = info.Args(args); err != nil {
			// surfaced when the strategy is constructed
			log.Warn().Err(err).Str("Model", name).Msg("could not encode strategy arguments")
		}
		res = append(res, m)
	}

	for _, mc := range r.exp.Models {
		if !mc.IsEnabled() {
			continue
		}
		schedule := mc.Schedule
		if schedule == "" {
			schedule = r.exp.Schedule
		}
		add(mc.Name, mc.Strategy, schedule, mc.EstimatorMode, mc.Arguments)
	}

	if r.exp.Baselines.EqualWeight {
		add(EqualWeightModel, "equalweight", "", "", nil)
	}
	if r.exp.Baselines.BuyHold {
		sorted := append([]string(nil), tickers...)
		sort.Strings(sorted)
		for _, ticker := range sorted {
			add(BuyHoldModelPrefix+ticker, "buyhold", "", "", map[string]any{"ticker": ticker})
		}
	}

	return res
}

// runTask backtests one model on one portfolio and records the outcome
func (r *Runner) runTask(ctx context.Context, pr *portfolioRun, m *model) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pipeline.task")
	defer span.End()

	span.SetAttributes(opentelemetry.PortfolioAttributes(pr.name, m.name)...)

	err := pr.err
	var row *report.Row
	if err == nil {
		row, err = r.evaluate(ctx, pr, m)
	}

	if err != nil {
		opentelemetry.Fail(span, err, "model failed")
		log.Error().Stack().Err(err).Str("Portfolio", pr.name).Str("Model", m.name).Msg("model failed")
		if addErr := pr.report.AddFailure(m.name, err); addErr != nil {
			return addErr
		}
		if r.exp.FailFast || ctx.Err() != nil {
			return fmt.Errorf("%s/%s: %w", pr.name, m.name, err)
		}
		return nil
	}

	log.Info().Str("Portfolio", pr.name).Str("Model", m.name).Object("Metrics", row.Metrics).Msg("model evaluated")
	return pr.report.Add(row)
}

func (r *Runner) evaluate(ctx context.Context, pr *portfolioRun, m *model) (*report.Row, error) {
	strat, err := m.info.Factory(m.args)
	if err != nil {
		return nil, err
	}

	cfg := r.exp.Estimator
	if m.mode != "" {
		cfg.Mode = m.mode
	}
	estimator, err := estimate.New(cfg)
	if err != nil {
		return nil, err
	}

	env := &strategy.Env{
		Portfolio:   pr.name,
		Assets:      pr.series.Assets(),
		Returns:     pr.series,
		TrainStart:  pr.trainStart,
		TrainEnd:    pr.trainEnd,
		TestStart:   pr.testStart,
		Estimator:   estimator,
		Allocator:   allocate.New(r.exp.RiskFreeRate),
		Constraints: r.exp.Constraints,
	}

	engine, err := backtest.New(backtest.Config{
		Schedule: m.schedule,
		Base:     r.exp.Base,
		Cost:     backtest.ProportionalCost(r.exp.TransactionCostBps),
	})
	if err != nil {
		return nil, err
	}

	// the report shows the final target and the objective that produced it
	var last *allocate.WeightVector
	inner := env.Rebalancer(strat)
	rebalancer := backtest.RebalancerFunc(func(ctx context.Context, date time.Time) (*allocate.WeightVector, error) {
		wv, err := inner.Target(ctx, date)
		if err == nil {
			last = wv
		}
		return wv, err
	})

	result, err := engine.Run(ctx, pr.prices, pr.testStart, pr.testEnd, rebalancer)
	if err != nil {
		return nil, err
	}

	metrics, err := portfolio.ComputeMetrics(result.Curve, r.exp.PeriodsPerYear, r.exp.RiskFreeRate)
	if err != nil {
		return nil, err
	}

	row := &report.Row{
		Model:       m.name,
		Status:      report.StatusOK,
		Description: m.info.Description,
		Metrics:     metrics,
		Rebalances:  len(result.Rebalances),
		Curve:       result.Curve,
	}
	if last != nil {
		row.Weights = last.Map()
		row.Objective = string(last.Objective())
	}
	return row, nil
}

func (r *Runner) metadata(res *Result, pr *portfolioRun) report.Metadata {
	schedule := r.exp.Schedule
	if schedule == "" {
		schedule = "per model"
	}
	return report.Metadata{
		RunID:            res.RunID,
		Tag:              res.Tag,
		Created:          res.Created,
		Version:          "v" + common.CurrentVersion.String(),
		CommitHash:       common.CommitHash(),
		PriceFingerprint: pr.fingerprint,
		TrainStart:       pr.trainStart,
		TrainEnd:         pr.trainEnd,
		TestStart:        pr.testStart,
		TestEnd:          pr.testEnd,
		Schedule:         schedule,
		RiskFreeRate:     r.exp.RiskFreeRate,
		ReturnKind:       string(r.exp.ReturnKind),
		EstimatorMode:    string(r.exp.Estimator.Mode),
		Constraints:      r.exp.Constraints,
		OutputDir:        res.OutputDir,
	}
}

func (r *Runner) notes(pr *portfolioRun) []string {
	if pr.err != nil {
		return []string{fmt.Sprintf("portfolio data could not be prepared: %s", pr.err)}
	}
	return []string{
		"chronological split: every estimate uses only returns dated before the rebalance it serves",
		fmt.Sprintf("out-of-sample evaluation %s to %s", pr.testStart.Format(dateLayout), pr.testEnd.Format(dateLayout)),
		"covariance is the historical sample covariance in every estimator mode",
	}
}
