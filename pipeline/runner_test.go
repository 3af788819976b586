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

package pipeline_test

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-optimizer/data"
	"github.com/penny-vault/pv-optimizer/dataframe"
	"github.com/penny-vault/pv-optimizer/pipeline"
	"github.com/penny-vault/pv-optimizer/report"
	"github.com/penny-vault/pv-optimizer/runindex"
)

// panelSource serves prices from an in-memory panel
type panelSource struct {
	prices *dataframe.DataFrame
}

func (src *panelSource) Prices(_ context.Context, tickers []string, begin, end time.Time) (*dataframe.DataFrame, error) {
	df, err := src.prices.Select(tickers...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", data.ErrNotFound, err)
	}
	if begin.IsZero() {
		begin = df.Start()
	}
	if end.IsZero() {
		end = df.End()
	}
	return df.Trim(begin, end).Copy(), nil
}

func randomPanel(assets []string, n int, seed int64) *dataframe.DataFrame {
	rng := rand.New(rand.NewSource(seed))
	df := &dataframe.DataFrame{ColNames: assets}
	prices := make([]float64, len(assets))
	for idx := range prices {
		prices[idx] = 100
	}
	for dt := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC); len(df.Dates) < n; dt = dt.AddDate(0, 0, 1) {
		if dt.Weekday() != time.Saturday && dt.Weekday() != time.Sunday {
			df.InsertRow(dt, prices...)
			for idx := range prices {
				prices[idx] *= 1 + 0.0004*float64(idx+1) + 0.01*rng.NormFloat64()
			}
		}
	}
	return df
}

func rowNames(rows []*report.Row) []string {
	res := make([]string, len(rows))
	for idx, row := range rows {
		res[idx] = row.Model
	}
	return res
}

var _ = Describe("Runner", func() {
	var (
		ctx       context.Context
		prices    *dataframe.DataFrame
		source    *panelSource
		testStart time.Time
		now       time.Time
		runsDir   string
	)

	parse := func(extra string) *pipeline.Experiment {
		doc := fmt.Sprintf(`
tag: demo
data:
  tickers: [VTI, TLT, GLD]
split:
  test_start: %s
`, testStart.Format("2006-01-02"))
		exp, err := pipeline.ParseExperiment([]byte(doc + extra))
		Expect(err).NotTo(HaveOccurred())
		return exp
	}

	BeforeEach(func() {
		ctx = context.Background()
		prices = randomPanel([]string{"VTI", "TLT", "GLD"}, 300, 11)
		source = &panelSource{prices: prices}
		testStart = prices.Dates[200]
		now = time.Date(2024, 5, 6, 10, 11, 12, 0, time.UTC)
		runsDir = GinkgoT().TempDir()
	})

	It("requires a price source", func() {
		_, err := pipeline.NewRunner(parse(""), nil, pipeline.Options{})
		Expect(err).To(MatchError(pipeline.ErrNoSource))
	})

	It("defaults the worker count", func() {
		runner, err := pipeline.NewRunner(parse(""), source, pipeline.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(runner.Workers()).To(BeNumerically(">", 0))

		runner, err = pipeline.NewRunner(parse("workers: 3\n"), source, pipeline.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(runner.Workers()).To(Equal(3))

		runner, err = pipeline.NewRunner(parse("workers: 3\n"), source, pipeline.Options{Workers: 5})
		Expect(err).NotTo(HaveOccurred())
		Expect(runner.Workers()).To(Equal(5))
	})

	Context("with a successful run", func() {
		var (
			res *pipeline.Result
			idx *runindex.Index
		)

		BeforeEach(func() {
			var err error
			idx, err = runindex.Open(filepath.Join(runsDir, "runs.db"), "")
			Expect(err).NotTo(HaveOccurred())

			runner, err := pipeline.NewRunner(parse("workers: 2\n"), source, pipeline.Options{
				RunsDir: runsDir,
				Index:   idx,
				Now:     func() time.Time { return now },
			})
			Expect(err).NotTo(HaveOccurred())

			res, err = runner.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			Expect(idx.Close()).To(Succeed())
		})

		It("evaluates every model and baseline", func() {
			Expect(res.Reports).To(HaveLen(1))
			cmp := res.Reports[0]
			Expect(cmp.Portfolio()).To(Equal(pipeline.DefaultPortfolioName))
			Expect(rowNames(cmp.Rows())).To(ConsistOf("MVO", "EqualWeight", "BuyHold_GLD", "BuyHold_TLT", "BuyHold_VTI"))

			for _, row := range cmp.Rows() {
				Expect(row.Status).To(Equal(report.StatusOK), row.Model)
				Expect(row.Metrics).NotTo(BeNil())
				Expect(row.Curve.Start()).To(Equal(testStart))
				Expect(row.Curve.End()).To(Equal(prices.End()))
				Expect(row.Curve.Initial()).To(Equal(1.0))
			}

			mvo, err := cmp.Get("MVO")
			Expect(err).NotTo(HaveOccurred())
			Expect(mvo.Objective).NotTo(BeEmpty())
			Expect(mvo.Rebalances).To(BeNumerically(">", 1))

			buyHold, err := cmp.Get("BuyHold_VTI")
			Expect(err).NotTo(HaveOccurred())
			Expect(buyHold.Rebalances).To(BeZero())
			Expect(buyHold.Weights).To(HaveKeyWithValue("VTI", 1.0))
		})

		It("records the split in the document", func() {
			Expect(res.Documents).To(HaveLen(1))
			meta := res.Documents[0].Metadata
			Expect(meta.RunID).To(Equal(res.RunID))
			Expect(meta.Tag).To(Equal("demo"))
			Expect(meta.TrainStart).To(Equal(prices.Start()))
			Expect(meta.TrainEnd).To(Equal(prices.Dates[199]))
			Expect(meta.TestStart).To(Equal(testStart))
			Expect(meta.TestEnd).To(Equal(prices.End()))
			Expect(meta.PriceFingerprint).To(Equal(data.Fingerprint(prices)))
			Expect(meta.ReturnKind).To(Equal("simple"))
			Expect(res.Documents[0].Tickers).To(Equal([]string{"VTI", "TLT", "GLD"}))
			Expect(res.Documents[0].Notes).NotTo(BeEmpty())
		})

		It("writes the report into a timestamped directory", func() {
			Expect(res.OutputDir).To(Equal(filepath.Join(runsDir, "20240506-101112_demo")))
			Expect(res.ReportPath).To(Equal(filepath.Join(res.OutputDir, pipeline.ReportFileName)))

			docs, err := report.ReadFile(res.ReportPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Models).To(HaveLen(5))
			Expect(docs[0].BestModel).To(Equal(res.Documents[0].BestModel))
		})

		It("indexes the run", func() {
			entries, err := idx.Get(ctx, res.RunID)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Tag).To(Equal("demo"))
			Expect(entries[0].ReportPath).To(Equal(res.ReportPath))
			Expect(entries[0].BestModel).To(Equal(res.Documents[0].BestModel))

			_, err = os.Stat(idx.JSONLPath())
			Expect(err).NotTo(HaveOccurred())
		})
	})

	It("fits the initial weights on history up to the training end", func() {
		run := func(split string) *report.Row {
			exp, err := pipeline.ParseExperiment([]byte(`
data:
  tickers: [VTI, TLT, GLD]
baselines:
  equal_weight: false
  buy_hold: false
models:
  - strategy: mvo
    schedule: "@never"
split:
` + split))
			Expect(err).NotTo(HaveOccurred())
			runner, err := pipeline.NewRunner(exp, source, pipeline.Options{})
			Expect(err).NotTo(HaveOccurred())
			res, err := runner.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			row, err := res.Reports[0].Get("MVO")
			Expect(err).NotTo(HaveOccurred())
			Expect(row.Status).To(Equal(report.StatusOK))
			return row
		}

		capped := run(fmt.Sprintf("  train_end: %s\n  test_start: %s\n",
			prices.Dates[120].Format("2006-01-02"), testStart.Format("2006-01-02")))
		early := run(fmt.Sprintf("  test_start: %s\n", prices.Dates[121].Format("2006-01-02")))

		Expect(capped.Weights).To(HaveLen(3))
		for asset, w := range early.Weights {
			Expect(capped.Weights).To(HaveKeyWithValue(asset, BeNumerically("~", w, 1e-12)))
		}
	})

	It("runs every portfolio", func() {
		runner, err := pipeline.NewRunner(parse(`
baselines:
  buy_hold: false
portfolios:
  - name: STOCKS
    tickers: [VTI, GLD]
  - name: BONDS
    tickers: [TLT, GLD]
`), source, pipeline.Options{})
		Expect(err).NotTo(HaveOccurred())

		res, err := runner.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Reports).To(HaveLen(2))
		Expect(res.Reports[0].Portfolio()).To(Equal("STOCKS"))
		Expect(res.Reports[1].Portfolio()).To(Equal("BONDS"))
		Expect(res.ReportPath).To(BeEmpty())
		for _, cmp := range res.Reports {
			Expect(rowNames(cmp.Rows())).To(ConsistOf("MVO", "EqualWeight"))
		}
	})

	It("skips disabled models", func() {
		runner, err := pipeline.NewRunner(parse(`
baselines:
  equal_weight: false
  buy_hold: false
models:
  - strategy: mvo
  - strategy: equalweight
    name: EW
    enabled: false
`), source, pipeline.Options{})
		Expect(err).NotTo(HaveOccurred())

		res, err := runner.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(rowNames(res.Reports[0].Rows())).To(Equal([]string{"MVO"}))
	})

	It("charges transaction costs", func() {
		run := func(extra string) float64 {
			runner, err := pipeline.NewRunner(parse("baselines:\n  buy_hold: false\n"+extra), source, pipeline.Options{})
			Expect(err).NotTo(HaveOccurred())
			res, err := runner.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			row, err := res.Reports[0].Get("EqualWeight")
			Expect(err).NotTo(HaveOccurred())
			return row.Metrics.FinalValue
		}

		Expect(run("transaction_cost_bps: 50\n")).To(BeNumerically("<", run("")))
	})

	Context("when a model fails", func() {
		const broken = `
baselines:
  buy_hold: false
models:
  - strategy: mvo
  - strategy: sequence
    name: RL
`

		It("records a failed row and continues", func() {
			runner, err := pipeline.NewRunner(parse(broken), source, pipeline.Options{})
			Expect(err).NotTo(HaveOccurred())

			res, err := runner.Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			rows := res.Reports[0].Rows()
			Expect(rowNames(rows)).To(HaveLen(3))
			Expect(rows[2].Model).To(Equal("RL"))
			Expect(rows[2].Status).To(Equal(report.StatusFailed))
			Expect(rows[2].Error).NotTo(BeEmpty())
			Expect(rows[0].Status).To(Equal(report.StatusOK))
			Expect(rows[1].Status).To(Equal(report.StatusOK))
		})

		It("aborts the batch when fail-fast", func() {
			runner, err := pipeline.NewRunner(parse(broken+"fail_fast: true\n"), source, pipeline.Options{})
			Expect(err).NotTo(HaveOccurred())

			_, err = runner.Run(ctx)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("DEFAULT/RL"))
		})
	})

	Context("when a portfolio has no data", func() {
		const missing = `
baselines:
  buy_hold: false
portfolios:
  - name: GOOD
    tickers: [VTI, TLT]
  - name: BAD
    tickers: [VTI, XYZ]
`

		It("fails every model of that portfolio only", func() {
			runner, err := pipeline.NewRunner(parse(missing), source, pipeline.Options{})
			Expect(err).NotTo(HaveOccurred())

			res, err := runner.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reports).To(HaveLen(2))

			for _, row := range res.Reports[0].Rows() {
				Expect(row.Status).To(Equal(report.StatusOK))
			}
			for _, row := range res.Reports[1].Rows() {
				Expect(row.Status).To(Equal(report.StatusFailed))
				Expect(row.Error).To(ContainSubstring("XYZ"))
			}
			Expect(res.Documents[1].BestModel).To(BeEmpty())
		})

		It("aborts when fail-fast", func() {
			runner, err := pipeline.NewRunner(parse(missing+"fail_fast: true\n"), source, pipeline.Options{})
			Expect(err).NotTo(HaveOccurred())

			_, err = runner.Run(ctx)
			Expect(err).To(MatchError(data.ErrNotFound))
		})
	})

	It("fails models when the test window is past the data", func() {
		exp, err := pipeline.ParseExperiment([]byte(`
data:
  tickers: [VTI, TLT]
baselines:
  buy_hold: false
split:
  test_start: 2030-01-01
`))
		Expect(err).NotTo(HaveOccurred())

		runner, err := pipeline.NewRunner(exp, source, pipeline.Options{})
		Expect(err).NotTo(HaveOccurred())
		res, err := runner.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		for _, row := range res.Reports[0].Rows() {
			Expect(row.Status).To(Equal(report.StatusFailed))
			Expect(row.Error).To(ContainSubstring("no prices in the test window"))
		}
	})

	It("stops on a canceled context", func() {
		runner, err := pipeline.NewRunner(parse(""), source, pipeline.Options{})
		Expect(err).NotTo(HaveOccurred())

		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err = runner.Run(canceled)
		Expect(err).To(MatchError(context.Canceled))
	})
})
