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

package report_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-optimizer/allocate"
	"github.com/penny-vault/pv-optimizer/portfolio"
	"github.com/penny-vault/pv-optimizer/report"
)

func row(model string, sharpe float64) *report.Row {
	return &report.Row{
		Model:   model,
		Status:  report.StatusOK,
		Metrics: &portfolio.Metrics{Sharpe: sharpe, TotalReturn: 0.1},
	}
}

func names(rows []*report.Row) []string {
	res := make([]string, len(rows))
	for idx, r := range rows {
		res[idx] = r.Model
	}
	return res
}

var _ = Describe("ComparisonReport", func() {
	var (
		cmp *report.ComparisonReport
	)

	BeforeEach(func() {
		cmp = report.New("DEFAULT")
		Expect(cmp.Add(row("MVO", 0.8))).To(Succeed())
		Expect(cmp.Add(row("EqualWeight", 1.1))).To(Succeed())
		Expect(cmp.AddFailure("Sequence", errors.New("no target"))).To(Succeed())
		Expect(cmp.Add(row("BuyHold_VTI", 0.8))).To(Succeed())
		Expect(cmp.AddFailure("Forecast", errors.New("degenerate"))).To(Succeed())
	})

	It("orders rows by sharpe then name with failures last", func() {
		Expect(names(cmp.Rows())).To(Equal([]string{"EqualWeight", "BuyHold_VTI", "MVO", "Forecast", "Sequence"}))
	})

	It("rejects duplicate model names", func() {
		Expect(cmp.Add(row("MVO", 2))).To(MatchError(report.ErrDuplicateModel))
		Expect(cmp.Len()).To(Equal(5))
	})

	It("rejects empty model names", func() {
		Expect(cmp.Add(row(" ", 2))).To(MatchError(report.ErrEmptyModelName))
	})

	It("picks the best model", func() {
		best, ok := cmp.Best()
		Expect(ok).To(BeTrue())
		Expect(best.Model).To(Equal("EqualWeight"))
	})

	It("has no best model when everything failed", func() {
		failed := report.New("P")
		Expect(failed.AddFailure("MVO", errors.New("boom"))).To(Succeed())
		_, ok := failed.Best()
		Expect(ok).To(BeFalse())
	})

	It("renders a table", func() {
		table := cmp.Table()
		Expect(table).To(ContainSubstring("EqualWeight"))
		Expect(table).To(ContainSubstring("1.100"))
		Expect(table).To(ContainSubstring("failed: degenerate"))
		Expect(strings.Index(table, "EqualWeight")).Should(BeNumerically("<", strings.Index(table, "Sequence")))
	})

	It("plots an equity curve", func() {
		dates := []time.Time{
			time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC),
			time.Date(2021, 1, 5, 0, 0, 0, 0, time.UTC),
			time.Date(2021, 1, 6, 0, 0, 0, 0, time.UTC),
		}
		curve, err := portfolio.NewEquityCurve(dates, []float64{1, 1.1, 1.05})
		Expect(err).To(BeNil())
		r, err := cmp.Get("MVO")
		Expect(err).To(BeNil())
		r.Curve = curve

		plot, err := cmp.Plot("MVO", 40, 5)
		Expect(err).To(BeNil())
		Expect(plot).To(ContainSubstring("DEFAULT MVO (2021-01-04 to 2021-01-06)"))

		_, err = cmp.Plot("EqualWeight", 40, 5)
		Expect(err).To(MatchError(report.ErrModelNotFound))
	})

	Describe("documents", func() {
		var (
			doc *report.Document
		)

		BeforeEach(func() {
			doc = cmp.Document([]string{"VTI", "TLT"}, report.Metadata{
				RunID:       "run-1",
				Tag:         "smoke",
				Constraints: allocate.DefaultConstraints(),
			})
		})

		It("records the best model and every row", func() {
			Expect(doc.BestModel).To(Equal("EqualWeight"))
			Expect(doc.Models).To(HaveLen(5))
			Expect(doc.Tickers).To(Equal([]string{"VTI", "TLT"}))
		})

		It("uses stable metric names", func() {
			data, err := json.Marshal(doc)
			Expect(err).To(BeNil())
			for _, key := range []string{`"total_return"`, `"cagr"`, `"annualized_volatility"`, `"sharpe"`, `"max_drawdown"`, `"calmar"`, `"best_model"`, `"price_fingerprint"`} {
				Expect(string(data)).To(ContainSubstring(key))
			}
		})

		It("round trips through a file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "nested", "report.json")
			Expect(report.WriteFile(path, []*report.Document{doc})).To(Succeed())
			_, err := os.Stat(path)
			Expect(err).To(BeNil())

			docs, err := report.ReadFile(path)
			Expect(err).To(BeNil())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].BestModel).To(Equal("EqualWeight"))
			Expect(docs[0].Metadata.RunID).To(Equal("run-1"))
			Expect(docs[0].Models[4].Status).To(Equal(report.StatusFailed))
			Expect(docs[0].Models[4].Error).To(Equal("no target"))
		})

		It("rebuilds a report from a document", func() {
			rebuilt, err := report.FromDocument(doc)
			Expect(err).To(BeNil())
			Expect(rebuilt.Portfolio()).To(Equal("DEFAULT"))
			Expect(names(rebuilt.Rows())).To(Equal(names(cmp.Rows())))
			Expect(rebuilt.Table()).To(ContainSubstring("EqualWeight"))

			_, err = rebuilt.Plot("MVO", 40, 5)
			Expect(err).To(MatchError(report.ErrModelNotFound))
		})
	})
})
