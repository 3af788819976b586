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

package returns_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/penny-vault/pv-optimizer/dataframe"
	"github.com/penny-vault/pv-optimizer/returns"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("Returns", func() {
	var (
		prices *dataframe.DataFrame
	)

	BeforeEach(func() {
		prices = &dataframe.DataFrame{
			Dates:    []time.Time{day(2021, 1, 29), day(2021, 2, 26), day(2021, 3, 31), day(2021, 4, 30)},
			ColNames: []string{"SPY", "TLT"},
			Vals: [][]float64{
				{100, 110, 99, 121},
				{50, 50, 55, 44},
			},
		}
	})

	DescribeTable("parsing the return kind",
		func(in string, expected returns.Kind, fails bool) {
			kind, err := returns.ParseKind(in)
			if fails {
				Expect(err).To(MatchError(returns.ErrUnknownKind))
				return
			}
			Expect(err).To(BeNil())
			Expect(kind).To(Equal(expected))
		},
		Entry("empty defaults to simple", "", returns.Simple, false),
		Entry("simple", "simple", returns.Simple, false),
		Entry("log", "log", returns.Log, false),
		Entry("unknown", "arithmetic", returns.Kind(""), true),
	)

	Context("when building simple returns", func() {
		It("has one fewer row than the panel", func() {
			series, err := returns.Build(prices, returns.Simple)
			Expect(err).To(BeNil())
			Expect(series.Len()).To(Equal(3))
			Expect(series.Kind()).To(Equal(returns.Simple))
			Expect(series.Dates()[0]).To(Equal(day(2021, 2, 26)))
			Expect(series.Assets()).To(Equal([]string{"SPY", "TLT"}))

			tlt, err := series.Asset("TLT")
			Expect(err).To(BeNil())
			Expect(tlt[0]).Should(BeNumerically("~", 0.0, 1e-12))
			Expect(tlt[1]).Should(BeNumerically("~", 0.1, 1e-12))
			Expect(tlt[2]).Should(BeNumerically("~", -0.2, 1e-12))
		})

		It("is immutable through its accessors", func() {
			series, err := returns.Build(prices, returns.Simple)
			Expect(err).To(BeNil())

			spy, _ := series.Asset("SPY")
			spy[0] = 42
			assets := series.Assets()
			assets[0] = "XXX"
			frame := series.Frame()
			frame.Vals[0][0] = 42

			again, _ := series.Asset("SPY")
			Expect(again[0]).Should(BeNumerically("~", 0.1, 1e-12))
			Expect(series.Assets()[0]).To(Equal("SPY"))
		})

		It("lays the returns out as a dates × assets matrix", func() {
			series, err := returns.Build(prices, returns.Simple)
			Expect(err).To(BeNil())
			m := series.Matrix()
			r, c := m.Dims()
			Expect(r).To(Equal(3))
			Expect(c).To(Equal(2))
			Expect(m.At(2, 1)).Should(BeNumerically("~", -0.2, 1e-12))
		})

		It("restricts to a half-open window", func() {
			series, err := returns.Build(prices, returns.Simple)
			Expect(err).To(BeNil())
			window := series.Window(day(2021, 2, 26), day(2021, 4, 30))
			Expect(window.Len()).To(Equal(2))
			Expect(window.Dates()).To(Equal([]time.Time{day(2021, 2, 26), day(2021, 3, 31)}))
		})
	})

	Context("when building log returns", func() {
		It("takes the log of the price relatives", func() {
			series, err := returns.Build(prices, returns.Log)
			Expect(err).To(BeNil())
			spy, _ := series.Asset("SPY")
			Expect(spy[0]).Should(BeNumerically("~", math.Log(1.1), 1e-12))
			Expect(returns.LogToSimple(spy[0])).Should(BeNumerically("~", 0.1, 1e-12))
		})
	})

	Context("with invalid prices", func() {
		It("rejects a missing price", func() {
			prices.Vals[1][2] = math.NaN()
			_, err := returns.Build(prices, returns.Simple)
			Expect(err).To(MatchError(returns.ErrInvalidPrice))
		})

		It("rejects a non-positive price", func() {
			prices.Vals[0][1] = 0
			_, err := returns.Build(prices, returns.Log)
			Expect(err).To(MatchError(returns.ErrInvalidPrice))
		})

		It("rejects a single date", func() {
			_, err := returns.Build(prices.Trim(prices.Start(), prices.Start()), returns.Simple)
			Expect(err).To(MatchError(returns.ErrTooFewPrices))
		})

		It("rejects an unknown kind", func() {
			_, err := returns.Build(prices, returns.Kind("excess"))
			Expect(err).To(MatchError(returns.ErrUnknownKind))
		})
	})

	Context("when resampling daily returns to month end", func() {
		It("matches the returns of the month end prices", func() {
			daily := &dataframe.DataFrame{ColNames: []string{"SPY"}}
			price := 100.0
			for dt := day(2020, 12, 31); dt.Before(day(2021, 4, 1)); dt = dt.AddDate(0, 0, 1) {
				if dt.Weekday() == time.Saturday || dt.Weekday() == time.Sunday {
					continue
				}
				daily.InsertRow(dt, price)
				price *= 1.001
			}

			series, err := returns.Build(daily, returns.Simple)
			Expect(err).To(BeNil())

			monthly := series.Resample(dataframe.MonthEnd)
			Expect(monthly.Dates()).To(Equal([]time.Time{day(2021, 1, 29), day(2021, 2, 26), day(2021, 3, 31)}))

			monthEnd := daily.Frequency(dataframe.MonthEnd).PctChange()
			expected := monthEnd.Vals[0]
			actual, _ := monthly.Asset("SPY")
			Expect(actual).To(HaveLen(3))
			for idx := range expected {
				Expect(actual[idx]).Should(BeNumerically("~", expected[idx], 1e-9))
			}
		})
	})

	Context("when converting log moments to simple moments", func() {
		It("uses the lognormal identities", func() {
			mu := []float64{0.01, 0.02}
			sigma := mat.NewSymDense(2, []float64{0.04, 0.01, 0.01, 0.09})
			simpleMu, simpleSigma, err := returns.LogToSimpleMoments(mu, sigma)
			Expect(err).To(BeNil())
			Expect(simpleMu[0]).Should(BeNumerically("~", math.Exp(0.01+0.02)-1, 1e-12))
			Expect(simpleSigma.At(0, 1)).Should(BeNumerically("~", math.Exp(0.03+0.065)*math.Expm1(0.01), 1e-12))
			Expect(simpleSigma.At(1, 0)).To(Equal(simpleSigma.At(0, 1)))
		})

		It("is close to the identity for small returns", func() {
			mu := []float64{0.0004}
			sigma := mat.NewSymDense(1, []float64{0.0001})
			simpleMu, simpleSigma, err := returns.LogToSimpleMoments(mu, sigma)
			Expect(err).To(BeNil())
			Expect(simpleMu[0]).Should(BeNumerically("~", 0.00045, 1e-6))
			Expect(simpleSigma.At(0, 0)).Should(BeNumerically("~", 0.0001, 1e-6))
		})

		It("rejects mismatched shapes", func() {
			_, _, err := returns.LogToSimpleMoments([]float64{0.01}, mat.NewSymDense(2, nil))
			Expect(err).To(MatchError(returns.ErrShapeMismatch))
		})
	})

	DescribeTable("rescaling mean returns between frequencies",
		func(m float64, kind returns.Kind, from, to int, expected float64) {
			Expect(returns.RescaleMean(m, kind, from, to)).Should(BeNumerically("~", expected, 1e-12))
		},
		Entry("monthly simple to daily", 0.01, returns.Simple, 12, 252, math.Pow(1.01, 12.0/252.0)-1),
		Entry("monthly log to daily", 0.01, returns.Log, 12, 252, 0.01*12.0/252.0),
		Entry("same frequency", 0.01, returns.Simple, 252, 252, 0.01),
	)
})
