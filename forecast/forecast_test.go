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

package forecast_test

import (
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/forecast"
)

func ar1(phi, mean float64, n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	res := make([]float64, n)
	prev := 0.0
	for idx := range res {
		prev = phi*prev + rng.NormFloat64()*0.01
		res[idx] = mean + prev
	}
	return res
}

var _ = Describe("Forecast", func() {
	DescribeTable("parsing model kinds",
		func(in string, expected forecast.Kind, fails bool) {
			kind, err := forecast.ParseKind(in)
			if fails {
				Expect(err).To(MatchError(forecast.ErrUnknownModel))
				return
			}
			Expect(err).To(BeNil())
			Expect(kind).To(Equal(expected))
		},
		Entry("historical mean", "historical_mean", forecast.HistoricalMean, false),
		Entry("alias", "mean", forecast.HistoricalMean, false),
		Entry("ewma", "EWMA", forecast.EWMA, false),
		Entry("sarima", " sarima ", forecast.SARIMA, false),
		Entry("unknown", "lstm", forecast.Kind(""), true),
	)

	Context("with the historical mean model", func() {
		It("predicts the sample mean for every step", func() {
			model, err := forecast.New(forecast.DefaultSpec(forecast.HistoricalMean))
			Expect(err).To(BeNil())
			Expect(model.Fit([]float64{0.01, 0.03, -0.01, 0.05})).To(Succeed())
			preds, err := model.Predict(3)
			Expect(err).To(BeNil())
			Expect(preds).To(HaveLen(3))
			for _, v := range preds {
				Expect(v).Should(BeNumerically("~", 0.02, 1e-12))
			}
			Expect(model.Diagnostics().Observations).To(Equal(4))
		})

		It("refuses to predict before fitting", func() {
			model, err := forecast.New(forecast.DefaultSpec(forecast.HistoricalMean))
			Expect(err).To(BeNil())
			_, err = model.Predict(1)
			Expect(err).To(MatchError(forecast.ErrNotFitted))
		})

		It("rejects a zero horizon", func() {
			model, _ := forecast.New(forecast.DefaultSpec(forecast.HistoricalMean))
			Expect(model.Fit([]float64{0.01, 0.02})).To(Succeed())
			_, err := model.Predict(0)
			Expect(err).To(MatchError(forecast.ErrInvalidHorizon))
		})

		It("rejects NaN observations", func() {
			model, _ := forecast.New(forecast.DefaultSpec(forecast.HistoricalMean))
			Expect(model.Fit([]float64{0.01, math.NaN()})).To(MatchError(forecast.ErrInvalidSeries))
		})

		It("rejects a series shorter than the minimum", func() {
			model, _ := forecast.New(forecast.DefaultSpec(forecast.HistoricalMean))
			Expect(model.Fit([]float64{0.01})).To(MatchError(forecast.ErrInsufficientData))
		})
	})

	Context("with the ewma model", func() {
		It("halves the weight every half life", func() {
			spec := forecast.DefaultSpec(forecast.EWMA)
			spec.HalfLife = 1
			model, err := forecast.New(spec)
			Expect(err).To(BeNil())
			Expect(model.Fit([]float64{0, 1})).To(Succeed())
			preds, err := model.Predict(1)
			Expect(err).To(BeNil())
			Expect(preds[0]).Should(BeNumerically("~", 2.0/3.0, 1e-12))
		})

		It("rejects a negative half life", func() {
			spec := forecast.DefaultSpec(forecast.EWMA)
			spec.HalfLife = -1
			_, err := forecast.New(spec)
			Expect(err).To(MatchError(forecast.ErrInvalidSpec))
		})
	})

	Context("with the sarima model", func() {
		It("uses (1,1,1)(1,1,1,12) by default", func() {
			spec := forecast.DefaultSpec(forecast.SARIMA)
			Expect(spec.Order).To(Equal(forecast.Order{P: 1, D: 1, Q: 1}))
			Expect(spec.Seasonal).To(Equal(forecast.SeasonalOrder{P: 1, D: 1, Q: 1, Period: 12}))
			Expect(spec.MinObservations).To(Equal(36))
		})

		It("needs 36 observations by default", func() {
			model, err := forecast.New(forecast.DefaultSpec(forecast.SARIMA))
			Expect(err).To(BeNil())
			Expect(model.Fit(ar1(0.5, 0.01, 35, 1))).To(MatchError(forecast.ErrInsufficientData))
		})

		It("requires a seasonal period when seasonal terms are used", func() {
			spec := forecast.Spec{Kind: forecast.SARIMA, Seasonal: forecast.SeasonalOrder{D: 1}}
			_, err := forecast.New(spec)
			Expect(err).To(MatchError(forecast.ErrInvalidSpec))
		})

		It("predicts the last value of a random walk", func() {
			spec := forecast.Spec{Kind: forecast.SARIMA, Order: forecast.Order{D: 1}, MinObservations: 5}
			model, err := forecast.New(spec)
			Expect(err).To(BeNil())
			Expect(model.Fit([]float64{1, 3, 2, 5, 4, 7})).To(Succeed())
			preds, err := model.Predict(3)
			Expect(err).To(BeNil())
			Expect(preds).To(Equal([]float64{7, 7, 7}))
		})

		It("repeats the last season with a seasonal difference", func() {
			spec := forecast.Spec{
				Kind:            forecast.SARIMA,
				Seasonal:        forecast.SeasonalOrder{D: 1, Period: 4},
				MinObservations: 8,
			}
			model, err := forecast.New(spec)
			Expect(err).To(BeNil())
			series := []float64{0.01, 0.02, -0.01, 0.03, 0.01, 0.02, -0.01, 0.03, 0.01, 0.02, -0.01, 0.03}
			Expect(model.Fit(series)).To(Succeed())
			preds, err := model.Predict(6)
			Expect(err).To(BeNil())
			expected := []float64{0.01, 0.02, -0.01, 0.03, 0.01, 0.02}
			for idx := range expected {
				Expect(preds[idx]).Should(BeNumerically("~", expected[idx], 1e-12))
			}
		})

		It("recovers the coefficient of an AR(1) process", func() {
			spec := forecast.Spec{Kind: forecast.SARIMA, Order: forecast.Order{P: 1}, MinObservations: 36}
			model, err := forecast.New(spec)
			Expect(err).To(BeNil())
			series := ar1(0.6, 0.005, 600, 42)
			Expect(model.Fit(series)).To(Succeed())

			diag := model.Diagnostics()
			Expect(diag.Params).To(HaveLen(1))
			Expect(diag.Params[0]).Should(BeNumerically("~", 0.6, 0.1))
			Expect(diag.Sigma2).Should(BeNumerically("~", 0.0001, 0.00003))
			Expect(math.IsInf(diag.AIC, 0) || math.IsNaN(diag.AIC)).To(BeFalse())

			// long horizon forecasts decay to the mean
			preds, err := model.Predict(120)
			Expect(err).To(BeNil())
			Expect(preds[119]).Should(BeNumerically("~", diag.HistMean, 1e-6))
		})

		It("fits the default seasonal model and produces finite forecasts", func() {
			model, err := forecast.New(forecast.DefaultSpec(forecast.SARIMA))
			Expect(err).To(BeNil())
			Expect(model.Fit(ar1(0.3, 0.008, 72, 7))).To(Succeed())
			preds, err := model.Predict(12)
			Expect(err).To(BeNil())
			Expect(preds).To(HaveLen(12))
			for _, v := range preds {
				Expect(math.IsNaN(v) || math.IsInf(v, 0)).To(BeFalse())
			}
			diag := model.Diagnostics()
			Expect(diag.Params).To(HaveLen(4))
			for _, v := range diag.Params {
				Expect(math.Abs(v)).Should(BeNumerically("<", 1))
			}
		})

		It("is deterministic", func() {
			series := ar1(0.4, 0.01, 80, 3)
			first, _ := forecast.New(forecast.DefaultSpec(forecast.SARIMA))
			second, _ := forecast.New(forecast.DefaultSpec(forecast.SARIMA))
			Expect(first.Fit(series)).To(Succeed())
			Expect(second.Fit(series)).To(Succeed())
			a, _ := first.Predict(6)
			b, _ := second.Predict(6)
			Expect(a).To(Equal(b))
		})
	})

	Context("when memoizing forecasts", func() {
		BeforeEach(func() {
			Expect(common.SetupCache(16)).To(Succeed())
		})

		It("returns the same result from the cache", func() {
			spec := forecast.DefaultSpec(forecast.HistoricalMean)
			series := []float64{0.01, 0.02, 0.03}
			first, err := forecast.Forecast(spec, series, 2)
			Expect(err).To(BeNil())
			second, err := forecast.Forecast(spec, series, 2)
			Expect(err).To(BeNil())
			Expect(second).To(Equal(first))
			Expect(first.Mean()).Should(BeNumerically("~", 0.02, 1e-12))

			_, ok, err := common.CacheGet(forecast.Key(spec, series, 2))
			Expect(err).To(BeNil())
			Expect(ok).To(BeTrue())
		})

		It("keys on the series values", func() {
			spec := forecast.DefaultSpec(forecast.HistoricalMean)
			Expect(forecast.Key(spec, []float64{0.01, 0.02}, 1)).ToNot(Equal(forecast.Key(spec, []float64{0.01, 0.03}, 1)))
			Expect(forecast.Key(spec, []float64{0.01, 0.02}, 1)).ToNot(Equal(forecast.Key(spec, []float64{0.01, 0.02}, 2)))
		})

		It("does not cache failures", func() {
			spec := forecast.DefaultSpec(forecast.SARIMA)
			series := []float64{0.01, 0.02}
			_, err := forecast.Forecast(spec, series, 1)
			Expect(err).To(MatchError(forecast.ErrInsufficientData))
			_, ok, _ := common.CacheGet(forecast.Key(spec, series, 1))
			Expect(ok).To(BeFalse())
		})
	})
})
