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

package allocate_test

import (
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/penny-vault/pv-optimizer/allocate"
	"github.com/penny-vault/pv-optimizer/estimate"
)

var _ = Describe("Allocator", func() {
	var (
		allocator *allocate.Allocator
	)

	BeforeEach(func() {
		allocator = allocate.New(0)
	})

	Context("with uncorrelated assets", func() {
		It("finds the tangency portfolio", func() {
			sigma := mat.NewSymDense(2, []float64{0.04, 0, 0, 0.01})
			wv, err := allocator.Optimize([]string{"A", "B"}, []float64{0.08, 0.05}, sigma, allocate.DefaultConstraints())
			Expect(err).To(BeNil())
			Expect(wv.Objective()).To(Equal(allocate.MaxSharpe))

			// Σ⁻¹μ = [2, 5]
			Expect(wv.Weight("A")).Should(BeNumerically("~", 2.0/7.0, 1e-6))
			Expect(wv.Weight("B")).Should(BeNumerically("~", 5.0/7.0, 1e-6))
		})
	})

	Context("with correlated assets", func() {
		It("puts everything in the first asset when the tangency portfolio shorts the second", func() {
			sigma := mat.NewSymDense(2, []float64{0.04, 0.018, 0.018, 0.01})
			wv, err := allocator.Optimize([]string{"A", "B"}, []float64{0.08, 0.02}, sigma, allocate.DefaultConstraints())
			Expect(err).To(BeNil())
			Expect(wv.Weight("A")).Should(BeNumerically("~", 1, 1e-6))
			Expect(wv.Weight("B")).Should(BeNumerically("~", 0, 1e-6))
		})
	})

	Context("when shorting is permitted", func() {
		var (
			assets []string
			mu     []float64
			sigma  *mat.SymDense
		)

		BeforeEach(func() {
			assets = []string{"A", "B", "C"}
			mu = []float64{0.08, 0, 0.06}
			sigma = mat.NewSymDense(3, []float64{
				0.04, 0.006, 0,
				0.006, 0.01, 0,
				0, 0, 0.04,
			})
		})

		It("reaches the unconstrained tangency portfolio", func() {
			constraints := allocate.ConstraintSet{LongOnly: false, MaxWeight: 1, AllowLeverage: true}
			wv, err := allocator.Optimize(assets, mu, sigma, constraints)
			Expect(err).To(BeNil())

			var chol mat.Cholesky
			Expect(chol.Factorize(sigma)).To(BeTrue())
			var raw mat.VecDense
			Expect(chol.SolveVecTo(&raw, mat.NewVecDense(3, mu))).To(Succeed())
			total := floats.Sum(raw.RawVector().Data)
			for idx, asset := range assets {
				Expect(wv.Weight(asset)).Should(BeNumerically("~", raw.AtVec(idx)/total, 1e-5))
			}
			Expect(wv.Weight("B")).Should(BeNumerically("<", 0))
		})

		It("treats shorting without leverage as long only", func() {
			constraints := allocate.ConstraintSet{LongOnly: false, MaxWeight: 1, AllowLeverage: false}
			lo, _ := constraints.Bounds()
			Expect(lo).To(Equal(0.0))
			wv, err := allocator.Optimize(assets, mu, sigma, constraints)
			Expect(err).To(BeNil())
			for _, w := range wv.Weights() {
				Expect(w).Should(BeNumerically(">=", -1e-9))
			}
		})
	})

	Context("with a weight cap", func() {
		It("respects the cap", func() {
			sigma := mat.NewSymDense(3, []float64{0.04, 0, 0, 0, 0.01, 0, 0, 0, 0.09})
			constraints := allocate.ConstraintSet{LongOnly: true, MaxWeight: 0.5}
			wv, err := allocator.Optimize([]string{"A", "B", "C"}, []float64{0.08, 0.05, 0.01}, sigma, constraints)
			Expect(err).To(BeNil())
			Expect(wv.Weight("B")).Should(BeNumerically("~", 0.5, 1e-6))
			Expect(floats.Sum(wv.Weights())).Should(BeNumerically("~", 1, 1e-6))
		})

		It("rejects a cap that cannot be fully invested", func() {
			sigma := mat.NewSymDense(5, nil)
			for idx := 0; idx < 5; idx++ {
				sigma.SetSym(idx, idx, 0.04)
			}
			constraints := allocate.ConstraintSet{LongOnly: true, MaxWeight: 0.1}
			_, err := allocator.Optimize([]string{"A", "B", "C", "D", "E"}, []float64{0.1, 0.1, 0.1, 0.1, 0.1}, sigma, constraints)
			Expect(err).To(MatchError(allocate.ErrInfeasibleConstraints))
		})

		DescribeTable("rejects caps outside (0, 1]",
			func(maxWeight float64) {
				sigma := mat.NewSymDense(2, []float64{0.04, 0, 0, 0.01})
				constraints := allocate.ConstraintSet{LongOnly: true, MaxWeight: maxWeight}
				_, err := allocator.Optimize([]string{"A", "B"}, []float64{0.08, 0.05}, sigma, constraints)
				Expect(err).To(MatchError(allocate.ErrInvalidConstraints))
			},
			Entry("zero", 0.0),
			Entry("negative", -0.5),
			Entry("above one", 1.5),
		)
	})

	Context("when no asset beats the risk-free rate", func() {
		It("minimizes volatility", func() {
			sigma := mat.NewSymDense(2, []float64{0.04, 0, 0, 0.01})
			wv, err := allocator.Optimize([]string{"A", "B"}, []float64{-0.02, -0.01}, sigma, allocate.DefaultConstraints())
			Expect(err).To(BeNil())
			Expect(wv.Objective()).To(Equal(allocate.MinVolatility))
			Expect(wv.Weight("A")).Should(BeNumerically("~", 0.2, 1e-6))
			Expect(wv.Weight("B")).Should(BeNumerically("~", 0.8, 1e-6))
		})

		It("compares against the configured rate", func() {
			sigma := mat.NewSymDense(2, []float64{0.04, 0, 0, 0.01})
			wv, err := allocate.New(0.1).Optimize([]string{"A", "B"}, []float64{0.08, 0.05}, sigma, allocate.DefaultConstraints())
			Expect(err).To(BeNil())
			Expect(wv.Objective()).To(Equal(allocate.MinVolatility))
		})
	})

	It("propagates a degenerate covariance", func() {
		sigma := mat.NewSymDense(2, []float64{0.04, 0.02, 0.02, 0.01})
		_, err := allocator.Optimize([]string{"A", "B"}, []float64{0.08, 0.05}, sigma, allocate.DefaultConstraints())
		Expect(err).To(MatchError(estimate.ErrDegenerateCovariance))
	})

	It("rejects NaN expected returns", func() {
		sigma := mat.NewSymDense(2, []float64{0.04, 0, 0, 0.01})
		_, err := allocator.Optimize([]string{"A", "B"}, []float64{math.NaN(), 0.05}, sigma, allocate.DefaultConstraints())
		Expect(err).To(MatchError(allocate.ErrInvalidInput))
	})

	It("satisfies the constraints for random problems and is repeatable", func() {
		rng := rand.New(rand.NewSource(17))
		assets := []string{"A", "B", "C", "D", "E", "F"}
		for trial := 0; trial < 20; trial++ {
			n := len(assets)
			factors := mat.NewDense(n+4, n, nil)
			for ii := 0; ii < n+4; ii++ {
				for jj := 0; jj < n; jj++ {
					factors.Set(ii, jj, 0.1*rng.NormFloat64())
				}
			}
			sigma := mat.NewSymDense(n, nil)
			sigma.SymOuterK(1.0/float64(n+4), factors.T())
			mu := make([]float64, n)
			for idx := range mu {
				mu[idx] = 0.1 * rng.NormFloat64()
			}

			constraints := allocate.ConstraintSet{LongOnly: true, MaxWeight: 0.4}
			first, err := allocator.Optimize(assets, mu, sigma, constraints)
			Expect(err).To(BeNil())
			second, err := allocator.Optimize(assets, mu, sigma, constraints)
			Expect(err).To(BeNil())
			Expect(second.Weights()).To(Equal(first.Weights()))

			Expect(floats.Sum(first.Weights())).Should(BeNumerically("~", 1, 1e-6))
			for _, w := range first.Weights() {
				Expect(w).Should(BeNumerically(">=", -1e-9))
				Expect(w).Should(BeNumerically("<=", 0.4+1e-9))
			}
		}
	})
})

var _ = Describe("WeightVector", func() {
	It("builds the equal weight portfolio", func() {
		wv, err := allocate.Equal([]string{"A", "B", "C", "D"})
		Expect(err).To(BeNil())
		Expect(wv.Weights()).To(Equal([]float64{0.25, 0.25, 0.25, 0.25}))
		Expect(wv.Objective()).To(Equal(allocate.EqualWeight))
	})

	It("builds a single asset portfolio", func() {
		wv, err := allocate.Single([]string{"A", "B"}, "B")
		Expect(err).To(BeNil())
		Expect(wv.Weight("B")).To(Equal(1.0))
		Expect(wv.Weight("C")).To(Equal(0.0))

		_, err = allocate.Single([]string{"A", "B"}, "C")
		Expect(err).To(MatchError(allocate.ErrUnknownAsset))
	})

	It("rejects weights that do not sum to one", func() {
		_, err := allocate.NewWeightVector([]string{"A", "B"}, []float64{0.5, 0.4}, allocate.DefaultConstraints(), allocate.Fixed)
		Expect(err).To(MatchError(allocate.ErrInvalidWeights))
	})

	It("rejects negative weights under a long only constraint", func() {
		_, err := allocate.NewWeightVector([]string{"A", "B"}, []float64{1.2, -0.2}, allocate.DefaultConstraints(), allocate.Fixed)
		Expect(err).To(MatchError(allocate.ErrInvalidWeights))
	})

	It("measures turnover across different asset sets", func() {
		a, _ := allocate.NewWeightVector([]string{"A", "B"}, []float64{0.5, 0.5}, allocate.DefaultConstraints(), allocate.Fixed)
		b, _ := allocate.NewWeightVector([]string{"B", "C"}, []float64{0.25, 0.75}, allocate.DefaultConstraints(), allocate.Fixed)
		Expect(a.Turnover(b)).Should(BeNumerically("~", 1.5, 1e-12))
		Expect(a.Turnover(nil)).Should(BeNumerically("~", 1, 1e-12))
	})

	It("is immutable", func() {
		wv, _ := allocate.Equal([]string{"A", "B"})
		weights := wv.Weights()
		weights[0] = 1
		Expect(wv.Weight("A")).To(Equal(0.5))
	})
})
