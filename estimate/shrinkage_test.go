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

package estimate_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/penny-vault/pv-optimizer/estimate"
)

var _ = Describe("Shrinkage", func() {
	var sigma *mat.SymDense

	BeforeEach(func() {
		sigma = mat.NewSymDense(3, []float64{
			0.04, 0.006, 0.002,
			0.006, 0.01, 0.001,
			0.002, 0.001, 0.09,
		})
	})

	It("returns a copy with no shrinkage", func() {
		res, err := estimate.Shrink(sigma, 0, estimate.Diagonal)
		Expect(err).To(BeNil())
		Expect(mat.Equal(res, sigma)).To(BeTrue())
		res.SetSym(0, 0, 1)
		Expect(sigma.At(0, 0)).To(Equal(0.04))
	})

	It("scales off-diagonal entries toward zero", func() {
		res, err := estimate.Shrink(sigma, 0.5, estimate.Diagonal)
		Expect(err).To(BeNil())
		Expect(res.At(0, 1)).Should(BeNumerically("~", 0.003, 1e-15))
		Expect(res.At(0, 0)).To(Equal(0.04))

		full, _ := estimate.Shrink(sigma, 1, estimate.Diagonal)
		Expect(full.At(1, 2)).To(Equal(0.0))
	})

	It("moves toward the average correlation", func() {
		res, err := estimate.Shrink(sigma, 1, estimate.ConstantCorrelation)
		Expect(err).To(BeNil())
		rbar := (0.006/0.02 + 0.002/0.06 + 0.001/0.03) / 3
		Expect(res.At(0, 1)).Should(BeNumerically("~", rbar*0.02, 1e-12))
		Expect(res.At(2, 2)).To(Equal(0.09))
	})

	It("rejects unknown targets", func() {
		_, err := estimate.Shrink(sigma, 0.5, estimate.Target("identity"))
		Expect(err).To(MatchError(estimate.ErrUnknownShrinkage))
	})

	It("accepts a well-conditioned matrix", func() {
		Expect(estimate.CheckCovariance(sigma, 1e-10)).To(Succeed())
	})

	It("rejects a singular matrix", func() {
		singular := mat.NewSymDense(2, []float64{0.04, 0.02, 0.02, 0.01})
		Expect(estimate.CheckCovariance(singular, 1e-10)).To(MatchError(estimate.ErrDegenerateCovariance))
	})

	It("adds jitter to the diagonal", func() {
		estimate.AddJitter(sigma, 1e-6)
		Expect(sigma.At(1, 1)).Should(BeNumerically("~", 0.010001, 1e-15))
		Expect(sigma.At(0, 1)).To(Equal(0.006))
	})
})
