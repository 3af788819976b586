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

package common_test

import (
	"bytes"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-optimizer/common"
)

var _ = Describe("Common", func() {
	DescribeTable("slugifying run tags",
		func(tag, expected string) {
			Expect(common.Slugify(tag)).To(Equal(expected))
		},
		Entry("already a slug", "baseline", "baseline"),
		Entry("mixed case with spaces", "MVO vs Baselines", "mvo-vs-baselines"),
		Entry("punctuation runs collapse", "tech / 2020 -- 2023!!", "tech-2020-2023"),
		Entry("leading separators are dropped", "  __hybrid", "hybrid"),
		Entry("empty tag", "   ", "run"),
	)

	It("uppercases tickers in place", func() {
		arr := []string{"spy", " tlt "}
		common.ArrToUpper(arr)
		Expect(arr).To(Equal([]string{"SPY", "TLT"}))
	})

	Context("with lz4 compression", func() {
		It("restores the original bytes", func() {
			in := bytes.Repeat([]byte("equity curve "), 200)
			out, err := common.Compress(in)
			Expect(err).To(BeNil())
			Expect(len(out)).To(BeNumerically("<", len(in)))

			back, err := common.Decompress(out)
			Expect(err).To(BeNil())
			Expect(back).To(Equal(in))
		})
	})

	Context("with the LRU cache", func() {
		BeforeEach(func() {
			Expect(common.SetupCache(2)).To(Succeed())
		})

		It("misses on unknown keys", func() {
			_, ok, err := common.CacheGet("missing")
			Expect(err).To(BeNil())
			Expect(ok).To(BeFalse())
		})

		It("evicts the least recently used entry", func() {
			Expect(common.CacheSet("a", []byte("1"))).To(Succeed())
			Expect(common.CacheSet("b", []byte("2"))).To(Succeed())
			Expect(common.CacheSet("c", []byte("3"))).To(Succeed())

			_, ok, _ := common.CacheGet("a")
			Expect(ok).To(BeFalse())

			val, ok, err := common.CacheGet("c")
			Expect(err).To(BeNil())
			Expect(ok).To(BeTrue())
			Expect(val).To(Equal([]byte("3")))
		})
	})

	Context("with fingerprints", func() {
		var date time.Time

		BeforeEach(func() {
			date = time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
		})

		It("is deterministic", func() {
			a := common.NewHasher().String("SPY").Time(date).Floats([]float64{1, 2, 3}).Sum()
			b := common.NewHasher().String("SPY").Time(date).Floats([]float64{1, 2, 3}).Sum()
			Expect(a).To(Equal(b))
			Expect(a).To(HaveLen(64))
		})

		It("changes when any input changes", func() {
			a := common.NewHasher().String("SPY").Floats([]float64{1, 2, 3}).Sum()
			b := common.NewHasher().String("SPY").Floats([]float64{1, 2, 3.0000001}).Sum()
			c := common.NewHasher().String("SP").String("Y").Floats([]float64{1, 2, 3}).Sum()
			Expect(a).ToNot(Equal(b))
			Expect(a).ToNot(Equal(c))
		})
	})
})
