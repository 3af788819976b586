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

package dataframe_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-optimizer/dataframe"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("DataFrame", func() {
	Context("with no values", func() {
		var (
			df *dataframe.DataFrame
		)

		BeforeEach(func() {
			df = &dataframe.DataFrame{}
		})

		It("has zero length", func() {
			Expect(df.Len()).To(Equal(0))
		})

		It("has zero start and end dates", func() {
			Expect(df.Start()).To(Equal(time.Time{}))
			Expect(df.End()).To(Equal(time.Time{}))
		})

		It("renders a placeholder table", func() {
			Expect(df.Table()).To(Equal("<NO DATA>"))
		})

		It("validates", func() {
			Expect(df.Validate()).To(Succeed())
		})
	})

	Context("with two columns over five days", func() {
		var (
			df *dataframe.DataFrame
		)

		BeforeEach(func() {
			df = &dataframe.DataFrame{
				Dates: []time.Time{
					day(2021, 1, 4),
					day(2021, 1, 5),
					day(2021, 1, 6),
					day(2021, 1, 7),
					day(2021, 1, 8),
				},
				ColNames: []string{"VFINX", "PRIDX"},
				Vals: [][]float64{
					{1, 2, 3, 4, 5},
					{10, 20, 30, 40, 50},
				},
			}
		})

		It("finds columns by name", func() {
			Expect(df.ColIndex("PRIDX")).To(Equal(1))
			Expect(df.ColIndex("SPY")).To(Equal(-1))
			_, err := df.Column("SPY")
			Expect(err).To(MatchError(dataframe.ErrColumnNotFound))
		})

		It("returns a row in column order", func() {
			Expect(df.Row(2)).To(Equal([]float64{3, 30}))
		})

		It("trims to an inclusive range", func() {
			trimmed := df.Trim(day(2021, 1, 5), day(2021, 1, 7))
			Expect(trimmed.Dates).To(Equal([]time.Time{day(2021, 1, 5), day(2021, 1, 6), day(2021, 1, 7)}))
			Expect(trimmed.Vals[1]).To(Equal([]float64{20, 30, 40}))
		})

		It("does not modify the original when trimming", func() {
			df.Trim(day(2021, 1, 5), day(2021, 1, 6))
			Expect(df.Len()).To(Equal(5))
			Expect(df.Vals[0]).To(HaveLen(5))
		})

		It("returns an empty dataframe for an inverted range", func() {
			Expect(df.Trim(day(2021, 1, 7), day(2021, 1, 5)).Len()).To(Equal(0))
		})

		It("windows to a half-open range", func() {
			window := df.Window(day(2021, 1, 5), day(2021, 1, 7))
			Expect(window.Dates).To(Equal([]time.Time{day(2021, 1, 5), day(2021, 1, 6)}))
			Expect(window.Vals[0]).To(Equal([]float64{2, 3}))
		})

		It("selects columns in the requested order", func() {
			sel, err := df.Select("PRIDX", "VFINX")
			Expect(err).To(BeNil())
			Expect(sel.ColNames).To(Equal([]string{"PRIDX", "VFINX"}))
			Expect(sel.Vals[0][0]).To(Equal(10.0))

			_, err = df.Select("SPY")
			Expect(err).To(MatchError(dataframe.ErrColumnNotFound))
		})

		It("makes deep copies", func() {
			df2 := df.Copy()
			df2.Vals[0][0] = 100
			Expect(df.Vals[0][0]).To(Equal(1.0))
		})

		It("drops rows with NaN", func() {
			df.Vals[1][2] = math.NaN()
			clean := df.DropNA()
			Expect(clean.Len()).To(Equal(4))
			Expect(clean.Dates).ToNot(ContainElement(day(2021, 1, 6)))
		})

		It("panics when inserting an out of order row", func() {
			Expect(func() { df.InsertRow(day(2021, 1, 8), 6, 60) }).To(Panic())
		})

		It("appends rows in order", func() {
			df.InsertRow(day(2021, 1, 11), 6, 60)
			Expect(df.Len()).To(Equal(6))
			Expect(df.Vals[1][5]).To(Equal(60.0))
		})

		It("renders a table", func() {
			table := df.Table()
			Expect(table).To(ContainSubstring("VFINX"))
			Expect(table).To(ContainSubstring("2021-01-08"))
		})

		It("detects dates that are not strictly increasing", func() {
			df.Dates[3] = df.Dates[2]
			Expect(df.Validate()).To(MatchError(dataframe.ErrDatesNotIncreasing))
		})

		It("detects short columns", func() {
			df.Vals[1] = df.Vals[1][:3]
			Expect(df.Validate()).To(MatchError(dataframe.ErrDateIndexNotAligned))
		})
	})

	Context("with daily values over a quarter", func() {
		var (
			df *dataframe.DataFrame
		)

		BeforeEach(func() {
			df = &dataframe.DataFrame{ColNames: []string{"SPY"}}
			val := 1.0
			for dt := day(2021, 1, 4); dt.Before(day(2021, 4, 1)); dt = dt.AddDate(0, 0, 1) {
				if dt.Weekday() == time.Saturday || dt.Weekday() == time.Sunday {
					continue
				}
				df.InsertRow(dt, val)
				val++
			}
		})

		It("resamples to month end", func() {
			monthly := df.Frequency(dataframe.MonthEnd)
			Expect(monthly.Dates).To(Equal([]time.Time{day(2021, 1, 29), day(2021, 2, 26), day(2021, 3, 31)}))
			Expect(monthly.Vals[0][2]).To(Equal(df.Vals[0][df.Len()-1]))
		})

		It("resamples to month begin", func() {
			monthly := df.Frequency(dataframe.MonthBegin)
			Expect(monthly.Dates).To(Equal([]time.Time{day(2021, 1, 4), day(2021, 2, 1), day(2021, 3, 1)}))
		})

		It("panics on an unknown frequency", func() {
			Expect(func() { df.Frequency(dataframe.Frequency("Fortnightly")) }).To(Panic())
		})
	})

	Context("with a map of single column dataframes", func() {
		It("merges on the common dates", func() {
			m := dataframe.Map{
				"TLT": {
					Dates:    []time.Time{day(2021, 1, 4), day(2021, 1, 5), day(2021, 1, 6)},
					ColNames: []string{"TLT"},
					Vals:     [][]float64{{1, 2, 3}},
				},
				"SPY": {
					Dates:    []time.Time{day(2021, 1, 5), day(2021, 1, 6), day(2021, 1, 7)},
					ColNames: []string{"SPY"},
					Vals:     [][]float64{{20, 30, 40}},
				},
			}

			df := m.DataFrame()
			Expect(df.ColNames).To(Equal([]string{"SPY", "TLT"}))
			Expect(df.Dates).To(Equal([]time.Time{day(2021, 1, 5), day(2021, 1, 6)}))
			Expect(df.Vals[0]).To(Equal([]float64{20, 30}))
			Expect(df.Vals[1]).To(Equal([]float64{2, 3}))
		})
	})
})
