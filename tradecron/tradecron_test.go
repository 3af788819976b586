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

package tradecron_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-optimizer/tradecron"
)

// businessDays returns every weekday between begin and end inclusive
func businessDays(begin, end time.Time) []time.Time {
	dates := []time.Time{}
	for dt := begin; !dt.After(end); dt = dt.AddDate(0, 0, 1) {
		if dt.Weekday() != time.Saturday && dt.Weekday() != time.Sunday {
			dates = append(dates, dt)
		}
	}
	return dates
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("Tradecron", func() {
	DescribeTable("when parsing tradecron spec",
		func(spec string, expectedDaySpec string, expectedDateFlag string, expectedError error) {
			cron, err := tradecron.New(spec)
			if expectedError == nil {
				Expect(err).To(BeNil())
				Expect(cron.ScheduleString).To(Equal(spec))
				Expect(cron.DaySpec).To(Equal(expectedDaySpec))
				Expect(cron.DateFlag).To(Equal(expectedDateFlag))
			} else {
				Expect(err).To(MatchError(expectedError))
			}
		},
		Entry("every day", "* * *", "* * *", "", nil),
		Entry("brief form", "*", "* * *", "", nil),
		Entry("mondays", "* * 1", "* * 1", "", nil),
		Entry("month begin", "@monthbegin", "* * *", tradecron.AtMonthBegin, nil),
		Entry("month begin in quarter months", "@monthbegin * 1,4,7,10", "* 1,4,7,10 *", tradecron.AtMonthBegin, nil),
		Entry("alias monthly", "monthly", "* * *", tradecron.AtMonthBegin, nil),
		Entry("alias never", "never", "* * *", tradecron.AtNever, nil),
		Entry("upper case modifier", "@MonthEnd", "* * *", tradecron.AtMonthEnd, nil),
		Entry("conflicting modifiers", "@monthbegin @weekend", "", "", tradecron.ErrConflictingModifiers),
		Entry("unknown modifier", "@fortnight", "", "", tradecron.ErrUnknownModifier),
		Entry("too many fields", "* * * *", "", "", tradecron.ErrMalformedTimeSpec),
		Entry("empty spec", "  ", "", "", tradecron.ErrMalformedTimeSpec),
	)

	Context("with a calendar of business days in Q1 2021", func() {
		var (
			dates []time.Time
		)

		BeforeEach(func() {
			dates = businessDays(date(2021, 1, 4), date(2021, 3, 31))
		})

		It("schedules the first trading day of each month", func() {
			tc, err := tradecron.New("@monthbegin")
			Expect(err).To(BeNil())
			Expect(tc.TradeDays(dates)).To(Equal([]time.Time{
				date(2021, 1, 4),
				date(2021, 2, 1),
				date(2021, 3, 1),
			}))
		})

		It("schedules the last trading day of each month", func() {
			tc, err := tradecron.New("@monthend")
			Expect(err).To(BeNil())
			Expect(tc.TradeDays(dates)).To(Equal([]time.Time{
				date(2021, 1, 29),
				date(2021, 2, 26),
				date(2021, 3, 31),
			}))
		})

		It("treats the calendar boundaries as period boundaries", func() {
			tc, err := tradecron.New("@quarterbegin")
			Expect(err).To(BeNil())
			Expect(tc.TradeDays(dates)).To(Equal([]time.Time{date(2021, 1, 4)}))

			tc, err = tradecron.New("@yearend")
			Expect(err).To(BeNil())
			Expect(tc.TradeDays(dates)).To(Equal([]time.Time{date(2021, 3, 31)}))
		})

		It("schedules the first trading day of each week", func() {
			tc, err := tradecron.New("@weekbegin")
			Expect(err).To(BeNil())
			days := tc.TradeDays(dates)
			Expect(days).To(HaveLen(13))
			for _, dt := range days {
				Expect(dt.Weekday()).To(Equal(time.Monday))
			}
		})

		It("skips missing days when finding the week start", func() {
			// drop Monday Feb 15th (Presidents Day)
			calendar := make([]time.Time, 0, len(dates))
			for _, dt := range dates {
				if !dt.Equal(date(2021, 2, 15)) {
					calendar = append(calendar, dt)
				}
			}

			tc, err := tradecron.New("@weekbegin")
			Expect(err).To(BeNil())
			Expect(tc.TradeDays(calendar)).To(ContainElement(date(2021, 2, 16)))
		})

		It("combines a period modifier with a day filter", func() {
			tc, err := tradecron.New("@monthbegin * 2")
			Expect(err).To(BeNil())
			Expect(tc.TradeDays(dates)).To(Equal([]time.Time{date(2021, 2, 1)}))
		})

		It("filters by day of week", func() {
			tc, err := tradecron.New("* * 5")
			Expect(err).To(BeNil())
			days := tc.TradeDays(dates)
			Expect(days).To(HaveLen(12))
			Expect(days[0]).To(Equal(date(2021, 1, 8)))
		})

		It("never schedules with @never", func() {
			tc, err := tradecron.New("@never")
			Expect(err).To(BeNil())
			Expect(tc.TradeDays(dates)).To(BeEmpty())
		})

		It("knows which schedules close a period", func() {
			for _, spec := range []string{"@weekend", "@monthend", "@quarterend", "@yearend"} {
				tc, err := tradecron.New(spec)
				Expect(err).To(BeNil())
				Expect(tc.ClosesPeriod()).To(BeTrue(), spec)
			}
			for _, spec := range []string{"@daily", "@never", "@monthbegin", "@weekbegin"} {
				tc, err := tradecron.New(spec)
				Expect(err).To(BeNil())
				Expect(tc.ClosesPeriod()).To(BeFalse(), spec)
			}
		})

		It("schedules every day with @daily", func() {
			tc, err := tradecron.New("@daily")
			Expect(err).To(BeNil())
			Expect(tc.TradeDays(dates)).To(HaveLen(len(dates)))
			Expect(tc.IsTradeDay(dates, -1)).To(BeFalse())
			Expect(tc.IsTradeDay(dates, len(dates))).To(BeFalse())
		})
	})
})
