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

package tradecron

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	AtDaily        = "@daily"
	AtNever        = "@never"
	AtWeekBegin    = "@weekbegin"
	AtWeekEnd      = "@weekend"
	AtMonthBegin   = "@monthbegin"
	AtMonthEnd     = "@monthend"
	AtQuarterBegin = "@quarterbegin"
	AtQuarterEnd   = "@quarterend"
	AtYearBegin    = "@yearbegin"
	AtYearEnd      = "@yearend"
)

// aliases accepted in experiment files
var aliases = map[string]string{
	"daily":     AtDaily,
	"weekly":    AtWeekBegin,
	"monthly":   AtMonthBegin,
	"quarterly": AtQuarterBegin,
	"yearly":    AtYearBegin,
	"annually":  AtYearBegin,
	"never":     AtNever,
	"none":      AtNever,
}

type TradeCron struct {
	Schedule       cron.Schedule
	ScheduleString string
	DaySpec        string
	DateFlag       string
}

// TradeCron enables calendar aware scheduling over the trading days present
// in a price panel. Unlike a wall-clock cron the set of trading days is not
// known up front: it is whatever dates the panel carries, so "first trading
// day of the month" means the first panel date of each month.
//
// A schedule is an optional period modifier followed by a day filter in
// standard CRON format with 3 fields: DayOfMonth(DoM) Month(M) DayOfWeek(DoW).
// Omitted fields default to '*'.
//
// Period modifiers:
//
//	@daily        - every trading day
//	@never        - no trading day; used for buy-and-hold
//	@weekbegin    - first trading day of the ISO week
//	@weekend      - last trading day of the ISO week
//	@monthbegin   - first trading day of the month
//	@monthend     - last trading day of the month
//	@quarterbegin - first trading day of the quarter
//	@quarterend   - last trading day of the quarter
//	@yearbegin    - first trading day of the year
//	@yearend      - last trading day of the year
//
// The first date of a calendar always opens a period and the last date
// always closes one.
//
// Examples:
//   - every monday: * * 1
//   - first trading day of each quarter month: @monthbegin * 1,4,7,10
//   - last trading day of the month: @monthend
func New(cronSpec string) (*TradeCron, error) {
	specParser := cron.NewParser(cron.Dom | cron.Month | cron.Dow)

	scheduleStr := strings.TrimSpace(cronSpec)
	if alias, ok := aliases[strings.ToLower(scheduleStr)]; ok {
		scheduleStr = alias
	}

	if scheduleStr == "" {
		return nil, ErrMalformedTimeSpec
	}

	// separate special tokens from the day spec
	daySpecTokens := make([]string, 0, 3)
	specialTokens := make([]string, 0, 1)
	for _, token := range strings.Fields(scheduleStr) {
		if token[0] == '@' {
			specialTokens = append(specialTokens, strings.ToLower(token))
		} else {
			daySpecTokens = append(daySpecTokens, token)
		}
	}

	var dateFlag string
	for _, token := range specialTokens {
		switch token {
		case AtDaily, AtNever, AtWeekBegin, AtWeekEnd, AtMonthBegin, AtMonthEnd,
			AtQuarterBegin, AtQuarterEnd, AtYearBegin, AtYearEnd:
			if dateFlag != "" {
				return nil, ErrConflictingModifiers
			}
			dateFlag = token
		default:
			return nil, ErrUnknownModifier
		}
	}

	daySpec, err := expandBriefFormat(daySpecTokens)
	if err != nil {
		return nil, err
	}

	schedule, err := specParser.Parse(daySpec)
	if err != nil {
		log.Error().Err(err).Str("DaySpec", daySpec).Str("TradeCronSpec", cronSpec).Msg("robfig/cron could not parse day spec")
		return nil, err
	}

	tc := &TradeCron{
		Schedule:       schedule,
		ScheduleString: cronSpec,
		DaySpec:        daySpec,
		DateFlag:       dateFlag,
	}

	return tc, nil
}

// ClosesPeriod reports whether the schedule trades on the last date of a
// period. For these schedules the final date of a calendar only closes a
// period because the data ends there.
func (tc *TradeCron) ClosesPeriod() bool {
	switch tc.DateFlag {
	case AtWeekEnd, AtMonthEnd, AtQuarterEnd, AtYearEnd:
		return true
	default:
		return false
	}
}

// IsTradeDay evaluates dates[idx] against the schedule, using dates as the
// trading calendar. Out of range indexes are never trade days.
func (tc *TradeCron) IsTradeDay(dates []time.Time, idx int) bool {
	if idx < 0 || idx >= len(dates) || tc.DateFlag == AtNever {
		return false
	}

	if !tc.matchesDaySpec(dates[idx]) {
		return false
	}

	last := len(dates) - 1
	switch tc.DateFlag {
	case AtWeekBegin:
		return idx == 0 || !sameWeek(dates[idx-1], dates[idx])
	case AtWeekEnd:
		return idx == last || !sameWeek(dates[idx], dates[idx+1])
	case AtMonthBegin:
		return idx == 0 || !sameMonth(dates[idx-1], dates[idx])
	case AtMonthEnd:
		return idx == last || !sameMonth(dates[idx], dates[idx+1])
	case AtQuarterBegin:
		return idx == 0 || !sameQuarter(dates[idx-1], dates[idx])
	case AtQuarterEnd:
		return idx == last || !sameQuarter(dates[idx], dates[idx+1])
	case AtYearBegin:
		return idx == 0 || dates[idx-1].Year() != dates[idx].Year()
	case AtYearEnd:
		return idx == last || dates[idx].Year() != dates[idx+1].Year()
	default:
		return true
	}
}

// TradeDays returns the subset of dates that are scheduled
func (tc *TradeCron) TradeDays(dates []time.Time) []time.Time {
	res := make([]time.Time, 0, len(dates))
	for idx, dt := range dates {
		if tc.IsTradeDay(dates, idx) {
			res = append(res, dt)
		}
	}
	return res
}

// matchesDaySpec checks the DoM/M/DoW filter; the time portion of the date is
// ignored
func (tc *TradeCron) matchesDaySpec(forDate time.Time) bool {
	if tc.DaySpec == "* * *" {
		return true
	}

	t1 := time.Date(forDate.Year(), forDate.Month(), forDate.Day(), 0, 0, 0, 0, forDate.Location())
	next := tc.Schedule.Next(t1.Add(-time.Nanosecond))
	return next.Equal(t1)
}
