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
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrConflictingModifiers = errors.New("only one period modifier may be specified")
	ErrUnknownModifier      = errors.New("unknown schedule modifier")
	ErrMalformedTimeSpec    = errors.New("malformed schedule specification")
)

// expandBriefFormat expands a day spec that has fields omitted for brevity
func expandBriefFormat(tokens []string) (string, error) {
	if len(tokens) > 3 {
		return "", fmt.Errorf("%w: expected at most 3 fields, found %d: %v", ErrMalformedTimeSpec, len(tokens), tokens)
	}

	expanded := make([]string, 0, 3)
	expanded = append(expanded, tokens...)
	for len(expanded) < 3 {
		expanded = append(expanded, "*")
	}

	return strings.Join(expanded, " "), nil
}

func sameWeek(a, b time.Time) bool {
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay == by && aw == bw
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func sameQuarter(a, b time.Time) bool {
	return a.Year() == b.Year() && (a.Month()-1)/3 == (b.Month()-1)/3
}
