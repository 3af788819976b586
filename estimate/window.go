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

package estimate

import (
	"fmt"
	"time"
)

// Window is a closed-open [start, end) range of return dates used to fit
// moments. A Window built with NewWindow never extends past the start of the
// evaluation window it feeds.
type Window struct {
	start time.Time
	end   time.Time
}

// NewWindow creates the window [start, end) for an evaluation window that
// begins at evalStart.
func NewWindow(start, end, evalStart time.Time) (Window, error) {
	if !start.Before(end) {
		return Window{}, fmt.Errorf("%w: [%s, %s)", ErrInvalidWindow, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	if end.After(evalStart) {
		return Window{}, fmt.Errorf("%w: window ends %s, evaluation starts %s", ErrLookAhead,
			end.Format("2006-01-02"), evalStart.Format("2006-01-02"))
	}
	return Window{start: start, end: end}, nil
}

func (w Window) Start() time.Time {
	return w.start
}

func (w Window) End() time.Time {
	return w.end
}

// Contains reports whether start <= t < end
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.start) && t.Before(w.end)
}

func (w Window) IsZero() bool {
	return w.start.IsZero() && w.end.IsZero()
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.start.Format("2006-01-02"), w.end.Format("2006-01-02"))
}
