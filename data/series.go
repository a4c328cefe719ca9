// Copyright 2024-2025
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"sort"
	"time"
)

// NavObservation is a single published NAV for a fund. Observations are
// append-only upstream; the core only ever reads them.
type NavObservation struct {
	Date time.Time `json:"date"`
	Nav  float64   `json:"nav"`
}

// NavSeries is an ordered (ascending by date) sequence of NAV observations
// for a single fund or benchmark. Dates are unique within a series.
type NavSeries struct {
	Observations []NavObservation
}

// NewNavSeries builds a series from unordered observations. Observations
// with non-positive NAVs are discarded and duplicate dates keep the first
// value seen; the upstream feed guarantees both but a bad row must never
// reach the calculators.
func NewNavSeries(observations []NavObservation) *NavSeries {
	obs := make([]NavObservation, 0, len(observations))
	for _, o := range observations {
		if o.Nav > 0 {
			obs = append(obs, o)
		}
	}

	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Date.Before(obs[j].Date)
	})

	deduped := obs[:0]
	var prev time.Time
	for i, o := range obs {
		d := o.Date.Truncate(24 * time.Hour)
		if i > 0 && d.Equal(prev) {
			continue
		}
		prev = d
		deduped = append(deduped, o)
	}

	return &NavSeries{Observations: deduped}
}

func (s *NavSeries) Len() int {
	return len(s.Observations)
}

func (s *NavSeries) First() (NavObservation, bool) {
	if len(s.Observations) == 0 {
		return NavObservation{}, false
	}
	return s.Observations[0], true
}

func (s *NavSeries) Last() (NavObservation, bool) {
	if len(s.Observations) == 0 {
		return NavObservation{}, false
	}
	return s.Observations[len(s.Observations)-1], true
}

// OnOrBefore returns the latest observation dated on or before the given
// date.
func (s *NavSeries) OnOrBefore(date time.Time) (NavObservation, bool) {
	idx := sort.Search(len(s.Observations), func(i int) bool {
		return s.Observations[i].Date.After(date)
	})
	if idx == 0 {
		return NavObservation{}, false
	}
	return s.Observations[idx-1], true
}

// Nearest returns the observation closest to target within the given
// tolerance; ties favor the earlier observation.
func (s *NavSeries) Nearest(target time.Time, tolerance time.Duration) (NavObservation, bool) {
	if len(s.Observations) == 0 {
		return NavObservation{}, false
	}

	idx := sort.Search(len(s.Observations), func(i int) bool {
		return !s.Observations[i].Date.Before(target)
	})

	best := -1
	var bestDelta time.Duration
	for _, candidate := range []int{idx - 1, idx} {
		if candidate < 0 || candidate >= len(s.Observations) {
			continue
		}
		delta := s.Observations[candidate].Date.Sub(target)
		if delta < 0 {
			delta = -delta
		}
		if best == -1 || delta < bestDelta {
			best = candidate
			bestDelta = delta
		}
	}

	if best == -1 || bestDelta > tolerance {
		return NavObservation{}, false
	}
	return s.Observations[best], true
}

// Window returns the sub-series with begin <= date <= end. The returned
// series shares backing storage with the receiver.
func (s *NavSeries) Window(begin, end time.Time) *NavSeries {
	lo := sort.Search(len(s.Observations), func(i int) bool {
		return !s.Observations[i].Date.Before(begin)
	})
	hi := sort.Search(len(s.Observations), func(i int) bool {
		return s.Observations[i].Date.After(end)
	})
	return &NavSeries{Observations: s.Observations[lo:hi]}
}

// CountBetween returns the number of observations with begin <= date <= end.
func (s *NavSeries) CountBetween(begin, end time.Time) int {
	return len(s.Window(begin, end).Observations)
}

// Covers reports whether the series has observations both on-or-before
// begin+slack and on-or-after end-slack, i.e. whether the [begin,end]
// window is inside the series' coverage.
func (s *NavSeries) Covers(begin, end time.Time, slack time.Duration) bool {
	first, ok := s.First()
	if !ok {
		return false
	}
	last, ok := s.Last()
	if !ok {
		return false
	}
	return !first.Date.After(begin.Add(slack)) && !last.Date.Before(end.Add(-slack))
}
