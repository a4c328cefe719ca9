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

package metrics

import (
	"math"
	"time"

	"github.com/fundscope/fs-api/data"
)

// Standard lookback periods, expressed in calendar days
const (
	LookbackOneMonth   = 30
	LookbackThreeMonth = 91
	LookbackSixMonth   = 182
	LookbackOneYear    = 365
	LookbackThreeYear  = 1095
	LookbackFiveYear   = 1825
)

const (
	// tolerance around the lookback target date when locating the
	// starting NAV
	longTolerance  = 30 * 24 * time.Hour
	shortTolerance = 10 * 24 * time.Hour

	// minimum observation counts inside the lookback window; below these
	// a period return is absent, never a partial estimate
	longMinObservations  = 100
	shortMinObservations = 30

	ytdMinObservations = 10
)

func toleranceFor(lookbackDays int) time.Duration {
	if lookbackDays >= 360 {
		return longTolerance
	}
	return shortTolerance
}

func minObservationsFor(lookbackDays int) int {
	if lookbackDays >= 360 {
		return longMinObservations
	}
	return shortMinObservations
}

// Return computes the percentage return over the given lookback ending at
// asOf. The starting NAV is the observation nearest to asOf − lookback
// within the period's tolerance window; when no observation qualifies, or
// the window holds too few observations, the return is absent.
//
// The result depends only on the series and asOf, so recomputation for the
// same inputs is bit-for-bit reproducible.
func Return(series *data.NavSeries, asOf time.Time, lookbackDays int) Value {
	endObs, ok := series.OnOrBefore(asOf)
	if !ok || asOf.Sub(endObs.Date) > shortTolerance {
		return Absent()
	}

	target := asOf.AddDate(0, 0, -lookbackDays)
	startObs, ok := series.Nearest(target, toleranceFor(lookbackDays))
	if !ok || !startObs.Date.Before(endObs.Date) {
		return Absent()
	}

	if series.CountBetween(startObs.Date, endObs.Date) < minObservationsFor(lookbackDays) {
		return Absent()
	}

	return Finite((endObs.Nav - startObs.Nav) / startObs.Nav * 100)
}

// AnnualizedReturn computes the annualized percentage return for lookbacks
// of a year or more: (1 + r)^(365/actualDays) − 1. Shorter lookbacks are
// reported un-annualized.
func AnnualizedReturn(series *data.NavSeries, asOf time.Time, lookbackDays int) Value {
	total := Return(series, asOf, lookbackDays)
	if !total.Valid || lookbackDays < 360 {
		return total
	}

	endObs, _ := series.OnOrBefore(asOf)
	target := asOf.AddDate(0, 0, -lookbackDays)
	startObs, _ := series.Nearest(target, toleranceFor(lookbackDays))

	actualDays := endObs.Date.Sub(startObs.Date).Hours() / 24
	if actualDays <= 0 {
		return Absent()
	}

	rate := math.Pow(1+total.Float64/100, 365/actualDays) - 1
	return Finite(rate * 100)
}

// YTDReturn computes the return since the start of asOf's calendar year
func YTDReturn(series *data.NavSeries, asOf time.Time) Value {
	endObs, ok := series.OnOrBefore(asOf)
	if !ok || asOf.Sub(endObs.Date) > shortTolerance {
		return Absent()
	}

	anchor := time.Date(asOf.Year(), time.January, 1, 0, 0, 0, 0, asOf.Location())
	startObs, ok := series.Nearest(anchor, shortTolerance)
	if !ok || !startObs.Date.Before(endObs.Date) {
		return Absent()
	}

	if series.CountBetween(startObs.Date, endObs.Date) < ytdMinObservations {
		return Absent()
	}

	return Finite((endObs.Nav - startObs.Nav) / startObs.Nav * 100)
}
