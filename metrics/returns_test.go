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

package metrics_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fundscope/fs-api/data"
	"github.com/fundscope/fs-api/metrics"
)

// dailySeries builds a series with one observation per calendar day
// starting at start; nav for day i is navFor(i).
func dailySeries(start time.Time, days int, navFor func(i int) float64) *data.NavSeries {
	obs := make([]data.NavObservation, 0, days)
	for i := 0; i < days; i++ {
		obs = append(obs, data.NavObservation{
			Date: start.AddDate(0, 0, i),
			Nav:  navFor(i),
		})
	}
	return data.NewNavSeries(obs)
}

var _ = Describe("Period returns", func() {
	var (
		start time.Time
		asOf  time.Time
	)

	BeforeEach(func() {
		start = time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
		asOf = start.AddDate(0, 0, 365)
	})

	Describe("when a full year of history exists", func() {
		var series *data.NavSeries

		BeforeEach(func() {
			// nav rises linearly from 100 to 120 over exactly one year
			series = dailySeries(start, 366, func(i int) float64 {
				return 100 + 20*float64(i)/365
			})
		})

		It("should compute the one year return", func() {
			ret := metrics.Return(series, asOf, metrics.LookbackOneYear)
			Expect(ret.Valid).To(BeTrue())
			Expect(ret.Float64).Should(BeNumerically("~", 20.0, 1e-9))
		})

		It("should be deterministic across recomputation", func() {
			first := metrics.Return(series, asOf, metrics.LookbackOneYear)
			second := metrics.Return(series, asOf, metrics.LookbackOneYear)
			Expect(first).To(Equal(second))
		})

		It("should compute the three month return from the nearest start", func() {
			ret := metrics.Return(series, asOf, metrics.LookbackThreeMonth)
			Expect(ret.Valid).To(BeTrue())
			// 91 days of a 20/365-per-day climb off a base near 115
			Expect(ret.Float64).Should(BeNumerically(">", 0))
			Expect(ret.Float64).Should(BeNumerically("<", 20))
		})

		It("should match the total return when annualizing exactly one year", func() {
			total := metrics.Return(series, asOf, metrics.LookbackOneYear)
			annualized := metrics.AnnualizedReturn(series, asOf, metrics.LookbackOneYear)
			Expect(annualized.Valid).To(BeTrue())
			Expect(annualized.Float64).Should(BeNumerically("~", total.Float64, 0.01))
		})
	})

	Describe("when history is too sparse", func() {
		It("should be absent with too few observations in the window", func() {
			// weekly observations only; a year holds ~52, below the minimum
			obs := make([]data.NavObservation, 0, 53)
			for i := 0; i < 53; i++ {
				obs = append(obs, data.NavObservation{Date: start.AddDate(0, 0, i*7), Nav: 100 + float64(i)})
			}
			series := data.NewNavSeries(obs)
			ret := metrics.Return(series, asOf, metrics.LookbackOneYear)
			Expect(ret.Valid).To(BeFalse())
		})

		It("should be absent when no start observation is inside the tolerance", func() {
			// series begins ten months after the lookback target
			series := dailySeries(start.AddDate(0, 10, 0), 100, func(i int) float64 { return 100 })
			ret := metrics.Return(series, asOf, metrics.LookbackOneYear)
			Expect(ret.Valid).To(BeFalse())
		})

		It("should be absent when the series ended long before asOf", func() {
			series := dailySeries(start, 200, func(i int) float64 { return 100 })
			ret := metrics.Return(series, asOf, metrics.LookbackThreeMonth)
			Expect(ret.Valid).To(BeFalse())
		})

		It("should be absent for an empty series", func() {
			series := data.NewNavSeries(nil)
			ret := metrics.Return(series, asOf, metrics.LookbackOneYear)
			Expect(ret.Valid).To(BeFalse())
		})
	})

	Describe("when annualizing multi-year returns", func() {
		It("should geometrically annualize a three year return", func() {
			// 33.1% over three years is 10% per year compounded
			days := 365 * 3
			series := dailySeries(start, days+1, func(i int) float64 {
				frac := float64(i) / float64(days)
				return 100 * (1 + 0.331*frac)
			})
			ret := metrics.AnnualizedReturn(series, start.AddDate(0, 0, days), metrics.LookbackThreeYear)
			Expect(ret.Valid).To(BeTrue())
			Expect(ret.Float64).Should(BeNumerically("~", 10.0, 0.1))
		})
	})

	Describe("when computing year to date", func() {
		It("should anchor at the start of the calendar year", func() {
			jan1 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
			series := dailySeries(jan1, 120, func(i int) float64 { return 100 + float64(i)*0.1 })
			ret := metrics.YTDReturn(series, jan1.AddDate(0, 0, 119))
			Expect(ret.Valid).To(BeTrue())
			Expect(ret.Float64).Should(BeNumerically("~", 11.9, 1e-9))
		})

		It("should be absent when the year has too few observations", func() {
			jan1 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
			series := dailySeries(jan1, 5, func(i int) float64 { return 100 })
			ret := metrics.YTDReturn(series, jan1.AddDate(0, 0, 4))
			Expect(ret.Valid).To(BeFalse())
		})
	})
})
