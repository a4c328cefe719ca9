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

package backtest_test

import (
	"context"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fundscope/fs-api/backtest"
	"github.com/fundscope/fs-api/data"
)

// fakeSource is an in-memory SeriesSource
type fakeSource struct {
	funds      map[string]*data.Fund
	series     map[string]*data.NavSeries
	benchmarks map[string]*data.NavSeries
}

func (s *fakeSource) Fund(_ context.Context, schemeCode string) (*data.Fund, error) {
	if f, ok := s.funds[schemeCode]; ok {
		return f, nil
	}
	return nil, data.ErrNotFound
}

func (s *fakeSource) NavSeries(_ context.Context, schemeCodes []string, begin, end time.Time) (map[string]*data.NavSeries, error) {
	out := make(map[string]*data.NavSeries, len(schemeCodes))
	for _, code := range schemeCodes {
		if series, ok := s.series[code]; ok {
			out[code] = series.Window(begin, end)
		} else {
			out[code] = data.NewNavSeries(nil)
		}
	}
	return out, nil
}

func (s *fakeSource) BenchmarkSeries(_ context.Context, name string, begin, end time.Time) (*data.NavSeries, error) {
	if series, ok := s.benchmarks[name]; ok {
		return series.Window(begin, end), nil
	}
	return nil, data.ErrNotFound
}

// compoundSeries builds a daily series compounding at dailyRet
func compoundSeries(start time.Time, days int, dailyRet float64) *data.NavSeries {
	obs := make([]data.NavObservation, 0, days)
	nav := 100.0
	for i := 0; i < days; i++ {
		obs = append(obs, data.NavObservation{Date: start.AddDate(0, 0, i), Nav: nav})
		nav *= 1 + dailyRet
	}
	return data.NewNavSeries(obs)
}

var _ = Describe("Engine", func() {
	var (
		source *fakeSource
		engine *backtest.Engine
		start  time.Time
		end    time.Time
		days   int
	)

	BeforeEach(func() {
		start = time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
		end = time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC)
		days = int(end.Sub(start).Hours()/24) + 10

		source = &fakeSource{
			funds: map[string]*data.Fund{
				"100001": {SchemeCode: "100001", Name: "Growth Fund"},
				"100002": {SchemeCode: "100002", Name: "Liquid Fund"},
			},
			series: map[string]*data.NavSeries{
				"100001": compoundSeries(start.AddDate(0, 0, -10), days+10, 0.002),
				"100002": compoundSeries(start.AddDate(0, 0, -10), days+10, 0),
			},
			benchmarks: map[string]*data.NavSeries{
				"NIFTY 50": compoundSeries(start.AddDate(0, 0, -10), days+10, 0.002),
			},
		}
		engine = backtest.NewEngine(source)
	})

	Describe("when validating requests", func() {
		request := func(mutate func(*backtest.Request)) *backtest.Request {
			req := &backtest.Request{
				Allocations: []backtest.Allocation{
					{SchemeCode: "100001", Weight: 0.5},
					{SchemeCode: "100002", Weight: 0.5},
				},
				StartDate:     start,
				EndDate:       end,
				InitialAmount: 100_000,
				Cadence:       backtest.CadenceQuarterly,
			}
			if mutate != nil {
				mutate(req)
			}
			return req
		}

		It("should accept a well-formed request", func() {
			Expect(engine.Validate(context.Background(), request(nil))).To(BeNil())
		})

		DescribeTable("should reject malformed requests",
			func(mutate func(*backtest.Request)) {
				err := engine.Validate(context.Background(), request(mutate))
				var vErr *backtest.ValidationError
				Expect(err).To(BeAssignableToTypeOf(vErr))
			},
			Entry("no allocations", func(r *backtest.Request) { r.Allocations = nil }),
			Entry("weights not summing to one", func(r *backtest.Request) { r.Allocations[0].Weight = 0.6 }),
			Entry("negative weight", func(r *backtest.Request) {
				r.Allocations[0].Weight = -0.5
				r.Allocations[1].Weight = 1.5
			}),
			Entry("duplicate scheme code", func(r *backtest.Request) { r.Allocations[1].SchemeCode = "100001" }),
			Entry("unknown scheme code", func(r *backtest.Request) { r.Allocations[0].SchemeCode = "999999" }),
			Entry("start after end", func(r *backtest.Request) { r.StartDate = end.AddDate(1, 0, 0) }),
			Entry("non-positive amount", func(r *backtest.Request) { r.InitialAmount = 0 }),
			Entry("bad cadence", func(r *backtest.Request) { r.Cadence = backtest.Cadence("fortnightly") }),
		)
	})

	Describe("when running a single fund portfolio", func() {
		It("should reproduce the fund's nav return", func() {
			req := &backtest.Request{
				Allocations:   []backtest.Allocation{{SchemeCode: "100001", Weight: 1.0}},
				StartDate:     start,
				EndDate:       end,
				InitialAmount: 100_000,
				Cadence:       backtest.CadenceNone,
			}
			res, err := engine.Run(context.Background(), req)
			Expect(err).To(BeNil())
			Expect(res.Status).To(Equal(backtest.StatusCompleted))

			series := source.series["100001"]
			startObs, _ := series.OnOrBefore(start)
			endObs, _ := series.OnOrBefore(end)
			expected := (endObs.Nav/startObs.Nav - 1) * 100

			Expect(res.TotalReturn.Valid).To(BeTrue())
			Expect(res.TotalReturn.Float64).Should(BeNumerically("~", expected, 1e-9))
			Expect(res.AnnualizedReturn.Valid).To(BeTrue())
		})

		It("should attribute the whole return to the single fund", func() {
			req := &backtest.Request{
				Allocations:   []backtest.Allocation{{SchemeCode: "100001", Weight: 1.0}},
				StartDate:     start,
				EndDate:       end,
				InitialAmount: 100_000,
				Cadence:       backtest.CadenceNone,
			}
			res, err := engine.Run(context.Background(), req)
			Expect(err).To(BeNil())
			Expect(res.Attribution["100001"]).Should(BeNumerically("~", res.TotalReturn.Float64, 1e-6))
		})

		It("should produce a realized value series with monthly samples", func() {
			req := &backtest.Request{
				Allocations:   []backtest.Allocation{{SchemeCode: "100001", Weight: 1.0}},
				StartDate:     start,
				EndDate:       end,
				InitialAmount: 100_000,
				Cadence:       backtest.CadenceNone,
			}
			res, err := engine.Run(context.Background(), req)
			Expect(err).To(BeNil())
			// two years of monthly samples plus start and end
			Expect(len(res.Events)).Should(BeNumerically(">=", 24))
			Expect(res.Events[0].Value).To(Equal(100_000.0))
			Expect(res.Events[len(res.Events)-1].Value).To(Equal(res.FinalValue))
			Expect(res.Volatility.Valid).To(BeTrue())
		})
	})

	Describe("when rebalancing", func() {
		req := func(cadence backtest.Cadence) *backtest.Request {
			return &backtest.Request{
				Allocations: []backtest.Allocation{
					{SchemeCode: "100001", Weight: 0.5},
					{SchemeCode: "100002", Weight: 0.5},
				},
				StartDate:     start,
				EndDate:       end,
				InitialAmount: 100_000,
				Cadence:       cadence,
			}
		}

		It("should mark rebalance events on the schedule", func() {
			res, err := engine.Run(context.Background(), req(backtest.CadenceQuarterly))
			Expect(err).To(BeNil())

			rebalances := 0
			for _, ev := range res.Events[1:] {
				if ev.Rebalance {
					rebalances++
				}
			}
			// two years of quarterly rebalances
			Expect(rebalances).To(Equal(7))
		})

		It("should trail buy-and-hold when selling a persistent winner", func() {
			hold, err := engine.Run(context.Background(), req(backtest.CadenceNone))
			Expect(err).To(BeNil())
			quarterly, err := engine.Run(context.Background(), req(backtest.CadenceQuarterly))
			Expect(err).To(BeNil())

			Expect(quarterly.FinalValue).Should(BeNumerically("<", hold.FinalValue))
			Expect(quarterly.FinalValue).Should(BeNumerically(">", 100_000))
		})

		It("should restore target weights at every rebalance event", func() {
			res, err := engine.Run(context.Background(), req(backtest.CadenceQuarterly))
			Expect(err).To(BeNil())
			Expect(res.Status).To(Equal(backtest.StatusCompleted))

			navOn := func(code string, d time.Time) float64 {
				obs, ok := source.series[code].OnOrBefore(d)
				Expect(ok).To(BeTrue())
				return obs.Nav
			}

			// replay the event series holding half the value in each fund
			// after every rebalance; the engine's values must track it
			units := map[string]float64{}
			expected := 100_000.0
			for _, ev := range res.Events {
				growthNav := navOn("100001", ev.Date)
				flatNav := navOn("100002", ev.Date)
				if len(units) > 0 {
					expected = units["100001"]*growthNav + units["100002"]*flatNav
				}
				Expect(ev.Value).To(BeNumerically("~", expected, expected*1e-9))
				if ev.Rebalance {
					units["100001"] = expected * 0.5 / growthNav
					units["100002"] = expected * 0.5 / flatNav
				}
			}
		})

		It("should stay near the weighted average for offsetting funds", func() {
			// fund A gains 10% and fund B loses 10% over one year; the
			// 50/50 weighted average is zero and quarterly rebalancing
			// drifts from it by well under a percentage point
			oneYear := start.AddDate(1, 0, 0)
			up := math.Pow(1.10, 1.0/365) - 1
			down := math.Pow(0.90, 1.0/365) - 1
			source.series["100001"] = compoundSeries(start.AddDate(0, 0, -10), 365+20, up)
			source.series["100002"] = compoundSeries(start.AddDate(0, 0, -10), 365+20, down)

			request := req(backtest.CadenceQuarterly)
			request.EndDate = oneYear
			res, err := engine.Run(context.Background(), request)
			Expect(err).To(BeNil())
			Expect(res.Status).To(Equal(backtest.StatusCompleted))
			Expect(res.TotalReturn.Valid).To(BeTrue())
			Expect(res.TotalReturn.Float64).To(BeNumerically("~", 0.0, 1.0))
		})
	})

	Describe("when comparing against a benchmark", func() {
		It("should show near-zero excess return for a portfolio tracking its benchmark", func() {
			req := &backtest.Request{
				Allocations:   []backtest.Allocation{{SchemeCode: "100001", Weight: 1.0}},
				StartDate:     start,
				EndDate:       end,
				InitialAmount: 100_000,
				Cadence:       backtest.CadenceNone,
				BenchmarkName: "NIFTY 50",
			}
			res, err := engine.Run(context.Background(), req)
			Expect(err).To(BeNil())

			Expect(res.BenchmarkReturn.Valid).To(BeTrue())
			Expect(res.ExcessReturn.Valid).To(BeTrue())
			Expect(res.ExcessReturn.Float64).Should(BeNumerically("~", 0.0, 1e-6))
			Expect(res.TrackingError.Valid).To(BeTrue())
			Expect(res.TrackingError.Float64).Should(BeNumerically("~", 0.0, 1e-6))
		})

		It("should leave relative metrics absent for an unknown benchmark", func() {
			req := &backtest.Request{
				Allocations:   []backtest.Allocation{{SchemeCode: "100001", Weight: 1.0}},
				StartDate:     start,
				EndDate:       end,
				InitialAmount: 100_000,
				Cadence:       backtest.CadenceNone,
				BenchmarkName: "NO SUCH INDEX",
			}
			res, err := engine.Run(context.Background(), req)
			Expect(err).To(BeNil())
			Expect(res.BenchmarkReturn.Valid).To(BeFalse())
			Expect(res.ExcessReturn.Valid).To(BeFalse())
			Expect(res.TrackingError.Valid).To(BeFalse())
		})
	})

	Describe("when nav data is missing", func() {
		It("should reject a window the fund's history does not cover", func() {
			// fund stops publishing two months before the end date
			shortDays := int(end.Sub(start).Hours()/24) - 60
			source.series["100001"] = compoundSeries(start, shortDays, 0.002)

			req := &backtest.Request{
				Allocations:   []backtest.Allocation{{SchemeCode: "100001", Weight: 1.0}},
				StartDate:     start,
				EndDate:       end,
				InitialAmount: 100_000,
				Cadence:       backtest.CadenceNone,
			}
			res, err := engine.Run(context.Background(), req)
			Expect(res).To(BeNil())
			Expect(err).To(BeAssignableToTypeOf(&backtest.ValidationError{}))
			Expect(err.Error()).To(ContainSubstring("100001"))
		})

		It("should fail the run on a gap mid-run instead of inventing navs", func() {
			// a month-long publishing hole well inside the window; the
			// series still covers the full date range
			full := compoundSeries(start.AddDate(0, 0, -10), days+10, 0.002)
			gapBegin := start.AddDate(0, 0, 140)
			gapEnd := start.AddDate(0, 0, 170)
			kept := make([]data.NavObservation, 0, len(full.Observations))
			for _, obs := range full.Observations {
				if !obs.Date.Before(gapBegin) && !obs.Date.After(gapEnd) {
					continue
				}
				kept = append(kept, obs)
			}
			source.series["100001"] = data.NewNavSeries(kept)

			req := &backtest.Request{
				Allocations:   []backtest.Allocation{{SchemeCode: "100001", Weight: 1.0}},
				StartDate:     start,
				EndDate:       end,
				InitialAmount: 100_000,
				Cadence:       backtest.CadenceNone,
			}
			res, err := engine.Run(context.Background(), req)
			Expect(err).To(BeNil())
			Expect(res.Status).To(Equal(backtest.StatusFailed))
			Expect(res.FailureReason).To(ContainSubstring("100001"))
		})
	})

	Describe("when the context is cancelled", func() {
		It("should stop and surface the cancellation", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			req := &backtest.Request{
				Allocations:   []backtest.Allocation{{SchemeCode: "100001", Weight: 1.0}},
				StartDate:     start,
				EndDate:       end,
				InitialAmount: 100_000,
				Cadence:       backtest.CadenceNone,
			}
			_, err := engine.Run(ctx, req)
			Expect(err).To(Equal(context.Canceled))
		})
	})
})
