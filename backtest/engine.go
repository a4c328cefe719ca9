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

package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/fundscope/fs-api/data"
	"github.com/fundscope/fs-api/metrics"
	"github.com/fundscope/fs-api/observability/opentelemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gonum.org/v1/gonum/stat"
)

const (
	// weightTolerance is the allowed deviation of the allocation weight
	// sum from 1.0
	weightTolerance = 1e-6

	// maxNavGapDays bounds how stale a nav may be when marking the
	// portfolio; a wider gap means the fund stopped publishing and the
	// run cannot be trusted
	maxNavGapDays = 7
)

// SeriesSource supplies fund metadata and price history to the engine.
// data.Manager satisfies it in production.
type SeriesSource interface {
	Fund(ctx context.Context, schemeCode string) (*data.Fund, error)
	NavSeries(ctx context.Context, schemeCodes []string, begin, end time.Time) (map[string]*data.NavSeries, error)
	BenchmarkSeries(ctx context.Context, name string, begin, end time.Time) (*data.NavSeries, error)
}

// Engine runs backtests against a series source.
type Engine struct {
	source SeriesSource
}

func NewEngine(source SeriesSource) *Engine {
	return &Engine{source: source}
}

// Validate checks a request for conditions that can never produce a valid
// run. It does not touch price history; data problems surface later as a
// FAILED result.
func (e *Engine) Validate(ctx context.Context, req *Request) error {
	if len(req.Allocations) == 0 {
		return &ValidationError{Reason: "at least one allocation is required"}
	}
	seen := make(map[string]bool, len(req.Allocations))
	sum := 0.0
	for _, alloc := range req.Allocations {
		if alloc.SchemeCode == "" {
			return &ValidationError{Reason: "allocation is missing a scheme code"}
		}
		if seen[alloc.SchemeCode] {
			return &ValidationError{Reason: fmt.Sprintf("scheme code %s appears more than once", alloc.SchemeCode)}
		}
		seen[alloc.SchemeCode] = true
		if alloc.Weight < 0 {
			return &ValidationError{Reason: fmt.Sprintf("scheme code %s has a negative weight", alloc.SchemeCode)}
		}
		sum += alloc.Weight
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return &ValidationError{Reason: fmt.Sprintf("allocation weights sum to %f, expected 1.0", sum)}
	}
	if !req.StartDate.Before(req.EndDate) {
		return &ValidationError{Reason: "start date must precede end date"}
	}
	if req.InitialAmount <= 0 {
		return &ValidationError{Reason: "initial amount must be positive"}
	}
	if _, err := ParseCadence(string(req.Cadence)); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	for code := range seen {
		if _, err := e.source.Fund(ctx, code); err != nil {
			if errors.Is(err, data.ErrNotFound) {
				return &ValidationError{Reason: fmt.Sprintf("unknown scheme code %s", code)}
			}
			return err
		}
	}
	return nil
}

// Run executes a backtest. A request error returns a ValidationError; a
// data problem over a valid request, a nav gap wider than a week for
// instance, returns a Result with Status FAILED and a failure reason.
func (e *Engine) Run(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "backtest.Engine.Run")
	defer span.End()

	if err := e.Validate(ctx, req); err != nil {
		return nil, err
	}

	res := &Result{
		ID:         uuid.New(),
		Request:    *req,
		Status:     StatusInitialized,
		ComputedOn: time.Now(),
	}
	subLog := log.With().Str("BacktestID", res.ID.String()).Logger()

	codes := make([]string, 0, len(req.Allocations))
	for _, alloc := range req.Allocations {
		codes = append(codes, alloc.SchemeCode)
	}
	// slack before the start date lets the first valuation fall back to
	// the most recent published nav
	begin := req.StartDate.AddDate(0, 0, -maxNavGapDays)
	series, err := e.source.NavSeries(ctx, codes, begin, req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("load nav history: %w", err)
	}
	slack := maxNavGapDays * 24 * time.Hour
	for _, code := range codes {
		if s := series[code]; s == nil || !s.Covers(req.StartDate, req.EndDate, slack) {
			return nil, &ValidationError{Reason: fmt.Sprintf(
				"nav history for %s does not cover %s to %s", code,
				req.StartDate.Format("2006-01-02"), req.EndDate.Format("2006-01-02"))}
		}
	}

	events := e.eventDates(req)
	units := make(map[string]float64, len(req.Allocations))

	// attribution accumulates weight at segment start times the fund's
	// return over the segment
	attribution := make(map[string]float64, len(req.Allocations))
	segStartNav := make(map[string]float64, len(req.Allocations))
	segStartWeight := make(map[string]float64, len(req.Allocations))

	var failure string
	value := req.InitialAmount

	for idx, event := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		navs := make(map[string]float64, len(codes))
		for _, code := range codes {
			nav, ok := e.navAt(series[code], event.Date)
			if !ok {
				failure = fmt.Sprintf("no nav for %s within %d days of %s",
					code, maxNavGapDays, event.Date.Format("2006-01-02"))
				break
			}
			navs[code] = nav
		}
		if failure != "" {
			break
		}

		if idx == 0 {
			// initial purchase
			for _, alloc := range req.Allocations {
				units[alloc.SchemeCode] = req.InitialAmount * alloc.Weight / navs[alloc.SchemeCode]
				segStartNav[alloc.SchemeCode] = navs[alloc.SchemeCode]
				segStartWeight[alloc.SchemeCode] = alloc.Weight
			}
			res.Events = append(res.Events, EventValue{Date: event.Date, Value: req.InitialAmount, Rebalance: true})
			continue
		}

		value = 0
		for code, u := range units {
			value += u * navs[code]
		}
		res.Status = StatusValued

		last := idx == len(events)-1
		if event.Rebalance || last {
			// close the attribution segment at every weight reset and at
			// the end of the run
			for code, startNav := range segStartNav {
				attribution[code] += segStartWeight[code] * (navs[code]/startNav - 1) * 100
			}
		}
		if event.Rebalance && !last {
			res.Status = StatusRebalancing
			for _, alloc := range req.Allocations {
				units[alloc.SchemeCode] = value * alloc.Weight / navs[alloc.SchemeCode]
				segStartNav[alloc.SchemeCode] = navs[alloc.SchemeCode]
				segStartWeight[alloc.SchemeCode] = alloc.Weight
			}
		}

		res.Events = append(res.Events, EventValue{Date: event.Date, Value: value, Rebalance: event.Rebalance})
	}

	if failure != "" {
		res.Status = StatusFailed
		res.FailureReason = failure
		subLog.Warn().Str("Reason", failure).Msg("backtest failed")
		return res, nil
	}

	res.FinalValue = value
	res.Attribution = attribution
	e.computeMetrics(ctx, req, res)
	res.Status = StatusCompleted
	subLog.Info().
		Time("StartDate", req.StartDate).
		Time("EndDate", req.EndDate).
		Float64("FinalValue", res.FinalValue).
		Msg("backtest completed")
	return res, nil
}

type eventDate struct {
	Date      time.Time
	Rebalance bool
}

// eventDates builds the ordered valuation schedule: the start date, a
// monthly sampling grid, rebalance dates per the cadence, and the end
// date. Sampling is decoupled from rebalancing so a cadence of none still
// yields a realized value series.
func (e *Engine) eventDates(req *Request) []eventDate {
	dates := make(map[time.Time]bool) // date -> isRebalance

	for d := req.StartDate.AddDate(0, 1, 0); d.Before(req.EndDate); d = d.AddDate(0, 1, 0) {
		dates[d] = false
	}
	if req.Cadence != CadenceNone {
		for d := req.Cadence.step(req.StartDate); d.Before(req.EndDate); d = req.Cadence.step(d) {
			dates[d] = true
		}
	}
	dates[req.EndDate] = false

	events := make([]eventDate, 0, len(dates)+1)
	events = append(events, eventDate{Date: req.StartDate, Rebalance: true})
	for d, rebal := range dates {
		if d.Equal(req.StartDate) {
			continue
		}
		events = append(events, eventDate{Date: d, Rebalance: rebal})
	}
	sort.Slice(events, func(a, b int) bool {
		return events[a].Date.Before(events[b].Date)
	})
	return events
}

// navAt resolves the portfolio-marking nav for a date: the most recent
// published nav no older than maxNavGapDays.
func (e *Engine) navAt(series *data.NavSeries, date time.Time) (float64, bool) {
	if series == nil {
		return 0, false
	}
	obs, ok := series.OnOrBefore(date)
	if !ok {
		return 0, false
	}
	if date.Sub(obs.Date) > maxNavGapDays*24*time.Hour {
		return 0, false
	}
	return obs.Nav, true
}

// computeMetrics derives the summary statistics from the realized value
// series. Every statistic comes from the series the run actually
// produced; nothing is assumed from the request.
func (e *Engine) computeMetrics(ctx context.Context, req *Request, res *Result) {
	res.TotalReturn = metrics.Finite((res.FinalValue/req.InitialAmount - 1) * 100)

	days := req.EndDate.Sub(req.StartDate).Hours() / 24
	if days >= 360 && res.TotalReturn.Valid {
		growth := res.FinalValue / req.InitialAmount
		res.AnnualizedReturn = metrics.Finite((math.Pow(growth, 365/days) - 1) * 100)
	}

	n := len(res.Events)
	if n < 3 {
		return
	}
	dates := make([]time.Time, n)
	values := make([]float64, n)
	for ii, ev := range res.Events {
		dates[ii] = ev.Date
		values[ii] = ev.Value
	}

	if dd := metrics.MaxDrawDownSeries(dates, values); dd != nil {
		res.DrawDown = dd
		res.MaxDrawDown = metrics.Present(dd.LossPercent)
	} else {
		res.MaxDrawDown = metrics.Present(0)
	}

	rets := make([]float64, 0, n-1)
	for ii := 1; ii < n; ii++ {
		rets = append(rets, values[ii]/values[ii-1]-1)
	}
	// annualize by the observed sampling interval rather than assuming a
	// monthly grid
	avgGap := days / float64(n-1)
	periodsPerYear := 365.25 / avgGap
	res.Volatility = metrics.Finite(stat.StdDev(rets, nil) * math.Sqrt(periodsPerYear) * 100)

	e.benchmarkMetrics(ctx, req, res, dates, rets, periodsPerYear)
}

// benchmarkMetrics fills the relative statistics when the request names a
// benchmark. A benchmark that cannot be loaded, or that does not cover
// the run, leaves them absent.
func (e *Engine) benchmarkMetrics(ctx context.Context, req *Request, res *Result, dates []time.Time, portfolioRets []float64, periodsPerYear float64) {
	if req.BenchmarkName == "" {
		return
	}
	begin := req.StartDate.AddDate(0, 0, -maxNavGapDays)
	bench, err := e.source.BenchmarkSeries(ctx, req.BenchmarkName, begin, req.EndDate)
	if err != nil {
		log.Warn().Err(err).Str("Benchmark", req.BenchmarkName).Msg("benchmark history unavailable")
		return
	}

	benchValues := make([]float64, 0, len(dates))
	for _, d := range dates {
		nav, ok := e.navAt(bench, d)
		if !ok {
			log.Warn().Str("Benchmark", req.BenchmarkName).Time("Date", d).Msg("benchmark does not cover backtest period")
			return
		}
		benchValues = append(benchValues, nav)
	}

	res.BenchmarkReturn = metrics.Finite((benchValues[len(benchValues)-1]/benchValues[0] - 1) * 100)
	if res.TotalReturn.Valid && res.BenchmarkReturn.Valid {
		res.ExcessReturn = metrics.Present(res.TotalReturn.Float64 - res.BenchmarkReturn.Float64)
	}

	active := make([]float64, 0, len(portfolioRets))
	for ii := 1; ii < len(benchValues); ii++ {
		benchRet := benchValues[ii]/benchValues[ii-1] - 1
		active = append(active, portfolioRets[ii-1]-benchRet)
	}
	if len(active) >= 2 {
		res.TrackingError = metrics.Finite(stat.StdDev(active, nil) * math.Sqrt(periodsPerYear) * 100)
	}
}
