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
	"gonum.org/v1/gonum/stat"
)

const (
	tradingDaysPerYear = 252

	// daily returns with |r| at or beyond this bound are data-quality
	// outliers; they are excluded from statistics and counted, never
	// corrected in place
	outlierBound = 0.5

	// minimum clean daily returns before volatility and the ratios that
	// depend on it can be computed
	minCleanReturns = 150
)

// DrawDown describes a peak-to-trough decline. Begin is the date of the
// peak, End the date of the trough. LossPercent is a positive fraction of
// the peak value.
type DrawDown struct {
	Begin       time.Time `json:"begin"`
	End         time.Time `json:"end"`
	LossPercent float64   `json:"lossPercent"`
}

// RiskMetrics holds the volatility/drawdown/ratio battery for a single
// fund. Volatility and Alpha are annualized percentages, MaxDrawDown is a
// fraction of the peak value. Any metric the data cannot support is
// absent.
type RiskMetrics struct {
	Volatility  Value     `json:"volatility"`
	MaxDrawDown Value     `json:"maxDrawDown"`
	DrawDown    *DrawDown `json:"drawDown,omitempty"`
	Sharpe      Value     `json:"sharpe"`
	Sortino     Value     `json:"sortino"`
	Calmar      Value     `json:"calmar"`
	Beta        Value     `json:"beta"`
	Alpha       Value     `json:"alpha"`

	CleanReturns int `json:"cleanReturns"`
	Outliers     int `json:"outliers"`
}

type dailyReturn struct {
	date time.Time
	r    float64
}

// dailyReturns derives clean daily returns from consecutive NAV pairs,
// excluding outliers and counting them.
func dailyReturns(series *data.NavSeries) (returns []dailyReturn, outliers int) {
	obs := series.Observations
	if len(obs) < 2 {
		return nil, 0
	}

	returns = make([]dailyReturn, 0, len(obs)-1)
	for i := 1; i < len(obs); i++ {
		r := (obs[i].Nav - obs[i-1].Nav) / obs[i-1].Nav
		if math.Abs(r) >= outlierBound {
			outliers++
			continue
		}
		returns = append(returns, dailyReturn{date: obs[i].Date, r: r})
	}
	return returns, outliers
}

// MaxDrawDownSeries walks a value series tracking the running peak and
// returns the deepest peak-to-trough decline. Used for both NAV series and
// realized backtest value series.
func MaxDrawDownSeries(dates []time.Time, values []float64) *DrawDown {
	if len(values) < 2 {
		return nil
	}

	peak := values[0]
	peakDate := dates[0]

	var maxDD *DrawDown
	for i := 1; i < len(values); i++ {
		if values[i] > peak {
			peak = values[i]
			peakDate = dates[i]
			continue
		}
		dd := (peak - values[i]) / peak
		if maxDD == nil || dd > maxDD.LossPercent {
			maxDD = &DrawDown{
				Begin:       peakDate,
				End:         dates[i],
				LossPercent: dd,
			}
		}
	}
	return maxDD
}

// ComputeRiskMetrics derives the full risk battery from a NAV series.
// benchmark may be nil, in which case beta and alpha are absent.
// riskFreeRate is the annual risk-free rate as a fraction (e.g. 0.065).
func ComputeRiskMetrics(series *data.NavSeries, benchmark *data.NavSeries, riskFreeRate float64) *RiskMetrics {
	m := &RiskMetrics{}

	rets, outliers := dailyReturns(series)
	m.Outliers = outliers
	m.CleanReturns = len(rets)

	// maximum drawdown only needs the observation walk, not the return
	// minimums
	dates := make([]time.Time, len(series.Observations))
	values := make([]float64, len(series.Observations))
	for i, obs := range series.Observations {
		dates[i] = obs.Date
		values[i] = obs.Nav
	}
	if dd := MaxDrawDownSeries(dates, values); dd != nil {
		m.DrawDown = dd
		m.MaxDrawDown = Finite(dd.LossPercent)
	}

	if len(rets) < minCleanReturns {
		return m
	}

	rs := make([]float64, len(rets))
	for i, dr := range rets {
		rs[i] = dr.r
	}

	// ratios are computed on fractional terms; Volatility and Alpha are
	// reported as percentages
	vol := stat.StdDev(rs, nil) * math.Sqrt(tradingDaysPerYear)
	m.Volatility = Finite(vol * 100)

	annualizedMean := stat.Mean(rs, nil) * tradingDaysPerYear

	if vol > 0 {
		m.Sharpe = Finite((annualizedMean - riskFreeRate) / vol)
	}

	downside := 0.0
	for _, r := range rs {
		if r < 0 {
			downside += r * r // much faster than math.Pow
		}
	}
	downsideDeviation := math.Sqrt(downside/float64(len(rs))) * math.Sqrt(tradingDaysPerYear)
	if downsideDeviation > 0 {
		m.Sortino = Finite((annualizedMean - riskFreeRate) / downsideDeviation)
	}

	if m.MaxDrawDown.Valid && m.MaxDrawDown.Float64 > 0 {
		first := series.Observations[0]
		last := series.Observations[len(series.Observations)-1]
		years := last.Date.Sub(first.Date).Hours() / (24 * 365.25)
		if years > 0 {
			cagr := math.Pow(last.Nav/first.Nav, 1/years) - 1
			m.Calmar = Finite(cagr / m.MaxDrawDown.Float64)
		}
	}

	if benchmark != nil {
		m.Beta, m.Alpha = betaAlpha(rets, benchmark)
	}

	return m
}

// betaAlpha aligns fund and benchmark daily returns by date and computes
// CAPM beta and annualized alpha. Absent when benchmark coverage is
// insufficient.
func betaAlpha(fundReturns []dailyReturn, benchmark *data.NavSeries) (beta, alpha Value) {
	benchRets, _ := dailyReturns(benchmark)
	benchByDate := make(map[time.Time]float64, len(benchRets))
	for _, dr := range benchRets {
		benchByDate[dr.date.Truncate(24*time.Hour)] = dr.r
	}

	fund := make([]float64, 0, len(fundReturns))
	bench := make([]float64, 0, len(fundReturns))
	for _, dr := range fundReturns {
		if b, ok := benchByDate[dr.date.Truncate(24*time.Hour)]; ok {
			fund = append(fund, dr.r)
			bench = append(bench, b)
		}
	}

	if len(fund) < minCleanReturns {
		return Absent(), Absent()
	}

	variance := stat.Variance(bench, nil)
	if variance == 0 {
		return Absent(), Absent()
	}

	b := stat.Covariance(fund, bench, nil) / variance
	a := (stat.Mean(fund, nil) - b*stat.Mean(bench, nil)) * tradingDaysPerYear
	return Finite(b), Finite(a * 100)
}
