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

package scoring

import (
	"time"

	"github.com/fundscope/fs-api/data"
	"github.com/fundscope/fs-api/metrics"
)

// ComputeScore evaluates a single fund as of scoreDate. It is a pure
// function of its inputs: the same fund, nav series, benchmark series and
// parameters always yield the same record. Peer placement and the
// recommendation are left zero; they are filled in by the pipeline once
// every fund in the universe has been scored.
func (p *Parameters) ComputeScore(fund *data.Fund, series *data.NavSeries, benchmark *data.NavSeries, scoreDate time.Time) *ScoreRecord {
	rec := &ScoreRecord{
		SchemeCode:    fund.SchemeCode,
		FundName:      fund.Name,
		Category:      fund.Category,
		Subcategory:   fund.Subcategory,
		ScoreDate:     scoreDate,
		ParamsVersion: p.Version(),
	}

	if series == nil || series.Len() == 0 {
		rec.addFlag(FlagNoNavData)
		fundamentals := p.ScoreFundamentals(fund, scoreDate)
		p.Compose(rec, fundamentals)
		return rec
	}

	rec.Return3M = metrics.Return(series, scoreDate, metrics.LookbackThreeMonth)
	rec.Return6M = metrics.Return(series, scoreDate, metrics.LookbackSixMonth)
	rec.Return1Y = metrics.Return(series, scoreDate, metrics.LookbackOneYear)
	rec.Return3Y = metrics.AnnualizedReturn(series, scoreDate, metrics.LookbackThreeYear)
	rec.Return5Y = metrics.AnnualizedReturn(series, scoreDate, metrics.LookbackFiveYear)
	rec.ReturnYTD = metrics.YTDReturn(series, scoreDate)

	riskWindow := series.Window(scoreDate.AddDate(0, 0, -p.RiskWindowDays), scoreDate)
	var benchWindow *data.NavSeries
	if benchmark != nil {
		benchWindow = benchmark.Window(scoreDate.AddDate(0, 0, -p.RiskWindowDays), scoreDate)
	}
	risk := metrics.ComputeRiskMetrics(riskWindow, benchWindow, p.RiskFreeRate)
	rec.Volatility = risk.Volatility
	rec.MaxDrawDown = risk.MaxDrawDown
	rec.Sharpe = risk.Sharpe
	rec.Sortino = risk.Sortino
	rec.Calmar = risk.Calmar
	rec.Beta = risk.Beta
	rec.Alpha = risk.Alpha
	rec.OutlierCount = risk.Outliers
	if risk.Outliers > 0 {
		rec.addFlag(FlagOutliers)
	}

	fundamentals := p.ScoreFundamentals(fund, scoreDate)
	p.Compose(rec, fundamentals)
	return rec
}
