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
	"github.com/fundscope/fs-api/metrics"
	"github.com/rs/zerolog/log"
)

// mapScore applies a banded table to a raw metric; an absent metric stays
// absent
func mapScore(raw metrics.Value, score func(float64) float64) metrics.Value {
	if !raw.Valid {
		return metrics.Absent()
	}
	return metrics.Present(score(raw.Float64))
}

// clampCategory bounds a category total to [0, max]. A clamp is a
// bounds-violation quality signal: it is logged and flagged on the record,
// never silently absorbed.
func clampCategory(rec *ScoreRecord, name string, total, max float64) float64 {
	if total < 0 || total > max {
		log.Warn().
			Str("SchemeCode", rec.SchemeCode).
			Str("Category", name).
			Float64("Total", total).
			Float64("Max", max).
			Msg("category total outside documented range; clamping")
		rec.addFlag(FlagBoundsViolation)
		if total < 0 {
			return 0
		}
		return max
	}
	return total
}

// Compose maps the record's raw metrics through the banded tables, sums
// the category totals under their caps, and sets the bounded total score
// and coverage fraction. Absent sub-scores contribute zero to the sum and
// reduce coverage; they are never replaced by a neutral midpoint.
func (p *Parameters) Compose(rec *ScoreRecord, fundamentals FundamentalScores) {
	floor := func(bands []Band) func(float64) float64 {
		return func(v float64) float64 { return scoreFloor(bands, v) }
	}
	ceiling := func(bands []Band) func(float64) float64 {
		return func(v float64) float64 { return scoreCeiling(bands, v) }
	}

	rec.Score3M = mapScore(rec.Return3M, floor(p.ReturnBands))
	rec.Score6M = mapScore(rec.Return6M, floor(p.ReturnBands))
	rec.Score1Y = mapScore(rec.Return1Y, floor(p.ReturnBands))
	rec.Score3Y = mapScore(rec.Return3Y, floor(p.ReturnBands))
	rec.Score5Y = mapScore(rec.Return5Y, floor(p.ReturnBands))

	rec.ScoreVolatility = mapScore(rec.Volatility, ceiling(p.VolatilityBands))
	rec.ScoreDrawDown = mapScore(rec.MaxDrawDown, ceiling(p.DrawDownBands))
	rec.ScoreSharpe = mapScore(rec.Sharpe, floor(p.SharpeBands))
	rec.ScoreSortino = mapScore(rec.Sortino, floor(p.SortinoBands))
	rec.ScoreCalmar = mapScore(rec.Calmar, floor(p.CalmarBands))

	rec.ScoreExpense = fundamentals.Expense
	rec.ScoreSize = fundamentals.Size
	rec.ScoreAge = fundamentals.Age

	rec.ScoreYTD = mapScore(rec.ReturnYTD, floor(p.YTDBands))
	rec.ScoreAlpha = mapScore(rec.Alpha, floor(p.AlphaBands))

	sum := func(vals ...metrics.Value) (total float64, present int) {
		for _, v := range vals {
			if v.Valid {
				total += v.Float64
				present++
			}
		}
		return total, present
	}

	historical, nHistorical := sum(rec.Score3M, rec.Score6M, rec.Score1Y, rec.Score3Y, rec.Score5Y)
	risk, nRisk := sum(rec.ScoreVolatility, rec.ScoreDrawDown, rec.ScoreSharpe, rec.ScoreSortino, rec.ScoreCalmar)
	fund, nFund := sum(rec.ScoreExpense, rec.ScoreSize, rec.ScoreAge)
	other, nOther := sum(rec.ScoreYTD, rec.ScoreAlpha)

	rec.HistoricalReturnsTotal = clampCategory(rec, "historical_returns", historical, p.MaxHistoricalReturns)
	rec.RiskGradeTotal = clampCategory(rec, "risk_grade", risk, p.MaxRiskGrade)
	rec.FundamentalsTotal = clampCategory(rec, "fundamentals", fund, p.MaxFundamentals)
	rec.OtherTotal = clampCategory(rec, "other_metrics", other, p.MaxOther)

	total := rec.HistoricalReturnsTotal + rec.RiskGradeTotal + rec.FundamentalsTotal + rec.OtherTotal
	if total < 0 || total > 100 {
		log.Warn().
			Str("SchemeCode", rec.SchemeCode).
			Float64("Total", total).
			Msg("total score outside [0,100]; clamping")
		rec.addFlag(FlagBoundsViolation)
		if total < 0 {
			total = 0
		} else {
			total = 100
		}
	}
	rec.TotalScore = total

	const subScoreCount = 15
	rec.Coverage = float64(nHistorical+nRisk+nFund+nOther) / subScoreCount
	if rec.Coverage < p.LowCoverageThreshold {
		rec.addFlag(FlagLowCoverage)
	}
}
