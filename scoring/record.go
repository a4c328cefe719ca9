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

	"github.com/fundscope/fs-api/metrics"
)

// Quality flags recorded on a ScoreRecord
const (
	FlagNoNavData       = "no_nav_data"
	FlagLowCoverage     = "low_coverage"
	FlagOutliers        = "data_quality_outliers"
	FlagBoundsViolation = "bounds_violation"
	FlagThinCategory    = "thin_category_group"
	FlagThinSubcategory = "thin_subcategory_group"
	FlagScoreError      = "score_error"
)

// PeerPlacement is a fund's standing within one peer partition. Category
// and subcategory placements are independent values; both are persisted.
type PeerPlacement struct {
	Rank       int     `json:"rank"`
	GroupSize  int     `json:"groupSize"`
	Percentile float64 `json:"percentile"`
	Quartile   int     `json:"quartile"`
	Thin       bool    `json:"thin"`
}

// ScoreRecord is the complete scoring output for one (fund, score date)
// pair. Recomputation for the same key fully replaces the stored row.
type ScoreRecord struct {
	SchemeCode  string    `json:"schemeCode"`
	FundName    string    `json:"fundName"`
	ScoreDate   time.Time `json:"scoreDate"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory"`

	// raw metrics
	Return3M    metrics.Value `json:"return3m"`
	Return6M    metrics.Value `json:"return6m"`
	Return1Y    metrics.Value `json:"return1y"`
	Return3Y    metrics.Value `json:"return3y"`
	Return5Y    metrics.Value `json:"return5y"`
	ReturnYTD   metrics.Value `json:"returnYtd"`
	Volatility  metrics.Value `json:"volatility"`
	MaxDrawDown metrics.Value `json:"maxDrawDown"`
	Sharpe      metrics.Value `json:"sharpe"`
	Sortino     metrics.Value `json:"sortino"`
	Calmar      metrics.Value `json:"calmar"`
	Beta        metrics.Value `json:"beta"`
	Alpha       metrics.Value `json:"alpha"`

	// bounded sub-scores
	Score3M         metrics.Value `json:"score3m"`
	Score6M         metrics.Value `json:"score6m"`
	Score1Y         metrics.Value `json:"score1y"`
	Score3Y         metrics.Value `json:"score3y"`
	Score5Y         metrics.Value `json:"score5y"`
	ScoreVolatility metrics.Value `json:"scoreVolatility"`
	ScoreDrawDown   metrics.Value `json:"scoreDrawDown"`
	ScoreSharpe     metrics.Value `json:"scoreSharpe"`
	ScoreSortino    metrics.Value `json:"scoreSortino"`
	ScoreCalmar     metrics.Value `json:"scoreCalmar"`
	ScoreExpense    metrics.Value `json:"scoreExpense"`
	ScoreSize       metrics.Value `json:"scoreSize"`
	ScoreAge        metrics.Value `json:"scoreAge"`
	ScoreYTD        metrics.Value `json:"scoreYtd"`
	ScoreAlpha      metrics.Value `json:"scoreAlpha"`

	// category totals, each clamped to its documented range
	HistoricalReturnsTotal float64 `json:"historicalReturnsTotal"`
	RiskGradeTotal         float64 `json:"riskGradeTotal"`
	FundamentalsTotal      float64 `json:"fundamentalsTotal"`
	OtherTotal             float64 `json:"otherTotal"`

	// TotalScore is bounded to [0,100]
	TotalScore float64 `json:"totalScore"`

	// Coverage is the fraction of sub-scores that were computable; absent
	// sub-scores contribute zero to the total, never a neutral stand-in
	Coverage float64 `json:"coverage"`

	OutlierCount int      `json:"outlierCount"`
	Flags        []string `json:"flags,omitempty"`

	CategoryPlacement    PeerPlacement `json:"categoryPlacement"`
	SubcategoryPlacement PeerPlacement `json:"subcategoryPlacement"`

	Recommendation Recommendation `json:"recommendation"`

	// ParamsVersion identifies the scoring-parameter table used so
	// historical records can be audited without recomputation
	ParamsVersion string `json:"paramsVersion"`
}

func (rec *ScoreRecord) addFlag(flag string) {
	for _, f := range rec.Flags {
		if f == flag {
			return
		}
	}
	rec.Flags = append(rec.Flags, flag)
}

// HasFlag reports whether the record carries the given quality flag
func (rec *ScoreRecord) HasFlag(flag string) bool {
	for _, f := range rec.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
