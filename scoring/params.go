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
	"encoding/hex"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/zeebo/blake3"
)

// Band maps a metric threshold to a sub-score. Direction depends on the
// table: return-style tables award the score of the highest threshold the
// value reaches; cost-style tables award the score of the lowest threshold
// the value stays under.
type Band struct {
	Threshold float64 `json:"threshold"`
	Score     float64 `json:"score"`
}

// RangeBand awards a score when a value falls inside [Lo, Hi)
type RangeBand struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Score float64 `json:"score"`
}

// Parameters is the single canonical scoring table. Every threshold the
// pipeline uses lives here; changing a breakpoint is a one-place edit and
// changes the parameter version hash persisted with each ScoreRecord.
type Parameters struct {
	// RiskFreeRate is the annual risk-free rate used by Sharpe and
	// Sortino, as a fraction
	RiskFreeRate float64 `json:"riskFreeRate"`

	// RiskWindowDays bounds the observation window for risk metrics
	RiskWindowDays int `json:"riskWindowDays"`

	// Period-return sub-scores, each bounded [0,8]. Thresholds are
	// annualized percentage returns, highest first.
	ReturnBands []Band `json:"returnBands"`

	// Risk-grade sub-scores
	VolatilityBands []Band `json:"volatilityBands"` // pct, lowest first, bounded [0,6]
	DrawDownBands   []Band `json:"drawDownBands"`   // fraction, lowest first, bounded [0,6]
	SharpeBands     []Band `json:"sharpeBands"`     // highest first, bounded [0,8]
	SortinoBands    []Band `json:"sortinoBands"`    // highest first, bounded [0,6]
	CalmarBands     []Band `json:"calmarBands"`     // highest first, bounded [0,4]

	// Fundamentals sub-scores
	ExpenseBands []Band      `json:"expenseBands"` // pct, lowest first, bounded [0,8]
	SizeBands    []RangeBand `json:"sizeBands"`    // AUM in crores, bounded [0,6]
	AgeBands     []Band      `json:"ageBands"`     // years, highest first, bounded [0,6]

	// Other-metric sub-scores
	YTDBands   []Band `json:"ytdBands"`   // pct, highest first, bounded [0,5]
	AlphaBands []Band `json:"alphaBands"` // annualized pct, highest first, bounded [0,5]

	// Category contribution caps
	MaxHistoricalReturns float64 `json:"maxHistoricalReturns"`
	MaxRiskGrade         float64 `json:"maxRiskGrade"`
	MaxFundamentals      float64 `json:"maxFundamentals"`
	MaxOther             float64 `json:"maxOther"`

	// Records with coverage below this fraction are flagged
	LowCoverageThreshold float64 `json:"lowCoverageThreshold"`

	// Recommendation variant cut-offs (quartile stays primary)
	StrongBuyScore      float64 `json:"strongBuyScore"`
	StrongBuyPercentile float64 `json:"strongBuyPercentile"`
	StrongSellScore     float64 `json:"strongSellScore"`
	StrongSellPercent   float64 `json:"strongSellPercentile"`
}

// DefaultParameters returns the canonical scoring table. The risk-free
// rate may be overridden through configuration (scoring.risk_free_rate).
func DefaultParameters() *Parameters {
	riskFree := viper.GetFloat64("scoring.risk_free_rate")
	if riskFree == 0 {
		riskFree = 0.065
	}

	return &Parameters{
		RiskFreeRate:   riskFree,
		RiskWindowDays: 1095,

		ReturnBands: []Band{
			{Threshold: 15, Score: 8},
			{Threshold: 12, Score: 7},
			{Threshold: 10, Score: 6},
			{Threshold: 8, Score: 5},
			{Threshold: 6, Score: 4},
			{Threshold: 4, Score: 3},
			{Threshold: 2, Score: 2},
			{Threshold: 0, Score: 1},
		},

		VolatilityBands: []Band{
			{Threshold: 5, Score: 6},
			{Threshold: 10, Score: 5},
			{Threshold: 15, Score: 4},
			{Threshold: 20, Score: 3},
			{Threshold: 25, Score: 2},
			{Threshold: 30, Score: 1},
		},
		DrawDownBands: []Band{
			{Threshold: 0.05, Score: 6},
			{Threshold: 0.10, Score: 5},
			{Threshold: 0.15, Score: 4},
			{Threshold: 0.20, Score: 3},
			{Threshold: 0.30, Score: 2},
			{Threshold: 0.40, Score: 1},
		},
		SharpeBands: []Band{
			{Threshold: 2.0, Score: 8},
			{Threshold: 1.5, Score: 7},
			{Threshold: 1.2, Score: 6},
			{Threshold: 1.0, Score: 5},
			{Threshold: 0.8, Score: 4},
			{Threshold: 0.5, Score: 3},
			{Threshold: 0.25, Score: 2},
			{Threshold: 0, Score: 1},
		},
		SortinoBands: []Band{
			{Threshold: 2.0, Score: 6},
			{Threshold: 1.5, Score: 5},
			{Threshold: 1.0, Score: 4},
			{Threshold: 0.75, Score: 3},
			{Threshold: 0.5, Score: 2},
			{Threshold: 0, Score: 1},
		},
		CalmarBands: []Band{
			{Threshold: 3.0, Score: 4},
			{Threshold: 2.0, Score: 3},
			{Threshold: 1.0, Score: 2},
			{Threshold: 0.5, Score: 1},
		},

		ExpenseBands: []Band{
			{Threshold: 0.5, Score: 8},
			{Threshold: 0.75, Score: 7},
			{Threshold: 1.0, Score: 6},
			{Threshold: 1.25, Score: 5},
			{Threshold: 1.5, Score: 4},
			{Threshold: 1.75, Score: 3},
			{Threshold: 2.0, Score: 2},
			{Threshold: 2.25, Score: 1},
		},
		SizeBands: []RangeBand{
			// sweet spot: large enough to be sustainable, small enough
			// to stay nimble
			{Lo: 1000, Hi: 25000, Score: 6},
			{Lo: 500, Hi: 1000, Score: 4},
			{Lo: 25000, Hi: 50000, Score: 4},
			{Lo: 100, Hi: 500, Score: 3},
			{Lo: 50000, Hi: 1e12, Score: 2},
			{Lo: 0, Hi: 100, Score: 1},
		},
		AgeBands: []Band{
			{Threshold: 10, Score: 6},
			{Threshold: 7, Score: 5},
			{Threshold: 5, Score: 4},
			{Threshold: 3, Score: 3},
			{Threshold: 2, Score: 2},
			{Threshold: 1, Score: 1},
		},

		YTDBands: []Band{
			{Threshold: 10, Score: 5},
			{Threshold: 5, Score: 4},
			{Threshold: 2, Score: 3},
			{Threshold: 0, Score: 2},
			{Threshold: -5, Score: 1},
		},
		AlphaBands: []Band{
			{Threshold: 4, Score: 5},
			{Threshold: 2, Score: 4},
			{Threshold: 1, Score: 3},
			{Threshold: 0, Score: 2},
			{Threshold: -2, Score: 1},
		},

		MaxHistoricalReturns: 40,
		MaxRiskGrade:         30,
		MaxFundamentals:      20,
		MaxOther:             10,

		LowCoverageThreshold: 0.5,

		StrongBuyScore:      70,
		StrongBuyPercentile: 90,
		StrongSellScore:     35,
		StrongSellPercent:   10,
	}
}

// Version returns a stable content hash of the parameter table, persisted
// with every ScoreRecord for auditing.
func (p *Parameters) Version() string {
	raw, err := json.Marshal(p)
	if err != nil {
		log.Panic().Err(err).Msg("could not marshal scoring parameters")
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}

// scoreFloor awards the score of the highest threshold the value reaches;
// values below every threshold score zero.
func scoreFloor(bands []Band, v float64) float64 {
	for _, band := range bands {
		if v >= band.Threshold {
			return band.Score
		}
	}
	return 0
}

// scoreCeiling awards the score of the lowest threshold the value stays at
// or under; values above every threshold score zero.
func scoreCeiling(bands []Band, v float64) float64 {
	for _, band := range bands {
		if v <= band.Threshold {
			return band.Score
		}
	}
	return 0
}

// scoreRange awards the score of the first range containing the value
func scoreRange(bands []RangeBand, v float64) float64 {
	for _, band := range bands {
		if v >= band.Lo && v < band.Hi {
			return band.Score
		}
	}
	return 0
}
