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

// FundamentalScores are the static-attribute sub-scores. A missing
// attribute yields an absent sub-score which the composite engine counts
// against coverage; it is never defaulted to a midpoint.
type FundamentalScores struct {
	Expense metrics.Value
	Size    metrics.Value
	Age     metrics.Value
}

// ScoreFundamentals normalizes a fund's static attributes into bounded
// sub-scores. Expense scoring decreases monotonically with cost; AUM
// scoring rewards a sweet-spot band rather than raw size; age scoring
// rewards track record up to a cap.
func (p *Parameters) ScoreFundamentals(fund *data.Fund, asOf time.Time) FundamentalScores {
	scores := FundamentalScores{}

	if fund.ExpenseRatio != nil {
		scores.Expense = metrics.Present(scoreCeiling(p.ExpenseBands, *fund.ExpenseRatio))
	}

	if fund.AumCrores != nil {
		scores.Size = metrics.Present(scoreRange(p.SizeBands, *fund.AumCrores))
	}

	if age, ok := fund.AgeYears(asOf); ok {
		scores.Age = metrics.Present(scoreFloor(p.AgeBands, age))
	}

	return scores
}
