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

// Recommendation is the discrete label derived from a fund's peer
// standing
type Recommendation string

const (
	StrongBuy  Recommendation = "STRONG_BUY"
	Buy        Recommendation = "BUY"
	Hold       Recommendation = "HOLD"
	Sell       Recommendation = "SELL"
	StrongSell Recommendation = "STRONG_SELL"
)

// Recommend maps a fund's (total score, quartile, percentile) to a label.
// The quartile decides the band: quartile 1 is always BUY-family and
// quartile 4 always SELL-family. Score and percentile only select between
// the strong and plain variant inside the band; they never override the
// quartile, which keeps recommendations consistent with peer ranking.
func (p *Parameters) Recommend(totalScore float64, quartile int, percentile float64) Recommendation {
	switch quartile {
	case 1:
		if totalScore >= p.StrongBuyScore || percentile >= p.StrongBuyPercentile {
			return StrongBuy
		}
		return Buy
	case 2, 3:
		return Hold
	default:
		if totalScore < p.StrongSellScore || percentile <= p.StrongSellPercent {
			return StrongSell
		}
		return Sell
	}
}
