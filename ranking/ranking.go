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

// Package ranking orders scored funds within their peer groups. It is the
// single serialization point of the scoring pipeline: every fund in a peer
// group must be scored before the group can be ranked.
package ranking

import (
	"sort"
)

// MinGroupSize is the smallest peer group considered statistically solid;
// smaller groups are still ranked but flagged thin so downstream consumers
// can distinguish them.
const MinGroupSize = 4

// Item is a single fund entering a peer-group ranking
type Item struct {
	Key   string // tie-break and identity: scheme code
	Group string // peer-group key: category or subcategory
	Score float64
}

// Placement is the ranking annotation for a single fund within its group
type Placement struct {
	Rank       int
	GroupSize  int
	Percentile float64
	Quartile   int
	Thin       bool
}

// QuartileFromPercentile applies the canonical quartile boundaries. The
// same boundaries apply to category and subcategory partitions.
func QuartileFromPercentile(percentile float64) int {
	switch {
	case percentile >= 75:
		return 1
	case percentile >= 50:
		return 2
	case percentile >= 25:
		return 3
	default:
		return 4
	}
}

// Rank partitions items by group and ranks each partition by score
// descending, ties broken by key ascending so reruns are deterministic.
// Rank is 1-based. Percentile is 100×(1−(rank−1)/(n−1)); a group of one
// fund gets percentile 100. Results are keyed by Item.Key and include the
// group size and a thin-group flag.
func Rank(items []Item) map[string]Placement {
	groups := make(map[string][]Item)
	for _, item := range items {
		groups[item.Group] = append(groups[item.Group], item)
	}

	placements := make(map[string]Placement, len(items))
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			if group[i].Score != group[j].Score {
				return group[i].Score > group[j].Score
			}
			return group[i].Key < group[j].Key
		})

		n := len(group)
		for idx, item := range group {
			rank := idx + 1
			percentile := 100.0
			if n > 1 {
				percentile = 100 * (1 - float64(rank-1)/float64(n-1))
			}
			placements[item.Key] = Placement{
				Rank:       rank,
				GroupSize:  n,
				Percentile: percentile,
				Quartile:   QuartileFromPercentile(percentile),
				Thin:       n < MinGroupSize,
			}
		}
	}

	return placements
}
