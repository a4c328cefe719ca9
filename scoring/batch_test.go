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

package scoring_test

import (
	"context"
	"sort"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fundscope/fs-api/data"
	"github.com/fundscope/fs-api/scoring"
)

// fakeUniverse is an in-memory Universe implementation
type fakeUniverse struct {
	funds      []*data.Fund
	series     map[string]*data.NavSeries
	benchmarks map[string]*data.NavSeries
}

func (u *fakeUniverse) Funds(_ context.Context) ([]*data.Fund, error) {
	return u.funds, nil
}

func (u *fakeUniverse) NavSeries(_ context.Context, schemeCodes []string, begin, end time.Time) (map[string]*data.NavSeries, error) {
	out := make(map[string]*data.NavSeries, len(schemeCodes))
	for _, code := range schemeCodes {
		if s, ok := u.series[code]; ok {
			out[code] = s.Window(begin, end)
		} else {
			out[code] = data.NewNavSeries(nil)
		}
	}
	return out, nil
}

func (u *fakeUniverse) BenchmarkSeries(_ context.Context, name string, begin, end time.Time) (*data.NavSeries, error) {
	if s, ok := u.benchmarks[name]; ok {
		return s.Window(begin, end), nil
	}
	return nil, data.ErrNotFound
}

var _ = Describe("Pipeline", func() {
	var (
		universe *fakeUniverse
		asOf     time.Time
	)

	BeforeEach(func() {
		asOf = time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
		start := asOf.AddDate(-6, 0, 0)

		mkFund := func(code, category, subcategory string) *data.Fund {
			inception := start
			return &data.Fund{
				SchemeCode:    code,
				Name:          "Fund " + code,
				Category:      category,
				Subcategory:   subcategory,
				BenchmarkName: "NIFTY 50",
				ExpenseRatio:  floatPtr(1.0),
				AumCrores:     floatPtr(2_000),
				InceptionDate: &inception,
			}
		}

		universe = &fakeUniverse{
			funds: []*data.Fund{
				mkFund("100001", "Equity", "Large Cap"),
				mkFund("100002", "Equity", "Large Cap"),
				mkFund("100003", "Equity", "Large Cap"),
				mkFund("100004", "Equity", "Large Cap"),
				mkFund("100005", "Equity", "Mid Cap"),
				mkFund("200001", "Debt", ""),
				mkFund("200002", "Debt", ""),
			},
			series: map[string]*data.NavSeries{
				"100001": growthSeries(start, 6*365),
				"100002": growthSeries(start, 6*365),
				"100003": growthSeries(start, 6*365),
				"100004": growthSeries(start, 6*365),
				"100005": growthSeries(start, 6*365),
				"200001": growthSeries(start, 6*365),
				// 200002 has no nav history at all
			},
			benchmarks: map[string]*data.NavSeries{
				"NIFTY 50": growthSeries(start, 6*365),
			},
		}
	})

	Describe("when scoring the universe", func() {
		It("should return one record per fund ordered by scheme code", func() {
			pipeline := scoring.NewPipeline(universe, scoring.DefaultParameters(), 3)
			records, err := pipeline.Run(context.Background(), asOf)
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(7))
			Expect(sort.SliceIsSorted(records, func(a, b int) bool {
				return records[a].SchemeCode < records[b].SchemeCode
			})).To(BeTrue())
		})

		It("should rank funds within their category partitions", func() {
			pipeline := scoring.NewPipeline(universe, scoring.DefaultParameters(), 3)
			records, err := pipeline.Run(context.Background(), asOf)
			Expect(err).To(BeNil())

			byCode := make(map[string]*scoring.ScoreRecord)
			equityRanks := make(map[int]bool)
			for _, rec := range records {
				byCode[rec.SchemeCode] = rec
				if rec.Category == "Equity" {
					Expect(rec.CategoryPlacement.GroupSize).To(Equal(5))
					Expect(equityRanks[rec.CategoryPlacement.Rank]).To(BeFalse())
					equityRanks[rec.CategoryPlacement.Rank] = true
				}
			}
			Expect(len(equityRanks)).To(Equal(5))
			Expect(byCode["200001"].CategoryPlacement.GroupSize).To(Equal(2))
		})

		It("should flag thin subcategory groups", func() {
			pipeline := scoring.NewPipeline(universe, scoring.DefaultParameters(), 2)
			records, err := pipeline.Run(context.Background(), asOf)
			Expect(err).To(BeNil())

			for _, rec := range records {
				if rec.SchemeCode == "100005" {
					// lone mid cap fund
					Expect(rec.SubcategoryPlacement.GroupSize).To(Equal(1))
					Expect(rec.HasFlag(scoring.FlagThinSubcategory)).To(BeTrue())
				}
				if rec.Category == "Debt" {
					Expect(rec.HasFlag(scoring.FlagThinCategory)).To(BeTrue())
				}
			}
		})

		It("should keep identical subcategory labels in separate category groups", func() {
			start := asOf.AddDate(-6, 0, 0)
			inception := start
			addIndexFund := func(code, category string) {
				universe.funds = append(universe.funds, &data.Fund{
					SchemeCode:    code,
					Name:          "Fund " + code,
					Category:      category,
					Subcategory:   "Index",
					BenchmarkName: "NIFTY 50",
					ExpenseRatio:  floatPtr(1.0),
					AumCrores:     floatPtr(2_000),
					InceptionDate: &inception,
				})
				universe.series[code] = growthSeries(start, 6*365)
			}
			addIndexFund("100006", "Equity")
			addIndexFund("100007", "Equity")
			addIndexFund("200003", "Debt")
			addIndexFund("200004", "Debt")

			records, err := scoring.NewPipeline(universe, scoring.DefaultParameters(), 2).Run(context.Background(), asOf)
			Expect(err).To(BeNil())
			for _, rec := range records {
				if rec.Subcategory == "Index" {
					// two Index funds per category, never four across both
					Expect(rec.SubcategoryPlacement.GroupSize).To(Equal(2))
				}
			}
		})

		It("should assign a recommendation to every record", func() {
			pipeline := scoring.NewPipeline(universe, scoring.DefaultParameters(), 4)
			records, err := pipeline.Run(context.Background(), asOf)
			Expect(err).To(BeNil())
			for _, rec := range records {
				Expect(rec.Recommendation).ToNot(BeEmpty())
			}
		})

		It("should flag a fund with no nav history instead of inventing data", func() {
			pipeline := scoring.NewPipeline(universe, scoring.DefaultParameters(), 2)
			records, err := pipeline.Run(context.Background(), asOf)
			Expect(err).To(BeNil())
			for _, rec := range records {
				if rec.SchemeCode == "200002" {
					Expect(rec.HasFlag(scoring.FlagNoNavData)).To(BeTrue())
					Expect(rec.Return1Y.Valid).To(BeFalse())
				}
			}
		})

		It("should produce identical output across runs and worker counts", func() {
			first, err := scoring.NewPipeline(universe, scoring.DefaultParameters(), 1).Run(context.Background(), asOf)
			Expect(err).To(BeNil())
			second, err := scoring.NewPipeline(universe, scoring.DefaultParameters(), 8).Run(context.Background(), asOf)
			Expect(err).To(BeNil())
			Expect(first).To(Equal(second))
		})

		It("should stop when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := scoring.NewPipeline(universe, scoring.DefaultParameters(), 2).Run(ctx, asOf)
			Expect(err).To(Equal(context.Canceled))
		})
	})
})
