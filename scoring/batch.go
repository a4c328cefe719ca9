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
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fundscope/fs-api/data"
	"github.com/fundscope/fs-api/observability/opentelemetry"
	"github.com/fundscope/fs-api/ranking"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

// Universe supplies the fund universe and its price history. data.Manager
// satisfies it in production; tests use in-memory fakes.
type Universe interface {
	Funds(ctx context.Context) ([]*data.Fund, error)
	NavSeries(ctx context.Context, schemeCodes []string, begin, end time.Time) (map[string]*data.NavSeries, error)
	BenchmarkSeries(ctx context.Context, name string, begin, end time.Time) (*data.NavSeries, error)
}

// Pipeline scores every active fund as of a date, then ranks the scored
// universe within category and subcategory peer groups and assigns
// recommendations.
type Pipeline struct {
	universe Universe
	params   *Parameters
	workers  int
}

func NewPipeline(universe Universe, params *Parameters, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		universe: universe,
		params:   params,
		workers:  workers,
	}
}

type scoreJob struct {
	fund      *data.Fund
	series    *data.NavSeries
	benchmark *data.NavSeries
}

// Run scores the full universe as of scoreDate. Funds are scored
// concurrently; ranking waits until every fund has a score because a
// percentile is meaningless against a partial peer group. The returned
// slice is ordered by scheme code so repeated runs over the same data
// produce identical output.
func (p *Pipeline) Run(ctx context.Context, scoreDate time.Time) ([]*ScoreRecord, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "scoring.Pipeline.Run")
	defer span.End()

	funds, err := p.universe.Funds(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fund universe: %w", err)
	}
	if len(funds) == 0 {
		return []*ScoreRecord{}, nil
	}

	// one lookback window covers every metric: 5 years for the longest
	// return plus slack for start-date tolerance
	begin := scoreDate.AddDate(-5, 0, -35)

	codes := make([]string, 0, len(funds))
	for _, fund := range funds {
		codes = append(codes, fund.SchemeCode)
	}
	series, err := p.universe.NavSeries(ctx, codes, begin, scoreDate)
	if err != nil {
		return nil, fmt.Errorf("load nav history: %w", err)
	}

	benchmarks := make(map[string]*data.NavSeries)
	for _, fund := range funds {
		if fund.BenchmarkName == "" {
			continue
		}
		if _, ok := benchmarks[fund.BenchmarkName]; ok {
			continue
		}
		bench, err := p.universe.BenchmarkSeries(ctx, fund.BenchmarkName, begin, scoreDate)
		if err != nil {
			// a missing benchmark degrades the affected funds to
			// absent beta/alpha, it does not fail the batch
			log.Warn().Err(err).Str("Benchmark", fund.BenchmarkName).Msg("benchmark history unavailable")
			bench = nil
		}
		benchmarks[fund.BenchmarkName] = bench
	}

	jobs := make(chan scoreJob)
	results := make(chan *ScoreRecord)

	var wg sync.WaitGroup
	for ii := 0; ii < p.workers; ii++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- p.params.ComputeScore(job.fund, job.series, job.benchmark, scoreDate)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, fund := range funds {
			job := scoreJob{
				fund:      fund,
				series:    series[fund.SchemeCode],
				benchmark: benchmarks[fund.BenchmarkName],
			}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	records := make([]*ScoreRecord, 0, len(funds))
	for rec := range results {
		records = append(records, rec)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(records, func(a, b int) bool {
		return records[a].SchemeCode < records[b].SchemeCode
	})

	p.rank(records)
	log.Info().Time("ScoreDate", scoreDate).Int("Funds", len(records)).Msg("scored fund universe")
	return records, nil
}

// rank computes peer placements within category and subcategory groups
// and derives the recommendation for every record.
func (p *Pipeline) rank(records []*ScoreRecord) {
	byCategory := make([]ranking.Item, 0, len(records))
	bySubcategory := make([]ranking.Item, 0, len(records))
	for _, rec := range records {
		byCategory = append(byCategory, ranking.Item{
			Key:   rec.SchemeCode,
			Group: rec.Category,
			Score: rec.TotalScore,
		})
		if rec.Subcategory != "" {
			// subcategory labels repeat across categories, so the peer
			// group is the (category, subcategory) pair
			bySubcategory = append(bySubcategory, ranking.Item{
				Key:   rec.SchemeCode,
				Group: rec.Category + "|" + rec.Subcategory,
				Score: rec.TotalScore,
			})
		}
	}

	categoryPlacement := ranking.Rank(byCategory)
	subcategoryPlacement := ranking.Rank(bySubcategory)

	for _, rec := range records {
		placement := categoryPlacement[rec.SchemeCode]
		rec.CategoryPlacement = PeerPlacement{
			Rank:       placement.Rank,
			GroupSize:  placement.GroupSize,
			Percentile: placement.Percentile,
			Quartile:   placement.Quartile,
			Thin:       placement.Thin,
		}
		if placement.Thin {
			rec.addFlag(FlagThinCategory)
		}

		// recommendation uses the tightest peer group available
		effective := rec.CategoryPlacement
		if rec.Subcategory != "" {
			sub := subcategoryPlacement[rec.SchemeCode]
			rec.SubcategoryPlacement = PeerPlacement{
				Rank:       sub.Rank,
				GroupSize:  sub.GroupSize,
				Percentile: sub.Percentile,
				Quartile:   sub.Quartile,
				Thin:       sub.Thin,
			}
			if sub.Thin {
				rec.addFlag(FlagThinSubcategory)
			}
			effective = rec.SubcategoryPlacement
		}
		rec.Recommendation = p.params.Recommend(rec.TotalScore, effective.Quartile, effective.Percentile)
	}
}
