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

package data

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Manager is the read-only data access port for the scoring and backtest
// engines. It serves the fund universe, per-fund NAV series, and benchmark
// series, caching series windows in an in-process LRU so repeated batch
// runs against the same window do not re-query the database.
type Manager struct {
	fsdb        *FsDb
	seriesCache *lru.Cache
	fundsOnce   sync.Once
	fundsErr    error
	funds       []*Fund
	fundsByCode map[string]*Fund
}

func NewManager() *Manager {
	cacheSize := viper.GetInt("data.series_cache_size")
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		log.Panic().Err(err).Msg("could not create series cache")
	}
	return &Manager{
		fsdb:        NewFsDb(),
		seriesCache: cache,
	}
}

func (m *Manager) loadFunds(ctx context.Context) {
	m.fundsOnce.Do(func() {
		funds, err := m.fsdb.Funds(ctx)
		if err != nil {
			m.fundsErr = err
			return
		}
		m.funds = funds
		m.fundsByCode = make(map[string]*Fund, len(funds))
		for _, f := range funds {
			m.fundsByCode[f.SchemeCode] = f
		}
	})
}

// Funds returns the active fund universe
func (m *Manager) Funds(ctx context.Context) ([]*Fund, error) {
	m.loadFunds(ctx)
	return m.funds, m.fundsErr
}

// Fund resolves a single fund by scheme code
func (m *Manager) Fund(ctx context.Context, schemeCode string) (*Fund, error) {
	m.loadFunds(ctx)
	if m.fundsErr != nil {
		return nil, m.fundsErr
	}
	if f, ok := m.fundsByCode[schemeCode]; ok {
		return f, nil
	}
	return nil, ErrNotFound
}

func seriesKey(kind, id string, begin, end time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", kind, id, begin.Format("2006-01-02"), end.Format("2006-01-02"))
}

// NavSeries returns the NAV series for the requested funds over
// [begin, end]. Cached windows are served from memory; the remainder is
// fetched in a single bulk query.
func (m *Manager) NavSeries(ctx context.Context, schemeCodes []string, begin, end time.Time) (map[string]*NavSeries, error) {
	result := make(map[string]*NavSeries, len(schemeCodes))

	toPull := make([]string, 0, len(schemeCodes))
	for _, schemeCode := range schemeCodes {
		if cached, ok := m.seriesCache.Get(seriesKey("nav", schemeCode, begin, end)); ok {
			result[schemeCode] = cached.(*NavSeries)
			continue
		}
		toPull = append(toPull, schemeCode)
	}

	if len(toPull) > 0 {
		pulled, err := m.fsdb.NavHistory(ctx, toPull, begin, end)
		if err != nil {
			return nil, err
		}
		for _, schemeCode := range toPull {
			series, ok := pulled[schemeCode]
			if !ok {
				// fund has no observations in the window; an empty
				// series propagates absence downstream
				series = NewNavSeries(nil)
			}
			m.seriesCache.Add(seriesKey("nav", schemeCode, begin, end), series)
			result[schemeCode] = series
		}
	}

	return result, nil
}

// BenchmarkSeries returns the value series for a named benchmark over
// [begin, end]
func (m *Manager) BenchmarkSeries(ctx context.Context, name string, begin, end time.Time) (*NavSeries, error) {
	if cached, ok := m.seriesCache.Get(seriesKey("benchmark", name, begin, end)); ok {
		return cached.(*NavSeries), nil
	}

	series, err := m.fsdb.BenchmarkHistory(ctx, name, begin, end)
	if err != nil {
		return nil, err
	}
	m.seriesCache.Add(seriesKey("benchmark", name, begin, end), series)
	return series, nil
}
