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
	"time"

	"github.com/fundscope/fs-api/data/database"
	"github.com/fundscope/fs-api/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// FsDb reads the fund universe, NAV history, and benchmark history from
// PostgreSQL. All access is read-only; the acquisition subsystem owns the
// tables.
type FsDb struct {
}

// NewFsDb creates a new fund-scope database provider
func NewFsDb() *FsDb {
	return &FsDb{}
}

// Funds returns every active fund with its static attributes
func (p *FsDb) Funds(ctx context.Context) ([]*Fund, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "fsdb.Funds")
	defer span.End()

	trx, err := database.Trx(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not get transaction when querying funds")
		return nil, err
	}

	rows, err := trx.Query(ctx, `SELECT scheme_code, fund_name, category, subcategory, benchmark_name, expense_ratio, aum_crores, inception_date FROM funds WHERE active='t' ORDER BY scheme_code`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		log.Error().Stack().Err(err).Msg("could not query funds")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	funds := make([]*Fund, 0, 1024)
	for rows.Next() {
		f := &Fund{}
		err := rows.Scan(&f.SchemeCode, &f.Name, &f.Category, &f.Subcategory, &f.BenchmarkName, &f.ExpenseRatio, &f.AumCrores, &f.InceptionDate)
		if err != nil {
			log.Error().Stack().Err(err).Msg("could not scan fund row")
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		funds = append(funds, f)
	}

	if err := trx.Commit(ctx); err != nil {
		log.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	return funds, nil
}

// NavHistory fetches the NAV series for the requested funds in a single
// windowed query. One bulk query per batch keeps the scoring and backtest
// paths off the per-date-per-fund access pattern.
func (p *FsDb) NavHistory(ctx context.Context, schemeCodes []string, begin, end time.Time) (map[string]*NavSeries, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "fsdb.NavHistory")
	defer span.End()

	subLog := log.With().Time("Begin", begin).Time("End", end).Int("NumFunds", len(schemeCodes)).Logger()

	if end.Before(begin) {
		subLog.Warn().Stack().Msg("end before begin in call to NavHistory")
		return nil, ErrInvalidTimeRange
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get transaction when querying nav history")
		return nil, err
	}

	rows, err := trx.Query(ctx, `SELECT scheme_code, nav_date, nav FROM nav_history WHERE scheme_code = ANY($1) AND nav_date BETWEEN $2 AND $3 ORDER BY scheme_code, nav_date`, schemeCodes, begin, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Msg("could not query nav history")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	raw := make(map[string][]NavObservation, len(schemeCodes))
	for rows.Next() {
		var schemeCode string
		var obs NavObservation
		if err := rows.Scan(&schemeCode, &obs.Date, &obs.Nav); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan nav row")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		raw[schemeCode] = append(raw[schemeCode], obs)
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	series := make(map[string]*NavSeries, len(raw))
	for schemeCode, observations := range raw {
		series[schemeCode] = NewNavSeries(observations)
	}
	return series, nil
}

// BenchmarkHistory fetches the value series for a named benchmark index
func (p *FsDb) BenchmarkHistory(ctx context.Context, name string, begin, end time.Time) (*NavSeries, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "fsdb.BenchmarkHistory")
	defer span.End()

	subLog := log.With().Str("Benchmark", name).Time("Begin", begin).Time("End", end).Logger()

	if end.Before(begin) {
		subLog.Warn().Stack().Msg("end before begin in call to BenchmarkHistory")
		return nil, ErrInvalidTimeRange
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get transaction when querying benchmark history")
		return nil, err
	}

	rows, err := trx.Query(ctx, `SELECT value_date, value FROM benchmark_history WHERE benchmark_name=$1 AND value_date BETWEEN $2 AND $3 ORDER BY value_date`, name, begin, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Msg("could not query benchmark history")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	observations := make([]NavObservation, 0, 1260)
	for rows.Next() {
		var obs NavObservation
		if err := rows.Scan(&obs.Date, &obs.Nav); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan benchmark row")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		observations = append(observations, obs)
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	if len(observations) == 0 {
		return nil, ErrNoBenchmark
	}
	return NewNavSeries(observations), nil
}
