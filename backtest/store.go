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

package backtest

import (
	"context"
	"fmt"

	"github.com/fundscope/fs-api/common"
	"github.com/fundscope/fs-api/data/database"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// cacheKey identifies a result in the byte cache
func cacheKey(id string) string {
	return fmt.Sprintf("backtest:%s", id)
}

// Save persists a backtest result and drops a copy in the cache so a
// follow-up fetch for the same run does not hit the database.
func (res *Result) Save(ctx context.Context) error {
	subLog := log.With().Str("BacktestID", res.ID.String()).Logger()

	body, err := json.Marshal(res)
	if err != nil {
		subLog.Error().Err(err).Msg("could not marshal backtest result")
		return err
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Err(err).Msg("unable to get database transaction")
		return err
	}

	sql := `INSERT INTO backtest_results (
		id,
		start_date,
		end_date,
		cadence,
		status,
		failure_reason,
		final_value,
		total_return,
		annualized_return,
		computed_on,
		result
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
	) ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		failure_reason = EXCLUDED.failure_reason,
		final_value = EXCLUDED.final_value,
		total_return = EXCLUDED.total_return,
		annualized_return = EXCLUDED.annualized_return,
		computed_on = EXCLUDED.computed_on,
		result = EXCLUDED.result`

	if _, err := trx.Exec(ctx, sql,
		res.ID,
		res.Request.StartDate,
		res.Request.EndDate,
		string(res.Request.Cadence),
		string(res.Status),
		res.FailureReason,
		res.FinalValue,
		res.TotalReturn.Ptr(),
		res.AnnualizedReturn.Ptr(),
		res.ComputedOn,
		body,
	); err != nil {
		subLog.Error().Err(err).Msg("insert backtest_results row failed")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Err(err).Msg("could not rollback transaction")
		}
		return err
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Err(err).Msg("could not commit backtest_results transaction")
		return err
	}

	if err := common.CacheSet(cacheKey(res.ID.String()), body); err != nil {
		// cache failure is not fatal
		subLog.Warn().Err(err).Msg("could not cache backtest result")
	}

	subLog.Info().Msg("saved backtest result")
	return nil
}

// Load fetches a previously saved result by id, preferring the cache.
func Load(ctx context.Context, id string) (*Result, error) {
	if body, err := common.CacheGet(cacheKey(id)); err == nil {
		res := &Result{}
		if err := json.Unmarshal(body, res); err == nil {
			return res, nil
		}
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		return nil, err
	}

	var body []byte
	if err := trx.QueryRow(ctx, `SELECT result FROM backtest_results WHERE id = $1`, id).Scan(&body); err != nil {
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}
	if err := trx.Commit(ctx); err != nil {
		return nil, err
	}

	res := &Result{}
	if err := json.Unmarshal(body, res); err != nil {
		return nil, err
	}
	if err := common.CacheSet(cacheKey(id), body); err != nil {
		log.Warn().Err(err).Str("BacktestID", id).Msg("could not cache backtest result")
	}
	return res, nil
}
