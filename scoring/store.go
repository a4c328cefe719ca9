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
	"time"

	"github.com/fundscope/fs-api/data/database"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"github.com/fundscope/fs-api/observability/opentelemetry"
)

// SaveScores persists a batch of score records for one score date. The
// write is a full replacement: every existing row for the date is removed
// and the new batch inserted in a single transaction, so re-running a
// batch never leaves a mix of old and new scores.
func SaveScores(ctx context.Context, scoreDate time.Time, records []*ScoreRecord) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "scoring.SaveScores")
	defer span.End()

	subLog := log.With().Time("ScoreDate", scoreDate).Int("NumRecords", len(records)).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Err(err).Msg("unable to get database transaction")
		return err
	}

	if _, err := trx.Exec(ctx, `DELETE FROM fund_scores WHERE score_date = $1`, scoreDate); err != nil {
		subLog.Error().Err(err).Msg("delete existing fund_scores rows failed")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Err(err).Msg("could not rollback transaction")
		}
		return err
	}

	sql := `INSERT INTO fund_scores (
		scheme_code,
		fund_name,
		score_date,
		category,
		subcategory,
		total_score,
		coverage,
		recommendation,
		category_rank,
		category_percentile,
		category_quartile,
		subcategory_rank,
		subcategory_percentile,
		subcategory_quartile,
		flags,
		params_version,
		record
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
	)`

	for _, rec := range records {
		flags, err := json.Marshal(rec.Flags)
		if err != nil {
			subLog.Error().Err(err).Str("SchemeCode", rec.SchemeCode).Msg("could not marshal flags")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Err(err).Msg("could not rollback transaction")
			}
			return err
		}
		body, err := json.Marshal(rec)
		if err != nil {
			subLog.Error().Err(err).Str("SchemeCode", rec.SchemeCode).Msg("could not marshal score record")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Err(err).Msg("could not rollback transaction")
			}
			return err
		}

		if _, err := trx.Exec(ctx, sql,
			rec.SchemeCode,
			rec.FundName,
			rec.ScoreDate,
			rec.Category,
			rec.Subcategory,
			rec.TotalScore,
			rec.Coverage,
			string(rec.Recommendation),
			rec.CategoryPlacement.Rank,
			rec.CategoryPlacement.Percentile,
			rec.CategoryPlacement.Quartile,
			rec.SubcategoryPlacement.Rank,
			rec.SubcategoryPlacement.Percentile,
			rec.SubcategoryPlacement.Quartile,
			flags,
			rec.ParamsVersion,
			body,
		); err != nil {
			subLog.Error().Err(err).Str("SchemeCode", rec.SchemeCode).Msg("insert fund_scores row failed")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Err(err).Msg("could not rollback transaction")
			}
			return err
		}
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Err(err).Msg("could not commit fund_scores transaction")
		return err
	}

	subLog.Info().Msg("saved fund scores")
	return nil
}
