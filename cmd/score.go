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

package cmd

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/fundscope/fs-api/common"
	"github.com/fundscope/fs-api/data"
	"github.com/fundscope/fs-api/data/database"
	"github.com/fundscope/fs-api/scoring"
	"github.com/rs/zerolog/log"

	"github.com/spf13/cobra"
)

var (
	scoreDateStr string
	scoreWorkers int
	scoreDryRun  bool
)

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVar(&scoreDateStr, "date", "", "Score date in YYYY-MM-DD format, defaults to today")
	scoreCmd.Flags().IntVar(&scoreWorkers, "workers", runtime.NumCPU(), "Number of concurrent scoring workers")
	scoreCmd.Flags().BoolVar(&scoreDryRun, "dry-run", false, "Compute scores but do not write them to the database")
}

// resolveScoreDate parses the --date flag, defaulting to midnight today
// in the market timezone.
func resolveScoreDate() (time.Time, error) {
	tz := common.GetTimezone()
	if scoreDateStr == "" {
		now := time.Now().In(tz)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, tz), nil
	}
	return time.ParseInLocation("2006-01-02", scoreDateStr, tz)
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score the active fund universe and rank funds against their peers",
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		common.SetupCache()
		ctx := context.Background()
		defer setupTracing(ctx)()

		scoreDate, err := resolveScoreDate()
		if err != nil {
			log.Fatal().Err(err).Str("Date", scoreDateStr).Msg("could not parse score date")
		}

		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}

		manager := data.NewManager()
		pipeline := scoring.NewPipeline(manager, scoring.DefaultParameters(), scoreWorkers)

		records, err := pipeline.Run(ctx, scoreDate)
		if err != nil {
			log.Fatal().Err(err).Msg("scoring batch failed")
		}

		if scoreDryRun {
			for _, rec := range records {
				fmt.Printf("%s\t%6.2f\t%2d/%-3d\t%s\n", rec.SchemeCode, rec.TotalScore,
					rec.CategoryPlacement.Rank, rec.CategoryPlacement.GroupSize, rec.Recommendation)
			}
			return
		}

		if err := scoring.SaveScores(ctx, scoreDate, records); err != nil {
			log.Fatal().Err(err).Msg("could not save fund scores")
		}
		fmt.Printf("Scored %d funds as of %s\n", len(records), scoreDate.Format("2006-01-02"))
	},
}
