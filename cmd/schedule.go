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
	"time"

	"github.com/fundscope/fs-api/common"
	"github.com/fundscope/fs-api/data"
	"github.com/fundscope/fs-api/data/database"
	"github.com/fundscope/fs-api/scoring"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var scheduleAt string

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().StringVar(&scheduleAt, "at", "21:30", "Local time of day to run the daily scoring batch")
	viper.BindPFlag("scoring.schedule_at", scheduleCmd.Flags().Lookup("at"))
}

// runScoringBatch scores the universe as of today and persists the
// result. Errors are logged rather than fatal so a bad day does not kill
// the scheduler.
func runScoringBatch() {
	ctx := context.Background()
	tz := common.GetTimezone()
	now := time.Now().In(tz)
	scoreDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, tz)

	manager := data.NewManager()
	pipeline := scoring.NewPipeline(manager, scoring.DefaultParameters(), scoreWorkers)
	records, err := pipeline.Run(ctx, scoreDate)
	if err != nil {
		log.Error().Err(err).Msg("scheduled scoring batch failed")
		return
	}
	if err := scoring.SaveScores(ctx, scoreDate, records); err != nil {
		log.Error().Err(err).Msg("could not save scheduled fund scores")
	}

	// anything still open here leaked
	database.LogOpenTransactions()
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the scoring batch on a daily schedule",
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		common.SetupCache()
		ctx := context.Background()
		defer setupTracing(ctx)()

		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}

		tz := common.GetTimezone()
		scheduler := gocron.NewScheduler(tz)
		at := viper.GetString("scoring.schedule_at")
		if _, err := scheduler.Every(1).Day().At(at).Do(runScoringBatch); err != nil {
			log.Fatal().Err(err).Str("At", at).Msg("could not schedule scoring batch")
		}

		log.Info().Str("At", at).Msg("scoring batch scheduled")
		scheduler.StartBlocking()
	},
}
