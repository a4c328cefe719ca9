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
	"time"

	"github.com/fundscope/fs-api/backtest"
	"github.com/fundscope/fs-api/common"
	"github.com/fundscope/fs-api/data"
	"github.com/fundscope/fs-api/data/database"
	"github.com/fundscope/fs-api/metrics"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/spf13/cobra"
)

var (
	backtestStartStr  string
	backtestEndStr    string
	backtestAmount    float64
	backtestCadence   string
	backtestBenchmark string
	backtestNoSave    bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&backtestStartStr, "start", "", "Start date in YYYY-MM-DD format (required)")
	backtestCmd.Flags().StringVar(&backtestEndStr, "end", "", "End date in YYYY-MM-DD format, defaults to today")
	backtestCmd.Flags().Float64Var(&backtestAmount, "amount", 100_000, "Initial investment amount")
	backtestCmd.Flags().StringVar(&backtestCadence, "cadence", "quarterly", "Rebalance cadence: none, monthly, quarterly, or annually")
	backtestCmd.Flags().StringVar(&backtestBenchmark, "benchmark", "", "Benchmark name for relative metrics")
	backtestCmd.Flags().BoolVar(&backtestNoSave, "no-save", false, "Print the result without persisting it")
	backtestCmd.MarkFlagRequired("start")
}

func fmtValue(v metrics.Value, unit string) string {
	if !v.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%s", v.Float64, unit)
}

var backtestCmd = &cobra.Command{
	Use:        "backtest [flags] Allocations",
	Short:      "Replay a fixed-weight fund portfolio over historical nav data",
	Long:       `Replay a fixed-weight fund portfolio over historical nav data. Allocations is a JSON array of {"schemeCode": "...", "weight": 0.5} objects whose weights sum to 1.0.`,
	Args:       cobra.ExactArgs(1),
	ArgAliases: []string{"Allocations"},
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		common.SetupCache()
		ctx := context.Background()
		defer setupTracing(ctx)()

		var allocations []backtest.Allocation
		if err := json.Unmarshal([]byte(args[0]), &allocations); err != nil {
			log.Fatal().Err(err).Msg("could not parse allocations")
		}

		tz := common.GetTimezone()
		start, err := time.ParseInLocation("2006-01-02", backtestStartStr, tz)
		if err != nil {
			log.Fatal().Err(err).Str("Start", backtestStartStr).Msg("could not parse start date")
		}
		end := time.Now().In(tz)
		end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, tz)
		if backtestEndStr != "" {
			if end, err = time.ParseInLocation("2006-01-02", backtestEndStr, tz); err != nil {
				log.Fatal().Err(err).Str("End", backtestEndStr).Msg("could not parse end date")
			}
		}

		cadence, err := backtest.ParseCadence(backtestCadence)
		if err != nil {
			log.Fatal().Err(err).Msg("could not parse cadence")
		}

		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}

		engine := backtest.NewEngine(data.NewManager())
		res, err := engine.Run(ctx, &backtest.Request{
			Allocations:   allocations,
			StartDate:     start,
			EndDate:       end,
			InitialAmount: backtestAmount,
			Cadence:       cadence,
			BenchmarkName: backtestBenchmark,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("backtest failed")
		}

		if res.Status == backtest.StatusFailed {
			fmt.Printf("Backtest FAILED: %s\n", res.FailureReason)
		} else {
			fmt.Printf("Backtest %s (%s to %s)\n", res.ID,
				start.Format("2006-01-02"), end.Format("2006-01-02"))
			fmt.Printf("Final Value      : %.2f\n", res.FinalValue)
			fmt.Printf("Total Return     : %s\n", fmtValue(res.TotalReturn, "%"))
			fmt.Printf("Annualized Return: %s\n", fmtValue(res.AnnualizedReturn, "%"))
			fmt.Printf("Volatility       : %s\n", fmtValue(res.Volatility, "%"))
			fmt.Printf("Max Draw Down    : %s\n", fmtValue(res.MaxDrawDown, "%"))
			fmt.Printf("Benchmark Return : %s\n", fmtValue(res.BenchmarkReturn, "%"))
			fmt.Printf("Excess Return    : %s\n", fmtValue(res.ExcessReturn, "%"))
			fmt.Printf("Tracking Error   : %s\n", fmtValue(res.TrackingError, "%"))
			fmt.Println("Attribution:")
			for _, alloc := range allocations {
				fmt.Printf("  %s\t%.2f%%\n", alloc.SchemeCode, res.Attribution[alloc.SchemeCode])
			}
		}

		if !backtestNoSave {
			if err := res.Save(ctx); err != nil {
				log.Fatal().Err(err).Msg("could not save backtest result")
			}
		}
	},
}
