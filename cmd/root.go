// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/runindex"
)

// bind registers a persistent flag with viper under key and the PVOPT_
// environment variable env
func bind(key, env, flag string) {
	if err := viper.BindEnv(key, env); err != nil {
		log.Panic().Err(err).Str("Key", key).Msg("could not bind environment variable")
	}
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		log.Panic().Err(err).Str("Key", key).Msg("could not bind flag")
	}
}

func init() {
	// Logging configuration
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	bind("log.level", "PVOPT_LOG_LEVEL", "log-level")

	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	bind("log.report_caller", "PVOPT_LOG_REPORT_CALLER", "log-report-caller")

	rootCmd.PersistentFlags().String("log-output", "stderr", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	bind("log.output", "PVOPT_LOG_OUTPUT", "log-output")

	rootCmd.PersistentFlags().Bool("log-pretty", true, "Format log output for humans")
	bind("log.pretty", "PVOPT_LOG_PRETTY", "log-pretty")

	// Tracing
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OTLP collector to send traces to; tracing is off when empty")
	bind("otlp.endpoint", "PVOPT_OTLP_ENDPOINT", "otlp-endpoint")

	rootCmd.PersistentFlags().Bool("otlp-http", false, "Use OTLP/HTTP instead of OTLP/gRPC")
	bind("otlp.http", "PVOPT_OTLP_HTTP", "otlp-http")

	// Runs
	rootCmd.PersistentFlags().String("runs-dir", "runs", "Directory that receives one sub-directory per run")
	bind("runs.dir", "PVOPT_RUNS_DIR", "runs-dir")

	rootCmd.PersistentFlags().String("runs-index", "", "SQLite run index (default <runs-dir>/runs.db)")
	bind("runs.index", "PVOPT_RUNS_INDEX", "runs-index")

	// Data
	rootCmd.PersistentFlags().String("data-dir", "data", "Price file or directory used when an experiment does not name one")
	bind("data.dir", "PVOPT_DATA_DIR", "data-dir")

	rootCmd.PersistentFlags().String("data-format", "csv", "Price format used when an experiment does not name one: csv or parquet")
	bind("data.format", "PVOPT_DATA_FORMAT", "data-format")

	// Execution
	rootCmd.PersistentFlags().Int("workers", 0, "Concurrent backtests (default number of CPUs)")
	bind("pipeline.workers", "PVOPT_WORKERS", "workers")

	rootCmd.PersistentFlags().Int("cache-forecast-size", common.DefaultCacheSize, "Number of fitted forecasts kept in memory")
	bind("cache.forecast_size", "PVOPT_CACHE_FORECAST_SIZE", "cache-forecast-size")
}

var rootCmd = &cobra.Command{
	Use:     "pvopt",
	Version: common.CurrentVersion.String(),
	Short:   "Backtest optimized multi-asset portfolios against baselines",
	Long: `pvopt fits expected returns and covariances on a training window,
solves constrained mean-variance allocations, and backtests them against
passive baselines on held-out prices.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		common.SetupLogging()
		return common.SetupCache(viper.GetInt("cache.forecast_size"))
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openIndex opens the configured run index
func openIndex() (*runindex.Index, error) {
	path := viper.GetString("runs.index")
	if path == "" {
		path = filepath.Join(viper.GetString("runs.dir"), "runs.db")
	}
	return runindex.Open(path, "")
}
