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
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-optimizer/data"
	"github.com/penny-vault/pv-optimizer/observability/opentelemetry"
	"github.com/penny-vault/pv-optimizer/pipeline"
	"github.com/penny-vault/pv-optimizer/report"
)

var (
	backtestPlot       bool
	backtestPlotWidth  int
	backtestPlotHeight int
	backtestJSON       bool
	backtestNoIndex    bool
	backtestFailFast   bool
)

func init() {
	backtestCmd.Flags().BoolVar(&backtestPlot, "plot", true, "Plot the equity curve of the best model of each portfolio")
	backtestCmd.Flags().IntVar(&backtestPlotWidth, "plot-width", 80, "Width of the equity curve plot")
	backtestCmd.Flags().IntVar(&backtestPlotHeight, "plot-height", 12, "Height of the equity curve plot")
	backtestCmd.Flags().BoolVar(&backtestJSON, "json", false, "Print the report documents as JSON instead of tables")
	backtestCmd.Flags().BoolVar(&backtestNoIndex, "no-index", false, "Do not record the run in the run index")
	backtestCmd.Flags().BoolVar(&backtestFailFast, "fail-fast", false, "Abort on the first failing model")

	rootCmd.AddCommand(backtestCmd)
}

var backtestCmd = &cobra.Command{
	Use:   "backtest [flags] experiment.yaml",
	Short: "Run every model and baseline of an experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		shutdown, err := opentelemetry.Setup()
		if err != nil {
			log.Error().Stack().Err(err).Msg("could not setup tracing")
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Error().Stack().Err(err).Msg("could not flush traces")
			}
		}()

		exp, err := pipeline.LoadExperiment(args[0])
		if err != nil {
			log.Error().Stack().Err(err).Str("Path", args[0]).Msg("could not load experiment")
			return err
		}
		if backtestFailFast {
			exp.FailFast = true
		}

		source, err := priceSource(exp)
		if err != nil {
			log.Error().Stack().Err(err).Msg("could not open price source")
			return err
		}

		opts := pipeline.Options{
			RunsDir: viper.GetString("runs.dir"),
			Workers: viper.GetInt("pipeline.workers"),
		}

		if !backtestNoIndex {
			idx, err := openIndex()
			if err != nil {
				log.Error().Stack().Err(err).Msg("could not open run index")
				return err
			}
			defer idx.Close()
			opts.Index = idx
		}

		runner, err := pipeline.NewRunner(exp, source, opts)
		if err != nil {
			return err
		}

		res, err := runner.Run(ctx)
		if err != nil {
			log.Error().Stack().Err(err).Msg("experiment failed")
			return err
		}

		if backtestJSON {
			return report.WriteJSON(os.Stdout, res.Documents)
		}

		printResult(res)
		return nil
	},
}

// priceSource picks the loader named by the experiment, falling back to the
// data.* settings
func priceSource(exp *pipeline.Experiment) (data.PriceSource, error) {
	format := exp.Data.Format
	if format == "" {
		format = viper.GetString("data.format")
	}
	path := exp.Data.Path
	if path == "" {
		path = viper.GetString("data.dir")
	}
	return data.NewSource(format, path)
}

func printResult(res *pipeline.Result) {
	fmt.Printf("Run %s (%s)\n", res.RunID, res.Tag)
	if res.ReportPath != "" {
		fmt.Printf("Report: %s\n", res.ReportPath)
	}

	for _, cmp := range res.Reports {
		fmt.Println()
		fmt.Println(cmp.Table())

		best, ok := cmp.Best()
		if !ok || !backtestPlot {
			continue
		}
		plot, err := cmp.Plot(best.Model, backtestPlotWidth, backtestPlotHeight)
		if err != nil {
			log.Warn().Err(err).Str("Portfolio", cmp.Portfolio()).Str("Model", best.Model).Msg("could not plot equity curve")
			continue
		}
		fmt.Println(plot)
	}
}
