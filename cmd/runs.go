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
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/penny-vault/pv-optimizer/report"
	"github.com/penny-vault/pv-optimizer/runindex"
)

var (
	runsLimit int
	runsTag   string
)

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of entries to show; 0 shows all")
	runsCmd.Flags().StringVar(&runsTag, "tag", "", "Only show runs with this tag")

	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		idx, err := openIndex()
		if err != nil {
			log.Error().Stack().Err(err).Msg("could not open run index")
			return err
		}
		defer idx.Close()

		entries, err := idx.List(context.Background(), runsLimit, runsTag)
		if err != nil {
			log.Error().Stack().Err(err).Msg("could not list runs")
			return err
		}

		fmt.Println(entriesTable(entries))
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show run-id [portfolio]",
	Short: "Print the comparison tables stored for a run",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx := context.Background()

		idx, err := openIndex()
		if err != nil {
			log.Error().Stack().Err(err).Msg("could not open run index")
			return err
		}
		defer idx.Close()

		entries, err := idx.Get(ctx, args[0])
		if err != nil {
			return err
		}

		for _, entry := range entries {
			if len(args) == 2 && !strings.EqualFold(args[1], entry.Portfolio) {
				continue
			}

			doc, err := idx.Report(ctx, entry.RunID, entry.Portfolio)
			if err != nil {
				log.Error().Stack().Err(err).Str("RunID", entry.RunID).Str("Portfolio", entry.Portfolio).Msg("could not load report")
				return err
			}
			cmp, err := report.FromDocument(doc)
			if err != nil {
				return err
			}

			meta := doc.Metadata
			fmt.Printf("%s  %s  train %s to %s  test %s to %s\n", entry.Portfolio, strings.Join(doc.Tickers, ","),
				meta.TrainStart.Format("2006-01-02"), meta.TrainEnd.Format("2006-01-02"),
				meta.TestStart.Format("2006-01-02"), meta.TestEnd.Format("2006-01-02"))
			fmt.Println(cmp.Table())
		}
		return nil
	},
}

func entriesTable(entries []*runindex.Entry) string {
	if len(entries) == 0 {
		return "<NO DATA>"
	}

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Run ID", "Created", "Tag", "Portfolio", "Best Model", "Best Sharpe", "Report"})
	table.SetBorder(false)

	for _, entry := range entries {
		table.Append([]string{
			entry.RunID,
			entry.Created.Local().Format("2006-01-02 15:04:05"),
			entry.Tag,
			entry.Portfolio,
			entry.BestModel,
			fmt.Sprintf("%.3f", entry.BestSharpe),
			entry.ReportPath,
		})
	}

	table.Render()
	return s.String()
}
