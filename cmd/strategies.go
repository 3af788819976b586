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
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/penny-vault/pv-optimizer/strategies"
)

var strategiesVerbose bool

func init() {
	strategiesCmd.Flags().BoolVarP(&strategiesVerbose, "verbose", "v", false, "Show the long description and arguments of every strategy")
	rootCmd.AddCommand(strategiesCmd)
}

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the strategies an experiment can use",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		strategies.InitializeStrategyMap()

		s := &strings.Builder{}
		table := tablewriter.NewWriter(s)
		table.SetHeader([]string{"Shortcode", "Name", "Schedule", "Baseline", "Description"})
		table.SetBorder(false)
		for _, info := range strategies.StrategyList {
			table.Append([]string{info.Shortcode, info.Name, info.Schedule, fmt.Sprintf("%t", info.Baseline), info.Description})
		}
		table.Render()
		fmt.Print(s.String())

		if !strategiesVerbose {
			return
		}

		for _, info := range strategies.StrategyList {
			fmt.Printf("\n## %s (%s)\n\n%s\n", info.Name, info.Shortcode, strings.TrimSpace(info.LongDescription))
			if len(info.Arguments) == 0 {
				continue
			}

			names := make([]string, 0, len(info.Arguments))
			for name := range info.Arguments {
				names = append(names, name)
			}
			sort.Strings(names)

			fmt.Println("\nArguments:")
			for _, name := range names {
				arg := info.Arguments[name]
				fmt.Printf("  %-12s %-8s default %-6q %s\n", name, arg.Typecode, arg.Default, arg.Description)
			}
		}
	},
}
