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
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	purgeTag           string
	purgeRemoveOutputs bool
)

func init() {
	purgeCmd.Flags().Duration("max-age", 30*24*time.Hour, "Delete runs created longer ago than this")
	if err := viper.BindPFlag("runs.max_age", purgeCmd.Flags().Lookup("max-age")); err != nil {
		log.Panic().Err(err).Msg("could not bind runs.max_age")
	}
	if err := viper.BindEnv("runs.max_age", "PVOPT_RUNS_MAX_AGE"); err != nil {
		log.Panic().Err(err).Msg("could not bind runs.max_age")
	}

	purgeCmd.Flags().StringVar(&purgeTag, "tag", "", "Only purge runs with this tag")
	purgeCmd.Flags().BoolVar(&purgeRemoveOutputs, "remove-outputs", false, "Also delete the output directory of every purged run")

	rootCmd.AddCommand(purgeCmd)
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete runs older than runs.max_age from the run index",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		idx, err := openIndex()
		if err != nil {
			log.Error().Stack().Err(err).Msg("could not open run index")
			return err
		}
		defer idx.Close()

		cutoff := time.Now().Add(-viper.GetDuration("runs.max_age"))
		purged, err := idx.Purge(context.Background(), cutoff, purgeTag)
		if err != nil {
			log.Error().Stack().Err(err).Msg("could not purge run index")
			return err
		}

		if purgeRemoveOutputs {
			removed := make(map[string]bool)
			for _, entry := range purged {
				if entry.ReportPath == "" {
					continue
				}
				dir := filepath.Dir(entry.ReportPath)
				if removed[dir] {
					continue
				}
				removed[dir] = true
				if err := os.RemoveAll(dir); err != nil {
					log.Error().Stack().Err(err).Str("Dir", dir).Msg("could not remove run output")
				}
			}
		}

		log.Info().Int("NumPurged", len(purged)).Time("Cutoff", cutoff).Msg("purge complete")
		return nil
	},
}
