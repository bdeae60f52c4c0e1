/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sharkwatch",
	Short: "sharkwatch aggregates, clusters, and serves topic-focused news",
	Long: `sharkwatch fetches items from RSS/Atom feeds and HTML listing pages,
filters them for topical relevance, extracts roster entities, classifies the
kind of event each item describes, and groups near-duplicate coverage of the
same event into a single cluster.`,
}

// Execute adds all child commands to the root command and runs it. Called by
// main.main; only needs to happen once.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; when unset no file is read)")

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSubmitCmd())
	rootCmd.AddCommand(newMergeCmd())
	rootCmd.AddCommand(newRosterSyncCmd())
}
