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

	"github.com/spf13/cobra"
)

func newRosterSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roster-sync",
		Short: "Refresh the entity roster from the team's roster page",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.rosterSyncer.Sync(ctx)
			if err != nil {
				return fmt.Errorf("syncing roster: %w", err)
			}
			fmt.Printf("active: %d, non-roster: %d, departed: %d\n", result.Active, result.NonRoster, result.Departed)
			return nil
		},
	}
}
