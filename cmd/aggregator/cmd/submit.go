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

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Submit a user-supplied article URL for ingestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			// Submit enqueues onto the Scheduler's enrich queue, built for a
			// long-running `run` process. A one-shot CLI invocation has no
			// worker pool draining that queue, so run enrichment inline
			// immediately after a successful submission instead of waiting
			// on a worker that would never start.
			processor := newSubmissionsProcessor(a)
			submission, err := processor.Submit(ctx, args[0], "cli")
			if err != nil {
				return fmt.Errorf("submitting url: %w", err)
			}

			fmt.Printf("submission %d: %s\n", submission.ID, submission.Status)
			if submission.RawItemID != nil {
				result, err := a.enricher.Enrich(ctx, *submission.RawItemID)
				if err != nil {
					return fmt.Errorf("enriching submitted item: %w", err)
				}
				fmt.Printf("enrichment outcome: %s\n", result.Outcome)
			}
			return nil
		},
	}
	return cmd
}
