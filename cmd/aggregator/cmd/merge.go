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
	"strconv"

	"github.com/spf13/cobra"

	"sharkwatch/internal/clustering"
)

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <target-cluster-id> <source-cluster-id>...",
		Short: "Manually merge one or more clusters into a target cluster",
		Long: `Merge repoints every variant, tag, and entity association from the
source clusters onto the target cluster and deletes the sources. This is
an operator-only override for cases the automatic matcher missed or got
wrong; it does not run as part of the regular enrichment pipeline.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			targetID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parsing target cluster id %q: %w", args[0], err)
			}
			sourceIDs := make([]int64, 0, len(args)-1)
			for _, raw := range args[1:] {
				id, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					return fmt.Errorf("parsing source cluster id %q: %w", raw, err)
				}
				sourceIDs = append(sourceIDs, id)
			}

			if err := clustering.Merge(ctx, a.store, targetID, sourceIDs); err != nil {
				return fmt.Errorf("merging clusters: %w", err)
			}
			fmt.Printf("merged %d cluster(s) into %d\n", len(sourceIDs), targetID)
			return nil
		},
	}
}
