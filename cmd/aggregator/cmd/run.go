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
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sharkwatch/internal/logger"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler: periodic fetch fan-out, enrichment workers, and maintenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			a.sched.StartWorkers(ctx)
			defer a.sched.StopWorkers()

			logger.Info("sharkwatch scheduler starting", logger.Fields{
				"max_concurrency": a.cfg.Scheduler.MaxConcurrency,
				"ingest_interval_minutes": a.cfg.Feeds.IngestIntervalMinutes,
			})

			runInitialFetch(ctx, a)
			a.sched.Run(ctx)

			logger.Info("sharkwatch scheduler stopped", nil)
			return nil
		},
	}
}

// runInitialFetch performs one fetch pass immediately at startup rather than
// waiting a full tick, so a freshly deployed instance isn't empty for the
// first ingest interval.
func runInitialFetch(ctx context.Context, a *app) {
	if _, err := a.sched.FetchAll(ctx); err != nil {
		logger.Error("initial fetch fan-out failed", err, nil)
	}
}
