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
	"fmt"
	"net/http"
	"time"

	"sharkwatch/internal/clustering"
	"sharkwatch/internal/config"
	"sharkwatch/internal/enrich"
	"sharkwatch/internal/feedcache"
	"sharkwatch/internal/llm"
	"sharkwatch/internal/logger"
	"sharkwatch/internal/persistence"
	"sharkwatch/internal/relevance"
	"sharkwatch/internal/roster"
	"sharkwatch/internal/scheduler"
	"sharkwatch/internal/submissions"
)

// app bundles every wired dependency a subcommand might need. Built once per
// process invocation, mirroring the teacher's per-handler getDatabase() but
// assembling the whole dependency graph instead of just a connection.
type app struct {
	cfg        *config.Config
	store      *persistence.Store
	httpClient *http.Client
	cache      *feedcache.Store
	llmClient  *llm.Client
	filter     *relevance.Filter
	clusterer  *clustering.Clusterer
	enricher   *enrich.Processor
	rosterSyncer *roster.Syncer
	sched      *scheduler.Scheduler
}

// rosterSelectors are the CSS selectors for the configured roster page.
// There is exactly one roster source for this deployment, so these live as
// constants rather than configuration; a multi-team deployment would move
// this into config.
var rosterSelectors = roster.Selectors{
	ActiveSection:    "#active-roster",
	NonRosterSection: "#non-roster",
	PlayerName:       ".player-name",
}

const rosterPageURL = "https://www.nhl.com/sharks/roster"

func buildApp(ctx context.Context, cfgFile string) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger.Init(logger.Options{Level: cfg.Logging.Level, PrettyText: cfg.Logging.Pretty})

	store, err := persistence.Open(cfg.Database.ConnectionString, cfg.Database.MaxConnections, cfg.Database.IdleConnections)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Feeds.RequestTimeout}

	var cache *feedcache.Store
	if cfg.FeedCache.Directory != "" {
		cache, err = feedcache.Open(cfg.FeedCache.Directory)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("opening feed cache: %w", err)
		}
	}

	var llmClient *llm.Client
	if cfg.Relevance.LLMRelevanceEnabled {
		llmClient = llm.NewClient(cfg.Relevance.OllamaBaseURL, cfg.Relevance.OllamaModel,
			llm.WithTimeout(time.Duration(cfg.Relevance.OllamaTimeoutSeconds)*time.Second))
	}

	filter := relevance.NewFilter(relevance.Config{
		LLMEnabled:     cfg.Relevance.LLMRelevanceEnabled,
		EvaluationMode: cfg.Relevance.LLMEvaluationMode,
		TopicKeywords:  cfg.Relevance.TopicKeywords,
	}, llmAdapterOrNil(llmClient))

	clusterer := clustering.NewClusterer(store, clustering.Thresholds{
		SimilarityThreshold:      cfg.Clustering.SimilarityThreshold,
		EntityOverlapThreshold:   cfg.Clustering.EntityOverlapThreshold,
		TokenSimilarityThreshold: cfg.Clustering.TokenSimilarityThreshold,
	}, cfg.Clustering.TimeWindowHours, cfg.Clustering.GameTimeWindowHours, cfg.Clustering.OpinionTimeWindowHours)

	enricher := enrich.NewProcessor(store, filter, clusterer, cfg.Relevance.TopicKeywords)

	rosterSyncer := roster.NewSyncer(store, httpClient, rosterPageURL, rosterSelectors)

	schedCfg := scheduler.Config{
		MaxConcurrency:  cfg.Scheduler.MaxConcurrency,
		MaxFetchRetries: cfg.Feeds.MaxFetchRetries,
		IngestInterval:  time.Duration(cfg.Feeds.IngestIntervalMinutes) * time.Minute,
		DataRetention:   30 * 24 * time.Hour,
		EnrichQueueSize: 256,
	}
	sched := scheduler.New(store, httpClient, cache, enricher, rosterSyncer, schedCfg)

	return &app{
		cfg: cfg, store: store, httpClient: httpClient, cache: cache,
		llmClient: llmClient, filter: filter, clusterer: clusterer,
		enricher: enricher, rosterSyncer: rosterSyncer, sched: sched,
	}, nil
}

func (a *app) Close() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	_ = a.store.Close()
}

// llmAdapterOrNil returns nil cleanly when no LLM client was built, instead
// of a non-nil interface wrapping a nil *llm.Client (the classic Go
// nil-interface trap).
func llmAdapterOrNil(c *llm.Client) relevance.OllamaClient {
	if c == nil {
		return nil
	}
	return c
}

// submissionStoreAdapter satisfies submissions.Store by pairing the
// persistence layer (which already implements every method except
// enqueueing) with the Scheduler's enrich queue.
type submissionStoreAdapter struct {
	*persistence.Store
	sched *scheduler.Scheduler
}

func (a submissionStoreAdapter) EnqueueEnrich(ctx context.Context, rawItemID int64) error {
	return a.sched.EnqueueEnrich(ctx, rawItemID)
}

func newSubmissionsProcessor(a *app) *submissions.Processor {
	adapter := submissionStoreAdapter{Store: a.store, sched: a.sched}
	return submissions.NewProcessor(adapter, a.httpClient, a.cfg.Submissions.RateLimitPerIPPerHour)
}
