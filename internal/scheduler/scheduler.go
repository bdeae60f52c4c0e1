// Package scheduler runs the periodic fan-out fetch tick, the daily and
// hourly maintenance tasks, and the on-demand enrich queue that drives the
// rest of the pipeline. The concurrency shape — a bounded semaphore
// plus sync.WaitGroup fanning out one goroutine per source — is lifted
// directly from the teacher's internal/sources.Manager.Aggregate; the
// retry backoff comes from cenkalti/backoff/v4 (pulled into the module via
// the steveyegge-beads retrieval-pack repo, which uses the same library
// for its own transient-error retries).
package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"sharkwatch/internal/core"
	"sharkwatch/internal/enrich"
	"sharkwatch/internal/feedcache"
	"sharkwatch/internal/fetch"
	"sharkwatch/internal/logger"
	"sharkwatch/internal/roster"
)

// Store is the persistence dependency this package needs.
type Store interface {
	ListApprovedSources(ctx context.Context) ([]core.Source, error)
	MarkSourceFetchSucceeded(ctx context.Context, id int64, fetchedAt time.Time) error
	IncrementSourceErrorCount(ctx context.Context, id int64) error
	CreateRawItem(ctx context.Context, item core.RawItem) (core.RawItem, bool, error)
	PurgeRawItemsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeClustersOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// EnrichRunner is the subset of enrich.Processor the scheduler depends on.
type EnrichRunner interface {
	Enrich(ctx context.Context, rawItemID int64) (enrich.Result, error)
}

// RosterSyncer is the subset of roster.Syncer the scheduler depends on.
type RosterSyncer interface {
	Sync(ctx context.Context) (roster.Result, error)
}

// Config controls fan-out concurrency, fetch robustness, and the periodic
// schedule. Values come from internal/config at startup.
type Config struct {
	MaxConcurrency    int
	MaxFetchRetries   int
	IngestInterval    time.Duration
	DataRetention     time.Duration // default 30 days (spec §9 unbounded-growth purge)
	EnrichQueueSize   int
}

// DefaultConfig returns the spec's default schedule.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:  5,
		MaxFetchRetries: 3,
		IngestInterval:  10 * time.Minute,
		DataRetention:   30 * 24 * time.Hour,
		EnrichQueueSize: 256,
	}
}

// Scheduler fans out per-source fetch tasks on a tick, runs daily/hourly
// maintenance, and drains an in-process queue of on-demand enrich tasks.
// It implements submissions.Store's EnqueueEnrich so the submission
// processor can hand items straight into the same queue fetch tasks use.
type Scheduler struct {
	store        Store
	httpClient   *http.Client
	cache        *feedcache.Store
	enricher     EnrichRunner
	rosterSyncer RosterSyncer
	cfg          Config

	enrichQueue chan int64
	workersOnce sync.Once
	stopWorkers chan struct{}
	workerWG    sync.WaitGroup
}

// New builds a Scheduler. cache may be nil, in which case fetches never
// send conditional-GET validators.
func New(store Store, httpClient *http.Client, cache *feedcache.Store, enricher EnrichRunner, rosterSyncer RosterSyncer, cfg Config) *Scheduler {
	return &Scheduler{
		store:        store,
		httpClient:   httpClient,
		cache:        cache,
		enricher:     enricher,
		rosterSyncer: rosterSyncer,
		cfg:          cfg,
		enrichQueue:  make(chan int64, cfg.EnrichQueueSize),
		stopWorkers:  make(chan struct{}),
	}
}

// StartWorkers launches the fixed-size enrich worker pool. Safe to call
// once; subsequent calls are no-ops.
func (s *Scheduler) StartWorkers(ctx context.Context) {
	s.workersOnce.Do(func() {
		for i := 0; i < s.cfg.MaxConcurrency; i++ {
			s.workerWG.Add(1)
			go s.enrichWorker(ctx)
		}
	})
}

// StopWorkers signals the enrich worker pool to exit and waits for
// in-flight tasks to finish. Ids still waiting in the queue are not
// processed.
func (s *Scheduler) StopWorkers() {
	close(s.stopWorkers)
	s.workerWG.Wait()
}

func (s *Scheduler) enrichWorker(ctx context.Context) {
	defer s.workerWG.Done()
	for {
		select {
		case <-s.stopWorkers:
			return
		case <-ctx.Done():
			return
		case rawItemID := <-s.enrichQueue:
			s.runEnrich(ctx, rawItemID)
		}
	}
}

func (s *Scheduler) runEnrich(ctx context.Context, rawItemID int64) {
	result, err := s.enricher.Enrich(ctx, rawItemID)
	if err != nil {
		// Infrastructure failure: the task is logged and dropped; it is not
		// retried. A logical skip never reaches this branch, since Enrich
		// reports it as a non-error Result.
		logger.Error("enrich task failed", err, logger.Fields{"raw_item_id": rawItemID})
		return
	}
	logger.Debug("enrich task finished", logger.Fields{
		"raw_item_id": rawItemID, "outcome": string(result.Outcome),
	})
}

// EnqueueEnrich hands a raw item id to the enrich worker pool. It
// implements submissions.Store so the submission processor can enqueue
// through the same Scheduler the fetch fan-out uses.
func (s *Scheduler) EnqueueEnrich(ctx context.Context, rawItemID int64) error {
	select {
	case s.enrichQueue <- rawItemID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetchRetryPolicy implements backoff.BackOff with the spec's exact
// schedule (60*2^attempt seconds), wrapped to cap at MaxFetchRetries
// retries by the caller via backoff.WithMaxRetries.
type fetchRetryPolicy struct {
	attempt int
}

func (p *fetchRetryPolicy) NextBackOff() time.Duration {
	d := time.Duration(60*(1<<uint(p.attempt))) * time.Second
	p.attempt++
	return d
}

func (p *fetchRetryPolicy) Reset() { p.attempt = 0 }

// FetchSummary aggregates one fan-out tick's results.
type FetchSummary struct {
	SourcesFetched int
	SourcesFailed  int
	NewRawItems    int
	Errors         []error
}

// FetchAll fetches every approved source concurrently, bounded by
// MaxConcurrency, mirroring the teacher's Aggregate fan-out.
func (s *Scheduler) FetchAll(ctx context.Context) (FetchSummary, error) {
	sources, err := s.store.ListApprovedSources(ctx)
	if err != nil {
		return FetchSummary{}, fmt.Errorf("listing approved sources: %w", err)
	}

	var (
		summary FetchSummary
		mu      sync.Mutex
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, s.cfg.MaxConcurrency)

	for _, src := range sources {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(source core.Source) {
			defer wg.Done()
			defer func() { <-sem }()

			n, ferr := s.fetchSourceWithRetry(ctx, source)

			mu.Lock()
			defer mu.Unlock()
			if ferr != nil {
				summary.SourcesFailed++
				summary.Errors = append(summary.Errors, fmt.Errorf("source %d: %w", source.ID, ferr))
				return
			}
			summary.SourcesFetched++
			summary.NewRawItems += n
		}(src)
	}

	wg.Wait()
	logger.Info("fetch fan-out complete", logger.Fields{
		"fetched": summary.SourcesFetched, "failed": summary.SourcesFailed, "new_items": summary.NewRawItems,
	})
	return summary, nil
}

// fetchSourceWithRetry fetches one source, retrying transient failures
// with the spec's exponential schedule up to MaxFetchRetries. A per-source
// failure never cancels the scheduler tick (spec §7 propagation policy).
func (s *Scheduler) fetchSourceWithRetry(ctx context.Context, source core.Source) (int, error) {
	var newItems int
	operation := func() error {
		n, err := s.fetchSource(ctx, source)
		newItems = n
		return err
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(&fetchRetryPolicy{}, uint64(s.cfg.MaxFetchRetries)), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		_ = s.store.IncrementSourceErrorCount(ctx, source.ID)
		return 0, err
	}
	return newItems, nil
}

// fetchSource dispatches on ingest_method (spec §9's small dispatch map),
// ingests every returned entry idempotently, and advances the source's
// fetch bookkeeping on success.
func (s *Scheduler) fetchSource(ctx context.Context, source core.Source) (int, error) {
	var entries []fetch.ParsedEntry

	switch source.IngestMethod {
	case core.IngestMethodRSS:
		cached := s.cachedValidators(source.FeedURL)
		result, err := fetch.FetchRSS(ctx, s.httpClient, source.FeedURL, cached)
		if err != nil {
			return 0, fmt.Errorf("fetching rss feed: %w", err)
		}
		if result.NotModified {
			s.storeValidators(source.FeedURL, cached) // refresh updated_at so hourly cleanup keeps the row
			_ = s.store.MarkSourceFetchSucceeded(ctx, source.ID, time.Now())
			return 0, nil
		}
		entries = result.Entries
		s.storeValidators(source.FeedURL, result.Validators)

	case core.IngestMethodHTML:
		sel := htmlSelectorsFromMetadata(source.Metadata)
		htmlEntries, err := fetch.FetchHTML(ctx, s.httpClient, source.BaseURL, sel)
		if err != nil {
			return 0, fmt.Errorf("fetching html source: %w", err)
		}
		entries = htmlEntries

	case core.IngestMethodAPI, core.IngestMethodReddit, core.IngestMethodTwitter:
		// Per spec §4.G these are source-specific transforms outside the
		// core fetcher contract; they still end at the same ParsedEntry
		// shape once a transform is configured, so a source with no
		// transform configured yields no entries rather than failing.
		return 0, nil

	default:
		return 0, fmt.Errorf("unknown ingest method %q", source.IngestMethod)
	}

	created := 0
	for _, e := range entries {
		item, err := fetch.RawItemBuilder(source.ID, e)
		if err != nil {
			logger.Warn("skipping unparseable entry", logger.Fields{"source_id": source.ID, "error": err.Error()})
			continue
		}
		stored, wasNew, err := s.store.CreateRawItem(ctx, item)
		if err != nil {
			return created, fmt.Errorf("creating raw item: %w", err)
		}
		if !wasNew {
			continue
		}
		created++
		if err := s.EnqueueEnrich(ctx, stored.ID); err != nil {
			logger.Warn("failed to enqueue enrichment", logger.Fields{"raw_item_id": stored.ID, "error": err.Error()})
		}
	}

	if err := s.store.MarkSourceFetchSucceeded(ctx, source.ID, time.Now()); err != nil {
		logger.Warn("failed to update source fetch bookkeeping", logger.Fields{"source_id": source.ID, "error": err.Error()})
	}
	return created, nil
}

func (s *Scheduler) cachedValidators(feedURL string) fetch.CacheValidators {
	if s.cache == nil || feedURL == "" {
		return fetch.CacheValidators{}
	}
	v, ok, err := s.cache.Get(feedURL)
	if err != nil || !ok {
		return fetch.CacheValidators{}
	}
	return fetch.CacheValidators{ETag: v.ETag, LastModified: v.LastModified}
}

func (s *Scheduler) storeValidators(feedURL string, v fetch.CacheValidators) {
	if s.cache == nil || feedURL == "" || (v.ETag == "" && v.LastModified == "") {
		return
	}
	if err := s.cache.Set(feedURL, v.ETag, v.LastModified); err != nil {
		logger.Warn("failed to store feed cache validators", logger.Fields{"feed_url": feedURL, "error": err.Error()})
	}
}

func htmlSelectorsFromMetadata(meta map[string]any) fetch.HTMLSelectors {
	get := func(key string) string {
		v, _ := meta[key].(string)
		return v
	}
	return fetch.HTMLSelectors{
		Item:    get("html_item_selector"),
		Title:   get("html_title_selector"),
		Link:    get("html_link_selector"),
		Summary: get("html_summary_selector"),
		Date:    get("html_date_selector"),
	}
}

// RunMaintenance runs the daily purge + roster sync described in spec §4.I.
// It never returns early on one failure so the other maintenance steps
// still run.
func (s *Scheduler) RunMaintenance(ctx context.Context) []error {
	var errs []error
	cutoff := time.Now().Add(-s.cfg.DataRetention)

	if n, err := s.store.PurgeRawItemsOlderThan(ctx, cutoff); err != nil {
		errs = append(errs, fmt.Errorf("purging raw items: %w", err))
	} else {
		logger.Info("purged old raw items", logger.Fields{"count": n})
	}

	if n, err := s.store.PurgeClustersOlderThan(ctx, cutoff); err != nil {
		errs = append(errs, fmt.Errorf("purging clusters: %w", err))
	} else {
		logger.Info("purged old clusters", logger.Fields{"count": n})
	}

	if s.rosterSyncer != nil {
		if result, err := s.rosterSyncer.Sync(ctx); err != nil {
			errs = append(errs, fmt.Errorf("syncing roster: %w", err))
		} else {
			logger.Info("roster sync complete", logger.Fields{
				"active": result.Active, "non_roster": result.NonRoster, "departed": result.Departed,
			})
		}
	}

	return errs
}

// RunFeedCacheCleanup drops validator rows untouched since cutoff, the
// hourly maintenance task from spec §4.I.
func (s *Scheduler) RunFeedCacheCleanup(cutoff time.Time) error {
	if s.cache == nil {
		return nil
	}
	n, err := s.cache.CleanupOlderThan(cutoff)
	if err != nil {
		return fmt.Errorf("cleaning up feed cache: %w", err)
	}
	logger.Info("feed cache cleanup complete", logger.Fields{"count": n})
	return nil
}

// Run blocks, driving the ingest tick, daily maintenance, and hourly feed
// cache cleanup until ctx is cancelled. The enrich worker pool must already
// be started via StartWorkers.
func (s *Scheduler) Run(ctx context.Context) {
	ingestTicker := time.NewTicker(s.cfg.IngestInterval)
	defer ingestTicker.Stop()
	dailyTicker := time.NewTicker(24 * time.Hour)
	defer dailyTicker.Stop()
	hourlyTicker := time.NewTicker(time.Hour)
	defer hourlyTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ingestTicker.C:
			if _, err := s.FetchAll(ctx); err != nil {
				logger.Error("fetch fan-out tick failed", err, nil)
			}
		case <-dailyTicker.C:
			for _, err := range s.RunMaintenance(ctx) {
				logger.Error("daily maintenance step failed", err, nil)
			}
		case <-hourlyTicker.C:
			if err := s.RunFeedCacheCleanup(time.Now().Add(-time.Hour)); err != nil {
				logger.Error("hourly feed cache cleanup failed", err, nil)
			}
		}
	}
}
