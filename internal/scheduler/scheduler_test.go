package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"sharkwatch/internal/core"
	"sharkwatch/internal/enrich"
)

type fakeStore struct {
	mu       sync.Mutex
	sources  []core.Source
	created  []core.RawItem
	fetched  map[int64]time.Time
	errCount map[int64]int
}

func newFakeStore(sources ...core.Source) *fakeStore {
	return &fakeStore{sources: sources, fetched: map[int64]time.Time{}, errCount: map[int64]int{}}
}

func (s *fakeStore) ListApprovedSources(ctx context.Context) ([]core.Source, error) {
	return s.sources, nil
}

func (s *fakeStore) MarkSourceFetchSucceeded(ctx context.Context, id int64, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched[id] = fetchedAt
	return nil
}

func (s *fakeStore) IncrementSourceErrorCount(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errCount[id]++
	return nil
}

func (s *fakeStore) CreateRawItem(ctx context.Context, item core.RawItem) (core.RawItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.created {
		if existing.CanonicalURL == item.CanonicalURL {
			return existing, false, nil
		}
	}
	item.ID = int64(len(s.created) + 1)
	s.created = append(s.created, item)
	return item, true, nil
}

func (s *fakeStore) PurgeRawItemsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (s *fakeStore) PurgeClustersOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeEnricher struct {
	mu      sync.Mutex
	calls   []int64
	done    chan struct{}
}

func newFakeEnricher(expected int) *fakeEnricher {
	return &fakeEnricher{done: make(chan struct{}, expected)}
}

func (f *fakeEnricher) Enrich(ctx context.Context, rawItemID int64) (enrich.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rawItemID)
	f.mu.Unlock()
	f.done <- struct{}{}
	return enrich.Result{Outcome: enrich.OutcomeClustered, VariantID: rawItemID}, nil
}

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<item><guid>item-1</guid><link>https://example.com/a</link><title>Sharks sign Jane Doe</title><description>d</description><pubDate>Mon, 02 Jan 2026 15:00:00 GMT</pubDate></item>
</channel></rss>`

func TestScheduler_FetchAllIngestsRSSAndEnqueuesEnrich(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	source := core.Source{ID: 1, Status: core.SourceStatusApproved, IngestMethod: core.IngestMethodRSS, FeedURL: srv.URL}
	store := newFakeStore(source)
	enricher := newFakeEnricher(1)

	sched := New(store, srv.Client(), nil, enricher, nil, Config{MaxConcurrency: 2, MaxFetchRetries: 1, EnrichQueueSize: 8})
	sched.StartWorkers(context.Background())
	defer sched.StopWorkers()

	summary, err := sched.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll returned error: %v", err)
	}
	if summary.SourcesFetched != 1 || summary.NewRawItems != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	select {
	case <-enricher.done:
	case <-time.After(2 * time.Second):
		t.Fatal("enrich worker never ran")
	}

	enricher.mu.Lock()
	defer enricher.mu.Unlock()
	if len(enricher.calls) != 1 {
		t.Fatalf("expected exactly one enrich call, got %d", len(enricher.calls))
	}
}

func TestScheduler_FetchSourceRetriesOnFailureThenGivesUp(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	source := core.Source{ID: 1, Status: core.SourceStatusApproved, IngestMethod: core.IngestMethodRSS, FeedURL: srv.URL}
	store := newFakeStore(source)
	enricher := newFakeEnricher(0)

	// MaxFetchRetries 0 allows a single attempt, so the real 60s schedule
	// never waits and the test doesn't block; fetchRetryPolicy itself is
	// exercised directly in TestFetchRetryPolicy_Schedule below.
	sched := New(store, srv.Client(), nil, enricher, nil, Config{MaxConcurrency: 1, MaxFetchRetries: 0, EnrichQueueSize: 1})

	summary, err := sched.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll returned error: %v", err)
	}
	if summary.SourcesFailed != 1 {
		t.Fatalf("expected one failed source, got %+v", summary)
	}
	if attempts != 1 {
		t.Fatalf("expected exactly one attempt with MaxFetchRetries=0, got %d", attempts)
	}
	if store.errCount[1] != 1 {
		t.Fatalf("expected source error count incremented once, got %d", store.errCount[1])
	}
}

func TestFetchRetryPolicy_Schedule(t *testing.T) {
	p := &fetchRetryPolicy{}
	first := p.NextBackOff()
	second := p.NextBackOff()
	third := p.NextBackOff()
	if first != 60*time.Second {
		t.Errorf("expected first backoff of 60s, got %s", first)
	}
	if second != 120*time.Second {
		t.Errorf("expected second backoff of 120s, got %s", second)
	}
	if third != 240*time.Second {
		t.Errorf("expected third backoff of 240s, got %s", third)
	}
}

func TestScheduler_EnqueueEnrichSatisfiesSubmissionsStoreInterface(t *testing.T) {
	store := newFakeStore()
	enricher := newFakeEnricher(1)
	sched := New(store, http.DefaultClient, nil, enricher, nil, Config{MaxConcurrency: 1, EnrichQueueSize: 1})
	sched.StartWorkers(context.Background())
	defer sched.StopWorkers()

	if err := sched.EnqueueEnrich(context.Background(), 42); err != nil {
		t.Fatalf("EnqueueEnrich returned error: %v", err)
	}
	select {
	case <-enricher.done:
	case <-time.After(time.Second):
		t.Fatal("enrich worker never consumed the enqueued item")
	}
}
