package submissions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sharkwatch/internal/core"
)

type fakeStore struct {
	recentCount     int
	variantExists   bool
	rawItems        map[string]core.RawItem
	nextRawItemID   int64
	savedSubmission core.Submission
	statusUpdates   []core.SubmissionStatus
	enqueued        []int64
	knownDomain     bool
	candidateSaved  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{rawItems: map[string]core.RawItem{}}
}

func (s *fakeStore) FindVariantByURL(ctx context.Context, canonicalURL string) (core.StoryVariant, bool, error) {
	return core.StoryVariant{}, s.variantExists, nil
}

func (s *fakeStore) UserSubmittedSourceID(ctx context.Context) (int64, error) {
	return 1, nil
}

func (s *fakeStore) CreateRawItem(ctx context.Context, item core.RawItem) (core.RawItem, bool, error) {
	if existing, ok := s.rawItems[item.CanonicalURL]; ok {
		return existing, false, nil
	}
	s.nextRawItemID++
	item.ID = s.nextRawItemID
	s.rawItems[item.CanonicalURL] = item
	return item, true, nil
}

func (s *fakeStore) IsKnownDomain(ctx context.Context, domain string) (bool, error) {
	return s.knownDomain, nil
}

func (s *fakeStore) UpsertCandidateSource(ctx context.Context, cs core.CandidateSource) error {
	s.candidateSaved = true
	return nil
}

func (s *fakeStore) CountRecentSubmissions(ctx context.Context, ip string, since time.Time) (int, error) {
	return s.recentCount, nil
}

func (s *fakeStore) SaveSubmission(ctx context.Context, sub core.Submission) (core.Submission, error) {
	sub.ID = 1
	s.savedSubmission = sub
	return sub, nil
}

func (s *fakeStore) UpdateSubmissionStatus(ctx context.Context, id int64, status core.SubmissionStatus, reason string) error {
	s.statusUpdates = append(s.statusUpdates, status)
	return nil
}

func (s *fakeStore) SetSubmissionRawItem(ctx context.Context, submissionID, rawItemID int64) error {
	return nil
}

func (s *fakeStore) EnqueueEnrich(ctx context.Context, rawItemID int64) error {
	s.enqueued = append(s.enqueued, rawItemID)
	return nil
}

func TestProcessor_Submit_NewArticlePublished(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Sharks sign a winger</title></head><body><p>A fairly long paragraph about the signing that should count as a description.</p></body></html>`))
	}))
	defer srv.Close()

	store := newFakeStore()
	p := NewProcessor(store, srv.Client(), 10)

	sub, err := p.Submit(context.Background(), srv.URL+"/article?utm_source=x", "1.2.3.4")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if sub.Status != core.SubmissionStatusPublished {
		t.Fatalf("expected published status, got %s", sub.Status)
	}
	if sub.RawItemID == nil {
		t.Fatal("expected a raw item id to be set")
	}
	if len(store.enqueued) != 1 {
		t.Fatalf("expected exactly one enqueued enrich call, got %d", len(store.enqueued))
	}
}

func TestProcessor_Submit_DuplicateVariantRejected(t *testing.T) {
	store := newFakeStore()
	store.variantExists = true
	p := NewProcessor(store, http.DefaultClient, 10)

	sub, err := p.Submit(context.Background(), "https://example.com/already-covered", "1.2.3.4")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if sub.Status != core.SubmissionStatusDuplicate {
		t.Fatalf("expected duplicate status, got %s", sub.Status)
	}
	if len(store.enqueued) != 0 {
		t.Errorf("expected no enrichment enqueued for a duplicate")
	}
}

func TestProcessor_Submit_RateLimited(t *testing.T) {
	store := newFakeStore()
	store.recentCount = 10
	p := NewProcessor(store, http.DefaultClient, 10)

	_, err := p.Submit(context.Background(), "https://example.com/x", "1.2.3.4")
	if err == nil {
		t.Fatal("expected rate limit error")
	}
}
