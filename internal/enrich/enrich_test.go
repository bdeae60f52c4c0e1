package enrich

import (
	"context"
	"testing"
	"time"

	"sharkwatch/internal/clustering"
	"sharkwatch/internal/core"
	"sharkwatch/internal/relevance"
)

type fakeStore struct {
	rawItems map[int64]core.RawItem
	sources  map[int64]core.Source
	entities []core.Entity
	logs     []core.ValidationLog
	variants map[int64]core.StoryVariant
	nextVariantID int64
	tags     map[string]int64
	nextTagID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rawItems: map[int64]core.RawItem{},
		sources:  map[int64]core.Source{},
		variants: map[int64]core.StoryVariant{},
		tags:     map[string]int64{},
	}
}

func (s *fakeStore) GetRawItem(ctx context.Context, id int64) (core.RawItem, error) {
	return s.rawItems[id], nil
}

func (s *fakeStore) GetSource(ctx context.Context, id int64) (core.Source, error) {
	return s.sources[id], nil
}

func (s *fakeStore) ListEntities(ctx context.Context) ([]core.Entity, error) {
	return s.entities, nil
}

func (s *fakeStore) SaveValidationLog(ctx context.Context, log core.ValidationLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func (s *fakeStore) CreateVariant(ctx context.Context, v core.StoryVariant) (core.StoryVariant, error) {
	s.nextVariantID++
	v.ID = s.nextVariantID
	s.variants[v.ID] = v
	return v, nil
}

func (s *fakeStore) EnsureTagsByName(ctx context.Context, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, n := range names {
		if id, ok := s.tags[n]; ok {
			ids = append(ids, id)
			continue
		}
		s.nextTagID++
		s.tags[n] = s.nextTagID
		ids = append(ids, s.nextTagID)
	}
	return ids, nil
}

// fakeClusterStore is a minimal clustering.ClusterStore that always opens a
// fresh cluster, sufficient for exercising the enrich orchestration itself
// (clustering's own matching logic has its own package tests).
type fakeClusterStore struct {
	nextID   int64
	clusters map[int64]core.Cluster
}

func newFakeClusterStore() *fakeClusterStore {
	return &fakeClusterStore{clusters: map[int64]core.Cluster{}}
}

func (s *fakeClusterStore) ActiveClustersSince(ctx context.Context, since time.Time) ([]core.Cluster, error) {
	return nil, nil
}

func (s *fakeClusterStore) CreateCluster(ctx context.Context, c core.Cluster) (core.Cluster, error) {
	s.nextID++
	c.ID = s.nextID
	s.clusters[c.ID] = c
	return c, nil
}

func (s *fakeClusterStore) AttachVariant(ctx context.Context, clusterID, variantID int64, score float64, tokens []string, entityIDs []int64, publishedAt time.Time) error {
	return nil
}

func (s *fakeClusterStore) EnsureClusterEntities(ctx context.Context, clusterID int64, entityIDs []int64) error {
	return nil
}

func (s *fakeClusterStore) EnsureClusterTags(ctx context.Context, clusterID int64, tagIDs []int64) error {
	return nil
}

func TestEnrich_NewClusterOnSigning(t *testing.T) {
	store := newFakeStore()
	published := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.sources[1] = core.Source{ID: 1, Category: core.SourceCategoryPress}
	store.rawItems[10] = core.RawItem{
		ID: 10, SourceID: 1,
		CanonicalURL: "https://ex.com/a",
		RawTitle:     "Team signs Jane Doe to two-year extension",
		PublishedAt:  &published,
	}
	store.entities = []core.Entity{{ID: 1, Name: "Jane Doe", Type: core.EntityTypePlayer}}

	filter := relevance.NewFilter(relevance.Config{TopicKeywords: []string{"extension"}}, nil)
	clusterer := clustering.NewClusterer(newFakeClusterStore(), clustering.Thresholds{
		SimilarityThreshold: 0.62, EntityOverlapThreshold: 0.5, TokenSimilarityThreshold: 0.4,
	}, 72, 24, 12)

	p := NewProcessor(store, filter, clusterer, []string{"extension"})
	res, err := p.Enrich(context.Background(), 10)
	if err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}
	if res.Outcome != OutcomeClustered || !res.Created {
		t.Fatalf("expected a freshly created cluster, got %+v", res)
	}

	v := store.variants[res.VariantID]
	if v.EventType != core.EventTypeSigning {
		t.Errorf("expected event type signing, got %s", v.EventType)
	}
	if len(v.EntityIDs) != 1 || v.EntityIDs[0] != 1 {
		t.Errorf("expected entity 1 attached, got %v", v.EntityIDs)
	}
	if len(store.logs) != 1 {
		t.Fatalf("expected exactly one validation log, got %d", len(store.logs))
	}
}

func TestEnrich_TeamOnlyEntityDoesNotEstablishRelevance(t *testing.T) {
	store := newFakeStore()
	published := time.Now()
	store.sources[1] = core.Source{ID: 1, Category: core.SourceCategoryOther}
	store.rawItems[11] = core.RawItem{
		ID: 11, SourceID: 1,
		CanonicalURL: "https://ex.com/b",
		RawTitle:       "Standings update",
		RawDescription: "Latest San Jose Sharks standings",
		PublishedAt:    &published,
	}
	store.entities = []core.Entity{{ID: 2, Name: "San Jose Sharks", Type: core.EntityTypeTeam}}

	filter := relevance.NewFilter(relevance.Config{TopicKeywords: nil}, nil)
	clusterer := clustering.NewClusterer(newFakeClusterStore(), clustering.Thresholds{
		SimilarityThreshold: 0.62, EntityOverlapThreshold: 0.5, TokenSimilarityThreshold: 0.4,
	}, 72, 24, 12)

	p := NewProcessor(store, filter, clusterer, nil)
	res, err := p.Enrich(context.Background(), 11)
	if err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}
	if res.Outcome != OutcomeSkippedRelevance {
		t.Fatalf("expected skipped_relevance (team-only entity), got %+v", res)
	}
	if len(store.variants) != 0 {
		t.Errorf("expected no variant created for an irrelevant item")
	}
}
