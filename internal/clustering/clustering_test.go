package clustering

import (
	"context"
	"testing"
	"time"

	"sharkwatch/internal/core"
)

type fakeStore struct {
	clusters map[int64]core.Cluster
	nextID   int64
	variants map[int64][]int64 // clusterID -> variant IDs
}

func newFakeStore() *fakeStore {
	return &fakeStore{clusters: map[int64]core.Cluster{}, variants: map[int64][]int64{}}
}

func (s *fakeStore) ActiveClustersSince(ctx context.Context, since time.Time) ([]core.Cluster, error) {
	var out []core.Cluster
	for _, c := range s.clusters {
		if !c.FirstSeenAt.Before(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateCluster(ctx context.Context, c core.Cluster) (core.Cluster, error) {
	s.nextID++
	c.ID = s.nextID
	s.clusters[c.ID] = c
	return c, nil
}

func (s *fakeStore) AttachVariant(ctx context.Context, clusterID, variantID int64, score float64, tokens []string, entityIDs []int64, publishedAt time.Time) error {
	c := s.clusters[clusterID]
	c.SourceCount++
	c.Tokens = unionStrings(c.Tokens, tokens)
	c.EntityIDs = unionInt64(c.EntityIDs, entityIDs)
	if publishedAt.After(c.LastSeenAt) {
		c.LastSeenAt = publishedAt
	}
	if publishedAt.Before(c.FirstSeenAt) {
		c.FirstSeenAt = publishedAt
	}
	s.clusters[clusterID] = c
	s.variants[clusterID] = append(s.variants[clusterID], variantID)
	return nil
}

func (s *fakeStore) EnsureClusterEntities(ctx context.Context, clusterID int64, entityIDs []int64) error {
	return nil
}

func (s *fakeStore) EnsureClusterTags(ctx context.Context, clusterID int64, tagIDs []int64) error {
	return nil
}

func unionStrings(a, b []string) []string {
	set := map[string]struct{}{}
	for _, x := range a {
		set[x] = struct{}{}
	}
	for _, x := range b {
		set[x] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func unionInt64(a, b []int64) []int64 {
	set := map[int64]struct{}{}
	for _, x := range a {
		set[x] = struct{}{}
	}
	for _, x := range b {
		set[x] = struct{}{}
	}
	out := make([]int64, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func defaultThresholds() Thresholds {
	return Thresholds{SimilarityThreshold: 0.62, EntityOverlapThreshold: 0.50, TokenSimilarityThreshold: 0.40}
}

func TestMatchOrCreateOpensNewClusterWhenNoCandidates(t *testing.T) {
	store := newFakeStore()
	c := NewClusterer(store, defaultThresholds(), 72, 24, 12)

	now := time.Now()
	v := core.StoryVariant{
		ID: 1, Title: "Team signs Jane Doe", EventType: core.EventTypeSigning,
		Tokens: []string{"team", "signs", "jane", "doe"}, EntityIDs: []int64{10},
		PublishedAt: now,
	}
	id, created, err := c.MatchOrCreate(context.Background(), v, nil, nil)
	if err != nil {
		t.Fatalf("MatchOrCreate: %v", err)
	}
	if !created {
		t.Fatalf("expected a new cluster to be created")
	}
	if store.clusters[id].SourceCount != 1 {
		t.Fatalf("expected source_count 1, got %d", store.clusters[id].SourceCount)
	}
}

func TestMatchOrCreateAttachesToSimilarCluster(t *testing.T) {
	store := newFakeStore()
	c := NewClusterer(store, defaultThresholds(), 72, 24, 12)

	now := time.Now()
	store.clusters[1] = core.Cluster{
		ID: 1, EventType: core.EventTypeSigning, Status: core.ClusterStatusActive,
		FirstSeenAt: now.Add(-time.Hour), LastSeenAt: now.Add(-time.Hour),
		Tokens: []string{"team", "signs", "jane", "doe", "extension"}, EntityIDs: []int64{10},
		SourceCount: 1,
	}
	store.nextID = 1

	v := core.StoryVariant{
		ID: 2, Title: "Jane Doe extension finalized by team", EventType: core.EventTypeSigning,
		Tokens: []string{"jane", "doe", "extension", "finalized", "team"}, EntityIDs: []int64{10},
		PublishedAt: now,
	}
	id, created, err := c.MatchOrCreate(context.Background(), v, []core.Entity{{ID: 10, Type: core.EntityTypePlayer}}, nil)
	if err != nil {
		t.Fatalf("MatchOrCreate: %v", err)
	}
	if created {
		t.Fatalf("expected attach to existing cluster, not a new one")
	}
	if id != 1 {
		t.Fatalf("expected attach to cluster 1, got %d", id)
	}
	if store.clusters[1].SourceCount != 2 {
		t.Fatalf("expected source_count 2 after attach, got %d", store.clusters[1].SourceCount)
	}
}

func TestMatchOrCreateRejectsDissimilarCluster(t *testing.T) {
	store := newFakeStore()
	c := NewClusterer(store, defaultThresholds(), 72, 24, 12)

	now := time.Now()
	store.clusters[1] = core.Cluster{
		ID: 1, EventType: core.EventTypeInjury, Status: core.ClusterStatusActive,
		FirstSeenAt: now.Add(-time.Hour), LastSeenAt: now.Add(-time.Hour),
		Tokens: []string{"skater", "hurt", "knee"}, EntityIDs: []int64{99},
	}
	store.nextID = 1

	v := core.StoryVariant{
		ID: 2, Title: "Team signs Jane Doe to extension", EventType: core.EventTypeSigning,
		Tokens: []string{"team", "signs", "jane", "doe", "extension"}, EntityIDs: []int64{10},
		PublishedAt: now,
	}
	id, created, err := c.MatchOrCreate(context.Background(), v, []core.Entity{{ID: 10, Type: core.EntityTypePlayer}}, nil)
	if err != nil {
		t.Fatalf("MatchOrCreate: %v", err)
	}
	if !created {
		t.Fatalf("expected a new cluster since candidate is dissimilar, got attach to %d", id)
	}
}

func TestEntityOverlapUsesMaxDenominator(t *testing.T) {
	// A cluster that has accumulated many entities should not fully match a
	// variant sharing only one of them.
	score := overlapScore([]int64{1}, []int64{1, 2, 3, 4, 5})
	if score != 0.2 {
		t.Fatalf("expected overlap 1/5=0.2 using max-denominator, got %v", score)
	}
}

func TestTimeWindowPerEventType(t *testing.T) {
	if TimeWindow(core.EventTypeGame, 72, 24, 12) != 24*time.Hour {
		t.Fatalf("expected 24h window for game")
	}
	if TimeWindow(core.EventTypeOpinion, 72, 24, 12) != 12*time.Hour {
		t.Fatalf("expected 12h window for opinion")
	}
	if TimeWindow(core.EventTypeTrade, 72, 24, 12) != 72*time.Hour {
		t.Fatalf("expected 72h default window")
	}
}

type fakeMergeStore struct {
	clusters map[int64]core.Cluster
	variantCounts map[int64]int
	repointed []string
}

func (s *fakeMergeStore) RepointVariants(ctx context.Context, from, to int64) error {
	s.repointed = append(s.repointed, "variants")
	s.variantCounts[to] += s.variantCounts[from]
	s.variantCounts[from] = 0
	return nil
}
func (s *fakeMergeStore) RepointTags(ctx context.Context, from, to int64) error {
	s.repointed = append(s.repointed, "tags")
	return nil
}
func (s *fakeMergeStore) RepointEntities(ctx context.Context, from, to int64) error {
	s.repointed = append(s.repointed, "entities")
	return nil
}
func (s *fakeMergeStore) LoadCluster(ctx context.Context, id int64) (core.Cluster, error) {
	return s.clusters[id], nil
}
func (s *fakeMergeStore) SaveClusterAggregate(ctx context.Context, c core.Cluster) error {
	s.clusters[c.ID] = c
	return nil
}
func (s *fakeMergeStore) DeleteCluster(ctx context.Context, id int64) error {
	delete(s.clusters, id)
	return nil
}
func (s *fakeMergeStore) CountVariants(ctx context.Context, clusterID int64) (int, error) {
	return s.variantCounts[clusterID], nil
}

func TestMergeUnionsAndDeletesSources(t *testing.T) {
	now := time.Now()
	store := &fakeMergeStore{
		clusters: map[int64]core.Cluster{
			10: {ID: 10, Tokens: []string{"a"}, EntityIDs: []int64{1}, FirstSeenAt: now, LastSeenAt: now},
			11: {ID: 11, Tokens: []string{"b"}, EntityIDs: []int64{2}, FirstSeenAt: now.Add(-time.Hour), LastSeenAt: now.Add(time.Hour)},
		},
		variantCounts: map[int64]int{10: 1, 11: 2},
	}

	if err := Merge(context.Background(), store, 10, []int64{11}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if _, exists := store.clusters[11]; exists {
		t.Fatalf("expected source cluster 11 to be deleted")
	}
	target := store.clusters[10]
	if target.SourceCount != 3 {
		t.Fatalf("expected source_count 3 after merge, got %d", target.SourceCount)
	}
	if !target.FirstSeenAt.Equal(now.Add(-time.Hour)) {
		t.Fatalf("expected first_seen_at to extend to the earlier source value")
	}
	if !target.LastSeenAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected last_seen_at to extend to the later source value")
	}
	if len(target.Tokens) != 2 || len(target.EntityIDs) != 2 {
		t.Fatalf("expected union of tokens and entities, got %v / %v", target.Tokens, target.EntityIDs)
	}
}
