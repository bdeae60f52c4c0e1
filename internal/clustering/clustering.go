// Package clustering groups StoryVariants describing the same real-world
// event into Clusters. It reuses the teacher's small-interface,
// sort.Slice-ranking style but replaces the substance entirely: instead of
// k-means over embeddings, this is an online, time-windowed, composite
// -similarity matcher grounded on the original pipeline's
// match_or_create_cluster.
package clustering

import (
	"context"
	"fmt"
	"sort"
	"time"

	"sharkwatch/internal/core"
	"sharkwatch/internal/entities"
	"sharkwatch/internal/textnorm"
)

// Thresholds holds the gate parameters; defaults come from config.
type Thresholds struct {
	SimilarityThreshold      float64
	EntityOverlapThreshold   float64
	TokenSimilarityThreshold float64
}

// TimeWindow returns the candidate lookback window for an event type.
func TimeWindow(et core.EventType, defaultHours, gameHours, opinionHours int) time.Duration {
	switch et {
	case core.EventTypeGame:
		return time.Duration(gameHours) * time.Hour
	case core.EventTypeOpinion:
		return time.Duration(opinionHours) * time.Hour
	default:
		return time.Duration(defaultHours) * time.Hour
	}
}

// compatibleEventPairs lists event-type pairs that are "close enough" to
// contribute partial compatibility credit (K=0.5) even when not identical.
var compatibleEventPairs = map[[2]core.EventType]bool{
	{core.EventTypeTrade, core.EventTypeSigning}:  true,
	{core.EventTypeSigning, core.EventTypeTrade}:  true,
	{core.EventTypeLineup, core.EventTypeGame}:    true,
	{core.EventTypeGame, core.EventTypeLineup}:    true,
	{core.EventTypeLineup, core.EventTypeRecall}:  true,
	{core.EventTypeRecall, core.EventTypeLineup}:  true,
}

func eventCompatibility(a, b core.EventType) float64 {
	if a == b {
		return 1.0
	}
	if compatibleEventPairs[[2]core.EventType{a, b}] {
		return 0.5
	}
	return 0.0
}

// Score is the composite similarity between a candidate variant and an
// existing cluster, broken into its components for debuggability.
type Score struct {
	EntityOverlap float64
	TokenJaccard  float64
	EventCompat   float64
	Composite     float64
}

// computeScore implements S = 0.55*E + 0.35*T + 0.10*K, with E and T
// computed over non-team entities / raw tokens respectively.
func computeScore(variantEntities, clusterEntities []int64, variantTokens, clusterTokens []string, variantEvent, clusterEvent core.EventType) Score {
	e := overlapScore(variantEntities, clusterEntities)
	tok := jaccard(textnorm.TokenSet(variantTokens), textnorm.TokenSet(clusterTokens))
	k := eventCompatibility(variantEvent, clusterEvent)
	return Score{
		EntityOverlap: e,
		TokenJaccard:  tok,
		EventCompat:   k,
		Composite:     0.55*e + 0.35*tok + 0.10*k,
	}
}

// overlapScore divides by max(|A|,|B|), not min or union, which keeps a
// small new variant from falsely matching a cluster that has accumulated a
// large aggregated entity set over many members.
func overlapScore(a, b []int64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[int64]struct{}, len(a))
	for _, x := range a {
		setA[x] = struct{}{}
	}
	overlap := 0
	for _, x := range b {
		if _, ok := setA[x]; ok {
			overlap++
		}
	}
	denom := len(a)
	if len(b) > denom {
		denom = len(b)
	}
	return float64(overlap) / float64(denom)
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// isMatch applies the two-part gate: an entity gate (falls back to a token
// gate when no non-team entities are present) and a composite-score gate.
func isMatch(score Score, variantEntityCount int, t Thresholds) bool {
	if variantEntityCount > 0 {
		if score.EntityOverlap < t.EntityOverlapThreshold {
			return false
		}
	} else if score.TokenJaccard < t.TokenSimilarityThreshold {
		return false
	}
	return score.Composite >= t.SimilarityThreshold
}

// tieBreakEpsilon guards against floating-point jitter flipping the
// "better" candidate when two scores are for-practical-purposes equal.
const tieBreakEpsilon = 0.000001

// ClusterStore is the persistence dependency this package needs; the
// concrete Postgres-backed implementation lives in internal/persistence.
type ClusterStore interface {
	ActiveClustersSince(ctx context.Context, since time.Time) ([]core.Cluster, error)
	CreateCluster(ctx context.Context, c core.Cluster) (core.Cluster, error)
	AttachVariant(ctx context.Context, clusterID, variantID int64, score float64, tokens []string, entityIDs []int64, publishedAt time.Time) error
	EnsureClusterEntities(ctx context.Context, clusterID int64, entityIDs []int64) error
	EnsureClusterTags(ctx context.Context, clusterID int64, tagIDs []int64) error
}

// Clusterer matches StoryVariants to Clusters or opens new ones.
type Clusterer struct {
	store  ClusterStore
	thresh Thresholds
	defaultWindowHours, gameWindowHours, opinionWindowHours int
}

// NewClusterer builds a Clusterer.
func NewClusterer(store ClusterStore, thresh Thresholds, defaultHours, gameHours, opinionHours int) *Clusterer {
	return &Clusterer{
		store:              store,
		thresh:             thresh,
		defaultWindowHours: defaultHours,
		gameWindowHours:    gameHours,
		opinionWindowHours: opinionHours,
	}
}

// MatchOrCreate attaches a variant to its best-matching candidate cluster,
// or opens a new cluster if no candidate passes the gate. It returns the
// resulting cluster id and whether a new cluster was created.
func (c *Clusterer) MatchOrCreate(ctx context.Context, v core.StoryVariant, variantEntities []core.Entity, variantTagIDs []int64) (clusterID int64, created bool, err error) {
	nonTeamEntities := entities.FilterNonTeam(variantEntities)
	variantEntityIDs := make([]int64, len(nonTeamEntities))
	for i, e := range nonTeamEntities {
		variantEntityIDs[i] = e.ID
	}

	window := TimeWindow(v.EventType, c.defaultWindowHours, c.gameWindowHours, c.opinionWindowHours)
	since := time.Now().Add(-window)

	candidates, err := c.store.ActiveClustersSince(ctx, since)
	if err != nil {
		return 0, false, fmt.Errorf("loading cluster candidates: %w", err)
	}

	// The cluster's own EntityIDs aggregate is kept non-team-only precisely
	// so it can be compared directly against variantEntityIDs here, while
	// the full (team-inclusive) set is recorded separately via
	// EnsureClusterEntities for display/join purposes.
	best, bestScore, found := c.pickBest(candidates, variantEntityIDs, v.Tokens, v.EventType)

	allEntityIDs := v.EntityIDs // full set including team, recorded on the join table

	if found {
		if err := c.store.AttachVariant(ctx, best.ID, v.ID, bestScore.Composite, v.Tokens, variantEntityIDs, v.PublishedAt); err != nil {
			return 0, false, fmt.Errorf("attaching variant to cluster %d: %w", best.ID, err)
		}
		if err := c.store.EnsureClusterEntities(ctx, best.ID, allEntityIDs); err != nil {
			return 0, false, fmt.Errorf("ensuring cluster entities: %w", err)
		}
		if err := c.store.EnsureClusterTags(ctx, best.ID, variantTagIDs); err != nil {
			return 0, false, fmt.Errorf("ensuring cluster tags: %w", err)
		}
		return best.ID, false, nil
	}

	newCluster := core.Cluster{
		Headline:    v.Title,
		EventType:   v.EventType,
		Status:      core.ClusterStatusActive,
		FirstSeenAt: v.PublishedAt,
		LastSeenAt:  v.PublishedAt,
		Tokens:      v.Tokens,
		EntityIDs:   variantEntityIDs,
		SourceCount: 0, // the seed variant's AttachVariant below brings it to 1
	}
	persisted, err := c.store.CreateCluster(ctx, newCluster)
	if err != nil {
		return 0, false, fmt.Errorf("creating cluster: %w", err)
	}
	if err := c.store.AttachVariant(ctx, persisted.ID, v.ID, 1.0, v.Tokens, variantEntityIDs, v.PublishedAt); err != nil {
		return 0, false, fmt.Errorf("attaching seed variant: %w", err)
	}
	if err := c.store.EnsureClusterEntities(ctx, persisted.ID, allEntityIDs); err != nil {
		return 0, false, fmt.Errorf("ensuring cluster entities: %w", err)
	}
	if err := c.store.EnsureClusterTags(ctx, persisted.ID, variantTagIDs); err != nil {
		return 0, false, fmt.Errorf("ensuring cluster tags: %w", err)
	}
	return persisted.ID, true, nil
}

func (c *Clusterer) pickBest(candidates []core.Cluster, variantEntityIDs []int64, variantTokens []string, variantEvent core.EventType) (core.Cluster, Score, bool) {
	type scored struct {
		cluster core.Cluster
		score   Score
	}
	var passing []scored

	for _, cand := range candidates {
		// cand.EntityIDs is already the non-team aggregate (see above).
		s := computeScore(variantEntityIDs, cand.EntityIDs, variantTokens, cand.Tokens, variantEvent, cand.EventType)
		if isMatch(s, len(variantEntityIDs), c.thresh) {
			passing = append(passing, scored{cluster: cand, score: s})
		}
	}

	if len(passing) == 0 {
		return core.Cluster{}, Score{}, false
	}

	sort.Slice(passing, func(i, j int) bool {
		if passing[i].score.Composite > passing[j].score.Composite+tieBreakEpsilon {
			return true
		}
		if passing[j].score.Composite > passing[i].score.Composite+tieBreakEpsilon {
			return false
		}
		return passing[i].cluster.ID < passing[j].cluster.ID
	})

	return passing[0].cluster, passing[0].score, true
}

// Merge folds source cluster ids into target, unioning their aggregated
// tokens/entities, extending the time span, and recomputing source_count.
// It is operator-invoked, never automatic.
type MergeStore interface {
	RepointVariants(ctx context.Context, fromClusterID, toClusterID int64) error
	RepointTags(ctx context.Context, fromClusterID, toClusterID int64) error
	RepointEntities(ctx context.Context, fromClusterID, toClusterID int64) error
	LoadCluster(ctx context.Context, id int64) (core.Cluster, error)
	SaveClusterAggregate(ctx context.Context, c core.Cluster) error
	DeleteCluster(ctx context.Context, id int64) error
	CountVariants(ctx context.Context, clusterID int64) (int, error)
}

// Merge re-points everything from sourceIDs onto targetID and deletes the
// sources.
func Merge(ctx context.Context, store MergeStore, targetID int64, sourceIDs []int64) error {
	target, err := store.LoadCluster(ctx, targetID)
	if err != nil {
		return fmt.Errorf("loading merge target %d: %w", targetID, err)
	}

	tokenSet := textnorm.TokenSet(target.Tokens)
	entitySet := make(map[int64]struct{}, len(target.EntityIDs))
	for _, id := range target.EntityIDs {
		entitySet[id] = struct{}{}
	}

	for _, srcID := range sourceIDs {
		if srcID == targetID {
			continue
		}
		src, err := store.LoadCluster(ctx, srcID)
		if err != nil {
			return fmt.Errorf("loading merge source %d: %w", srcID, err)
		}

		if err := store.RepointVariants(ctx, srcID, targetID); err != nil {
			return fmt.Errorf("repointing variants from %d to %d: %w", srcID, targetID, err)
		}
		if err := store.RepointTags(ctx, srcID, targetID); err != nil {
			return fmt.Errorf("repointing tags from %d to %d: %w", srcID, targetID, err)
		}
		if err := store.RepointEntities(ctx, srcID, targetID); err != nil {
			return fmt.Errorf("repointing entities from %d to %d: %w", srcID, targetID, err)
		}

		for _, tok := range src.Tokens {
			tokenSet[tok] = struct{}{}
		}
		for _, id := range src.EntityIDs {
			entitySet[id] = struct{}{}
		}
		if src.FirstSeenAt.Before(target.FirstSeenAt) {
			target.FirstSeenAt = src.FirstSeenAt
		}
		if src.LastSeenAt.After(target.LastSeenAt) {
			target.LastSeenAt = src.LastSeenAt
		}

		if err := store.DeleteCluster(ctx, srcID); err != nil {
			return fmt.Errorf("deleting merged cluster %d: %w", srcID, err)
		}
	}

	target.Tokens = setToSlice(tokenSet)
	target.EntityIDs = int64SetToSlice(entitySet)

	count, err := store.CountVariants(ctx, targetID)
	if err != nil {
		return fmt.Errorf("recounting variants for %d: %w", targetID, err)
	}
	target.SourceCount = count

	if err := store.SaveClusterAggregate(ctx, target); err != nil {
		return fmt.Errorf("saving merged cluster %d: %w", targetID, err)
	}
	return nil
}

func setToSlice(s map[string]struct{}) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func int64SetToSlice(s map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
