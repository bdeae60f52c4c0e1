// Package enrich orchestrates the per-raw-item enrichment pipeline:
// relevance filtering, entity extraction, event classification, story
// variant creation, and clustering. It follows the teacher's
// interface-composition orchestrator shape (internal/pipeline.Pipeline)
// but the stages themselves are this project's own (relevance, entities,
// classify, clustering), grounded on the original enrich task's
// enrich_raw_item control flow.
package enrich

import (
	"context"
	"fmt"
	"time"

	"sharkwatch/internal/classify"
	"sharkwatch/internal/clustering"
	"sharkwatch/internal/core"
	"sharkwatch/internal/entities"
	"sharkwatch/internal/logger"
	"sharkwatch/internal/relevance"
	"sharkwatch/internal/textnorm"
)

// Store is the persistence dependency this package needs, kept narrow so
// tests can substitute an in-memory fake.
type Store interface {
	GetRawItem(ctx context.Context, id int64) (core.RawItem, error)
	GetSource(ctx context.Context, id int64) (core.Source, error)
	ListEntities(ctx context.Context) ([]core.Entity, error)
	SaveValidationLog(ctx context.Context, log core.ValidationLog) error
	CreateVariant(ctx context.Context, v core.StoryVariant) (core.StoryVariant, error)
	EnsureTagsByName(ctx context.Context, names []string) ([]int64, error)
}

// Outcome describes what happened to one raw item, for logging/metrics.
type Outcome string

const (
	OutcomeClustered     Outcome = "clustered"
	OutcomeSkippedRelevance Outcome = "skipped_relevance"
	OutcomeDuplicate     Outcome = "duplicate_variant"
)

// Result is the per-item outcome of a single Enrich call.
type Result struct {
	Outcome   Outcome
	VariantID int64
	ClusterID int64
	Created   bool // true when a new cluster was opened rather than attached
}

// Processor wires the relevance filter, entity matcher, classifier, and
// clusterer into the single enrich(raw_item_id) task described by the
// scheduler's on-demand task contract.
type Processor struct {
	store     Store
	filter    *relevance.Filter
	clusterer *clustering.Clusterer
	topicKeywords []string
}

// NewProcessor builds a Processor.
func NewProcessor(store Store, filter *relevance.Filter, clusterer *clustering.Clusterer, topicKeywords []string) *Processor {
	return &Processor{store: store, filter: filter, clusterer: clusterer, topicKeywords: topicKeywords}
}

// Enrich runs the full enrich(raw_item_id) task: relevance -> normalize ->
// entities -> classify -> create variant -> cluster. A relevance rejection
// or entity-extraction failure is a logical skip, not an error (spec §7);
// only infrastructure failures (store errors) are returned as errors so the
// scheduler's retry policy can distinguish the two.
func (p *Processor) Enrich(ctx context.Context, rawItemID int64) (Result, error) {
	item, err := p.store.GetRawItem(ctx, rawItemID)
	if err != nil {
		return Result{}, fmt.Errorf("loading raw item %d: %w", rawItemID, err)
	}

	source, err := p.store.GetSource(ctx, item.SourceID)
	if err != nil {
		return Result{}, fmt.Errorf("loading source %d for raw item %d: %w", item.SourceID, rawItemID, err)
	}

	roster, err := p.store.ListEntities(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("loading entity roster: %w", err)
	}

	blob := relevance.NormalizeForMatch(item.RawTitle, item.RawDescription)
	matched := entities.NewRoster(roster).Extract(blob, p.topicKeywords)
	matchedIDs := make([]int64, len(matched))
	for i, e := range matched {
		matchedIDs[i] = e.ID
	}
	nonTeamIDs := make([]int64, 0, len(matched))
	for _, e := range entities.FilterNonTeam(matched) {
		nonTeamIDs = append(nonTeamIDs, e.ID)
	}

	decision := p.filter.Evaluate(ctx, rawItemID, item.RawTitle, item.RawDescription, nonTeamIDs, source.SkipRelevanceCheck())
	if err := p.store.SaveValidationLog(ctx, decision.Log); err != nil {
		return Result{}, fmt.Errorf("saving validation log for raw item %d: %w", rawItemID, err)
	}
	if !decision.Approved {
		logger.Info("enrich: skipped as not relevant", logger.Fields{"raw_item_id": rawItemID})
		return Result{Outcome: OutcomeSkippedRelevance}, nil
	}

	published := item.PublishedAt
	if published == nil {
		now := time.Now()
		published = &now
	}

	eventType := classify.ClassifyEventType(blob)
	tagNames := classify.ClassifyTags(blob, source.Category)
	tokens := textnorm.Tokenize(blob)

	variant := core.StoryVariant{
		RawItemID:    item.ID,
		SourceID:     item.SourceID,
		CanonicalURL: item.CanonicalURL,
		Title:        item.RawTitle,
		ContentType:  core.ContentTypeArticle,
		PublishedAt:  *published,
		Tokens:       tokens,
		EntityIDs:    matchedIDs,
		EventType:    eventType,
		SourceSignal: source.Category.Signal(),
		Status:       core.VariantStatusActive,
	}
	created, err := p.store.CreateVariant(ctx, variant)
	if err != nil {
		return Result{}, fmt.Errorf("creating story variant for raw item %d: %w", rawItemID, err)
	}

	tagIDs, err := p.store.EnsureTagsByName(ctx, tagNames)
	if err != nil {
		return Result{}, fmt.Errorf("ensuring tags for variant %d: %w", created.ID, err)
	}

	clusterID, isNew, err := p.clusterer.MatchOrCreate(ctx, created, matched, tagIDs)
	if err != nil {
		return Result{}, fmt.Errorf("clustering variant %d: %w", created.ID, err)
	}

	logger.Info("enrich: variant clustered", logger.Fields{
		"raw_item_id": rawItemID, "variant_id": created.ID,
		"cluster_id": clusterID, "new_cluster": isNew,
	})
	return Result{Outcome: OutcomeClustered, VariantID: created.ID, ClusterID: clusterID, Created: isNew}, nil
}
