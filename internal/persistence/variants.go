package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"sharkwatch/internal/core"
)

// CreateVariant persists a surviving, enriched raw item. Variants are
// immutable once created; enrichment never re-runs against the same raw
// item (its presence is itself the dedup key upstream).
func (s *Store) CreateVariant(ctx context.Context, v core.StoryVariant) (core.StoryVariant, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO story_variants
			(raw_item_id, source_id, canonical_url, title, content_type, published_at,
			 tokens, entity_ids, event_type, source_signal, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		RETURNING id, raw_item_id, source_id, canonical_url, title, content_type, published_at,
		          tokens, entity_ids, event_type, source_signal, status, created_at
	`, v.RawItemID, v.SourceID, v.CanonicalURL, v.Title, v.ContentType, v.PublishedAt,
		stringArray(v.Tokens), int64Array(v.EntityIDs), v.EventType, v.SourceSignal, v.Status)

	created, err := scanVariant(row)
	if err != nil {
		return core.StoryVariant{}, fmt.Errorf("creating story variant: %w", err)
	}
	return created, nil
}

// FindVariantByURL looks up a previously created variant by its canonical
// URL, used by submission handling to detect "already published" duplicates.
func (s *Store) FindVariantByURL(ctx context.Context, canonicalURL string) (core.StoryVariant, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, raw_item_id, source_id, canonical_url, title, content_type, published_at,
		       tokens, entity_ids, event_type, source_signal, status, created_at
		FROM story_variants WHERE canonical_url = $1
	`, canonicalURL)
	v, err := scanVariant(row)
	if err != nil {
		if errors.Is(err, errNoRows) {
			return core.StoryVariant{}, false, nil
		}
		return core.StoryVariant{}, false, fmt.Errorf("looking up variant by url: %w", err)
	}
	return v, true, nil
}

// GetVariant loads one story variant by id.
func (s *Store) GetVariant(ctx context.Context, id int64) (core.StoryVariant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, raw_item_id, source_id, canonical_url, title, content_type, published_at,
		       tokens, entity_ids, event_type, source_signal, status, created_at
		FROM story_variants WHERE id = $1
	`, id)
	v, err := scanVariant(row)
	if err != nil {
		return core.StoryVariant{}, fmt.Errorf("loading variant %d: %w", id, err)
	}
	return v, nil
}

func scanVariant(row rowScanner) (core.StoryVariant, error) {
	var (
		v           core.StoryVariant
		tokens      pq.StringArray
		entityIDs   pq.Int64Array
		publishedAt sql.NullTime
	)
	err := row.Scan(&v.ID, &v.RawItemID, &v.SourceID, &v.CanonicalURL, &v.Title, &v.ContentType,
		&publishedAt, &tokens, &entityIDs, &v.EventType, &v.SourceSignal, &v.Status, &v.CreatedAt)
	if err != nil {
		return core.StoryVariant{}, err
	}
	if publishedAt.Valid {
		v.PublishedAt = publishedAt.Time
	}
	v.Tokens = []string(tokens)
	v.EntityIDs = []int64(entityIDs)
	return v, nil
}
