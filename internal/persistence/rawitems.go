package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sharkwatch/internal/core"
)

var errNoRows = sql.ErrNoRows

// CreateRawItem inserts a raw item, first checking the dedup key — first
// non-empty of (source_id, source_item_id), canonical_url, or ingest_hash —
// so a repeated fetch of the same entry is a no-op rather than an error.
// The bool return is true when a new row was created, false when an
// existing one was found (by pre-check or by a unique-constraint race).
func (s *Store) CreateRawItem(ctx context.Context, item core.RawItem) (core.RawItem, bool, error) {
	if existing, found, err := s.findExistingRawItem(ctx, item); err != nil {
		return core.RawItem{}, false, err
	} else if found {
		return existing, false, nil
	}

	metaJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return core.RawItem{}, false, fmt.Errorf("marshaling raw item metadata: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO raw_items
			(source_id, source_item_id, original_url, canonical_url, raw_title,
			 raw_description, raw_content, published_at, fetched_at, ingest_hash, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, source_id, source_item_id, original_url, canonical_url, raw_title,
		          raw_description, raw_content, published_at, fetched_at, ingest_hash, metadata
	`, item.SourceID, item.SourceItemID, item.OriginalURL, item.CanonicalURL, item.RawTitle,
		item.RawDescription, item.RawContent, item.PublishedAt, item.FetchedAt, item.IngestHash, metaJSON)

	created, err := scanRawItem(row)
	if err != nil {
		if isUniqueViolation(err) {
			existing, found, ferr := s.findExistingRawItem(ctx, item)
			if ferr != nil {
				return core.RawItem{}, false, ferr
			}
			if found {
				return existing, false, nil
			}
		}
		return core.RawItem{}, false, fmt.Errorf("creating raw item: %w", err)
	}
	return created, true, nil
}

func (s *Store) findExistingRawItem(ctx context.Context, item core.RawItem) (core.RawItem, bool, error) {
	if item.SourceItemID != "" {
		ri, ok, err := s.queryOneRawItem(ctx,
			`SELECT id, source_id, source_item_id, original_url, canonical_url, raw_title,
			        raw_description, raw_content, published_at, fetched_at, ingest_hash, metadata
			 FROM raw_items WHERE source_id = $1 AND source_item_id = $2`,
			item.SourceID, item.SourceItemID)
		if err != nil || ok {
			return ri, ok, err
		}
	}
	if item.CanonicalURL != "" {
		ri, ok, err := s.queryOneRawItem(ctx,
			`SELECT id, source_id, source_item_id, original_url, canonical_url, raw_title,
			        raw_description, raw_content, published_at, fetched_at, ingest_hash, metadata
			 FROM raw_items WHERE canonical_url = $1`,
			item.CanonicalURL)
		if err != nil || ok {
			return ri, ok, err
		}
	}
	return s.queryOneRawItem(ctx,
		`SELECT id, source_id, source_item_id, original_url, canonical_url, raw_title,
		        raw_description, raw_content, published_at, fetched_at, ingest_hash, metadata
		 FROM raw_items WHERE ingest_hash = $1`,
		item.IngestHash)
}

func (s *Store) queryOneRawItem(ctx context.Context, query string, args ...interface{}) (core.RawItem, bool, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	ri, err := scanRawItem(row)
	if err != nil {
		if errors.Is(err, errNoRows) {
			return core.RawItem{}, false, nil
		}
		return core.RawItem{}, false, fmt.Errorf("looking up raw item: %w", err)
	}
	return ri, true, nil
}

// GetRawItem loads one raw item by id.
func (s *Store) GetRawItem(ctx context.Context, id int64) (core.RawItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_id, source_item_id, original_url, canonical_url, raw_title,
		       raw_description, raw_content, published_at, fetched_at, ingest_hash, metadata
		FROM raw_items WHERE id = $1
	`, id)
	ri, err := scanRawItem(row)
	if err != nil {
		return core.RawItem{}, fmt.Errorf("loading raw item %d: %w", id, err)
	}
	return ri, nil
}

// PurgeRawItemsOlderThan deletes raw items fetched before cutoff, cascading
// to their story variants via ON DELETE CASCADE (spec §9: unbounded growth
// is capped by the 30-day purge task). It returns the number of rows removed.
func (s *Store) PurgeRawItemsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM raw_items WHERE fetched_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging raw items older than %s: %w", cutoff, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged raw items: %w", err)
	}
	return n, nil
}

func scanRawItem(row rowScanner) (core.RawItem, error) {
	var (
		ri            core.RawItem
		publishedAt   sql.NullTime
		metadataBytes []byte
	)
	err := row.Scan(&ri.ID, &ri.SourceID, &ri.SourceItemID, &ri.OriginalURL, &ri.CanonicalURL,
		&ri.RawTitle, &ri.RawDescription, &ri.RawContent, &publishedAt, &ri.FetchedAt,
		&ri.IngestHash, &metadataBytes)
	if err != nil {
		return core.RawItem{}, err
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		ri.PublishedAt = &t
	}
	if len(metadataBytes) > 0 {
		if err := json.Unmarshal(metadataBytes, &ri.Metadata); err != nil {
			return core.RawItem{}, fmt.Errorf("decoding raw item metadata: %w", err)
		}
	}
	return ri, nil
}
