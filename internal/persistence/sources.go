package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"sharkwatch/internal/core"
)

// ListApprovedSources returns every source eligible for scheduled fetch,
// ordered by ascending priority (spec §3: "only approved sources
// participate in scheduled fetch").
func (s *Store) ListApprovedSources(ctx context.Context) ([]core.Source, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, slug, category, ingest_method, base_url, feed_url,
		       status, priority, last_fetched_at, fetch_error_count, metadata,
		       created_at, updated_at
		FROM sources
		WHERE status = 'approved'
		ORDER BY priority ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing approved sources: %w", err)
	}
	defer rows.Close()
	return scanSources(rows)
}

// GetSource loads one source by id.
func (s *Store) GetSource(ctx context.Context, id int64) (core.Source, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, category, ingest_method, base_url, feed_url,
		       status, priority, last_fetched_at, fetch_error_count, metadata,
		       created_at, updated_at
		FROM sources WHERE id = $1
	`, id)
	return scanSourceRow(row)
}

// UserSubmittedSourceID resolves the reserved source row that owns raw
// items created from user submissions (Open Question a).
func (s *Store) UserSubmittedSourceID(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM sources WHERE slug = $1`, core.UserSubmittedSourceSlug).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("resolving user-submitted source: %w", err)
	}
	return id, nil
}

// MarkSourceFetchSucceeded advances last_fetched_at and resets the
// consecutive error counter after a clean fetch.
func (s *Store) MarkSourceFetchSucceeded(ctx context.Context, id int64, fetchedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sources SET last_fetched_at = $2, fetch_error_count = 0, updated_at = now()
		WHERE id = $1
	`, id, fetchedAt)
	if err != nil {
		return fmt.Errorf("marking source %d fetch succeeded: %w", id, err)
	}
	return nil
}

// IncrementSourceErrorCount bumps a source's consecutive fetch-error
// counter after a failed fetch.
func (s *Store) IncrementSourceErrorCount(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sources SET fetch_error_count = fetch_error_count + 1, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("incrementing error count for source %d: %w", id, err)
	}
	return nil
}

// IsKnownDomain reports whether an approved source already serves the
// given domain, used by the submission processor to decide whether a
// user-submitted URL's domain needs a CandidateSource proposal.
func (s *Store) IsKnownDomain(ctx context.Context, domain string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT base_url, feed_url FROM sources WHERE status = 'approved'`)
	if err != nil {
		return false, fmt.Errorf("listing source domains: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var baseURL, feedURL string
		if err := rows.Scan(&baseURL, &feedURL); err != nil {
			return false, err
		}
		if hostMatches(baseURL, domain) || hostMatches(feedURL, domain) {
			return true, nil
		}
	}
	return false, rows.Err()
}

func hostMatches(rawURL, domain string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), domain)
}

// UpsertCandidateSource inserts a newly discovered domain, or bumps its
// submission counter if the domain is already recorded, whatever its
// review status.
func (s *Store) UpsertCandidateSource(ctx context.Context, cs core.CandidateSource) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO candidate_sources
			(domain, base_url, origin_submission_id, suggested_category, suggested_method,
			 discovered_feed_url, submission_count, status, review_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, '', now(), now())
		ON CONFLICT (domain) DO UPDATE SET
			submission_count = candidate_sources.submission_count + 1,
			discovered_feed_url = CASE WHEN candidate_sources.discovered_feed_url = ''
				THEN EXCLUDED.discovered_feed_url ELSE candidate_sources.discovered_feed_url END,
			updated_at = now()
	`, cs.Domain, cs.BaseURL, nullableID(cs.OriginSubmissionID), cs.SuggestedCategory, cs.SuggestedMethod,
		cs.DiscoveredFeedURL, cs.Status)
	if err != nil {
		return fmt.Errorf("upserting candidate source %s: %w", cs.Domain, err)
	}
	return nil
}

func nullableID(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}

func scanSources(rows *sql.Rows) ([]core.Source, error) {
	var out []core.Source
	for rows.Next() {
		src, err := scanSourceFields(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSourceFields(row rowScanner) (core.Source, error) {
	var (
		src           core.Source
		metadataBytes []byte
		lastFetched   sql.NullTime
	)
	err := row.Scan(&src.ID, &src.Name, &src.Slug, &src.Category, &src.IngestMethod,
		&src.BaseURL, &src.FeedURL, &src.Status, &src.Priority, &lastFetched,
		&src.FetchErrorCount, &metadataBytes, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		return core.Source{}, err
	}
	if lastFetched.Valid {
		t := lastFetched.Time
		src.LastFetchedAt = &t
	}
	if len(metadataBytes) > 0 {
		if err := json.Unmarshal(metadataBytes, &src.Metadata); err != nil {
			return core.Source{}, fmt.Errorf("decoding source metadata: %w", err)
		}
	}
	return src, nil
}

func scanSourceRow(row *sql.Row) (core.Source, error) {
	src, err := scanSourceFields(row)
	if err != nil {
		return core.Source{}, fmt.Errorf("scanning source: %w", err)
	}
	return src, nil
}
