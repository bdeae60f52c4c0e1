package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sharkwatch/internal/core"
)

// CountRecentSubmissions counts submissions from ip created at or after
// since, backing the submission processor's rate limit.
func (s *Store) CountRecentSubmissions(ctx context.Context, ip string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM submissions WHERE submitter_ip = $1 AND created_at >= $2
	`, ip, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting recent submissions for %s: %w", ip, err)
	}
	return n, nil
}

// SaveSubmission inserts a new submission row.
func (s *Store) SaveSubmission(ctx context.Context, sub core.Submission) (core.Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO submissions
			(url, normalized_url, domain, submitter_ip, status, rejection_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, '', now(), now())
		RETURNING id, url, normalized_url, domain, submitter_ip, status, rejection_reason,
		          raw_item_id, variant_id, cluster_id, created_at, updated_at
	`, sub.URL, sub.NormalizedURL, sub.Domain, sub.SubmitterIP, sub.Status)
	saved, err := scanSubmission(row)
	if err != nil {
		return core.Submission{}, fmt.Errorf("saving submission: %w", err)
	}
	return saved, nil
}

// UpdateSubmissionStatus transitions a submission to status, recording
// reason for rejected/duplicate outcomes.
func (s *Store) UpdateSubmissionStatus(ctx context.Context, id int64, status core.SubmissionStatus, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET status = $2, rejection_reason = $3, updated_at = now() WHERE id = $1
	`, id, status, reason)
	if err != nil {
		return fmt.Errorf("updating submission %d status: %w", id, err)
	}
	return nil
}

// SetSubmissionRawItem stamps the raw item a submission produced, called
// once CreateRawItem succeeds (the submission row is created before the
// raw item, so this is a follow-up update rather than part of the insert).
func (s *Store) SetSubmissionRawItem(ctx context.Context, submissionID, rawItemID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET raw_item_id = $2, updated_at = now() WHERE id = $1
	`, submissionID, rawItemID)
	if err != nil {
		return fmt.Errorf("setting raw item for submission %d: %w", submissionID, err)
	}
	return nil
}

// LinkSubmission records the variant/cluster that a submission's raw item
// ended up producing, so the submission row can answer "what became of my
// link" without a join through raw_items. For a raw item that came from a
// scheduled fetch rather than a user submission the update matches zero
// rows. The enrich pipeline does not call it, so as shipped a submission's
// variant_id and cluster_id stay unset.
func (s *Store) LinkSubmission(ctx context.Context, rawItemID, variantID, clusterID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET variant_id = $2, cluster_id = $3, updated_at = now()
		WHERE raw_item_id = $1
	`, rawItemID, variantID, clusterID)
	if err != nil {
		return fmt.Errorf("linking submission for raw item %d: %w", rawItemID, err)
	}
	return nil
}

func scanSubmission(row rowScanner) (core.Submission, error) {
	var (
		sub       core.Submission
		rawItemID sql.NullInt64
		variantID sql.NullInt64
		clusterID sql.NullInt64
	)
	err := row.Scan(&sub.ID, &sub.URL, &sub.NormalizedURL, &sub.Domain, &sub.SubmitterIP,
		&sub.Status, &sub.RejectionReason, &rawItemID, &variantID, &clusterID,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return core.Submission{}, err
	}
	if rawItemID.Valid {
		v := rawItemID.Int64
		sub.RawItemID = &v
	}
	if variantID.Valid {
		v := variantID.Int64
		sub.VariantID = &v
	}
	if clusterID.Valid {
		v := clusterID.Int64
		sub.ClusterID = &v
	}
	return sub, nil
}
