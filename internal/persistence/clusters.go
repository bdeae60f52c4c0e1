package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"sharkwatch/internal/core"
)

// ActiveClustersSince loads every active cluster first seen at or after
// since, the candidate pool for matching (clustering.ClusterStore).
func (s *Store) ActiveClustersSince(ctx context.Context, since time.Time) ([]core.Cluster, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, headline, event_type, status, first_seen_at, last_seen_at,
		       tokens, entity_ids, source_count, click_count, created_at, updated_at
		FROM clusters
		WHERE status = 'active' AND first_seen_at >= $1
	`, since)
	if err != nil {
		return nil, fmt.Errorf("loading active clusters since %s: %w", since, err)
	}
	defer rows.Close()

	var out []core.Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCluster opens a new cluster seeded from its first variant.
func (s *Store) CreateCluster(ctx context.Context, c core.Cluster) (core.Cluster, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO clusters
			(headline, event_type, status, first_seen_at, last_seen_at, tokens,
			 entity_ids, source_count, click_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, now(), now())
		RETURNING id, headline, event_type, status, first_seen_at, last_seen_at,
		          tokens, entity_ids, source_count, click_count, created_at, updated_at
	`, c.Headline, c.EventType, c.Status, c.FirstSeenAt, c.LastSeenAt,
		stringArray(c.Tokens), int64Array(c.EntityIDs), c.SourceCount)
	created, err := scanCluster(row)
	if err != nil {
		return core.Cluster{}, fmt.Errorf("creating cluster: %w", err)
	}
	return created, nil
}

// AttachVariant links a variant to a cluster, unions the cluster's
// aggregated (non-team) tokens/entities with the variant's, widens
// first_seen_at/last_seen_at to cover publishedAt, and bumps source_count — all inside one transaction so a
// concurrent MatchOrCreate never observes a half-updated cluster.
func (s *Store) AttachVariant(ctx context.Context, clusterID, variantID int64, score float64, tokens []string, entityIDs []int64, publishedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning attach-variant transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cluster_variants (cluster_id, variant_id, similarity_score, attached_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (cluster_id, variant_id) DO UPDATE SET similarity_score = EXCLUDED.similarity_score
	`, clusterID, variantID, score); err != nil {
		return fmt.Errorf("attaching variant %d to cluster %d: %w", variantID, clusterID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE clusters SET
			tokens = (SELECT ARRAY(SELECT DISTINCT unnest(tokens || $2::text[]))),
			entity_ids = (SELECT ARRAY(SELECT DISTINCT unnest(entity_ids || $3::bigint[]))),
			first_seen_at = LEAST(first_seen_at, $4),
			last_seen_at = GREATEST(last_seen_at, $4),
			source_count = source_count + 1,
			updated_at = now()
		WHERE id = $1
	`, clusterID, pq.Array(tokens), pq.Array(entityIDs), publishedAt); err != nil {
		return fmt.Errorf("updating cluster %d aggregate: %w", clusterID, err)
	}

	return tx.Commit()
}

// EnsureClusterEntities records the full (team-inclusive) entity set on the
// join table for display/filtering purposes, independent of the cluster's
// own non-team-only aggregated EntityIDs field.
func (s *Store) EnsureClusterEntities(ctx context.Context, clusterID int64, entityIDs []int64) error {
	for _, id := range entityIDs {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO cluster_entities (cluster_id, entity_id) VALUES ($1, $2)
			ON CONFLICT (cluster_id, entity_id) DO NOTHING
		`, clusterID, id); err != nil {
			return fmt.Errorf("ensuring cluster %d entity %d: %w", clusterID, id, err)
		}
	}
	return nil
}

// EnsureClusterTags records a cluster's tag associations.
func (s *Store) EnsureClusterTags(ctx context.Context, clusterID int64, tagIDs []int64) error {
	for _, id := range tagIDs {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO cluster_tags (cluster_id, tag_id) VALUES ($1, $2)
			ON CONFLICT (cluster_id, tag_id) DO NOTHING
		`, clusterID, id); err != nil {
			return fmt.Errorf("ensuring cluster %d tag %d: %w", clusterID, id, err)
		}
	}
	return nil
}

// LoadCluster loads one cluster by id, used by merge.
func (s *Store) LoadCluster(ctx context.Context, id int64) (core.Cluster, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, headline, event_type, status, first_seen_at, last_seen_at,
		       tokens, entity_ids, source_count, click_count, created_at, updated_at
		FROM clusters WHERE id = $1
	`, id)
	c, err := scanCluster(row)
	if err != nil {
		return core.Cluster{}, fmt.Errorf("loading cluster %d: %w", id, err)
	}
	return c, nil
}

// SaveClusterAggregate persists the merge-recomputed aggregate fields back
// onto the surviving target cluster.
func (s *Store) SaveClusterAggregate(ctx context.Context, c core.Cluster) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE clusters SET
			tokens = $2, entity_ids = $3, first_seen_at = $4, last_seen_at = $5,
			source_count = $6, updated_at = now()
		WHERE id = $1
	`, c.ID, stringArray(c.Tokens), int64Array(c.EntityIDs), c.FirstSeenAt, c.LastSeenAt, c.SourceCount)
	if err != nil {
		return fmt.Errorf("saving cluster %d aggregate: %w", c.ID, err)
	}
	return nil
}

// DeleteCluster removes a cluster (and, via ON DELETE CASCADE, its join
// rows), used for clusters folded away by an operator merge.
func (s *Store) DeleteCluster(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM clusters WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting cluster %d: %w", id, err)
	}
	return nil
}

// CountVariants counts a cluster's member variants, used to recompute
// source_count after a merge.
func (s *Store) CountVariants(ctx context.Context, clusterID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM cluster_variants WHERE cluster_id = $1`, clusterID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting variants for cluster %d: %w", clusterID, err)
	}
	return n, nil
}

// RepointVariants moves a merge source's cluster_variants rows onto the
// target, skipping any variant the target already has attached.
func (s *Store) RepointVariants(ctx context.Context, fromClusterID, toClusterID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cluster_variants SET cluster_id = $2
		WHERE cluster_id = $1
		  AND variant_id NOT IN (SELECT variant_id FROM cluster_variants WHERE cluster_id = $2)
	`, fromClusterID, toClusterID)
	if err != nil {
		return fmt.Errorf("repointing variants from %d to %d: %w", fromClusterID, toClusterID, err)
	}
	return nil
}

// RepointTags moves a merge source's cluster_tags rows onto the target.
func (s *Store) RepointTags(ctx context.Context, fromClusterID, toClusterID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cluster_tags SET cluster_id = $2
		WHERE cluster_id = $1
		  AND tag_id NOT IN (SELECT tag_id FROM cluster_tags WHERE cluster_id = $2)
	`, fromClusterID, toClusterID)
	if err != nil {
		return fmt.Errorf("repointing tags from %d to %d: %w", fromClusterID, toClusterID, err)
	}
	return nil
}

// RepointEntities moves a merge source's cluster_entities rows onto the
// target.
func (s *Store) RepointEntities(ctx context.Context, fromClusterID, toClusterID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cluster_entities SET cluster_id = $2
		WHERE cluster_id = $1
		  AND entity_id NOT IN (SELECT entity_id FROM cluster_entities WHERE cluster_id = $2)
	`, fromClusterID, toClusterID)
	if err != nil {
		return fmt.Errorf("repointing entities from %d to %d: %w", fromClusterID, toClusterID, err)
	}
	return nil
}

// PurgeClustersOlderThan deletes clusters whose last activity predates
// cutoff. ON DELETE CASCADE on cluster_variants/cluster_tags/cluster_entities
// removes their link rows too, so this is the only thing keeping those
// tables (and the clusters table itself) bounded in size.
func (s *Store) PurgeClustersOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clusters WHERE last_seen_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging clusters older than %s: %w", cutoff, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged clusters: %w", err)
	}
	return n, nil
}

func scanCluster(row rowScanner) (core.Cluster, error) {
	var (
		c         core.Cluster
		tokens    pq.StringArray
		entityIDs pq.Int64Array
	)
	err := row.Scan(&c.ID, &c.Headline, &c.EventType, &c.Status, &c.FirstSeenAt, &c.LastSeenAt,
		&tokens, &entityIDs, &c.SourceCount, &c.ClickCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return core.Cluster{}, err
	}
	c.Tokens = []string(tokens)
	c.EntityIDs = []int64(entityIDs)
	return c, nil
}
