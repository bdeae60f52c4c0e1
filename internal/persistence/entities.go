package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"sharkwatch/internal/core"
)

// ListEntities loads the full roster for entity matching (internal/entities
// re-builds its Roster from this on every enrich pass; the set is small
// enough that no in-process cache is needed, per the concurrency model's
// "no in-process caches across tasks" rule).
func (s *Store) ListEntities(ctx context.Context) ([]core.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, slug, type, metadata, created_at, updated_at FROM entities ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	var out []core.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertEntity creates or updates an entity by its deterministic slug
// (core.Slugify(name)), used by roster sync to bring a player record up to
// date without duplicating it across runs.
func (s *Store) UpsertEntity(ctx context.Context, name string, entityType core.EntityType) (core.Entity, error) {
	slug := core.Slugify(name)
	metaJSON := []byte("{}")
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO entities (name, slug, type, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, type = EXCLUDED.type, updated_at = now()
		RETURNING id, name, slug, type, metadata, created_at, updated_at
	`, name, slug, entityType, metaJSON)
	e, err := scanEntity(row)
	if err != nil {
		return core.Entity{}, fmt.Errorf("upserting entity %q: %w", name, err)
	}
	return e, nil
}

// DeleteDepartedEntities removes entities of entityType whose slug is not
// in keepSlugs, cascading to their cluster_entities rows via the schema's
// ON DELETE CASCADE. This is roster sync's departure-pruning step; it
// never touches team entities, which are never sourced from the roster
// sync's player list.
func (s *Store) DeleteDepartedEntities(ctx context.Context, entityType core.EntityType, keepSlugs []string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		DELETE FROM entities
		WHERE type = $1 AND slug <> ALL($2)
		RETURNING id
	`, entityType, stringArray(keepSlugs))
	if err != nil {
		return nil, fmt.Errorf("deleting departed %s entities: %w", entityType, err)
	}
	defer rows.Close()

	var deleted []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		deleted = append(deleted, id)
	}
	return deleted, rows.Err()
}

func scanEntity(row rowScanner) (core.Entity, error) {
	var (
		e             core.Entity
		metadataBytes []byte
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Slug, &e.Type, &metadataBytes, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return core.Entity{}, fmt.Errorf("scanning entity: %w", err)
	}
	if len(metadataBytes) > 0 {
		if err := json.Unmarshal(metadataBytes, &e.Metadata); err != nil {
			return core.Entity{}, fmt.Errorf("decoding entity metadata: %w", err)
		}
	}
	return e, nil
}
