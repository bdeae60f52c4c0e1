package persistence

import (
	"context"
	"fmt"

	"sharkwatch/internal/core"
)

// EnsureTagsByName creates any tags named by names that don't already
// exist and returns the full set of their ids, preserving the caller's
// duplicate-free intent even when two names race to be created (tag name
// is unique; the race resolves to the idempotent existing row).
func (s *Store) EnsureTagsByName(ctx context.Context, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		id, err := s.ensureTag(ctx, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) ensureTag(ctx context.Context, name string) (int64, error) {
	slug := core.Slugify(name)
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tags (name, slug, color) VALUES ($1, $2, '')
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, name, slug).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensuring tag %q: %w", name, err)
	}
	return id, nil
}
