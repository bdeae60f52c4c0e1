package roster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"sharkwatch/internal/core"
)

type fakeStore struct {
	upserted []string
	keep     []string
	deleted  []int64
}

func (s *fakeStore) UpsertEntity(ctx context.Context, name string, entityType core.EntityType) (core.Entity, error) {
	s.upserted = append(s.upserted, name)
	return core.Entity{ID: int64(len(s.upserted)), Name: name, Slug: core.Slugify(name), Type: entityType}, nil
}

func (s *fakeStore) DeleteDepartedEntities(ctx context.Context, entityType core.EntityType, keepSlugs []string) ([]int64, error) {
	s.keep = keepSlugs
	s.deleted = []int64{99}
	return s.deleted, nil
}

const rosterPage = `<html><body>
<div id="active-roster"><span class="player-name">Jane Doe</span><span class="player-name">John Smith</span></div>
<div id="non-roster"><span class="player-name">Taxi Squad Guy</span></div>
</body></html>`

func TestSyncer_Sync(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rosterPage))
	}))
	defer srv.Close()

	store := &fakeStore{}
	sel := Selectors{ActiveSection: "#active-roster", NonRosterSection: "#non-roster", PlayerName: ".player-name"}
	syncer := NewSyncer(store, srv.Client(), srv.URL, sel)

	result, err := syncer.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if result.Active != 2 {
		t.Errorf("expected 2 active players, got %d", result.Active)
	}
	if result.NonRoster != 1 {
		t.Errorf("expected 1 non-roster player, got %d", result.NonRoster)
	}
	if result.Departed != 1 {
		t.Errorf("expected 1 departed player, got %d", result.Departed)
	}
	if len(store.upserted) != 3 {
		t.Fatalf("expected 3 upserts, got %v", store.upserted)
	}
	if len(store.keep) != 3 {
		t.Errorf("expected 3 keep-slugs passed to delete, got %v", store.keep)
	}
}
