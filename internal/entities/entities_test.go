package entities

import (
	"testing"

	"sharkwatch/internal/core"
)

func roster() *Roster {
	return NewRoster([]core.Entity{
		{ID: 1, Name: "Jane Doe", Slug: "jane-doe", Type: core.EntityTypePlayer},
		{ID: 2, Name: "Jeff Skinner", Slug: "jeff-skinner", Type: core.EntityTypePlayer},
		{ID: 3, Name: "Sea Lions", Slug: "sea-lions", Type: core.EntityTypeTeam},
	})
}

func TestExtractFullNameAlwaysRetained(t *testing.T) {
	got := roster().Extract("Team signs Jane Doe to an extension", nil)
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected Jane Doe matched without topic context, got %v", got)
	}
}

func TestExtractLastNameRequiresTopicContext(t *testing.T) {
	r := roster()
	got := r.Extract("Skinner scored twice last night", nil)
	if len(got) != 0 {
		t.Fatalf("expected no match without topic keyword, got %v", got)
	}
	got = r.Extract("Sea Lions news: Skinner scored twice", []string{"Sea Lions"})
	found := false
	for _, e := range got {
		if e.ID == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Skinner matched with topic context present, got %v", got)
	}
}

func TestExtractBlocklistedLastNameNeverMatches(t *testing.T) {
	r := NewRoster([]core.Entity{{ID: 9, Name: "Marty Page", Slug: "marty-page", Type: core.EntityTypePlayer}})
	got := r.Extract("Sea Lions topic: Page made the save", []string{"Sea Lions"})
	if len(got) != 0 {
		t.Fatalf("expected blocklisted surname never to attach, got %v", got)
	}
}

func TestFilterNonTeam(t *testing.T) {
	es := []core.Entity{
		{ID: 1, Type: core.EntityTypePlayer},
		{ID: 2, Type: core.EntityTypeTeam},
	}
	got := FilterNonTeam(es)
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected team entity filtered out, got %v", got)
	}
}
