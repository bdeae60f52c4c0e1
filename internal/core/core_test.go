package core

import "testing"

func TestSlugifyIdempotent(t *testing.T) {
	cases := []string{"Jane Doe", "  Jeff   Skinner ", "O'Reilly Jr.", "already-a-slug"}
	for _, c := range cases {
		once := Slugify(c)
		twice := Slugify(once)
		if once != twice {
			t.Fatalf("Slugify not idempotent for %q: once=%q twice=%q", c, once, twice)
		}
	}
}

func TestSlugifyDependsOnlyOnName(t *testing.T) {
	if Slugify("Jane Doe") != Slugify("jane   doe") {
		t.Fatalf("expected case/whitespace-insensitive slugs to match")
	}
}

func TestSourceCategorySignal(t *testing.T) {
	if SourceCategoryOfficial.Signal() <= SourceCategoryPress.Signal() {
		t.Fatalf("official must outrank press")
	}
	if SourceCategoryPress.Signal() <= SourceCategoryOther.Signal() {
		t.Fatalf("press must outrank other")
	}
}

func TestSourceSkipRelevanceCheck(t *testing.T) {
	s := Source{Metadata: map[string]any{"skip_relevance_check": true}}
	if !s.SkipRelevanceCheck() {
		t.Fatalf("expected skip_relevance_check to read true from metadata")
	}
	s2 := Source{Metadata: map[string]any{}}
	if s2.SkipRelevanceCheck() {
		t.Fatalf("expected default false when metadata key absent")
	}
}
