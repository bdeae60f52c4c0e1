package classify

import (
	"testing"

	"sharkwatch/internal/core"
)

func TestClassifyEventTypeSingleMatch(t *testing.T) {
	got := ClassifyEventType("Team trades forward to rival club")
	if got != core.EventTypeTrade {
		t.Fatalf("got %v, want trade", got)
	}
}

func TestClassifyEventTypeNoMatchIsOther(t *testing.T) {
	got := ClassifyEventType("A quiet day around the league")
	if got != core.EventTypeOther {
		t.Fatalf("got %v, want other", got)
	}
}

func TestClassifyEventTypeTieBreaksByFixedOrder(t *testing.T) {
	// "trade" and "signs" both hit once; trade precedes signing in EventTypeOrder.
	got := ClassifyEventType("Team trades for player who then signs")
	if got != core.EventTypeTrade {
		t.Fatalf("got %v, want trade (tie-break order)", got)
	}
}

func TestClassifyTagsMultipleEventTags(t *testing.T) {
	tags := ClassifyTags("Team recalls prospect after waiver claim", core.SourceCategoryOther)
	want := map[string]bool{"recall": false, "waiver": false, "prospect": false}
	for _, tag := range tags {
		if _, ok := want[tag]; ok {
			want[tag] = true
		}
	}
	for tag, found := range want {
		if !found {
			t.Errorf("expected tag %q in %v", tag, tags)
		}
	}
}

func TestClassifyTagsOfficialSourceAlwaysTagged(t *testing.T) {
	tags := ClassifyTags("Routine roster update", core.SourceCategoryOfficial)
	found := false
	for _, tag := range tags {
		if tag == "official" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected official tag from official source, got %v", tags)
	}
}

func TestClassifyTagsRumorGatedOnPressCategory(t *testing.T) {
	text := "According to sources, a trade is close"
	if tags := ClassifyTags(text, core.SourceCategoryOther); contains(tags, "rumor") {
		t.Fatalf("rumor tag must not fire for non-press sources, got %v", tags)
	}
	if tags := ClassifyTags(text, core.SourceCategoryPress); !contains(tags, "rumor") {
		t.Fatalf("expected rumor tag for press source, got %v", tags)
	}
}

func contains(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}
