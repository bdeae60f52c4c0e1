// Package entities matches free text against a curated roster, applying the
// full-name / last-name / ambiguity-blocklist / topic-gate rules from the
// original extraction pipeline (extract_entities).
package entities

import (
	"strings"

	"sharkwatch/internal/core"
	"sharkwatch/internal/textnorm"
)

// commonWordNames blocks last-name-only matches against surnames that also
// read as ordinary English words or are implausibly common, to avoid
// false positives like "Page", "Bishop", or "Graves".
var commonWordNames = map[string]struct{}{
	"page": {}, "bishop": {}, "graves": {}, "young": {}, "king": {},
	"carter": {}, "cook": {}, "baker": {}, "little": {}, "price": {},
	"fox": {}, "frost": {}, "short": {}, "rich": {}, "law": {}, "day": {},
}

const minLastNameLength = 5

// Roster is the set of entities to match against.
type Roster struct {
	entities []core.Entity
}

// NewRoster builds a Roster from a slice of entities.
func NewRoster(entities []core.Entity) *Roster {
	return &Roster{entities: entities}
}

// Match is one entity match, including whether it was resolved by full
// name or by last name only (used by the topic gate).
type Match struct {
	Entity       core.Entity
	LastNameOnly bool
}

// Extract finds roster entities present in text, applying the full-name /
// last-name / blocklist rules. topicKeywords gates last-name-only matches:
// such a match is retained only if at least one topic keyword is also
// present in the text. The result is deduplicated and follows the order of
// the roster the Roster was built from.
func (r *Roster) Extract(text string, topicKeywords []string) []core.Entity {
	hasTopicContext := containsAny(text, topicKeywords)

	seen := make(map[int64]struct{})
	var out []core.Entity

	for _, e := range r.entities {
		m, ok := matchEntity(text, e)
		if !ok {
			continue
		}
		if m.LastNameOnly && !hasTopicContext {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}

func matchEntity(text string, e core.Entity) (Match, bool) {
	if textnorm.WordBoundaryMatch(text, e.Name) {
		return Match{Entity: e, LastNameOnly: false}, true
	}

	parts := strings.Fields(e.Name)
	if len(parts) < 2 {
		return Match{}, false
	}
	last := parts[len(parts)-1]
	if len(last) < minLastNameLength {
		return Match{}, false
	}
	if _, blocked := commonWordNames[strings.ToLower(last)]; blocked {
		return Match{}, false
	}
	if textnorm.WordBoundaryMatch(text, last) {
		return Match{Entity: e, LastNameOnly: true}, true
	}
	return Match{}, false
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if k == "" {
			continue
		}
		if textnorm.WordBoundaryMatch(text, k) {
			return true
		}
	}
	return false
}

// FilterNonTeam removes team-type entities from a slice, used by the
// clusterer which treats team affiliation as too broad to discriminate
// between events.
func FilterNonTeam(es []core.Entity) []core.Entity {
	out := make([]core.Entity, 0, len(es))
	for _, e := range es {
		if e.Type != core.EntityTypeTeam {
			out = append(out, e)
		}
	}
	return out
}
