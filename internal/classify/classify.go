// Package classify assigns an event type and a set of display tags to a
// piece of text, grounded on the original pipeline's classify_event_type
// and classify_tags keyword dictionaries.
package classify

import (
	"strings"

	"sharkwatch/internal/core"
)

// eventKeywords maps each event type to the keywords whose presence counts
// as a hit. Iteration for counting always walks core.EventTypeOrder so
// ties resolve deterministically (Open Question b).
var eventKeywords = map[core.EventType][]string{
	core.EventTypeTrade:    {"trade", "traded", "acquire", "acquired", "deal sends"},
	core.EventTypeInjury:   {"injury", "injured", "out indefinitely", "day-to-day", "ir", "surgery"},
	core.EventTypeLineup:   {"lineup", "starting", "scratch", "scratched", "line combinations"},
	core.EventTypeRecall:   {"recall", "recalled", "called up"},
	core.EventTypeWaiver:   {"waiver", "waivers", "waived"},
	core.EventTypeSigning:  {"signs", "signed", "signing", "extension", "contract"},
	core.EventTypeProspect: {"prospect", "draft pick", "development camp"},
	core.EventTypeGame:     {"final score", "recap", "highlights", "goal", "shutout"},
	core.EventTypeOpinion:  {"opinion", "should the", "takeaways", "analysis", "mailbag"},
}

var affiliateKeywords = []string{"barracuda", "ahl affiliate"}
var rumorPhrases = []string{"according to sources", "rumor", "rumored", "league sources say"}

// CountEventKeywordMatches counts, per event type, how many configured
// keywords occur in the lowercased text.
func CountEventKeywordMatches(text string) map[core.EventType]int {
	lowered := strings.ToLower(text)
	counts := make(map[core.EventType]int, len(eventKeywords))
	for _, et := range core.EventTypeOrder {
		n := 0
		for _, kw := range eventKeywords[et] {
			if strings.Contains(lowered, kw) {
				n++
			}
		}
		counts[et] = n
	}
	return counts
}

// ClassifyEventType returns the event type with the most keyword hits,
// breaking ties by core.EventTypeOrder, and core.EventTypeOther when
// nothing matches.
func ClassifyEventType(text string) core.EventType {
	counts := CountEventKeywordMatches(text)
	best := core.EventTypeOther
	bestCount := 0
	for _, et := range core.EventTypeOrder {
		if counts[et] > bestCount {
			best = et
			bestCount = counts[et]
		}
	}
	return best
}

// ClassifyTags assigns every event type with at least one keyword hit as a
// display tag, plus affiliate/rumor/official tags gated on text content and
// the source's editorial category.
func ClassifyTags(text string, sourceCategory core.SourceCategory) []string {
	lowered := strings.ToLower(text)
	counts := CountEventKeywordMatches(text)

	var tags []string
	for _, et := range core.EventTypeOrder {
		if counts[et] > 0 {
			tags = append(tags, string(et))
		}
	}

	for _, kw := range affiliateKeywords {
		if strings.Contains(lowered, kw) {
			tags = append(tags, "affiliate")
			break
		}
	}

	if sourceCategory == core.SourceCategoryPress {
		for _, phrase := range rumorPhrases {
			if strings.Contains(lowered, phrase) {
				tags = append(tags, "rumor")
				break
			}
		}
	}

	if sourceCategory == core.SourceCategoryOfficial {
		tags = append(tags, "official")
	}

	return tags
}
