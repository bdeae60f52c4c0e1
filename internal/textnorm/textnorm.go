// Package textnorm tokenizes free text and provides the word-boundary
// matching primitive entity extraction is built on, grounded on the
// original pipeline's normalize_tokens and _word_boundary_match.
package textnorm

import (
	"regexp"
	"strings"
)

var nonWord = regexp.MustCompile(`[^\w]+`)

// stopwords is a small built-in list of tokens too common to carry any
// signal for similarity comparisons.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "to": {},
	"of": {}, "in": {}, "on": {}, "for": {}, "with": {}, "as": {}, "at": {},
	"by": {}, "from": {}, "is": {}, "was": {}, "are": {}, "were": {}, "be": {},
	"been": {}, "being": {}, "has": {}, "have": {}, "had": {}, "will": {},
	"would": {}, "could": {}, "should": {}, "this": {}, "that": {}, "these": {},
	"those": {}, "it": {}, "its": {}, "his": {}, "her": {}, "their": {},
	"they": {}, "he": {}, "she": {}, "we": {}, "you": {}, "i": {}, "not": {},
	"no": {}, "yes": {}, "all": {}, "any": {}, "can": {}, "into": {}, "out": {},
	"up": {}, "down": {}, "off": {}, "over": {}, "under": {}, "again": {},
	"than": {}, "then": {}, "so": {}, "if": {}, "about": {}, "after": {},
	"before": {}, "between": {}, "during": {}, "against": {}, "just": {},
	"more": {}, "most": {}, "some": {}, "such": {}, "only": {}, "own": {},
	"same": {}, "too": {}, "very": {}, "s": {}, "t": {}, "now": {},
}

// Tokenize lowercases text, replaces non-word runs with spaces, splits on
// whitespace, drops stopwords, and drops tokens shorter than three
// characters. Order is preserved; duplicates are not collapsed (set-based
// comparisons collapse them downstream).
func Tokenize(text string) []string {
	lowered := strings.ToLower(text)
	cleaned := nonWord.ReplaceAllString(lowered, " ")
	fields := strings.Fields(cleaned)

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// boundaryChars mirrors the boundary character class used by the original
// implementation: whitespace and common punctuation, never a hyphen, so
// slugged URL fragments don't falsely match.
const boundaryChars = " \t\n,.:;!?'\"()"

func isBoundary(r rune) bool {
	if r == 0 {
		return true
	}
	return strings.ContainsRune(boundaryChars, r)
}

// WordBoundaryMatch reports whether term occurs in text (case-insensitive)
// at least once with a boundaryChars character (or the string edge)
// immediately before and after that occurrence.
func WordBoundaryMatch(text, term string) bool {
	lowerText := strings.ToLower(text)
	lowerTerm := strings.ToLower(term)
	if lowerTerm == "" {
		return false
	}

	runes := []rune(lowerText)
	termRunes := []rune(lowerTerm)
	n, m := len(runes), len(termRunes)

	for i := 0; i+m <= n; i++ {
		if string(runes[i:i+m]) != string(termRunes) {
			continue
		}
		var before, after rune
		if i > 0 {
			before = runes[i-1]
		}
		if i+m < n {
			after = runes[i+m]
		}
		beforeOK := i == 0 || isBoundary(before)
		afterOK := i+m == n || isBoundary(after)
		if beforeOK && afterOK {
			return true
		}
	}
	return false
}

// TokenSet converts a token slice to a deduplicated set, used for Jaccard
// similarity in the clusterer.
func TokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
