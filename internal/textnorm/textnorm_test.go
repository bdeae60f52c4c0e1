package textnorm

import (
	"reflect"
	"testing"
)

func TestTokenizeDropsStopwordsAndShortTokens(t *testing.T) {
	got := Tokenize("The team signs Jane Doe to a two-year extension")
	want := []string{"team", "signs", "jane", "doe", "two", "year", "extension"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestWordBoundaryMatchBasic(t *testing.T) {
	if !WordBoundaryMatch("Team signs Jane Doe today", "Jane Doe") {
		t.Fatalf("expected match")
	}
}

func TestWordBoundaryMatchRejectsSlugFragment(t *testing.T) {
	if WordBoundaryMatch("see more at /jane-doe-retires", "jane-doe") {
		t.Fatalf("hyphen must not count as a boundary")
	}
}

func TestWordBoundaryMatchRejectsPartialWord(t *testing.T) {
	if WordBoundaryMatch("Stuart Skinnerton stops 40 shots", "Skinner") {
		t.Fatalf("expected no match for partial-word containment")
	}
}

func TestWordBoundaryMatchAtStringEdges(t *testing.T) {
	if !WordBoundaryMatch("Doe signs extension", "Doe") {
		t.Fatalf("expected match at start of string")
	}
	if !WordBoundaryMatch("extension for Doe", "Doe") {
		t.Fatalf("expected match at end of string")
	}
}
