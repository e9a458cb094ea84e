package retrieval

import (
	"strings"
	"testing"

	"quokkaq/internal/corpus"
)

func rankedWithKeywords(id string, keywords ...string) RankedMaterial {
	return RankedMaterial{Material: corpus.Material{ID: id, Keywords: keywords}}
}

func TestExpandQueryAppendsFeedbackTerms(t *testing.T) {
	top := []RankedMaterial{
		rankedWithKeywords("a", "recursion", "stack"),
		rankedWithKeywords("b", "recursion", "frames"),
	}

	expanded := ExpandQuery("how does recursion work", top, 2)
	if !strings.HasPrefix(expanded, "how does recursion work ") {
		t.Fatalf("expansion must preserve the original query: %q", expanded)
	}
	// "recursion" is already in the query; "stack" and "frames" are candidates.
	if !strings.Contains(expanded, "stack") {
		t.Errorf("expected feedback term in %q", expanded)
	}
	if strings.Count(expanded, "recursion") != 1 {
		t.Errorf("terms already in the query must not repeat: %q", expanded)
	}
}

func TestExpandQueryFrequencyOrdering(t *testing.T) {
	top := []RankedMaterial{
		rankedWithKeywords("a", "heaps", "pivot"),
		rankedWithKeywords("b", "heaps"),
		rankedWithKeywords("c", "heaps", "pivot"),
	}

	expanded := ExpandQuery("sorting", top, 1)
	if expanded != "sorting heaps" {
		t.Errorf("most frequent feedback term should win, got %q", expanded)
	}
}

func TestExpandQueryNoCandidates(t *testing.T) {
	top := []RankedMaterial{rankedWithKeywords("a", "sorting")}
	if got := ExpandQuery("sorting", top, 3); got != "sorting" {
		t.Errorf("no new terms should leave the query unchanged, got %q", got)
	}
}

func TestExpandQueryEmptyInputs(t *testing.T) {
	if got := ExpandQuery("q", nil, 3); got != "q" {
		t.Errorf("nil results should leave the query unchanged, got %q", got)
	}
	if got := ExpandQuery("q", []RankedMaterial{rankedWithKeywords("a", "x")}, 0); got != "q" {
		t.Errorf("zero maxTerms should leave the query unchanged, got %q", got)
	}
}

func TestMatchedKeywords(t *testing.T) {
	m := corpus.Material{
		Keywords: []string{"binary search"},
		Content:  "Binary search halves a sorted array.",
	}
	matched := MatchedKeywords("what is binary search", m)

	want := map[string]bool{"binary": false, "search": false}
	for _, kw := range matched {
		if _, ok := want[kw]; ok {
			want[kw] = true
		}
	}
	for kw, found := range want {
		if !found {
			t.Errorf("expected %q in matched keywords %v", kw, matched)
		}
	}
	for _, kw := range matched {
		if kw == "what" || kw == "is" {
			t.Errorf("stopwords must not match: %v", matched)
		}
	}
}
