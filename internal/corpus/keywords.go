package corpus

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	acronymRegex    = regexp.MustCompile(`\b[A-Z]{2,6}\b`)
	camelCaseRegex  = regexp.MustCompile(`\b[a-z]+(?:[A-Z][a-z0-9]+)+\b`)
	identifierRegex = regexp.MustCompile(`\b[a-zA-Z_][a-zA-Z0-9_]*\.[a-zA-Z_][a-zA-Z0-9_]*\b`)
)

var keywordStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "this": {}, "that": {}, "to": {}, "was": {}, "were": {}, "will": {},
	"with": {}, "you": {}, "your": {}, "we": {}, "can": {}, "not": {},
}

// ExtractKeywords derives index terms from material content.
// Surface-pattern terms (acronyms, camelCase, dotted identifiers) are always
// kept; the remainder is filled with the most frequent non-stopword tokens.
func ExtractKeywords(content string, max int) []string {
	if content == "" || max <= 0 {
		return nil
	}

	seen := make(map[string]struct{})
	keywords := make([]string, 0, max)
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		keywords = append(keywords, term)
	}

	for _, m := range acronymRegex.FindAllString(content, -1) {
		add(m)
	}
	for _, m := range camelCaseRegex.FindAllString(content, -1) {
		add(m)
	}
	for _, m := range identifierRegex.FindAllString(content, -1) {
		add(m)
	}

	if len(keywords) >= max {
		return keywords[:max]
	}

	// Fill remaining slots with frequent content tokens.
	freq := make(map[string]int)
	order := make(map[string]int)
	for i, token := range Tokenize(content) {
		if len(token) < 3 {
			continue
		}
		if _, stop := keywordStopwords[token]; stop {
			continue
		}
		if _, ok := order[token]; !ok {
			order[token] = i
		}
		freq[token]++
	}
	tokens := make([]string, 0, len(freq))
	for token := range freq {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if freq[tokens[i]] != freq[tokens[j]] {
			return freq[tokens[i]] > freq[tokens[j]]
		}
		return order[tokens[i]] < order[tokens[j]]
	})
	for _, token := range tokens {
		if len(keywords) >= max {
			break
		}
		add(token)
	}
	return keywords
}

// Tokenize lowercases text and splits it into alphanumeric tokens.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	tokens := strings.Fields(builder.String())
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

// FilterStopwords removes common stopwords from a token list.
func FilterStopwords(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := keywordStopwords[token]; isStop {
			continue
		}
		result = append(result, token)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
