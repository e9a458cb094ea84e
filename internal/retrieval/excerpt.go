package retrieval

import (
	"sort"
	"strings"
	"unicode"
)

const (
	// DefaultExcerptWindow is the number of characters kept on each side of
	// a matched term.
	DefaultExcerptWindow = 350
	excerptSeparator     = " ... "
)

// Excerpt extracts a span-aware window of content around the matched terms.
// Overlapping windows merge into one contiguous span; disjoint windows are
// joined with an ellipsis. Window edges snap to word boundaries. With no
// matches it falls back to a sentence-bounded prefix.
func Excerpt(content string, matchedTerms []string, windowSize int) string {
	if content == "" {
		return ""
	}
	if windowSize <= 0 {
		windowSize = DefaultExcerptWindow
	}

	spans := termSpans(content, matchedTerms)
	if len(spans) == 0 {
		return prefixExcerpt(content, 2*windowSize)
	}

	// Expand each occurrence by the window, then merge overlaps.
	for i := range spans {
		spans[i].start -= windowSize
		spans[i].end += windowSize
		if spans[i].start < 0 {
			spans[i].start = 0
		}
		if spans[i].end > len(content) {
			spans[i].end = len(content)
		}
	}
	merged := mergeSpans(spans)

	parts := make([]string, 0, len(merged))
	for _, s := range merged {
		start := snapToWordStart(content, s.start)
		end := snapToWordEnd(content, s.end)
		parts = append(parts, strings.TrimSpace(content[start:end]))
	}
	return strings.Join(parts, excerptSeparator)
}

type span struct {
	start, end int
}

// termSpans finds every case-insensitive occurrence of each term.
func termSpans(content string, terms []string) []span {
	lower := strings.ToLower(content)
	var spans []span
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		for offset := 0; ; {
			idx := strings.Index(lower[offset:], term)
			if idx < 0 {
				break
			}
			start := offset + idx
			spans = append(spans, span{start: start, end: start + len(term)})
			offset = start + len(term)
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	return spans
}

func mergeSpans(spans []span) []span {
	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// snapToWordStart moves the offset left-to-right to the next word boundary so
// the excerpt does not begin mid-word.
func snapToWordStart(content string, offset int) int {
	if offset <= 0 {
		return 0
	}
	if isWordBoundary(rune(content[offset-1])) {
		return offset
	}
	for offset < len(content) && !isWordBoundary(rune(content[offset])) {
		offset++
	}
	return offset
}

// snapToWordEnd moves the offset right-to-left to the previous word boundary
// so the excerpt does not end mid-word.
func snapToWordEnd(content string, offset int) int {
	if offset >= len(content) {
		return len(content)
	}
	if isWordBoundary(rune(content[offset])) {
		return offset
	}
	for offset > 0 && !isWordBoundary(rune(content[offset-1])) {
		offset--
	}
	return offset
}

func isWordBoundary(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r)
}

// prefixExcerpt truncates content at the nearest sentence or line boundary
// within [80% maxLen, maxLen], else hard-truncates with a trailing ellipsis.
func prefixExcerpt(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}

	window := content[:maxLen]
	minCut := maxLen * 8 / 10
	bestCut := -1
	for i, r := range window {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if i+1 >= minCut && i+1 > bestCut {
				bestCut = i + 1
			}
		}
	}
	if bestCut > 0 {
		return strings.TrimSpace(window[:bestCut])
	}
	return strings.TrimSpace(snapPrefix(window)) + "..."
}

// snapPrefix drops a trailing partial word.
func snapPrefix(s string) string {
	end := snapToWordEnd(s, len(s)-1)
	if end <= 0 {
		return s
	}
	return s[:end]
}
