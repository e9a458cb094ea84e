package service

import (
	"encoding/json"
	"strings"

	"quokkaq/internal/retrieval"
)

// structuredPayload mirrors the JSON schema the prompt asks the model for.
type structuredPayload struct {
	Answer    string   `json:"answer"`
	Bullets   []string `json:"bullets"`
	Citations []struct {
		MaterialID string  `json:"materialId"`
		Excerpt    string  `json:"excerpt"`
		Relevance  float64 `json:"relevance"`
	} `json:"citations"`
	Confidence struct {
		Level string  `json:"level"`
		Score float64 `json:"score"`
	} `json:"confidence"`
}

// parseStructured extracts the JSON object from model output, tolerating
// markdown fences and surrounding prose. A payload without an answer field
// is treated as a parse failure so callers fall back to the raw text.
func parseStructured(content string) (*structuredPayload, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var payload structuredPayload
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return nil, false
	}
	if payload.Answer == "" {
		return nil, false
	}
	return &payload, true
}

// resolveCitations joins model-reported citations back to the retrieved
// materials, dropping references to IDs that were never in the context.
func resolveCitations(payload *structuredPayload, ranked []retrieval.RankedMaterial) []Citation {
	byID := make(map[string]retrieval.RankedMaterial, len(ranked))
	for _, r := range ranked {
		byID[r.Material.ID] = r
	}

	citations := make([]Citation, 0, len(payload.Citations))
	for _, c := range payload.Citations {
		r, ok := byID[c.MaterialID]
		if !ok {
			continue
		}
		relevance := c.Relevance
		if relevance <= 0 {
			relevance = r.RelevanceScore
		}
		citations = append(citations, Citation{
			MaterialID: c.MaterialID,
			Title:      r.Material.Title,
			Excerpt:    c.Excerpt,
			Relevance:  relevance,
		})
	}
	if len(citations) == 0 {
		return defaultCitations(ranked)
	}
	return citations
}

const defaultCitationCount = 3

// defaultCitations synthesizes citations from the top retrieved materials
// when the model provides none.
func defaultCitations(ranked []retrieval.RankedMaterial) []Citation {
	n := len(ranked)
	if n > defaultCitationCount {
		n = defaultCitationCount
	}
	citations := make([]Citation, 0, n)
	for _, r := range ranked[:n] {
		citations = append(citations, Citation{
			MaterialID: r.Material.ID,
			Title:      r.Material.Title,
			Excerpt:    retrieval.Excerpt(r.Material.Content, r.MatchedKeywords, 120),
			Relevance:  r.RelevanceScore,
		})
	}
	return citations
}
