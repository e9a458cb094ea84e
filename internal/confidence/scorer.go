package confidence

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"quokkaq/internal/corpus"
)

// Level bands a confidence score.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// Weights are the ensemble weights of the three feature families.
type Weights struct {
	Lexical    float64 `json:"lexical"`
	Semantic   float64 `json:"semantic"`
	Historical float64 `json:"historical"`
}

// DefaultWeights returns the standard 0.4/0.4/0.2 ensemble weights.
func DefaultWeights() Weights {
	return Weights{Lexical: 0.4, Semantic: 0.4, Historical: 0.2}
}

// Features is the per-family sub-score breakdown. Each sub-score is clamped
// to [0,100] before weighting.
type Features struct {
	Lexical    float64 `json:"lexical"`
	Semantic   float64 `json:"semantic"`
	Historical float64 `json:"historical"`
	Weights    Weights `json:"weights"`
}

// Score is the ensemble query-confidence value.
type Score struct {
	Score      float64   `json:"score"`
	Level      Level     `json:"level"`
	Features   Features  `json:"features"`
	Reasoning  string    `json:"reasoning"`
	ComputedAt time.Time `json:"computed_at"`
}

// Config tunes the scorer. The point-valued bonuses below are heuristic
// defaults, not calibrated constants; they are exposed here so a labeled
// query set can be used to tune them later.
type Config struct {
	Weights         Weights
	HighThreshold   float64 // score at or above this is "high"
	MediumThreshold float64 // score at or above this is "medium"
}

// DefaultConfig returns the standard scorer configuration.
func DefaultConfig() Config {
	return Config{
		Weights:         DefaultWeights(),
		HighThreshold:   75,
		MediumThreshold: 50,
	}
}

// Additive scoring constants for the lexical and semantic feature families.
const (
	baseScore = 50.0

	lengthBonus        = 10.0 // token count within [minGoodTokens, maxGoodTokens]
	tooShortPenalty    = 15.0 // fewer than minTokens tokens
	specificityBonus   = 15.0 // specificity heuristic above specificityCutoff
	courseCodeBonus    = 10.0
	weekNumberBonus    = 5.0
	technicalTermBonus = 5.0 // per technical term, capped
	technicalTermCap   = 15.0
	pronounPenalty     = 10.0 // per generic pronoun

	coverageBonus  = 20.0 // keyword coverage at or above coverageCutoff
	ambiguityBonus = 15.0 // ambiguity estimate below ambiguityCutoff
	focusBonus     = 15.0 // topic focus at or above focusCutoff

	minTokens     = 3
	minGoodTokens = 4
	maxGoodTokens = 12

	specificityCutoff = 0.5
	coverageCutoff    = 0.5
	ambiguityCutoff   = 0.4
	focusCutoff       = 0.5
)

var (
	courseCodeRegex = regexp.MustCompile(`\b[A-Za-z]{2,4}[ -]?\d{2,4}\b`)
	weekRegex       = regexp.MustCompile(`(?i)\bweek\s*\d{1,2}\b`)

	// Technical-term surface patterns: all-caps acronyms, camelCase,
	// dotted identifiers, and function-call syntax.
	acronymRegex  = regexp.MustCompile(`\b[A-Z]{2,6}\b`)
	camelRegex    = regexp.MustCompile(`\b[a-z]+(?:[A-Z][a-z0-9]+)+\b`)
	dottedRegex   = regexp.MustCompile(`\b[a-zA-Z_][a-zA-Z0-9_]*\.[a-zA-Z_][a-zA-Z0-9_]*\b`)
	funcCallRegex = regexp.MustCompile(`\b[a-zA-Z_][a-zA-Z0-9_]*\(`)

	questionWords = map[string]struct{}{
		"what": {}, "why": {}, "how": {}, "when": {}, "where": {}, "who": {}, "which": {},
	}
	genericPronouns = map[string]struct{}{
		"it": {}, "this": {}, "that": {}, "they": {}, "them": {}, "these": {}, "those": {},
		"he": {}, "she": {}, "his": {}, "her": {}, "its": {},
	}
	vagueWords = map[string]struct{}{
		"it": {}, "thing": {}, "things": {}, "stuff": {}, "something": {}, "anything": {},
		"this": {}, "that": {}, "some": {}, "etc": {},
	}
)

// Scorer estimates how reliably a query can be answered for one course.
// It is read-only after construction and safe for concurrent use.
type Scorer struct {
	keywords map[string]struct{} // course keyword vocabulary, lowercased
	cfg      Config
	clock    func() time.Time
}

// NewScorer creates a scorer over a course's keyword vocabulary.
func NewScorer(keywordSet map[string]struct{}, cfg Config) *Scorer {
	if cfg.Weights == (Weights{}) {
		cfg = DefaultConfig()
	}
	return &Scorer{keywords: keywordSet, cfg: cfg, clock: time.Now}
}

// ScoreQuery computes the ensemble confidence for a query. History is
// optional; without it the historical sub-score degrades to a neutral 50.
func (s *Scorer) ScoreQuery(query string, history []HistoryEntry) Score {
	now := s.clock()

	lexical, lexicalNotes := s.lexicalScore(query)
	semantic, semanticNotes := s.semanticScore(query)
	historical := s.historicalScore(query, history, now)

	w := s.cfg.Weights
	total := lexical*w.Lexical + semantic*w.Semantic + historical*w.Historical

	level := LevelLow
	switch {
	case total >= s.cfg.HighThreshold:
		level = LevelHigh
	case total >= s.cfg.MediumThreshold:
		level = LevelMedium
	}

	notes := append([]string{levelPhrase(level)}, lexicalNotes...)
	notes = append(notes, semanticNotes...)

	return Score{
		Score: total,
		Level: level,
		Features: Features{
			Lexical:    lexical,
			Semantic:   semantic,
			Historical: historical,
			Weights:    w,
		},
		Reasoning:  strings.Join(notes, " "),
		ComputedAt: now,
	}
}

// lexicalScore rates the query's surface form.
func (s *Scorer) lexicalScore(query string) (float64, []string) {
	tokens := corpus.Tokenize(query)
	score := baseScore
	var notes []string

	switch {
	case len(tokens) < minTokens:
		score -= tooShortPenalty
		notes = append(notes, "Query is very short.")
	case len(tokens) >= minGoodTokens && len(tokens) <= maxGoodTokens:
		score += lengthBonus
	}

	if specificity(query, tokens) > specificityCutoff {
		score += specificityBonus
	}
	if courseCodeRegex.MatchString(query) {
		score += courseCodeBonus
		notes = append(notes, "Contains course code.")
	}
	if weekRegex.MatchString(query) {
		score += weekNumberBonus
		notes = append(notes, "References a course week.")
	}

	if terms := countTechnicalTerms(query); terms > 0 {
		bonus := float64(terms) * technicalTermBonus
		if bonus > technicalTermCap {
			bonus = technicalTermCap
		}
		score += bonus
		notes = append(notes, fmt.Sprintf("%d technical term(s) detected.", terms))
	}

	pronouns := 0
	for _, token := range tokens {
		if _, ok := genericPronouns[token]; ok {
			pronouns++
		}
	}
	if pronouns > 0 {
		score -= float64(pronouns) * pronounPenalty
		notes = append(notes, "Generic pronouns reduce clarity.")
	}

	return clamp(score), notes
}

// specificity is a 0-1 heuristic combining length, proper-noun presence,
// and digits, zeroed for bare question words.
func specificity(query string, tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	if len(tokens) == 1 {
		if _, ok := questionWords[tokens[0]]; ok {
			return 0
		}
	}

	lengthPart := float64(len(tokens)) / 10.0
	if lengthPart > 1 {
		lengthPart = 1
	}

	properPart := 0.0
	for _, field := range strings.Fields(query)[1:] { // skip sentence-initial capital
		r := []rune(field)[0]
		if r >= 'A' && r <= 'Z' {
			properPart = 1
			break
		}
	}

	digitPart := 0.0
	if strings.ContainsAny(query, "0123456789") {
		digitPart = 1
	}

	return 0.5*lengthPart + 0.3*properPart + 0.2*digitPart
}

func countTechnicalTerms(query string) int {
	seen := make(map[string]struct{})
	for _, re := range []*regexp.Regexp{acronymRegex, camelRegex, dottedRegex, funcCallRegex} {
		for _, m := range re.FindAllString(query, -1) {
			seen[strings.ToLower(strings.TrimSuffix(m, "("))] = struct{}{}
		}
	}
	return len(seen)
}

// semanticScore rates how well the query aligns with the course vocabulary.
func (s *Scorer) semanticScore(query string) (float64, []string) {
	tokens := corpus.FilterStopwords(corpus.Tokenize(query))
	score := baseScore
	var notes []string

	if len(tokens) == 0 {
		return clamp(score - tooShortPenalty), []string{"No content-bearing terms."}
	}

	matched := 0
	distinct := make(map[string]struct{})
	for _, token := range tokens {
		if _, ok := s.keywords[token]; ok {
			matched++
			distinct[token] = struct{}{}
		}
	}

	coverage := float64(matched) / float64(len(tokens))
	if coverage >= coverageCutoff {
		score += coverageBonus
		notes = append(notes, "Strong keyword coverage.")
	}

	if ambiguity(query, tokens) < ambiguityCutoff {
		score += ambiguityBonus
	} else {
		notes = append(notes, "Query is somewhat ambiguous.")
	}

	// Topic focus: the inverse of the distinct matched-keyword count. A query
	// concentrated on one or two course topics is easier to answer well.
	if len(distinct) > 0 && 1.0/float64(len(distinct)) >= focusCutoff {
		score += focusBonus
		notes = append(notes, "Focused on a single topic.")
	}

	return clamp(score), notes
}

// ambiguity estimates vagueness on a 0-1 scale: baseline 0.5, raised by
// vague words and very short queries, lowered by longer queries.
func ambiguity(query string, tokens []string) float64 {
	est := 0.5
	for _, token := range corpus.Tokenize(query) {
		if _, ok := vagueWords[token]; ok {
			est += 0.15
		}
	}
	if len(tokens) < minTokens {
		est += 0.2
	}
	if len(tokens) > 6 {
		est -= 0.05 * float64(len(tokens)-6)
	}
	if est < 0 {
		return 0
	}
	if est > 1 {
		return 1
	}
	return est
}

func levelPhrase(level Level) string {
	switch level {
	case LevelHigh:
		return "High confidence query."
	case LevelMedium:
		return "Medium confidence query."
	default:
		return "Low confidence query."
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
