package grounding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"quokkaq/internal/llm"
)

// Level bands a grounding score.
type Level string

const (
	LevelWellGrounded      Level = "well-grounded"      // score >= 0.8
	LevelPartiallyGrounded Level = "partially-grounded" // score >= 0.5
	LevelPoorlyGrounded    Level = "poorly-grounded"
)

const (
	wellGroundedCutoff      = 0.8
	partiallyGroundedCutoff = 0.5

	// DefaultPassThreshold is the minimum score for an answer to pass
	// verification.
	DefaultPassThreshold = 0.7
)

// Severity rates how badly an unsupported claim misleads.
type Severity string

const (
	SeverityMinor Severity = "minor"
	SeverityMajor Severity = "major"
)

// Claim is one factual statement extracted from an answer.
type Claim struct {
	Text     string   `json:"text"`
	Evidence string   `json:"evidence,omitempty"`
	Severity Severity `json:"severity,omitempty"`
}

// Result is the outcome of verifying one answer against its source
// excerpts.
type Result struct {
	Score             float64   `json:"score"`
	Level             Level     `json:"level"`
	Passed            bool      `json:"passed"`
	Unverifiable      bool      `json:"unverifiable"`
	SupportedClaims   []Claim   `json:"supported_claims"`
	UnsupportedClaims []Claim   `json:"unsupported_claims"`
	VerifiedAt        time.Time `json:"verified_at"`
}

// Options tune the verifier.
type Options struct {
	// PassThreshold is the minimum score to pass. Zero uses the default.
	PassThreshold float64
	// StrictMode requires every extracted claim to be supported to pass,
	// instead of clearing the threshold. The score itself is unaffected.
	StrictMode bool
}

// Verifier checks generated answers against retrieved excerpts with a
// two-stage judge: extract the answer's factual claims, then verify each
// claim against the excerpts. Judge failures degrade conservatively to a
// poorly-grounded result rather than passing unchecked output through.
type Verifier struct {
	judge     llm.Provider
	threshold float64
	strict    bool
	clock     func() time.Time
}

// NewVerifier wires a verifier over a judge provider.
func NewVerifier(judge llm.Provider, opts Options) *Verifier {
	threshold := opts.PassThreshold
	if threshold <= 0 {
		threshold = DefaultPassThreshold
	}
	return &Verifier{judge: judge, threshold: threshold, strict: opts.StrictMode, clock: time.Now}
}

const extractSystemPrompt = `You extract factual claims from answers for verification.
Respond with a JSON array of strings, one per distinct factual claim, and nothing else.
Skip greetings, hedges, and restatements of the question. An answer with no factual
content yields an empty array.`

const verifySystemPrompt = `You verify claims against source excerpts.
For each claim, decide whether the excerpts support it. Respond with a JSON array of
objects, one per claim, in the same order: {"claim": "...", "supported": true|false,
"severity": "minor"|"major", "evidence": "quoted excerpt text or empty"}.
Severity applies to unsupported claims: "major" when the claim asserts something the
excerpts contradict or never mention, "minor" for small embellishments. Respond with
the JSON array and nothing else.`

// Verify judges how well the answer is grounded in the excerpts. The
// returned result is always usable; when the judge itself fails, the
// result is conservative and the error reports why.
func (v *Verifier) Verify(ctx context.Context, answer string, excerpts []string) (*Result, error) {
	now := v.clock()

	claims, err := v.extractClaims(ctx, answer)
	if err != nil {
		return v.conservative(now), fmt.Errorf("extract claims: %w", err)
	}
	if len(claims) == 0 {
		// Nothing checkable: vacuously grounded, flagged so callers can
		// surface the distinction.
		return &Result{
			Score:        1.0,
			Level:        LevelWellGrounded,
			Passed:       true,
			Unverifiable: true,
			VerifiedAt:   now,
		}, nil
	}

	verdicts, err := v.verifyClaims(ctx, claims, excerpts)
	if err != nil {
		return v.conservative(now), fmt.Errorf("verify claims: %w", err)
	}

	if len(verdicts) > len(claims) {
		verdicts = verdicts[:len(claims)]
	}

	var supported, unsupported []Claim
	for _, verdict := range verdicts {
		claim := Claim{Text: verdict.Claim, Evidence: verdict.Evidence}
		if verdict.Supported {
			supported = append(supported, claim)
			continue
		}
		claim.Severity = SeverityMinor
		if verdict.Severity == string(SeverityMajor) {
			claim.Severity = SeverityMajor
		}
		unsupported = append(unsupported, claim)
	}
	// Claims the judge skipped count as unsupported rather than inflating
	// the ratio.
	for i := len(verdicts); i < len(claims); i++ {
		unsupported = append(unsupported, Claim{Text: claims[i], Severity: SeverityMajor})
	}

	score := float64(len(supported)) / float64(len(claims))
	passed := score >= v.threshold
	if v.strict {
		passed = len(unsupported) == 0
	}

	return &Result{
		Score:             score,
		Level:             levelFor(score),
		Passed:            passed,
		SupportedClaims:   supported,
		UnsupportedClaims: unsupported,
		VerifiedAt:        now,
	}, nil
}

func (v *Verifier) conservative(now time.Time) *Result {
	return &Result{
		Score:      0,
		Level:      LevelPoorlyGrounded,
		Passed:     false,
		VerifiedAt: now,
	}
}

func (v *Verifier) extractClaims(ctx context.Context, answer string) ([]string, error) {
	resp, err := v.judge.Generate(ctx, llm.Request{
		SystemPrompt: extractSystemPrompt,
		UserPrompt:   "Answer to analyze:\n\n" + answer,
		MaxTokens:    1024,
	})
	if err != nil {
		return nil, err
	}

	var claims []string
	if err := json.Unmarshal([]byte(extractJSONArray(resp.Content)), &claims); err != nil {
		return nil, fmt.Errorf("parse claim list: %w", err)
	}
	return claims, nil
}

type verdict struct {
	Claim     string `json:"claim"`
	Supported bool   `json:"supported"`
	Severity  string `json:"severity"`
	Evidence  string `json:"evidence"`
}

func (v *Verifier) verifyClaims(ctx context.Context, claims, excerpts []string) ([]verdict, error) {
	var b strings.Builder
	b.WriteString("Source excerpts:\n\n")
	for i, excerpt := range excerpts {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, excerpt)
	}
	b.WriteString("Claims to verify:\n\n")
	for i, claim := range claims {
		fmt.Fprintf(&b, "%d. %s\n", i+1, claim)
	}

	resp, err := v.judge.Generate(ctx, llm.Request{
		SystemPrompt: verifySystemPrompt,
		UserPrompt:   b.String(),
		MaxTokens:    2048,
	})
	if err != nil {
		return nil, err
	}

	var verdicts []verdict
	if err := json.Unmarshal([]byte(extractJSONArray(resp.Content)), &verdicts); err != nil {
		return nil, fmt.Errorf("parse verdicts: %w", err)
	}
	if len(verdicts) == 0 {
		return nil, fmt.Errorf("judge returned no verdicts for %d claims", len(claims))
	}
	return verdicts, nil
}

func levelFor(score float64) Level {
	switch {
	case score >= wellGroundedCutoff:
		return LevelWellGrounded
	case score >= partiallyGroundedCutoff:
		return LevelPartiallyGrounded
	default:
		return LevelPoorlyGrounded
	}
}

// extractJSONArray trims whatever surrounds the first JSON array in the
// judge output, tolerating markdown fences and preambles.
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
