package grounding

import (
	"context"
	"errors"
	"testing"
	"time"

	"quokkaq/internal/llm"
)

// scriptedJudge returns canned responses in call order.
type scriptedJudge struct {
	responses []string
	errs      []error
	calls     int
}

func (j *scriptedJudge) Kind() llm.Kind { return llm.KindLocal }

func (j *scriptedJudge) Generate(_ context.Context, _ llm.Request) (*llm.Response, error) {
	i := j.calls
	j.calls++
	if i < len(j.errs) && j.errs[i] != nil {
		return nil, j.errs[i]
	}
	if i >= len(j.responses) {
		return nil, errors.New("no scripted response")
	}
	return &llm.Response{Content: j.responses[i], Model: "judge"}, nil
}

func newTestVerifier(judge llm.Provider, opts Options) *Verifier {
	v := NewVerifier(judge, opts)
	v.clock = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	return v
}

func TestVerifyAllClaimsSupported(t *testing.T) {
	judge := &scriptedJudge{responses: []string{
		`["Binary search halves the interval.", "It requires a sorted array."]`,
		`[{"claim": "Binary search halves the interval.", "supported": true, "evidence": "halves the search interval"},
		  {"claim": "It requires a sorted array.", "supported": true, "evidence": "on a sorted array"}]`,
	}}
	v := newTestVerifier(judge, Options{})

	result, err := v.Verify(context.Background(), "answer", []string{"Binary search halves the search interval on a sorted array."})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.Score != 1.0 {
		t.Errorf("score = %f, want 1.0", result.Score)
	}
	if result.Level != LevelWellGrounded || !result.Passed {
		t.Errorf("level = %s passed = %v, want well-grounded pass", result.Level, result.Passed)
	}
	if len(result.SupportedClaims) != 2 || len(result.UnsupportedClaims) != 0 {
		t.Errorf("claims = %d supported / %d unsupported, want 2/0",
			len(result.SupportedClaims), len(result.UnsupportedClaims))
	}
}

func TestVerifyFlagsFabricatedClaim(t *testing.T) {
	judge := &scriptedJudge{responses: []string{
		`["Binary search halves the interval.", "Binary search was invented in 1823."]`,
		`[{"claim": "Binary search halves the interval.", "supported": true, "evidence": "halves"},
		  {"claim": "Binary search was invented in 1823.", "supported": false, "severity": "major", "evidence": ""}]`,
	}}
	v := newTestVerifier(judge, Options{})

	result, err := v.Verify(context.Background(), "answer", []string{"Binary search halves the interval."})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.Score >= 0.8 {
		t.Errorf("fabricated claim should keep score below 0.8, got %f", result.Score)
	}
	if len(result.UnsupportedClaims) != 1 {
		t.Fatalf("expected 1 unsupported claim, got %d", len(result.UnsupportedClaims))
	}
	if result.UnsupportedClaims[0].Severity != SeverityMajor {
		t.Errorf("severity = %s, want major", result.UnsupportedClaims[0].Severity)
	}
}

func TestVerifyZeroClaimsIsUnverifiable(t *testing.T) {
	judge := &scriptedJudge{responses: []string{`[]`}}
	v := newTestVerifier(judge, Options{})

	result, err := v.Verify(context.Background(), "Thanks for asking!", []string{"excerpt"})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !result.Unverifiable {
		t.Error("zero extracted claims should be flagged unverifiable")
	}
	if result.Score != 1.0 || !result.Passed {
		t.Errorf("vacuous answer should pass with score 1.0, got %f", result.Score)
	}
	if judge.calls != 1 {
		t.Errorf("verification stage should be skipped, judge calls = %d", judge.calls)
	}
}

func TestVerifyJudgeFailureIsConservative(t *testing.T) {
	judge := &scriptedJudge{errs: []error{errors.New("judge unavailable")}}
	v := newTestVerifier(judge, Options{})

	result, err := v.Verify(context.Background(), "answer", []string{"excerpt"})
	if err == nil {
		t.Fatal("expected error from failing judge")
	}
	if result == nil {
		t.Fatal("a conservative result must still be returned")
	}
	if result.Level != LevelPoorlyGrounded || result.Passed {
		t.Errorf("judge failure should degrade to poorly-grounded, got %s", result.Level)
	}
}

func TestVerifyMalformedJudgeOutput(t *testing.T) {
	judge := &scriptedJudge{responses: []string{`I could not find any claims, sorry.`}}
	v := newTestVerifier(judge, Options{})

	result, err := v.Verify(context.Background(), "answer", []string{"excerpt"})
	if err == nil {
		t.Fatal("expected parse error")
	}
	if result.Level != LevelPoorlyGrounded {
		t.Errorf("unparseable judge output should degrade, got %s", result.Level)
	}
}

func TestVerifyStrictModeRequiresFullSupport(t *testing.T) {
	// 3 of 4 claims supported clears the 0.7 threshold; strict mode still
	// fails the answer because one claim, however minor, is unsupported.
	claims := `["c1","c2","c3","c4"]`
	verdicts := `[
		{"claim":"c1","supported":true},{"claim":"c2","supported":true},
		{"claim":"c3","supported":true},
		{"claim":"c4","supported":false,"severity":"minor"}]`

	strict := newTestVerifier(&scriptedJudge{responses: []string{claims, verdicts}}, Options{StrictMode: true})
	result, err := strict.Verify(context.Background(), "answer", []string{"excerpt"})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.Passed {
		t.Error("strict mode must not pass with an unsupported claim")
	}
	if result.Score != 0.75 {
		t.Errorf("strict mode must not alter the supported ratio, got %f", result.Score)
	}

	lenient := newTestVerifier(&scriptedJudge{responses: []string{claims, verdicts}}, Options{})
	result, err = lenient.Verify(context.Background(), "answer", []string{"excerpt"})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !result.Passed || result.Score != 0.75 {
		t.Errorf("0.75 should pass the default threshold, got score %f passed %v", result.Score, result.Passed)
	}
}

func TestVerifyStrictModePassesFullSupport(t *testing.T) {
	judge := &scriptedJudge{responses: []string{
		`["c1","c2"]`,
		`[{"claim":"c1","supported":true},{"claim":"c2","supported":true}]`,
	}}
	v := newTestVerifier(judge, Options{StrictMode: true})

	result, err := v.Verify(context.Background(), "answer", []string{"excerpt"})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !result.Passed || result.Score != 1.0 {
		t.Errorf("fully supported answer should pass strict mode, got score %f passed %v", result.Score, result.Passed)
	}
}

func TestVerifyMissingVerdictsCountAsUnsupported(t *testing.T) {
	judge := &scriptedJudge{responses: []string{
		`["c1","c2"]`,
		`[{"claim":"c1","supported":true}]`,
	}}
	v := newTestVerifier(judge, Options{})

	result, err := v.Verify(context.Background(), "answer", []string{"excerpt"})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.Score != 0.5 {
		t.Errorf("skipped claim should count against the score, got %f", result.Score)
	}
	if len(result.UnsupportedClaims) != 1 || result.UnsupportedClaims[0].Text != "c2" {
		t.Errorf("skipped claim should surface as unsupported, got %+v", result.UnsupportedClaims)
	}
}

func TestVerifyToleratesFencedJSON(t *testing.T) {
	judge := &scriptedJudge{responses: []string{
		"```json\n[\"claim one\"]\n```",
		"Here are the verdicts:\n```json\n[{\"claim\": \"claim one\", \"supported\": true}]\n```",
	}}
	v := newTestVerifier(judge, Options{})

	result, err := v.Verify(context.Background(), "answer", []string{"excerpt"})
	if err != nil {
		t.Fatalf("Verify() should tolerate fenced output, got %v", err)
	}
	if result.Score != 1.0 {
		t.Errorf("score = %f, want 1.0", result.Score)
	}
}
