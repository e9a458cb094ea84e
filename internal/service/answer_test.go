package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"quokkaq/internal/adaptive"
	"quokkaq/internal/confidence"
	"quokkaq/internal/contextutil"
	"quokkaq/internal/corpus"
	"quokkaq/internal/grounding"
	"quokkaq/internal/llm"
	"quokkaq/internal/prompt"
	"quokkaq/internal/retrieval"
	"quokkaq/internal/service/mocks"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testMaterials() []corpus.Material {
	return []corpus.Material{
		{
			ID: "m-binary", CourseID: "CS101", Title: "Binary Search", Type: corpus.TypeLecture, Week: 3,
			Content:  "Binary search finds a target in a sorted array by halving the search interval each step. It runs in logarithmic time.",
			Keywords: []string{"binary", "search", "sorted", "array", "interval"},
		},
		{
			ID: "m-recursion", CourseID: "CS101", Title: "Recursion", Type: corpus.TypeLecture, Week: 4,
			Content:  "Recursion solves a problem by calling the same function on smaller inputs, pushing frames onto the call stack.",
			Keywords: []string{"recursion", "stack", "frames", "base", "case"},
		},
		{
			ID: "m-graphs", CourseID: "CS101", Title: "Graph Traversal", Type: corpus.TypeLecture, Week: 7,
			Content:  "Graphs are traversed breadth-first with a queue or depth-first with a stack, visiting vertices along edges.",
			Keywords: []string{"graphs", "vertices", "edges", "traversal", "queue"},
		},
	}
}

type fixture struct {
	service  *AnswerService
	provider *mocks.MockGenerator
	verifier *mocks.MockGrounder
	metrics  *adaptive.Metrics
}

// newFixture wires a service over an in-memory CS101 corpus. Thresholds
// may be overridden to steer routing without crafting exact queries.
func newFixture(t *testing.T, ctrl *gomock.Controller, thresholds adaptive.Thresholds) *fixture {
	t.Helper()
	materials := testMaterials()
	store := corpus.NewStore(materials)

	embedder := retrieval.TokenHashEmbedder{Dim: 64}
	embeddings, err := retrieval.PrecomputeEmbeddings(context.Background(), embedder, materials)
	if err != nil {
		t.Fatalf("PrecomputeEmbeddings() error = %v", err)
	}
	engine := retrieval.NewHybridEngine(
		materials,
		retrieval.NewLexicalRetriever(materials),
		retrieval.NewSemanticRetriever(materials, embedder, embeddings),
		retrieval.DefaultFusionConfig(),
	)

	cache, err := adaptive.NewCache[*Answer](32)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	metrics := &adaptive.Metrics{}
	router := adaptive.NewRouter(cache, thresholds, metrics)

	courses := map[string]*CourseRuntime{
		"CS101": {
			Course: prompt.Course{ID: "CS101", Code: "CS101", Name: "Intro to Computer Science"},
			Engine: engine,
			Scorer: confidence.NewScorer(store.KeywordSet("CS101"), confidence.DefaultConfig()),
		},
	}

	provider := mocks.NewMockGenerator(ctrl)
	verifier := mocks.NewMockGrounder(ctrl)
	svc := NewAnswerService(courses, provider, verifier, nil, router, DefaultOptions())
	return &fixture{service: svc, provider: provider, verifier: verifier, metrics: metrics}
}

func wellGrounded() *grounding.Result {
	return &grounding.Result{Score: 1.0, Level: grounding.LevelWellGrounded, Passed: true}
}

const structuredAnswer = `{
	"answer": "Binary search halves a sorted array's search interval each step.",
	"bullets": ["Requires a sorted array", "Runs in logarithmic time"],
	"citations": [{"materialId": "m-binary", "excerpt": "halving the search interval", "relevance": 95}],
	"confidence": {"level": "high", "score": 90}
}`

func TestAskAnswersFromCourseMaterials(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl, adaptive.DefaultThresholds())

	f.provider.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req llm.Request) (*llm.Response, error) {
			if req.SystemPrompt == "" || req.UserPrompt != "What is binary search on a sorted array?" {
				t.Errorf("unexpected request %+v", req)
			}
			if !strings.Contains(req.SystemPrompt, "[matches:") {
				t.Error("excerpt labels should carry the matched keywords")
			}
			if !req.EnableCaching {
				t.Error("prompt caching should be requested by default")
			}
			return &llm.Response{Content: structuredAnswer, Model: "test-model"}, nil
		})
	f.verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(wellGrounded(), nil)

	answer, err := f.service.Ask(context.Background(), AskRequest{
		Question: "What is binary search on a sorted array?",
		CourseID: "CS101",
		UserID:   "u1",
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Answer == "" || answer.FromCache {
		t.Errorf("expected fresh generated answer, got %+v", answer)
	}
	if len(answer.Citations) == 0 || answer.Citations[0].MaterialID != "m-binary" {
		t.Errorf("top citation should be the binary search lecture, got %+v", answer.Citations)
	}
	if answer.Citations[0].Title != "Binary Search" {
		t.Errorf("citation title should be resolved from the material, got %q", answer.Citations[0].Title)
	}
	if answer.Confidence.Level == confidence.LevelLow {
		t.Errorf("specific on-topic question should not score low, got %f", answer.Confidence.Score)
	}
	if answer.Grounding == nil || !answer.Grounding.Passed {
		t.Error("grounding result should be attached and passing")
	}
}

func TestAskVagueQueryRoutesAggressively(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl, adaptive.DefaultThresholds())

	f.provider.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		Return(&llm.Response{Content: "I need more context to answer that.", Model: "test-model"}, nil)
	f.verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(wellGrounded(), nil)

	answer, err := f.service.Ask(context.Background(), AskRequest{
		Question: "it",
		CourseID: "CS101",
		UserID:   "u1",
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Confidence.Level != confidence.LevelLow {
		t.Errorf("bare pronoun should score low, got %s (%f)", answer.Confidence.Level, answer.Confidence.Score)
	}
	if answer.Action != adaptive.ActionRetrieveAggressive {
		t.Errorf("low confidence should widen retrieval, got %s", answer.Action)
	}
}

func TestAskServesSecondCallFromCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	// Low cache-serve threshold so a medium-confidence query qualifies.
	f := newFixture(t, ctrl, adaptive.Thresholds{CacheServe: 40, Expansion: 20, Aggressive: 10})

	f.provider.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		Return(&llm.Response{Content: structuredAnswer, Model: "test-model"}, nil).
		Times(1)
	f.verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(wellGrounded(), nil).Times(1)

	req := AskRequest{Question: "explain binary search on sorted arrays", CourseID: "CS101", UserID: "u1"}

	first, err := f.service.Ask(context.Background(), req)
	if err != nil {
		t.Fatalf("first Ask() error = %v", err)
	}
	if first.FromCache {
		t.Fatal("first answer must be generated, not cached")
	}

	second, err := f.service.Ask(context.Background(), req)
	if err != nil {
		t.Fatalf("second Ask() error = %v", err)
	}
	if !second.FromCache {
		t.Fatal("second identical question should be served from cache")
	}
	if second.Answer != first.Answer {
		t.Error("cached answer content should match the original")
	}
	if second.RequestID == first.RequestID {
		t.Error("cached answers still get fresh request IDs")
	}
	if f.metrics.Snapshot().CacheHits != 1 {
		t.Errorf("cache hits = %d, want 1", f.metrics.Snapshot().CacheHits)
	}
}

func TestAskPoorlyGroundedAnswerIsNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl, adaptive.Thresholds{CacheServe: 40, Expansion: 20, Aggressive: 10})

	fabricated := &grounding.Result{
		Score:  0.5,
		Level:  grounding.LevelPartiallyGrounded,
		Passed: false,
		UnsupportedClaims: []grounding.Claim{
			{Text: "Binary search was invented in 1823.", Severity: grounding.SeverityMajor},
		},
	}
	f.provider.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		Return(&llm.Response{Content: structuredAnswer, Model: "test-model"}, nil).
		Times(2)
	f.verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(fabricated, nil).Times(2)

	req := AskRequest{Question: "explain binary search on sorted arrays", CourseID: "CS101", UserID: "u1"}

	first, err := f.service.Ask(context.Background(), req)
	if err != nil {
		t.Fatalf("first Ask() error = %v", err)
	}
	if first.Grounding.Score >= 0.8 {
		t.Errorf("fabricated claim should keep grounding below 0.8, got %f", first.Grounding.Score)
	}
	if len(first.Grounding.UnsupportedClaims) == 0 {
		t.Error("unsupported claims should surface in the answer")
	}

	// The failed answer must not be served from cache.
	second, err := f.service.Ask(context.Background(), req)
	if err != nil {
		t.Fatalf("second Ask() error = %v", err)
	}
	if second.FromCache {
		t.Error("poorly grounded answers must not be cached")
	}
}

func TestAskValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl, adaptive.DefaultThresholds())

	_, err := f.service.Ask(context.Background(), AskRequest{Question: "  ", CourseID: "CS101"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "question" {
		t.Errorf("blank question should fail validation, got %v", err)
	}

	_, err = f.service.Ask(context.Background(), AskRequest{Question: "q", CourseID: ""})
	if !errors.As(err, &vErr) || vErr.Field != "courseId" {
		t.Errorf("missing course should fail validation, got %v", err)
	}

	_, err = f.service.Ask(context.Background(), AskRequest{Question: "q", CourseID: "PHYS999"})
	if !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("unknown course should return ErrCourseNotFound, got %v", err)
	}
}

func TestAskLLMDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl, adaptive.DefaultThresholds())
	f.service.provider = nil

	_, err := f.service.Ask(context.Background(), AskRequest{
		Question: "explain binary search",
		CourseID: "CS101",
	})
	if !errors.Is(err, ErrLLMDisabled) {
		t.Errorf("expected ErrLLMDisabled, got %v", err)
	}
}

func TestAskProviderFailureSurfacesTypedError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl, adaptive.DefaultThresholds())

	provErr := &llm.ProviderError{Provider: llm.KindAnthropic, Op: "generate", Err: errors.New("overloaded")}
	f.provider.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(nil, provErr)

	_, err := f.service.Ask(context.Background(), AskRequest{
		Question: "explain binary search",
		CourseID: "CS101",
	})
	var typed *llm.ProviderError
	if !errors.As(err, &typed) {
		t.Errorf("provider error should stay unwrappable, got %v", err)
	}
}

func TestAskFallsBackToRawTextOnUnparseableOutput(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl, adaptive.DefaultThresholds())

	raw := "Binary search repeatedly halves the interval."
	f.provider.EXPECT().Generate(gomock.Any(), gomock.Any()).
		Return(&llm.Response{Content: raw, Model: "test-model"}, nil)
	f.verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(wellGrounded(), nil)

	var logs bytes.Buffer
	ctx := contextutil.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&logs, nil)))

	answer, err := f.service.Ask(ctx, AskRequest{
		Question: "explain binary search on sorted arrays",
		CourseID: "CS101",
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Answer != raw {
		t.Errorf("unparseable output should pass through as text, got %q", answer.Answer)
	}
	if len(answer.Citations) == 0 {
		t.Error("fallback answers still carry citations from retrieval")
	}
	if !strings.Contains(logs.String(), "structured output parse failed") {
		t.Error("parse fallback should be logged for monitoring")
	}
}

func TestAskCachingToggleDisablesPromptCaching(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl, adaptive.DefaultThresholds())
	f.service.opts.EnableCaching = false

	f.provider.EXPECT().Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req llm.Request) (*llm.Response, error) {
			if req.EnableCaching {
				t.Error("caching toggle off should disable prompt caching on requests")
			}
			return &llm.Response{Content: structuredAnswer, Model: "test-model"}, nil
		})
	f.verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(wellGrounded(), nil)

	if _, err := f.service.Ask(context.Background(), AskRequest{
		Question: "explain binary search on sorted arrays",
		CourseID: "CS101",
	}); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
}

func TestStaleCacheDecisionReportsRetrieval(t *testing.T) {
	d := adaptive.Decision{
		Action:     adaptive.ActionUseCache,
		UseCache:   true,
		CacheKey:   "k",
		Confidence: 85,
		Reasoning:  "confidence 85 clears cache threshold 80 and a live cached answer exists",
	}

	got := staleCacheDecision(d)
	if got.Action != adaptive.ActionRetrieveStandard {
		t.Errorf("vanished cache entry should report standard retrieval, got %s", got.Action)
	}
	if got.UseCache {
		t.Error("downgraded decision must not claim a cache serve")
	}
	if got.CacheKey != d.CacheKey || got.Confidence != d.Confidence {
		t.Error("downgrade should preserve the key and confidence")
	}
}

func TestAskVerifierFailureDegradesConservatively(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl, adaptive.DefaultThresholds())

	conservative := &grounding.Result{Score: 0, Level: grounding.LevelPoorlyGrounded, Passed: false}
	f.provider.EXPECT().Generate(gomock.Any(), gomock.Any()).
		Return(&llm.Response{Content: structuredAnswer, Model: "test-model"}, nil)
	f.verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(conservative, errors.New("judge unavailable"))

	answer, err := f.service.Ask(context.Background(), AskRequest{
		Question: "explain binary search on sorted arrays",
		CourseID: "CS101",
	})
	if err != nil {
		t.Fatalf("Ask() should survive a judge failure, got %v", err)
	}
	if answer.Grounding == nil || answer.Grounding.Level != grounding.LevelPoorlyGrounded {
		t.Errorf("judge failure should attach a conservative result, got %+v", answer.Grounding)
	}
}
