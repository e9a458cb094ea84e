package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_generator.go -package=mocks quokkaq/internal/service Generator
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_grounder.go -package=mocks quokkaq/internal/service Grounder

import (
	"context"
	"time"

	"quokkaq/internal/adaptive"
	"quokkaq/internal/confidence"
	"quokkaq/internal/grounding"
	"quokkaq/internal/llm"
	"quokkaq/internal/prompt"
	"quokkaq/internal/retrieval"
	"quokkaq/internal/storage"
)

// Generator produces completions. This interface is defined from the
// service layer's perspective (consumer-first).
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Grounder verifies answers against their source excerpts.
type Grounder interface {
	Verify(ctx context.Context, answer string, excerpts []string) (*grounding.Result, error)
}

// CourseRuntime bundles the per-course retrieval and scoring state built
// at corpus-seed time.
type CourseRuntime struct {
	Course prompt.Course
	Engine *retrieval.HybridEngine
	Scorer *confidence.Scorer
}

// Options tune the answer pipeline.
type Options struct {
	StructuredOutput bool
	MaxContextTokens int
	MaxAnswerTokens  int
	Temperature      float64
	// EnableCaching asks the provider to cache the system prompt.
	EnableCaching bool
	// StandardLimit is how many materials a standard retrieval returns;
	// AggressiveLimit applies when routing widens the search.
	StandardLimit   int
	AggressiveLimit int
	// HistoryWindow caps how many past queries feed the confidence scorer.
	HistoryWindow int
}

// DefaultOptions returns the standard pipeline settings.
func DefaultOptions() Options {
	return Options{
		StructuredOutput: true,
		MaxContextTokens: prompt.DefaultMaxContextTokens,
		MaxAnswerTokens:  1024,
		Temperature:      0.3,
		EnableCaching:    true,
		StandardLimit:    5,
		AggressiveLimit:  8,
		HistoryWindow:    50,
	}
}

// AskRequest is a question scoped to a course and user.
type AskRequest struct {
	Question string `json:"question" validate:"required"`
	CourseID string `json:"courseId" validate:"required"`
	UserID   string `json:"userId"`
}

// Citation points a reader back at a source material.
type Citation struct {
	MaterialID string  `json:"materialId"`
	Title      string  `json:"title"`
	Excerpt    string  `json:"excerpt"`
	Relevance  float64 `json:"relevance"`
}

// Answer is a fully processed response to one question.
type Answer struct {
	RequestID     string            `json:"requestId"`
	CourseID      string            `json:"courseId"`
	Question      string            `json:"question"`
	Answer        string            `json:"answer"`
	Bullets       []string          `json:"bullets,omitempty"`
	Citations     []Citation        `json:"citations"`
	Confidence    confidence.Score  `json:"confidence"`
	Grounding     *grounding.Result `json:"grounding,omitempty"`
	Action        adaptive.Action   `json:"action"`
	FromCache     bool              `json:"fromCache"`
	Model         string            `json:"model,omitempty"`
	Usage         llm.Usage         `json:"usage"`
	EstimatedCost float64           `json:"estimatedCost"`
	AnsweredAt    time.Time         `json:"answeredAt"`
}

// AnswerService runs the question-answering pipeline: confidence scoring,
// adaptive routing, hybrid retrieval, prompt assembly, generation, and
// grounding verification.
type AnswerService struct {
	courses  map[string]*CourseRuntime
	provider Generator
	verifier Grounder
	history  storage.HistoryStore
	router   *adaptive.Router[*Answer]
	opts     Options
}

// NewAnswerService wires the pipeline. The provider may be nil when
// generation is disabled; the verifier and history store are optional.
func NewAnswerService(
	courses map[string]*CourseRuntime,
	provider Generator,
	verifier Grounder,
	history storage.HistoryStore,
	router *adaptive.Router[*Answer],
	opts Options,
) *AnswerService {
	if opts.StandardLimit <= 0 {
		opts = DefaultOptions()
	}
	return &AnswerService{
		courses:  courses,
		provider: provider,
		verifier: verifier,
		history:  history,
		router:   router,
		opts:     opts,
	}
}

// Courses lists the seeded course IDs.
func (s *AnswerService) Courses() []string {
	ids := make([]string, 0, len(s.courses))
	for id := range s.courses {
		ids = append(ids, id)
	}
	return ids
}
