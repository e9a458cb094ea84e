package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"quokkaq/internal/adaptive"
	"quokkaq/internal/confidence"
	"quokkaq/internal/contextutil"
	"quokkaq/internal/llm"
	"quokkaq/internal/prompt"
	"quokkaq/internal/retrieval"
	"quokkaq/internal/storage"
)

const expansionSeedLimit = 3

// Ask answers a question against one course's materials.
func (s *AnswerService) Ask(ctx context.Context, req AskRequest) (*Answer, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(req.Question) == "" {
		logger.WarnContext(ctx, "empty question in ask request")
		return nil, &ValidationError{Field: "question", Message: "cannot be empty"}
	}
	if req.CourseID == "" {
		return nil, &ValidationError{Field: "courseId", Message: "cannot be empty"}
	}
	runtime, ok := s.courses[req.CourseID]
	if !ok {
		return nil, ErrCourseNotFound
	}
	userID := req.UserID
	if userID == "" {
		userID = "anonymous"
	}

	history := s.recentHistory(ctx, userID, req.CourseID, logger)
	score := runtime.Scorer.ScoreQuery(req.Question, history)
	decision := s.router.Route(req.Question, req.CourseID, userID, score.Score)
	logger.InfoContext(ctx, "routed question",
		"course_id", req.CourseID,
		"confidence", score.Score,
		"level", score.Level,
		"action", decision.Action,
	)

	if decision.UseCache {
		if cached, ok := s.router.Lookup(decision); ok {
			answer := *cached
			answer.RequestID = uuid.NewString()
			answer.FromCache = true
			answer.Action = decision.Action
			answer.AnsweredAt = time.Now()
			s.recordHistory(ctx, userID, &answer, logger)
			return &answer, nil
		}
		// Entry expired between Route and Lookup; fall through to retrieval.
		logger.DebugContext(ctx, "cache entry vanished, retrieving", "cache_key", decision.CacheKey)
		decision = staleCacheDecision(decision)
	}

	query := req.Question
	if decision.ExpandQuery {
		query = s.expandQuery(ctx, runtime, req.Question, logger)
	}
	limit := s.opts.StandardLimit
	if decision.Aggressive {
		limit = s.opts.AggressiveLimit
	}

	ranked, err := runtime.Engine.RetrieveRanked(ctx, query, limit)
	if err != nil {
		logger.ErrorContext(ctx, "retrieval failed", "error", err)
		return nil, WrapError(err, "failed to retrieve course materials")
	}

	blocks := make([]prompt.ExcerptBlock, len(ranked))
	excerpts := make([]string, len(ranked))
	for i, r := range ranked {
		excerpt := retrieval.Excerpt(r.Material.Content, r.MatchedKeywords, retrieval.DefaultExcerptWindow)
		blocks[i] = prompt.ExcerptBlock{
			Material:        r.Material,
			Excerpt:         excerpt,
			Relevance:       r.RelevanceScore,
			MatchedKeywords: r.MatchedKeywords,
		}
		excerpts[i] = excerpt
	}

	courseCtx := prompt.Build(runtime.Course, blocks, prompt.Options{
		StructuredOutput: s.opts.StructuredOutput,
		MaxContextTokens: s.opts.MaxContextTokens,
	})

	if s.provider == nil {
		return nil, ErrLLMDisabled
	}
	resp, err := s.provider.Generate(ctx, llm.Request{
		SystemPrompt:  courseCtx.SystemPrompt,
		UserPrompt:    req.Question,
		Temperature:   s.opts.Temperature,
		MaxTokens:     s.opts.MaxAnswerTokens,
		EnableCaching: s.opts.EnableCaching,
	})
	if err != nil {
		logger.ErrorContext(ctx, "generation failed", "error", err)
		return nil, WrapError(err, "failed to generate answer")
	}

	answer := &Answer{
		RequestID:     uuid.NewString(),
		CourseID:      req.CourseID,
		Question:      req.Question,
		Confidence:    score,
		Action:        decision.Action,
		Model:         resp.Model,
		Usage:         resp.Usage,
		EstimatedCost: resp.EstimatedCost,
		AnsweredAt:    time.Now(),
	}
	s.applyContent(ctx, answer, resp.Content, ranked, logger)

	if s.verifier != nil {
		result, err := s.verifier.Verify(ctx, answer.Answer, excerpts)
		if err != nil {
			logger.WarnContext(ctx, "grounding verification failed", "error", err)
		}
		answer.Grounding = result
	}

	if answer.Grounding == nil || answer.Grounding.Passed {
		s.router.Store(decision, answer)
	}
	s.recordHistory(ctx, userID, answer, logger)
	return answer, nil
}

// expandQuery runs a seed retrieval and folds its top terms back into the
// query. Failures fall back to the original question.
func (s *AnswerService) expandQuery(ctx context.Context, runtime *CourseRuntime, question string, logger *slog.Logger) string {
	seed, err := runtime.Engine.RetrieveRanked(ctx, question, expansionSeedLimit)
	if err != nil || len(seed) == 0 {
		if err != nil {
			logger.WarnContext(ctx, "seed retrieval for expansion failed", "error", err)
		}
		return question
	}
	return retrieval.ExpandQuery(question, seed, retrieval.DefaultExpansionTerms)
}

func (s *AnswerService) recentHistory(ctx context.Context, userID, courseID string, logger *slog.Logger) []confidence.HistoryEntry {
	if s.history == nil {
		return nil
	}
	records, err := s.history.RecentByUser(ctx, userID, courseID, s.opts.HistoryWindow)
	if err != nil {
		// History is advisory; scoring degrades to neutral without it.
		logger.WarnContext(ctx, "failed to load query history", "error", err)
		return nil
	}
	entries := make([]confidence.HistoryEntry, len(records))
	for i, rec := range records {
		entries[i] = confidence.HistoryEntry{
			Query:   rec.Query,
			Success: rec.Success,
			AskedAt: rec.AskedAt,
		}
	}
	return entries
}

func (s *AnswerService) recordHistory(ctx context.Context, userID string, answer *Answer, logger *slog.Logger) {
	if s.history == nil {
		return
	}
	success := answer.Grounding == nil || answer.Grounding.Passed
	groundingScore := 0.0
	if answer.Grounding != nil {
		groundingScore = answer.Grounding.Score
	}
	record := &storage.HistoryRecord{
		ID:             uuid.NewString(),
		UserID:         userID,
		CourseID:       answer.CourseID,
		Query:          answer.Question,
		Confidence:     answer.Confidence.Score,
		GroundingScore: groundingScore,
		Success:        success,
		FromCache:      answer.FromCache,
		AskedAt:        answer.AnsweredAt,
	}
	if err := s.history.Record(ctx, record); err != nil {
		logger.WarnContext(ctx, "failed to record query history", "error", err)
	}
}

// staleCacheDecision downgrades a use-cache decision whose entry vanished
// between routing and lookup, so the answer reports the retrieval that
// actually ran.
func staleCacheDecision(d adaptive.Decision) adaptive.Decision {
	d.Action = adaptive.ActionRetrieveStandard
	d.UseCache = false
	d.Reasoning += "; cached answer expired before lookup, retrieving"
	return d
}

// applyContent fills the answer from the model output, falling back to the
// raw text when structured parsing is off or fails.
func (s *AnswerService) applyContent(ctx context.Context, answer *Answer, content string, ranked []retrieval.RankedMaterial, logger *slog.Logger) {
	if s.opts.StructuredOutput {
		if payload, ok := parseStructured(content); ok {
			answer.Answer = payload.Answer
			answer.Bullets = payload.Bullets
			answer.Citations = resolveCitations(payload, ranked)
			return
		}
		logger.WarnContext(ctx, "structured output parse failed, falling back to raw text",
			"request_id", answer.RequestID,
			"content_length", len(content),
		)
	}
	answer.Answer = content
	answer.Citations = defaultCitations(ranked)
}
