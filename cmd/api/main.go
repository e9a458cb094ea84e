package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"strings"

	"quokkaq/internal/adaptive"
	"quokkaq/internal/confidence"
	"quokkaq/internal/config"
	"quokkaq/internal/corpus"
	"quokkaq/internal/grounding"
	"quokkaq/internal/http"
	"quokkaq/internal/llm"
	"quokkaq/internal/prompt"
	"quokkaq/internal/retrieval"
	"quokkaq/internal/service"
	"quokkaq/internal/storage"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Seed the corpus from markdown course directories
	loader := corpus.NewLoader()
	materials, err := loader.LoadDirectory(cfg.CorpusDir)
	if err != nil {
		log.Fatalf("Failed to load corpus: %v", err)
	}
	if len(materials) == 0 {
		log.Fatalf("No course materials found under %s", cfg.CorpusDir)
	}
	store := corpus.NewStore(materials)
	slog.Info("Corpus seeded", "materials", len(materials), "courses", len(store.Courses()))

	// Precompute embeddings so semantic retrieval works offline
	ctx := context.Background()
	embedder := retrieval.TokenHashEmbedder{Dim: cfg.EmbeddingDim}
	embeddings, err := retrieval.PrecomputeEmbeddings(ctx, embedder, materials)
	if err != nil {
		log.Fatalf("Failed to precompute embeddings: %v", err)
	}

	// Build per-course retrieval engines and confidence scorers
	scorerCfg := confidence.Config{
		Weights: confidence.Weights{
			Lexical:    cfg.LexicalWeight,
			Semantic:   cfg.SemanticWeight,
			Historical: cfg.HistoricalWeight,
		},
		HighThreshold:   75,
		MediumThreshold: 50,
	}
	courses := make(map[string]*service.CourseRuntime)
	for _, courseID := range store.Courses() {
		courseMaterials := store.ForCourse(courseID)
		engine := retrieval.NewHybridEngine(
			courseMaterials,
			retrieval.NewLexicalRetriever(courseMaterials),
			retrieval.NewSemanticRetriever(courseMaterials, embedder, embeddings),
			retrieval.DefaultFusionConfig(),
		)
		courses[courseID] = &service.CourseRuntime{
			Course: prompt.Course{
				ID:   courseID,
				Code: courseID,
				Name: strings.ReplaceAll(courseID, "-", " "),
			},
			Engine: engine,
			Scorer: confidence.NewScorer(store.KeywordSet(courseID), scorerCfg),
		}
	}
	slog.Info("Course runtimes ready", "courses", len(courses))

	// Create the LLM provider and the grounding judge
	var provider llm.Provider
	var verifier service.Grounder
	if cfg.LLMEnabled {
		provider, err = llm.NewProvider(llm.Config{
			Kind:    llm.Kind(cfg.LLMProvider),
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.LLMModel,
			BaseURL: cfg.LLMBaseURL,
			Timeout: cfg.LLMTimeout,
		})
		if err != nil {
			log.Fatalf("Failed to create LLM provider: %v", err)
		}
		judge, err := llm.NewProvider(llm.Config{
			Kind:    llm.Kind(cfg.LLMProvider),
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.JudgeModel,
			BaseURL: cfg.LLMBaseURL,
			Timeout: cfg.LLMTimeout,
		})
		if err != nil {
			log.Fatalf("Failed to create judge provider: %v", err)
		}
		verifier = grounding.NewVerifier(judge, grounding.Options{})
		slog.Info("LLM provider ready", "provider", cfg.LLMProvider, "model", cfg.LLMModel, "judge_model", cfg.JudgeModel)
	} else {
		slog.Warn("LLM generation disabled; /api/ask will return 503")
	}

	// Answer cache and adaptive router
	cache, err := adaptive.NewCache[*service.Answer](cfg.CacheCapacity)
	if err != nil {
		log.Fatalf("Failed to create answer cache: %v", err)
	}
	metrics := &adaptive.Metrics{}
	router := adaptive.NewRouter(cache, adaptive.Thresholds{
		CacheServe: cfg.CacheThreshold,
		Expansion:  cfg.ExpansionThreshold,
		Aggressive: cfg.AggressiveThreshold,
	}, metrics)

	// Wire the answer pipeline
	svcOpts := service.DefaultOptions()
	svcOpts.StructuredOutput = cfg.StructuredOutput
	svcOpts.MaxContextTokens = cfg.MaxContextTokens
	svcOpts.EnableCaching = cfg.PromptCaching
	var generator service.Generator
	if provider != nil {
		generator = provider
	}
	answers := service.NewAnswerService(
		courses,
		generator,
		verifier,
		storage.NewHistoryRepo(db),
		router,
		svcOpts,
	)

	// Create router with dependencies
	deps := &http.Deps{
		Answers: answers,
		Courses: answers,
		Metrics: metrics,
	}
	apiRouter := http.NewRouter(deps)

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	if err := nethttp.ListenAndServe(addr, apiRouter); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
