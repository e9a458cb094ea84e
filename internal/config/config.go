package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// It is constructed once at process start and passed into the components
// that need it, so components stay testable with arbitrary configs.
type Config struct {
	// LLM provider selection
	LLMProvider string // "anthropic", "openai", or "local"
	LLMEnabled  bool
	LLMAPIKey   string
	LLMModel    string
	LLMBaseURL  string // used by the "local" provider
	LLMTimeout  time.Duration
	JudgeModel  string
	// PromptCaching asks the provider to cache the system prompt on
	// requests large enough to qualify.
	PromptCaching bool

	// Corpus and storage
	CorpusDir    string
	DBPath       string
	EmbeddingDim int

	// Retrieval and routing tunables
	CacheCapacity       int
	CacheThreshold      float64 // confidence at or above which cached answers may be served
	ExpansionThreshold  float64 // below this, retrieval runs with query expansion
	AggressiveThreshold float64 // below this, retrieval runs aggressively
	LexicalWeight       float64
	SemanticWeight      float64
	HistoricalWeight    float64

	// Prompt building
	StructuredOutput bool
	MaxContextTokens int

	// Server
	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load() // Try current directory

	// Try to find project root by looking for a .env next to go.mod
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	cfg := &Config{
		LLMProvider: getEnv("LLM_PROVIDER", "local"),
		LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		LLMModel:    getEnv("LLM_MODEL", ""),
		LLMBaseURL:  getEnv("LLM_BASE_URL", "http://localhost:8080"),
		JudgeModel:  getEnv("JUDGE_MODEL", ""),
		CorpusDir:   getEnv("CORPUS_DIR", ""),
		DBPath:      getEnv("DB_PATH", "./data/quokkaq.db"),
		APIPort:     getEnv("API_PORT", "9000"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
	}

	var parseErr error
	cfg.LLMEnabled = getEnvBool("LLM_ENABLED", true, &parseErr)
	cfg.PromptCaching = getEnvBool("LLM_PROMPT_CACHING", true, &parseErr)
	cfg.EmbeddingDim = getEnvInt("EMBEDDING_DIM", 256, &parseErr)
	cfg.CacheCapacity = getEnvInt("CACHE_CAPACITY", 256, &parseErr)
	cfg.MaxContextTokens = getEnvInt("MAX_CONTEXT_TOKENS", 2000, &parseErr)
	cfg.StructuredOutput = getEnvBool("STRUCTURED_OUTPUT", true, &parseErr)
	cfg.CacheThreshold = getEnvFloat("CONFIDENCE_CACHE_THRESHOLD", 80, &parseErr)
	cfg.ExpansionThreshold = getEnvFloat("CONFIDENCE_EXPANSION_THRESHOLD", 65, &parseErr)
	cfg.AggressiveThreshold = getEnvFloat("CONFIDENCE_AGGRESSIVE_THRESHOLD", 50, &parseErr)
	cfg.LexicalWeight = getEnvFloat("CONFIDENCE_LEXICAL_WEIGHT", 0.4, &parseErr)
	cfg.SemanticWeight = getEnvFloat("CONFIDENCE_SEMANTIC_WEIGHT", 0.4, &parseErr)
	cfg.HistoricalWeight = getEnvFloat("CONFIDENCE_HISTORICAL_WEIGHT", 0.2, &parseErr)
	timeoutSecs := getEnvInt("LLM_TIMEOUT_SECONDS", 30, &parseErr)
	if parseErr != nil {
		return nil, parseErr
	}
	cfg.LLMTimeout = time.Duration(timeoutSecs) * time.Second

	switch getEnv("LOG_LEVEL", "info") {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	// Validate required fields
	if cfg.CorpusDir == "" {
		return nil, fmt.Errorf("CORPUS_DIR is required")
	}
	switch cfg.LLMProvider {
	case "anthropic", "openai", "local":
	default:
		return nil, fmt.Errorf("LLM_PROVIDER must be one of anthropic, openai, local (got %q)", cfg.LLMProvider)
	}
	if cfg.LLMEnabled && cfg.LLMProvider != "local" && cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required for provider %q", cfg.LLMProvider)
	}
	if cfg.EmbeddingDim <= 0 {
		return nil, fmt.Errorf("EMBEDDING_DIM must be greater than 0")
	}
	if cfg.CacheCapacity <= 0 {
		return nil, fmt.Errorf("CACHE_CAPACITY must be greater than 0")
	}
	if cfg.JudgeModel == "" {
		cfg.JudgeModel = cfg.LLMModel
	}
	if w := cfg.LexicalWeight + cfg.SemanticWeight + cfg.HistoricalWeight; w < 0.999 || w > 1.001 {
		return nil, fmt.Errorf("confidence weights must sum to 1.0 (got %f)", w)
	}

	// Create the data directory if it doesn't exist (for the sqlite file)
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, parseErr *error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil && *parseErr == nil {
		*parseErr = fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n
}

func getEnvFloat(key string, defaultValue float64, parseErr *error) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil && *parseErr == nil {
		*parseErr = fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return f
}

func getEnvBool(key string, defaultValue bool, parseErr *error) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil && *parseErr == nil {
		*parseErr = fmt.Errorf("%s must be a valid boolean: %w", key, err)
	}
	return b
}
