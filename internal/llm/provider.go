package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind tags a provider implementation.
type Kind string

const (
	KindAnthropic Kind = "anthropic"
	KindOpenAI    Kind = "openai"
	KindLocal     Kind = "local"
)

// Prompt caching only pays for itself above this size; below it the
// cache-write surcharge outweighs any later read savings.
const minCachePromptTokens = 1024

// Request is a single completion request, provider-agnostic.
type Request struct {
	SystemPrompt  string
	UserPrompt    string
	Temperature   float64
	MaxTokens     int
	EnableCaching bool
}

// Usage is the token accounting for one completion. InputTokens excludes
// cached tokens; cache reads and writes are reported separately because
// they are billed at different rates.
type Usage struct {
	InputTokens      int `json:"input_tokens"`
	OutputTokens     int `json:"output_tokens"`
	CacheReadTokens  int `json:"cache_read_tokens"`
	CacheWriteTokens int `json:"cache_write_tokens"`
}

// Response is a completed generation.
type Response struct {
	Content       string  `json:"content"`
	Model         string  `json:"model"`
	Usage         Usage   `json:"usage"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// Provider generates completions against one LLM backend.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Kind() Kind
}

// Config selects and configures a provider.
type Config struct {
	Kind    Kind
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

var ErrEmptyResponse = errors.New("llm: provider returned no content")

// ProviderError wraps a backend failure with the provider that produced it,
// so callers can degrade without string-matching error text.
type ProviderError struct {
	Provider Kind
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm: %s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProvider builds the provider named by cfg.Kind.
func NewProvider(cfg Config) (Provider, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	switch cfg.Kind {
	case KindAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: anthropic provider requires an API key")
		}
		return newAnthropicProvider(cfg), nil
	case KindOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: openai provider requires an API key")
		}
		return newOpenAIProvider(cfg), nil
	case KindLocal:
		return newLocalProvider(cfg), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider kind %q", cfg.Kind)
	}
}

// cacheWorthwhile reports whether the system prompt is large enough for
// prompt caching. The estimate uses the same four-chars-per-token rule as
// the prompt builder.
func cacheWorthwhile(systemPrompt string) bool {
	return len(systemPrompt)/4 >= minCachePromptTokens
}
