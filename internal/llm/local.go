package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// localProvider talks to an OpenAI-compatible local server such as
// llama.cpp or Ollama. Local inference is free, so cost stays zero.
type localProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

func newLocalProvider(cfg Config) *localProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:8081"
	}
	model := cfg.Model
	if model == "" {
		model = "local"
	}
	return &localProvider{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *localProvider) Kind() Kind { return KindLocal }

type localChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type localChatRequest struct {
	Model       string             `json:"model"`
	Messages    []localChatMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Stream      bool               `json:"stream"`
}

type localChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *localProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	url := fmt.Sprintf("%s/v1/chat/completions", p.baseURL)

	payload := localChatRequest{
		Model: p.model,
		Messages: []localChatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderError{Provider: KindLocal, Op: "marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, &ProviderError{Provider: KindLocal, Op: "create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: KindLocal, Op: "send request", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, &ProviderError{
			Provider: KindLocal,
			Op:       "generate",
			Err:      fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw)),
		}
	}

	var chatResp localChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, &ProviderError{Provider: KindLocal, Op: "decode response", Err: err}
	}
	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return nil, &ProviderError{Provider: KindLocal, Op: "generate", Err: ErrEmptyResponse}
	}

	usage := Usage{
		InputTokens:  chatResp.Usage.PromptTokens,
		OutputTokens: chatResp.Usage.CompletionTokens,
	}
	return &Response{
		Content: chatResp.Choices[0].Message.Content,
		Model:   p.model,
		Usage:   usage,
	}, nil
}
