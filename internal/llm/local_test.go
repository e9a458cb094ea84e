package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLocalProviderGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req localChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		if req.Stream {
			t.Error("streaming must be disabled")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "Binary search halves the interval."}}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 30}
		}`))
	}))
	defer server.Close()

	p := newLocalProvider(Config{BaseURL: server.URL, Model: "test-model", Timeout: 5 * time.Second})
	resp, err := p.Generate(context.Background(), Request{
		SystemPrompt: "You are a TA.",
		UserPrompt:   "What is binary search?",
		MaxTokens:    256,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "Binary search halves the interval." {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.InputTokens != 120 || resp.Usage.OutputTokens != 30 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if resp.EstimatedCost != 0 {
		t.Errorf("local inference should cost zero, got %f", resp.EstimatedCost)
	}
}

func TestLocalProviderBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := newLocalProvider(Config{BaseURL: server.URL, Timeout: 5 * time.Second})
	_, err := p.Generate(context.Background(), Request{UserPrompt: "q"})

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.Provider != KindLocal {
		t.Errorf("provider = %s, want local", provErr.Provider)
	}
}

func TestLocalProviderEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	p := newLocalProvider(Config{BaseURL: server.URL, Timeout: 5 * time.Second})
	_, err := p.Generate(context.Background(), Request{UserPrompt: "q"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestNewProviderFactory(t *testing.T) {
	cases := []struct {
		cfg     Config
		want    Kind
		wantErr bool
	}{
		{Config{Kind: KindAnthropic, APIKey: "k"}, KindAnthropic, false},
		{Config{Kind: KindAnthropic}, "", true},
		{Config{Kind: KindOpenAI, APIKey: "k"}, KindOpenAI, false},
		{Config{Kind: KindOpenAI}, "", true},
		{Config{Kind: KindLocal}, KindLocal, false},
		{Config{Kind: "mystery"}, "", true},
	}
	for _, tc := range cases {
		p, err := NewProvider(tc.cfg)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NewProvider(%s) expected error", tc.cfg.Kind)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewProvider(%s) error = %v", tc.cfg.Kind, err)
			continue
		}
		if p.Kind() != tc.want {
			t.Errorf("NewProvider(%s).Kind() = %s", tc.cfg.Kind, p.Kind())
		}
	}
}
