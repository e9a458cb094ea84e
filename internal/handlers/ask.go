package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"quokkaq/internal/contextutil"
	"quokkaq/internal/llm"
	"quokkaq/internal/service"
)

// AnswerService is the service surface the ask endpoint consumes.
type AnswerService interface {
	Ask(ctx context.Context, req service.AskRequest) (*service.Answer, error)
}

// AskHandler handles question-answering requests.
type AskHandler struct {
	answers AnswerService
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(answers AnswerService) *AskHandler {
	return &AskHandler{answers: answers}
}

// ErrorResponse is the JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	// Fallback signals clients to degrade to raw course-material search
	// when generation is unavailable.
	Fallback bool `json:"fallback,omitempty"`
}

// ServeHTTP handles POST /api/ask.
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req service.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	answer, err := h.answers.Ask(r.Context(), req)
	if err != nil {
		h.handleError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(answer); err != nil {
		contextutil.LoggerFromContext(r.Context()).ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// handleError maps pipeline errors to HTTP status codes.
func (h *AskHandler) handleError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := contextutil.LoggerFromContext(ctx)

	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		writeError(w, http.StatusBadRequest, vErr.Error())
		return
	}
	if errors.Is(err, service.ErrCourseNotFound) {
		writeError(w, http.StatusNotFound, "Course not found")
		return
	}
	if errors.Is(err, service.ErrLLMDisabled) {
		writeErrorFallback(w, http.StatusServiceUnavailable, "Answer generation is disabled")
		return
	}
	var provErr *llm.ProviderError
	if errors.As(err, &provErr) {
		logger.ErrorContext(ctx, "provider failure", "provider", provErr.Provider, "error", err)
		writeErrorFallback(w, http.StatusBadGateway, "Answer generation is temporarily unavailable")
		return
	}

	logger.ErrorContext(ctx, "ask request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Failed to answer question")
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

func writeErrorFallback(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message, Fallback: true})
}
