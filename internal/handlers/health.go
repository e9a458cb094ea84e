package handlers

import (
	"encoding/json"
	"net/http"
)

// CourseLister exposes the seeded courses for the health endpoint.
type CourseLister interface {
	Courses() []string
}

// HealthHandler reports service liveness and the seeded courses.
type HealthHandler struct {
	courses CourseLister
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(courses CourseLister) *HealthHandler {
	return &HealthHandler{courses: courses}
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status  string   `json:"status"`
	Courses []string `json:"courses"`
}

// ServeHTTP handles GET /api/health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp := HealthResponse{Status: "ok"}
	if h.courses != nil {
		resp.Courses = h.courses.Courses()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
