package handlers

import (
	"encoding/json"
	"net/http"

	"quokkaq/internal/adaptive"
)

// MetricsHandler exposes routing and cache counters.
type MetricsHandler struct {
	metrics *adaptive.Metrics
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(metrics *adaptive.Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// ServeHTTP handles GET /api/metrics.
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.metrics.Snapshot())
}
