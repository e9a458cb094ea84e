package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"quokkaq/internal/adaptive"
	"quokkaq/internal/handlers"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Answers handlers.AnswerService
	Courses handlers.CourseLister
	Metrics *adaptive.Metrics
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	askHandler := handlers.NewAskHandler(deps.Answers)
	healthHandler := handlers.NewHealthHandler(deps.Courses)
	metricsHandler := handlers.NewMetricsHandler(deps.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/ask", askHandler)
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	})

	return r
}
