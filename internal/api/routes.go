package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the handlers and middlewares.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(RecoveryMiddleware(h.logger, h.metrics))
	r.Use(LoggingMiddleware(h.logger, h.metrics))

	// KV APIs
	r.Route("/kv", func(r chi.Router) {
		r.Post("/", h.BatchCreate)
		r.Put("/{key}", h.CreateKey)
		r.Get("/{key}", h.GetKey)
		r.Delete("/{key}", h.DeleteKey)
	})

	// Admin APIs
	r.Get("/admin/keys", h.ListKeys)

	// Observability APIs
	r.Get("/metrics", h.GetMetrics)
	r.Get("/health", h.GetHealth)

	return r
}
