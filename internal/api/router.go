package api

import (
	"assignment-wizard-service/internal/api/handlers"
	"assignment-wizard-service/internal/platform/obs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(wiz handlers.Wizard, metrics *obs.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(requestContext(logger))
	r.Use(loggingMiddleware(metrics))

	sessions := &handlers.SessionHandler{Wizard: wiz}

	r.Get("/health", handlers.Health)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Route("/wizard/sessions", func(r chi.Router) {
		r.Post("/", sessions.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", sessions.Get)
			r.Delete("/", sessions.Cancel)
			r.Post("/actions", sessions.Dispatch)
			r.Post("/groups", sessions.AddGroup)
			r.Post("/recipients/fetch", sessions.FetchRecipients)
			r.Post("/couriers/fetch", sessions.FetchCouriers)
			r.Post("/next", sessions.Next)
			r.Post("/back", sessions.Back)
			r.Post("/optimize", sessions.Optimize)
			r.Post("/save", sessions.Save)
		})
	})

	return r
}
