package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/longform/internal/api/middleware"
	"github.com/phrazzld/longform/internal/api/shared"
	"github.com/phrazzld/longform/internal/service"
)

// RouterDeps holds the dependencies of the HTTP router.
type RouterDeps struct {
	RunService service.RunService
	// Tokens enables bearer authentication on /api when set
	Tokens middleware.TokenValidator
	// Metrics is mounted at /metrics when set
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter creates the chi router serving the run API.
func NewRouter(deps RouterDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.TraceMiddleware(deps.Logger))
	r.Use(chimiddleware.Recoverer)

	runHandler := NewRunHandler(deps.RunService)

	r.Route("/api", func(r chi.Router) {
		if deps.Tokens != nil {
			r.Use(middleware.NewAuthMiddleware(deps.Tokens).Authenticate)
		}
		r.Post("/runs", runHandler.CreateRun)
		r.Get("/runs/{id}", runHandler.GetRun)
		r.Get("/runs/{id}/document", runHandler.GetDocument)
		r.Get("/runs/{id}/archive", runHandler.GetArchive)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	return r
}
