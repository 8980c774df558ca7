// Package httptransport assembles the HTTP router. It owns the middleware
// chain and route mounting; the domain handlers own their own routes.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	pollhandler "pollboard/internal/poll/handler"
	"pollboard/pkg/platform/middleware/auth"
	"pollboard/pkg/platform/middleware/logging"
	"pollboard/pkg/platform/middleware/recovery"
	"pollboard/pkg/platform/middleware/request"
	"pollboard/pkg/platform/middleware/requesttime"
)

// NewRouter wires the public endpoints. Every /api route runs through the
// full chain; health and metrics stay unauthenticated for probes and
// scrapers.
func NewRouter(polls *pollhandler.Handler, validator auth.TokenValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(recovery.Middleware(logger))
		api.Use(request.ID)
		api.Use(requesttime.Middleware)
		api.Use(logging.Middleware(logger))
		api.Use(chimiddleware.Timeout(30 * time.Second))
		api.Use(auth.RequireAuth(validator, logger))
		polls.Register(api)
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
