package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"convrelay/internal/platform/middleware"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewRouter wires the public endpoints. The API routes share the middleware
// chain; metrics and health stay outside it so probes do not pollute the
// request log.
func NewRouter(h *Handler, logger *slog.Logger, health HealthChecker) http.Handler {
	r := chi.NewRouter()

	r.Group(func(api chi.Router) {
		api.Use(middleware.Recovery(logger))
		api.Use(middleware.RequestID)
		api.Use(middleware.Logger(logger))
		api.Use(middleware.ContentTypeJSON)
		h.Register(api)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			if err := health.Health(req.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "dependency unhealthy")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
