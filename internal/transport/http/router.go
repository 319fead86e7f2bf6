package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"checkscan/internal/platform/middleware"
)

// NewRouter wires the API behind the common middleware chain and mounts
// the Prometheus handler at /metrics.
func NewRouter(h *Handler, logger *slog.Logger, metricsHandler http.Handler) http.Handler {
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))

	r.Handle("/metrics", metricsHandler)
	r.Group(func(r chi.Router) {
		// Must exceed the registry client timeout.
		r.Use(chimw.Timeout(2 * time.Minute))
		r.Use(chimw.AllowContentType("application/json"))
		h.Register(r)
	})
	return r
}
