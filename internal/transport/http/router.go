package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"estateclaims/pkg/platform/httputil"
	"estateclaims/pkg/platform/middleware/auth"
	"estateclaims/pkg/platform/middleware/metadata"
	"estateclaims/pkg/platform/middleware/request"
	"estateclaims/pkg/platform/middleware/requesttime"
)

// Registrar mounts one domain's routes on the authenticated router.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config carries everything the router needs besides the domain handlers.
type Config struct {
	Logger        *slog.Logger
	Authenticator auth.Authenticator
	Checks        map[string]HealthCheck
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter builds the public HTTP surface. Every domain route requires a
// bearer token; /health and /metrics do not.
func NewRouter(cfg Config, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(cfg.Logger))
	r.Use(request.Recovery(cfg.Logger))

	r.Get("/health", healthHandler(cfg.Checks))
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(cfg.Authenticator, cfg.Logger))
		for _, h := range handlers {
			h.Register(r)
		}
	})
	return r
}

// MetricsHandler exposes the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}
		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": overall, "checks": results})
	}
}
