// Package system provides the health, readiness and version endpoints.
package system

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/status-page-server/internal/api/common"
	"github.com/stacklok/status-page-server/pkg/versions"
)

// Pinger reports whether a backing dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// Router creates a router for health check endpoints.
// Readiness pings the store.
func Router(store Pinger) http.Handler {
	r := chi.NewRouter()
	Register(r, store)
	return r
}

// Register adds the health check endpoints to an existing router
func Register(r chi.Router, store Pinger) {
	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(store))
	r.Get("/version", versionHandler)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

func readinessHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed", "error", err)
			common.WriteErrorResponse(w, "store not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		common.WriteJSONResponse(w, HealthResponse{Status: "ready"}, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}
