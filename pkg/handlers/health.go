// Package handlers holds the shared HTTP plumbing the status surface
// mounts: health endpoints and the OTel tracing middleware.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// HealthResponse is the body served by every health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Module string `json:"module,omitempty"`
}

// HealthHandler serves a static healthy response tagged with moduleName.
// Health checks are excluded from request logging to reduce noise.
func HealthHandler(moduleName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(HealthResponse{Status: "healthy", Module: moduleName}); err != nil {
			slog.Error("failed to encode health response", "error", err, "module", moduleName)
		}
	}
}

// SimpleHealthHandler serves a process-level healthy response with no
// module tag.
func SimpleHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(HealthResponse{Status: "healthy"}); err != nil {
			slog.Error("failed to encode health response", "error", err)
		}
	}
}
