package module

import (
	"context"
	"log/slog"
	"net/http"

	"killfeed/pkg/handlers"

	"github.com/go-chi/chi/v5"
)

// Status represents module health status values
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// HealthStatus represents module health status
type HealthStatus struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Module defines the interface every application module must implement.
type Module interface {
	Routes(r chi.Router)
	StartBackgroundTasks(ctx context.Context)
	Stop()
	Name() string
}

// BaseModule provides common lifecycle plumbing for all modules.
type BaseModule struct {
	name     string
	stopCh   chan struct{}
	stopOnce chan struct{}
}

// NewBaseModule creates a new base module.
func NewBaseModule(name string) *BaseModule {
	return &BaseModule{
		name:     name,
		stopCh:   make(chan struct{}),
		stopOnce: make(chan struct{}),
	}
}

// Name returns the module name.
func (b *BaseModule) Name() string {
	return b.name
}

// StopChannel returns the stop channel for background tasks.
func (b *BaseModule) StopChannel() <-chan struct{} {
	return b.stopCh
}

// StartBackgroundTasks provides a default no-op implementation; modules
// with periodic work override it and select on StopChannel.
func (b *BaseModule) StartBackgroundTasks(ctx context.Context) {
	slog.Debug("Module has no background tasks", "module", b.name)
}

// Stop gracefully stops the module. Safe to call more than once.
func (b *BaseModule) Stop() {
	select {
	case <-b.stopOnce:
		return
	default:
		close(b.stopOnce)
		close(b.stopCh)
		slog.Info("Module stopped", "module", b.name)
	}
}

// HealthHandler creates a health check handler for this module.
func (b *BaseModule) HealthHandler() http.HandlerFunc {
	return handlers.HealthHandler(b.name)
}

// RegisterHealthRoute registers the health endpoint for this module.
func (b *BaseModule) RegisterHealthRoute(r chi.Router) {
	r.Get("/health", b.HealthHandler())
}
