package handlers

import (
	"net/http"

	"killfeed/pkg/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

// TracingMiddleware wraps the router in otelhttp request tracing. When
// ENABLE_TELEMETRY is off it degrades to a pass-through so dev runs
// carry no tracing overhead.
func TracingMiddleware(serviceName string) func(http.Handler) http.Handler {
	if !config.GetBoolEnv("ENABLE_TELEMETRY", true) {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return otelhttp.NewMiddleware(
		serviceName,
		otelhttp.WithTracerProvider(otel.GetTracerProvider()),
		otelhttp.WithPropagators(otel.GetTextMapPropagator()),
	)
}
