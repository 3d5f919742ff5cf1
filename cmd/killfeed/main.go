// Command killfeed runs the ingest loop against the upstream long-poll
// feed, evaluates every tenant's subscriptions on each event, and
// delivers matches through the chat gateway. It also exposes a small
// status surface over HTTP for operational visibility.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "go.uber.org/automaxprocs"

	"killfeed/internal/config"
	"killfeed/internal/enrichment"
	"killfeed/internal/enrichment/catalog"
	"killfeed/internal/ingest"
	"killfeed/internal/notifier"
	"killfeed/internal/status"
	"killfeed/internal/subscription"
	"killfeed/pkg/handlers"
	"killfeed/pkg/logging"
	"killfeed/pkg/module"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it: %v", err)
	}

	telemetryMgr := logging.NewTelemetryManager()
	ctx := context.Background()
	if err := telemetryMgr.Initialize(ctx); err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = telemetryMgr.Shutdown(shutdownCtx)
	}()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	instrumentedClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: 15 * time.Second}

	catalogClient := catalog.NewHTTPClient(
		&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: 30 * time.Second},
		cfg.ESIBaseURL, cfg.CelestialBaseURL, cfg.ESIUserAgent,
	)

	standings, err := enrichment.NewFileStandingsProvider(cfg.ConfigDir + "/user_standings.json")
	if err != nil {
		slog.Error("standings load failed", "error", err)
		os.Exit(1)
	}

	enr, err := enrichment.New(cfg.ConfigDir, catalogClient, standings)
	if err != nil {
		slog.Error("enrichment init failed", "error", err)
		os.Exit(1)
	}

	store, err := subscription.NewStore(cfg.ConfigDir)
	if err != nil {
		slog.Error("subscription store init failed", "error", err)
		os.Exit(1)
	}

	gateway := notifier.NewDiscordGateway(instrumentedClient, cfg.ChatGatewayToken)
	notif := notifier.New(gateway, enr, store)

	loop := ingest.New(ingest.Config{
		HTTPClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: cfg.ZKBHTTPTimeout},
		Endpoint:   cfg.ZKBEndpoint,
		Store:      store,
		Enrichment: enr,
		Notifier:   notif,
	})

	if err := loop.Start(ctx); err != nil {
		slog.Error("ingest loop failed to start", "error", err)
		os.Exit(1)
	}

	statusModule := status.New(loop)
	modules := []module.Module{statusModule}
	for _, m := range modules {
		m.StartBackgroundTasks(ctx)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(handlers.TracingMiddleware("killfeed"))
	router.Get("/health", handlers.SimpleHealthHandler())
	router.Mount("/", statusModule.Mount())

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("status server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("status server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("status server shutdown error", "error", err)
	}
	if err := loop.Stop(); err != nil {
		slog.Error("ingest loop stop error", "error", err)
	}
	for _, m := range modules {
		m.Stop()
	}

	slog.Info("killfeed stopped")
}
