// Package config reads the process's environment into a single typed
// Config, built on the pkg/config env helpers.
package config

import (
	"fmt"
	"os"
	"time"

	pkgconfig "killfeed/pkg/config"
)

// Config holds every environment-derived setting the process needs.
type Config struct {
	ZKBEndpoint      string
	ZKBQueuePrefix   string
	ZKBHTTPTimeout   time.Duration
	ESIBaseURL       string
	ESIUserAgent     string
	CelestialBaseURL string
	ConfigDir        string
	ChatGatewayToken string
	OTelEndpoint     string
	ListenAddr       string
}

func mustGetEnv(key string) (string, error) {
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("config: required environment variable %s is not set", key)
}

// Load reads Config from the environment, returning an error for any
// required variable that is missing.
func Load() (*Config, error) {
	token, err := mustGetEnv("CHAT_GATEWAY_TOKEN")
	if err != nil {
		return nil, err
	}

	return &Config{
		ZKBEndpoint:      pkgconfig.GetEnv("ZKB_ENDPOINT", "https://zkillredisq.stream/listen.php"),
		ZKBQueuePrefix:   pkgconfig.GetEnv("ZKB_QUEUE_PREFIX", "killfeed"),
		ZKBHTTPTimeout:   pkgconfig.GetDurationEnv("ZKB_HTTP_TIMEOUT", 65*time.Second),
		ESIBaseURL:       pkgconfig.GetEnv("ESI_BASE_URL", "https://esi.evetech.net/latest"),
		ESIUserAgent:     pkgconfig.GetEnv("ESI_USER_AGENT", "killfeed/1.0 (contact: ops@example.com)"),
		CelestialBaseURL: pkgconfig.GetEnv("CELESTIAL_BASE_URL", "https://www.fuzzwork.co.uk/api"),
		ConfigDir:        pkgconfig.GetEnv("CONFIG_DIR", "./config"),
		ChatGatewayToken: token,
		OTelEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ListenAddr:       pkgconfig.GetEnv("LISTEN_ADDR", ":8090"),
	}, nil
}
