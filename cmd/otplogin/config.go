package main

import (
	"os"
	"time"
)

type config struct {
	IdPURL      string        // OTPLOGIN_IDP_URL (default: http://localhost:8080)
	SessionDB   string        // OTPLOGIN_SESSION_DB (default: otplogin.db)
	HTTPTimeout time.Duration // OTPLOGIN_HTTP_TIMEOUT (default: 10s)
	LogLevel    string        // LOG_LEVEL (default: warn)
	LogFormat   string        // LOG_FORMAT (default: text)
}

func loadConfig() config {
	return config{
		IdPURL:      getEnvOrDefault("OTPLOGIN_IDP_URL", "http://localhost:8080"),
		SessionDB:   getEnvOrDefault("OTPLOGIN_SESSION_DB", "otplogin.db"),
		HTTPTimeout: getEnvDurationOrDefault("OTPLOGIN_HTTP_TIMEOUT", 10*time.Second),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "warn"),
		LogFormat:   getEnvOrDefault("LOG_FORMAT", "text"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
