package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Issuer   string   // Optional: issuer claim for session tokens (default: consign-idp)
	Audience []string // Optional: comma separated audience claim values

	DatabaseFile   string        // Optional: path to SQLite database file (default: ./idp.db)
	SigningKeyFile string        // Optional: PEM Ed25519 key, generated on first start; empty means ephemeral
	SeedUsers      string        // Optional: "email|name|role;..." accounts created at startup
	TokenTTL       time.Duration // Session token lifetime (default: 8h)
	CodeTTL        time.Duration // OTP code lifetime (default: 10m)
	ResendCooldown time.Duration // Wait before a code may be resent (default: 300s)
	MaxAttempts    int           // Wrong codes allowed per challenge (default: 5)

	Mailer       string // "log" or "smtp" (default: log)
	SMTPAddr     string // host:port of the relay
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired challenge cleanup interval (default: 15m)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:         getEnvOrDefault("IDP_ISSUER", "consign-idp"),
		Audience:       splitList(os.Getenv("IDP_AUDIENCE")),
		DatabaseFile:   getEnvOrDefault("IDP_DATABASE_FILE", "idp.db"),
		SigningKeyFile: os.Getenv("IDP_SIGNING_KEY_FILE"),
		SeedUsers:      os.Getenv("IDP_SEED_USERS"),
		TokenTTL:       getEnvDurationOrDefault("TOKEN_TTL", 8*time.Hour),
		CodeTTL:        getEnvDurationOrDefault("OTP_CODE_TTL", 10*time.Minute),
		ResendCooldown: getEnvDurationOrDefault("OTP_RESEND_COOLDOWN", 300*time.Second),
		MaxAttempts:    getEnvIntOrDefault("OTP_MAX_ATTEMPTS", 5),

		Mailer:       getEnvOrDefault("IDP_MAILER", "log"),
		SMTPAddr:     os.Getenv("SMTP_ADDR"),
		SMTPFrom:     getEnvOrDefault("SMTP_FROM", "no-reply@localhost"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 15*time.Minute),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
