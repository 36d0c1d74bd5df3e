package config

import (
	"os"
	"strings"
	"time"

	"resume-editor/internal/shared/telemetry"
)

const (
	defaultSaveDebounce       = 1500 * time.Millisecond
	defaultSessionIdleTimeout = 30 * time.Minute
)

// Config holds application configuration.
type Config struct {
	Port                 string
	CORSAllowOrigin      []string
	DatabaseURL          string
	RedisURL             string
	Env                  string
	LinkedInClientID     string
	LinkedInClientSecret string
	LinkedInRedirectURL  string
	UIRedirectURL        string
	SaveDebounce         time.Duration
	SessionIdleTimeout   time.Duration
	LogLevel             telemetry.Level
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	level, ok := telemetry.ParseLevel(os.Getenv("LOG_LEVEL"))
	if !ok {
		telemetry.Warn("config.invalid_log_level", map[string]any{"value": os.Getenv("LOG_LEVEL")})
	}
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		telemetry.Warn("config.missing", map[string]any{"key": "DATABASE_URL"})
	}
	if env == "production" && os.Getenv("REDIS_URL") == "" {
		telemetry.Warn("config.missing", map[string]any{"key": "REDIS_URL"})
	}

	return Config{
		Port:                 getEnv("PORT", "8080"),
		CORSAllowOrigin:      splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:          dbURL,
		RedisURL:             getEnv("REDIS_URL", ""),
		Env:                  env,
		LinkedInClientID:     getEnv("LINKEDIN_CLIENT_ID", ""),
		LinkedInClientSecret: getEnv("LINKEDIN_CLIENT_SECRET", ""),
		LinkedInRedirectURL:  getEnv("LINKEDIN_REDIRECT_URL", ""),
		UIRedirectURL:        getEnv("UI_REDIRECT_URL", ""),
		SaveDebounce:         getDuration("SAVE_DEBOUNCE", defaultSaveDebounce),
		SessionIdleTimeout:   getDuration("SESSION_IDLE_TIMEOUT", defaultSessionIdleTimeout),
		LogLevel:             level,
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getDuration accepts Go durations ("2s") and bare milliseconds ("1500").
func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if d, err := time.ParseDuration(raw + "ms"); err == nil && d > 0 {
		return d
	}
	telemetry.Warn("config.invalid_duration", map[string]any{"key": key, "value": raw})
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

// IsDevLike reports whether env tolerates missing backing services.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "":
		return true
	default:
		return false
	}
}
