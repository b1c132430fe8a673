package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/subosito/gotenv"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	DatabaseURL     string
	AnalyzerModel   string
	AnalysisTTL     time.Duration
}

// DefaultAnalysisTTL is how long a cached analysis stays live.
const DefaultAnalysisTTL = 30 * 24 * time.Hour

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	_ = gotenv.Load(".env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		Env:             env,
		DatabaseURL:     dbURL,
		AnalyzerModel:   getEnv("ANALYZER_MODEL", "gpt-4o-mini"),
		AnalysisTTL:     ttlFromEnv(),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
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
	default:
		return "dev"
	}
}

func ttlFromEnv() time.Duration {
	raw := strings.TrimSpace(os.Getenv("ANALYSIS_TTL"))
	if raw == "" {
		return DefaultAnalysisTTL
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil || ttl <= 0 {
		log.Printf("config: ANALYSIS_TTL invalid, using default: %v", err)
		return DefaultAnalysisTTL
	}
	return ttl
}
