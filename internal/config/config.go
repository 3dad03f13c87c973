// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// devSessionSecret signs login cookies when running locally without SESSION_SECRET.
const devSessionSecret = "datagym-development-session-secret"

var queryEngines = map[string]bool{"sqlite": true, "duckdb": true}

// Config holds all application configuration.
type Config struct {
	Port          string
	FrontendURL   string
	DBPath        string
	DatabaseURL   string // PostgreSQL; when set it replaces the SQLite store
	SessionSecret string
	QueryEngine   string // "sqlite" or "duckdb"
	SeedLessons   bool   // seed the built-in catalogue into an empty store

	MaxUploadBytes int64
	WorkspaceTTL   time.Duration
	RunRateLimit   int
	RunRateWindow  time.Duration
	ScriptMaxSteps uint64 // 0 = unlimited
	RunTimeout     time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		FrontendURL:   getEnv("FRONTEND_URL", ""),
		DBPath:        getEnv("DB_PATH", "./data/datagym.db"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		QueryEngine:   strings.ToLower(getEnv("QUERY_ENGINE", "sqlite")),
		SeedLessons:   getEnvBool("SEED_LESSONS", true),

		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 100<<20)),
		WorkspaceTTL:   getEnvDuration("WORKSPACE_TTL", 60*time.Minute),
		RunRateLimit:   getEnvInt("RUN_RATE_LIMIT", 30),
		RunRateWindow:  getEnvDuration("RUN_RATE_WINDOW", time.Minute),
		ScriptMaxSteps: uint64(max(getEnvInt("SCRIPT_MAX_STEPS", 0), 0)),
		RunTimeout:     getEnvDuration("RUN_TIMEOUT", 0),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if cfg.SessionSecret == "" && cfg.IsDevelopment() {
		cfg.SessionSecret = devSessionSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" && c.DatabaseURL == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if !queryEngines[c.QueryEngine] {
		return fmt.Errorf("QUERY_ENGINE must be sqlite or duckdb, got %q", c.QueryEngine)
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required outside development")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be > 0")
	}
	if c.WorkspaceTTL <= 0 {
		return fmt.Errorf("WORKSPACE_TTL must be > 0")
	}
	if c.RunRateLimit <= 0 || c.RunRateWindow <= 0 {
		return fmt.Errorf("RUN_RATE_LIMIT and RUN_RATE_WINDOW must be > 0")
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("RUN_TIMEOUT cannot be negative")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s", "1h") or plain seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
