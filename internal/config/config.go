// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rchauhan/fraudlens/internal/fraud"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Scoring
	AlertThreshold        float64 // scores at or above this open an alert
	VelocityWindowMinutes int
	VelocityThreshold     int
	AmountThreshold       float64
	GeoDistanceKm         float64
	SuspiciousMerchants   []string // comma-separated override of the default denylist
	SuspiciousCategories  []string

	// Pipeline
	Workers      int // concurrent scoring workers
	IngestBuffer int // queued transactions before ingestion blocks

	// Observability
	OTLPEndpoint  string // OTLP gRPC endpoint for traces (optional)
	TracesEnabled bool

	// Security
	AdminSecret  string // guards destructive admin endpoints
	RateLimitRPS int
}

const (
	DefaultPort           = "8080"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultAlertThreshold = 0.4
	DefaultVelocityWindow = 10 // minutes
	DefaultWorkers        = 4
	DefaultIngestBuffer   = 1024
	DefaultRateLimit      = 100
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	defaults := fraud.DefaultPatterns()

	cfg := &Config{
		Port:                  getEnv("PORT", DefaultPort),
		Env:                   getEnv("ENV", DefaultEnv),
		LogLevel:              getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:           os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		AlertThreshold:        getEnvFloat("ALERT_THRESHOLD", DefaultAlertThreshold),
		VelocityWindowMinutes: int(getEnvInt64("VELOCITY_WINDOW_MINUTES", DefaultVelocityWindow)),
		VelocityThreshold:     int(getEnvInt64("VELOCITY_THRESHOLD", int64(defaults.VelocityThreshold))),
		AmountThreshold:       getEnvFloat("AMOUNT_THRESHOLD", defaults.AmountThreshold),
		GeoDistanceKm:         getEnvFloat("GEO_DISTANCE_KM", defaults.GeoDistanceThreshold),
		SuspiciousMerchants:   getEnvList("SUSPICIOUS_MERCHANTS", defaults.SuspiciousMerchants),
		SuspiciousCategories:  getEnvList("SUSPICIOUS_CATEGORIES", defaults.SuspiciousCategories),
		Workers:               int(getEnvInt64("WORKERS", DefaultWorkers)),
		IngestBuffer:          int(getEnvInt64("INGEST_BUFFER", DefaultIngestBuffer)),
		OTLPEndpoint:          os.Getenv("OTLP_ENDPOINT"),
		TracesEnabled:         getEnvBool("TRACES_ENABLED", false),
		AdminSecret:           os.Getenv("ADMIN_SECRET"),
		RateLimitRPS:          int(getEnvInt64("RATE_LIMIT_RPS", DefaultRateLimit)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all configuration values are usable
func (c *Config) Validate() error {
	if c.AlertThreshold < 0 || c.AlertThreshold > 1 {
		return fmt.Errorf("ALERT_THRESHOLD must be in [0, 1], got %f", c.AlertThreshold)
	}
	if c.VelocityWindowMinutes <= 0 {
		return fmt.Errorf("VELOCITY_WINDOW_MINUTES must be positive, got %d", c.VelocityWindowMinutes)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS must be positive, got %d", c.Workers)
	}
	return nil
}

// Patterns builds the scoring pattern set from configuration.
func (c *Config) Patterns() fraud.Patterns {
	p := fraud.DefaultPatterns()
	p.VelocityThreshold = c.VelocityThreshold
	p.VelocityWindow = time.Duration(c.VelocityWindowMinutes) * time.Minute
	p.AmountThreshold = c.AmountThreshold
	p.GeoDistanceThreshold = c.GeoDistanceKm
	p.SuspiciousMerchants = c.SuspiciousMerchants
	p.SuspiciousCategories = c.SuspiciousCategories
	return p
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
