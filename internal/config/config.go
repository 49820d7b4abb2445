// Package config provides centralized configuration management for the
// glownotes server. It loads configuration from CLI flags and environment
// variables, validates required fields, and provides sensible defaults.
//
// CLI flags select the storage backend (--db, --test) and listen address
// (--addr). Environment variables provide connection strings and tuning.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/glownotes/glownotes/internal/ratelimit"
)

// Storage backend selectors for the --db flag.
const (
	BackendMongo  = "mongo"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr string
	BaseURL    string

	// Storage backend: one of mongo, sqlite, memory
	Backend string

	// MongoDB (Backend == mongo)
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	MongoTimeout    time.Duration

	// SQLite (Backend == sqlite)
	DatabasePath string

	// Rate limiting
	RateLimitConfig ratelimit.Config
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags parses CLI flags and returns them. Call before LoadConfig.
// This registers and parses the --db, --test, and --addr flags.
func ParseFlags() (backend, addr string) {
	var testMode bool
	flag.StringVar(&backend, "db", "", "Storage backend: mongo, sqlite, or memory (default mongo)")
	flag.BoolVar(&testMode, "test", false, "Shorthand for --db memory")
	flag.StringVar(&addr, "addr", "", "Listen address (default :8080, overrides LISTEN_ADDR env var)")
	flag.Parse()

	if testMode {
		backend = BackendMemory
	}

	return backend, addr
}

// LoadConfig loads configuration from environment variables and CLI flag
// values. The backend flag overrides the default mongo backend; the addr
// flag overrides the LISTEN_ADDR env var if non-empty.
func LoadConfig(backend, addr string) (*Config, error) {
	cfg := &Config{}

	// Backend selection
	cfg.Backend = backend
	if cfg.Backend == "" {
		cfg.Backend = BackendMongo
	}

	// Server settings
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", ":8080")
	if addr != "" {
		cfg.ListenAddr = addr
	}
	cfg.BaseURL = strings.TrimSpace(os.Getenv("BASE_URL"))
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}

	// MongoDB
	cfg.MongoURI = strings.TrimSpace(os.Getenv("MONGO_URI"))
	cfg.MongoDatabase = getEnvOrDefault("MONGO_DATABASE", "glownotes")
	cfg.MongoCollection = getEnvOrDefault("MONGO_COLLECTION", "notes")
	cfg.MongoTimeout = parseDurationOrDefault("MONGO_TIMEOUT", 15*time.Second)

	// SQLite
	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", "/data/notes.db")

	// Rate limiting
	cfg.RateLimitConfig = ratelimit.Config{
		RPS:             parseFloat64OrDefault("RATE_LIMIT_RPS", ratelimit.DefaultConfig.RPS),
		Burst:           parseIntOrDefault("RATE_LIMIT_BURST", ratelimit.DefaultConfig.Burst),
		CleanupInterval: parseDurationOrDefault("RATE_LIMIT_CLEANUP_INTERVAL", ratelimit.DefaultConfig.CleanupInterval),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
// Backend-specific settings are required only for the selected backend.
func (c *Config) Validate() error {
	var errs []string

	switch c.Backend {
	case BackendMongo:
		if c.MongoURI == "" {
			errs = append(errs, "MONGO_URI is required (set env var or use --db sqlite / --test)")
		}
		if c.MongoDatabase == "" {
			errs = append(errs, "MONGO_DATABASE must not be empty")
		}
		if c.MongoCollection == "" {
			errs = append(errs, "MONGO_COLLECTION must not be empty")
		}
		if c.MongoTimeout <= 0 {
			errs = append(errs, "MONGO_TIMEOUT must be positive")
		}
	case BackendSQLite:
		if c.DatabasePath == "" {
			errs = append(errs, "DATABASE_PATH is required for --db sqlite")
		}
	case BackendMemory:
		// Nothing to validate; everything lives in process.
	default:
		errs = append(errs, fmt.Sprintf("unknown storage backend %q (valid: mongo, sqlite, memory)", c.Backend))
	}

	if c.ListenAddr == "" {
		errs = append(errs, "LISTEN_ADDR must not be empty")
	}

	if c.RateLimitConfig.RPS <= 0 {
		errs = append(errs, "RATE_LIMIT_RPS must be positive")
	}
	if c.RateLimitConfig.Burst <= 0 {
		errs = append(errs, "RATE_LIMIT_BURST must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	return nil
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "glownotes server starting...")

	switch c.Backend {
	case BackendMongo:
		fmt.Fprintf(os.Stderr, "  Storage: MongoDB (%s/%s)\n", c.MongoDatabase, c.MongoCollection)
	case BackendSQLite:
		fmt.Fprintf(os.Stderr, "  Storage: SQLite (%s)\n", c.DatabasePath)
	case BackendMemory:
		fmt.Fprintln(os.Stderr, "  Storage: In-memory (--test)")
	}

	fmt.Fprintf(os.Stderr, "  Listen:  %s\n", c.ListenAddr)
	fmt.Fprintf(os.Stderr, "  Base:    %s\n", c.BaseURL)
	fmt.Fprintln(os.Stderr, "")
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
