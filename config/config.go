// Package config loads server configuration from the environment, with an
// optional .env file for development.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server process needs at startup.
type Config struct {
	Host           string
	Port           int
	DatabasePath   string
	RequestTimeout time.Duration
	CacheCapacity  int
	CacheTTL       time.Duration // safety net only; 0 disables expiry
	LogFormat      string        // "json" or "text"
}

// Load reads the .env file if present and resolves configuration from the
// environment with development defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, relying on system environment")
	}

	return &Config{
		Host:           getEnv("APP_HOST", "0.0.0.0"),
		Port:           getEnvInt("APP_PORT", 8080),
		DatabasePath:   getEnv("DATABASE_PATH", "ledger.db"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		CacheCapacity:  getEnvInt("CACHE_CAPACITY", 1024),
		CacheTTL:       getEnvDuration("CACHE_TTL", 0),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		slog.Warn("invalid integer in environment, using default", "key", key, "value", value)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Warn("invalid duration in environment, using default", "key", key, "value", value)
	}
	return fallback
}
