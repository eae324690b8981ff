package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	StorageRedis  = "redis"
	StorageMemory = "memory"

	ContentFile   = "file"
	ContentSQLite = "sqlite"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisURL            string
	StorageBackend      string
	ContentBackend      string
	DataDir             string
	SQLitePath          string
	PlayerNumberRetries int
}

// Load reads the configuration from the environment. Unknown backends and
// non-positive retry budgets are rejected.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:       getEnv("REDIS_URL", "localhost:6379"),
		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageRedis)),
		ContentBackend: strings.ToLower(getEnv("CONTENT_BACKEND", ContentFile)),
		DataDir:        getEnv("DATA_DIR", "./data"),
		SQLitePath:     getEnv("SQLITE_PATH", "data/content.db"),
	}

	retries, err := strconv.Atoi(getEnv("PLAYER_NUMBER_RETRIES", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLAYER_NUMBER_RETRIES: %w", err)
	}
	if retries < 1 {
		return nil, fmt.Errorf("PLAYER_NUMBER_RETRIES must be at least 1, got %d", retries)
	}
	cfg.PlayerNumberRetries = retries

	switch cfg.StorageBackend {
	case StorageRedis, StorageMemory:
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	switch cfg.ContentBackend {
	case ContentFile, ContentSQLite:
	default:
		return nil, fmt.Errorf("unknown CONTENT_BACKEND %q", cfg.ContentBackend)
	}

	return cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
