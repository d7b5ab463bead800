package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	DBPath        string
	IconDir       string
	LogLevel      string
	TickInterval  time.Duration
	FetchTimeout  time.Duration
	FetchCacheFor time.Duration
	MaxConcurrent int64
	NodeID        int64
}

func Load() Config {
	return Config{
		DBPath:        filepath.Clean(envString("FEEDLOOP_DB_PATH", "./data/feedloop.db")),
		IconDir:       filepath.Clean(envString("FEEDLOOP_ICON_DIR", "./data/icons")),
		LogLevel:      envString("FEEDLOOP_LOG_LEVEL", "info"),
		TickInterval:  envDuration("FEEDLOOP_TICK_INTERVAL", time.Minute),
		FetchTimeout:  envDuration("FEEDLOOP_FETCH_TIMEOUT", 30*time.Second),
		FetchCacheFor: envDuration("FEEDLOOP_FETCH_CACHE", 5*time.Minute),
		MaxConcurrent: envInt64("FEEDLOOP_MAX_CONCURRENT", 8),
		NodeID:        envInt64("FEEDLOOP_NODE_ID", 0),
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return fallback
}
