// ABOUTME: This file handles configuration management for post-collector
// ABOUTME: Loads environment variables and validates upstream API settings

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the post-collector service.
type Config struct {
	// Service configuration
	ServiceName string
	LogLevel    string

	// Upstream API configuration
	API APIConfig

	// Local request throttling
	Throttle ThrottleConfig

	// Retry behavior for single upstream calls
	Retry RetryConfig

	// Collection run bounds
	Collector CollectorConfig

	// Result cache
	Cache CacheConfig

	// Scheduled refresh
	Scheduler SchedulerConfig
}

// APIConfig holds upstream posts API settings.
type APIConfig struct {
	BaseURL     string
	BearerToken string
	PageSize    int
}

// ThrottleConfig holds the fixed-window throttle settings.
type ThrottleConfig struct {
	MaxRequestsPerWindow int
	WindowDuration       time.Duration
}

// RetryConfig holds retry policy settings.
type RetryConfig struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	RateLimitDelay time.Duration
}

// CollectorConfig holds collection run bounds.
type CollectorConfig struct {
	MaxPages          int
	TargetRecordCount int
	MaxEmptyPages     int
	RateLimitCooldown time.Duration
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Duration             time.Duration
	MaxStorageBytes      int
	EvictionKeepFraction float64
	SQLitePath           string
}

// SchedulerConfig holds scheduled refresh settings.
type SchedulerConfig struct {
	RefreshInterval time.Duration
	Accounts        []string
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnvOrDefault("SERVICE_NAME", "post-collector"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),

		API: APIConfig{
			BaseURL:     getEnvOrDefault("POSTS_API_BASE_URL", "https://api.example.com/2"),
			BearerToken: os.Getenv("POSTS_API_BEARER_TOKEN"), // Required from secret
			PageSize:    getEnvIntOrDefault("POSTS_API_PAGE_SIZE", 100),
		},

		Throttle: ThrottleConfig{
			MaxRequestsPerWindow: getEnvIntOrDefault("MAX_REQUESTS_PER_WINDOW", 50),
			WindowDuration:       getEnvDurationOrDefault("WINDOW_DURATION", 15*time.Minute),
		},

		Retry: RetryConfig{
			MaxAttempts:    getEnvIntOrDefault("MAX_ATTEMPTS", 2),
			BaseDelay:      getEnvDurationOrDefault("RETRY_BASE_DELAY", 2*time.Second),
			RateLimitDelay: getEnvDurationOrDefault("RETRY_RATE_LIMIT_DELAY", 5*time.Second),
		},

		Collector: CollectorConfig{
			MaxPages:          getEnvIntOrDefault("MAX_PAGES", 200),
			TargetRecordCount: getEnvIntOrDefault("TARGET_RECORD_COUNT", 15000),
			MaxEmptyPages:     getEnvIntOrDefault("MAX_EMPTY_PAGES", 3),
			RateLimitCooldown: getEnvDurationOrDefault("RATE_LIMIT_COOLDOWN", 60*time.Second),
		},

		Cache: CacheConfig{
			Duration:             getEnvDurationOrDefault("CACHE_DURATION", 4*time.Hour),
			MaxStorageBytes:      getEnvIntOrDefault("MAX_STORAGE_BYTES", 50*1024*1024),
			EvictionKeepFraction: getEnvFloatOrDefault("EVICTION_KEEP_FRACTION", 0.7),
			SQLitePath:           getEnvOrDefault("CACHE_SQLITE_PATH", "post_collector_cache.db"),
		},

		Scheduler: SchedulerConfig{
			RefreshInterval: getEnvDurationOrDefault("REFRESH_INTERVAL", 4*time.Hour),
			Accounts:        splitAccounts(os.Getenv("TRACKED_ACCOUNTS")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.API.BearerToken == "" {
		return fmt.Errorf("POSTS_API_BEARER_TOKEN is required")
	}

	if c.Throttle.MaxRequestsPerWindow <= 0 {
		return fmt.Errorf("MAX_REQUESTS_PER_WINDOW must be positive")
	}

	if c.Collector.MaxPages <= 0 {
		return fmt.Errorf("MAX_PAGES must be positive")
	}

	if c.Cache.EvictionKeepFraction <= 0 || c.Cache.EvictionKeepFraction > 1 {
		return fmt.Errorf("EVICTION_KEEP_FRACTION must be in (0, 1]")
	}

	return nil
}

// getEnvOrDefault returns environment variable value or default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// splitAccounts parses the comma-separated "owner:resourceID" pairs of
// TRACKED_ACCOUNTS, keeping raw pairs for the caller to resolve.
func splitAccounts(raw string) []string {
	if raw == "" {
		return nil
	}

	var accounts []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			accounts = append(accounts, part)
		}
	}
	return accounts
}
