package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"post-collector/config"
	"post-collector/driver"
	"post-collector/models"
	"post-collector/repository"
	"post-collector/service"
	"post-collector/service/scheduler"
)

func main() {
	account := flag.String("account", "", "Collect a single account as owner:resourceID and exit")
	daemon := flag.Bool("daemon", false, "Run the refresh scheduler for TRACKED_ACCOUNTS")
	memoryStorage := flag.Bool("memory-storage", false, "Use in-memory cache storage instead of SQLite")
	flag.Parse()

	// Setup structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("Post collector starting",
		"service", cfg.ServiceName,
		"max_requests_per_window", cfg.Throttle.MaxRequestsPerWindow,
		"window_duration", cfg.Throttle.WindowDuration,
		"target_record_count", cfg.Collector.TargetRecordCount)

	storage, cleanup, err := buildStorage(cfg, *memoryStorage, logger)
	if err != nil {
		logger.Error("Failed to initialize cache storage", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	gate := service.NewThrottleGate(cfg.Throttle.MaxRequestsPerWindow, cfg.Throttle.WindowDuration, logger)
	retry := service.NewRetryPolicy(cfg.Retry.BaseDelay, cfg.Retry.RateLimitDelay, logger)
	assembler := service.NewAssembler(logger)
	policy := service.NewEvictionPolicy(cfg.Cache.EvictionKeepFraction, logger)
	cache := service.NewCacheStore(storage, policy, cfg.Cache.MaxStorageBytes, cfg.Cache.Duration, logger)

	client := driver.NewPostAPIClient(cfg.API.BaseURL, cfg.API.BearerToken, cfg.API.PageSize, logger)
	collector := service.NewCollector(client, gate, retry, assembler, service.CollectorConfig{
		MaxPages:          cfg.Collector.MaxPages,
		TargetRecordCount: cfg.Collector.TargetRecordCount,
		MaxEmptyPages:     cfg.Collector.MaxEmptyPages,
		MaxAttempts:       cfg.Retry.MaxAttempts,
		RateLimitCooldown: cfg.Collector.RateLimitCooldown,
	}, nil, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *account != "":
		if err := collectOnce(ctx, collector, cache, *account, logger); err != nil {
			logger.Error("Collection failed", "error", err)
			os.Exit(1)
		}
	case *daemon:
		runDaemon(ctx, cfg, collector, cache, logger)
	default:
		logger.Error("Nothing to do: pass -account owner:resourceID or -daemon")
		os.Exit(1)
	}

	logger.Info("Post collector finished")
}

func buildStorage(cfg *config.Config, memory bool, logger *slog.Logger) (repository.KVStorage, func(), error) {
	if memory {
		return repository.NewMemoryStorage(0), func() {}, nil
	}

	store, err := repository.NewSQLiteStorage(cfg.Cache.SQLitePath, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

func collectOnce(ctx context.Context, collector *service.Collector, cache *service.CacheStore, account string, logger *slog.Logger) error {
	owner, resourceID, err := parseAccount(account)
	if err != nil {
		return err
	}

	result, err := collector.CollectAll(ctx, resourceID, owner)
	if err != nil {
		return err
	}

	if err := cache.Put(owner, *result); err != nil {
		logger.Warn("Collected but failed to cache result", "account", owner, "error", err)
	}

	logger.Info("Collection summary",
		"account", owner,
		"records", result.Metadata.TotalCollected,
		"pages", result.Metadata.PagesProcessed,
		"time_span_days", result.Metadata.TimeSpanDays,
		"has_more_data", result.Metadata.HasMoreData,
		"rate_limit_hits", result.Metadata.RateLimitHits,
		"errors", len(result.Metadata.Errors),
		"avg_engagement", result.Stats.AvgEngagement)

	return nil
}

func runDaemon(ctx context.Context, cfg *config.Config, collector *service.Collector, cache *service.CacheStore, logger *slog.Logger) {
	accounts := make([]scheduler.TrackedAccount, 0, len(cfg.Scheduler.Accounts))
	for _, raw := range cfg.Scheduler.Accounts {
		owner, resourceID, err := parseAccount(raw)
		if err != nil {
			logger.Warn("Skipping malformed tracked account", "value", raw, "error", err)
			continue
		}
		accounts = append(accounts, scheduler.TrackedAccount{ResourceID: resourceID, Owner: owner})
	}

	if len(accounts) == 0 {
		logger.Error("Daemon mode requires TRACKED_ACCOUNTS")
		os.Exit(1)
	}

	sched := scheduler.NewScheduler(collector, cacheAdapter{cache}, accounts, logger)
	sched.Start(ctx, scheduler.Config{RefreshInterval: cfg.Scheduler.RefreshInterval})
	defer sched.Stop()

	// Populate the cache immediately, then let the ticker take over.
	sched.RefreshAll(ctx)

	<-ctx.Done()
}

// cacheAdapter narrows CacheStore to the scheduler's ResultCache port.
type cacheAdapter struct {
	store *service.CacheStore
}

func (a cacheAdapter) Put(key string, result models.CollectionResult) error {
	return a.store.Put(key, result)
}

func parseAccount(raw string) (owner, resourceID string, err error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed account %q, expected owner:resourceID", raw)
	}
	return parts[0], parts[1], nil
}
