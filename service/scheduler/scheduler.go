// ABOUTME: Periodic refresh scheduler for tracked accounts
// ABOUTME: Re-collects each account on an interval and re-caches the result

package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"post-collector/models"
)

// AccountCollector runs one full collection for an account.
type AccountCollector interface {
	CollectAll(ctx context.Context, resourceID, ownerName string) (*models.CollectionResult, error)
}

// ResultCache stores finished collection results.
type ResultCache interface {
	Put(key string, result models.CollectionResult) error
}

// TrackedAccount is one account the scheduler keeps fresh.
type TrackedAccount struct {
	ResourceID string
	Owner      string
}

// Config holds scheduler configuration.
type Config struct {
	RefreshInterval time.Duration
}

// DefaultConfig returns the default refresh cadence. Collections are
// expensive against the upstream quota, so refreshes are spaced to
// roughly the cache lifetime.
func DefaultConfig() Config {
	return Config{
		RefreshInterval: 4 * time.Hour,
	}
}

// Scheduler refreshes tracked accounts on a ticker until stopped.
type Scheduler struct {
	collector AccountCollector
	cache     ResultCache
	accounts  []TrackedAccount
	logger    *slog.Logger

	mu        sync.Mutex
	ticker    *time.Ticker
	stopChan  chan struct{}
	isRunning bool
}

// NewScheduler creates a scheduler over the given accounts.
func NewScheduler(
	collector AccountCollector,
	cache ResultCache,
	accounts []TrackedAccount,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		collector: collector,
		cache:     cache,
		accounts:  accounts,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the refresh loop. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start(ctx context.Context, cfg Config) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		s.logger.Warn("Scheduler is already running")
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(cfg.RefreshInterval)
	s.mu.Unlock()

	s.logger.Info("Scheduler started",
		"refresh_interval", cfg.RefreshInterval,
		"tracked_accounts", len(s.accounts))

	go s.loop(ctx)
}

// Stop halts the refresh loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	s.isRunning = false
	s.ticker.Stop()
	close(s.stopChan)

	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		select {
		case <-s.ticker.C:
			s.RefreshAll(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled")
			return
		}
	}
}

// RefreshAll collects every tracked account once, sequentially, caching
// each result. Per-account failures are logged and do not stop the
// remaining accounts.
func (s *Scheduler) RefreshAll(ctx context.Context) {
	for _, account := range s.accounts {
		result, err := s.collector.CollectAll(ctx, account.ResourceID, account.Owner)
		if err != nil {
			s.logger.Error("Scheduled collection failed",
				"account", account.Owner,
				"error", err)
			continue
		}

		if err := s.cache.Put(account.Owner, *result); err != nil {
			s.logger.Error("Failed to cache scheduled collection",
				"account", account.Owner,
				"error", err)
			continue
		}

		s.logger.Info("Scheduled refresh completed",
			"account", account.Owner,
			"records", len(result.Records),
			"has_more_data", result.Metadata.HasMoreData)
	}
}
