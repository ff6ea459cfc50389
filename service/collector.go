//go:generate mockgen -source=collector.go -destination=../mocks/collector_mocks.go -package=mocks PageSource

// ABOUTME: Paginated collector orchestrating throttle, retry, and accumulation
// ABOUTME: Partial success always wins: accumulated records are never discarded

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"post-collector/driver"
	"post-collector/models"

	"golang.org/x/sync/singleflight"
)

// PageSource is the upstream paginated record source. driver.PostAPIClient
// implements it.
type PageSource interface {
	FetchPage(ctx context.Context, resourceID, continuationToken string) (*driver.PageResponse, error)
}

// PageEvent describes one processed page boundary.
type PageEvent struct {
	Account       string
	Page          int
	NewRecords    int
	TotalRecords  int
	HasMore       bool
	RateLimitHits int
}

// ProgressObserver receives page-boundary events. Implementations must
// not block; the collector calls them inline.
type ProgressObserver interface {
	OnPage(event PageEvent)
}

// CollectorConfig bounds one collection run.
type CollectorConfig struct {
	MaxPages          int
	TargetRecordCount int
	MaxEmptyPages     int
	MaxAttempts       int
	RateLimitCooldown time.Duration
}

// DefaultCollectorConfig returns the standard run bounds.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		MaxPages:          200,
		TargetRecordCount: 15000,
		MaxEmptyPages:     3,
		MaxAttempts:       2,
		RateLimitCooldown: 60 * time.Second,
	}
}

// Collector pulls every available page for an account through the
// throttle gate and retry policy, accumulating records and media.
// Concurrent CollectAll calls for the same account are collapsed into
// one upstream run.
type Collector struct {
	source    PageSource
	gate      *ThrottleGate
	retry     *RetryPolicy
	assembler *Assembler
	config    CollectorConfig
	observer  ProgressObserver
	logger    *slog.Logger
	group     singleflight.Group
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewCollector creates a collector. A nil observer falls back to a
// slog-backed one.
func NewCollector(
	source PageSource,
	gate *ThrottleGate,
	retry *RetryPolicy,
	assembler *Assembler,
	config CollectorConfig,
	observer ProgressObserver,
	logger *slog.Logger,
) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = NewLogObserver(logger)
	}

	return &Collector{
		source:    source,
		gate:      gate,
		retry:     retry,
		assembler: assembler,
		config:    config,
		observer:  observer,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// CollectAll collects every reachable page of posts for the resource.
// It returns an error only when a fatal failure occurred before any
// record was accumulated; every other outcome is a result, possibly
// partial, with metadata errors populated.
func (c *Collector) CollectAll(ctx context.Context, resourceID, ownerName string) (*models.CollectionResult, error) {
	key := normalizeAccountKey(ownerName)

	value, err, shared := c.group.Do(key, func() (interface{}, error) {
		return c.collect(ctx, resourceID, ownerName)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("Collection shared with concurrent caller", "account", key)
	}

	return value.(*models.CollectionResult), nil
}

// collect runs the page loop. Any panic inside the loop is recorded as
// an error and the run still assembles whatever was accumulated.
func (c *Collector) collect(ctx context.Context, resourceID, ownerName string) (*models.CollectionResult, error) {
	start := time.Now()
	c.logger.Info("Starting collection",
		"account", ownerName,
		"resource_id", resourceID,
		"target_records", c.config.TargetRecordCount,
		"max_pages", c.config.MaxPages)

	var (
		items            []driver.PostItem
		mediaPool        []driver.MediaItem
		errs             []string
		page             int
		nextToken        string
		rateLimitHits    int
		consecutiveEmpty int
		stopRequested    bool
		fatalErr         error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				errs = append(errs, fmt.Sprintf("collection aborted by panic: %v", r))
				c.logger.Error("Collection loop panicked, keeping accumulated records",
					"account", ownerName,
					"records", len(items),
					"panic", r)
			}
		}()

		first := true
		for (first || nextToken != "") && page < c.config.MaxPages && !stopRequested {
			// External cancellation is cooperative: finish with what we have.
			if ctx.Err() != nil {
				errs = append(errs, fmt.Sprintf("collection cancelled: %v", ctx.Err()))
				stopRequested = true
				break
			}

			if err := c.gate.Acquire(ctx); err != nil {
				errs = append(errs, fmt.Sprintf("throttle wait interrupted: %v", err))
				stopRequested = true
				break
			}

			var response *driver.PageResponse
			err := c.retry.Execute(ctx, "fetch_page", c.config.MaxAttempts, func(ctx context.Context) error {
				fetched, fetchErr := c.source.FetchPage(ctx, resourceID, nextToken)
				if fetchErr != nil {
					return fetchErr
				}
				response = fetched
				return nil
			})

			if err != nil {
				if isRateLimitError(err) {
					rateLimitHits++
					if len(items) > 0 {
						c.logger.Warn("Rate limited after retries, keeping collected records",
							"account", ownerName,
							"records", len(items),
							"rate_limit_hits", rateLimitHits)
						stopRequested = true
						break
					}
					// Nothing collected yet: cool down and try again.
					// The failed call does not count as a page.
					c.logger.Warn("Rate limited with no records yet, cooling down",
						"account", ownerName,
						"cooldown", c.config.RateLimitCooldown,
						"rate_limit_hits", rateLimitHits)
					if serr := c.sleep(ctx, c.config.RateLimitCooldown); serr != nil {
						errs = append(errs, fmt.Sprintf("rate limit cooldown interrupted: %v", serr))
						stopRequested = true
						break
					}
					continue
				}

				errs = append(errs, err.Error())
				if len(items) > 0 {
					c.logger.Warn("Page fetch failed, keeping collected records",
						"account", ownerName,
						"records", len(items),
						"error", err)
					stopRequested = true
					break
				}
				fatalErr = err
				break
			}

			// Only a fetched page clears the first-iteration flag, so a
			// cooled-down rate limit before any page re-enters the loop.
			first = false

			newRecords := len(response.Items)
			if newRecords > 0 {
				items = append(items, response.Items...)
				mediaPool = append(mediaPool, response.Includes.Media...)
				consecutiveEmpty = 0
			} else {
				consecutiveEmpty++
				if consecutiveEmpty >= c.config.MaxEmptyPages {
					c.logger.Info("End of history reached",
						"account", ownerName,
						"empty_pages", consecutiveEmpty)
					stopRequested = true
				}
			}

			nextToken = response.Meta.NextToken
			page++

			c.observer.OnPage(PageEvent{
				Account:       ownerName,
				Page:          page,
				NewRecords:    newRecords,
				TotalRecords:  len(items),
				HasMore:       nextToken != "",
				RateLimitHits: rateLimitHits,
			})

			// Target check fires after the page, never mid-page, so a run
			// may overshoot the target by up to one page of records.
			if len(items) >= c.config.TargetRecordCount {
				c.logger.Info("Target record count reached",
					"account", ownerName,
					"records", len(items),
					"target", c.config.TargetRecordCount)
				stopRequested = true
			}
		}
	}()

	if fatalErr != nil && len(items) == 0 {
		c.logger.Error("Collection aborted with no records",
			"account", ownerName,
			"resource_id", resourceID,
			"error", fatalErr)
		return nil, fmt.Errorf("collection for %s aborted with no records: %w", ownerName, fatalErr)
	}

	hasMoreData := nextToken != ""
	result := c.assembler.Assemble(ownerName, items, mediaPool, errs, page, hasMoreData, rateLimitHits)

	c.logger.Info("Collection completed",
		"account", ownerName,
		"records", len(result.Records),
		"pages", page,
		"duration", time.Since(start),
		"rate_limit_hits", rateLimitHits,
		"has_more_data", hasMoreData,
		"errors", len(errs))

	return result, nil
}

// isRateLimitError classifies rate-limit failures, including the
// retry-exhaustion wrapper around one.
func isRateLimitError(err error) bool {
	return errors.Is(err, driver.ErrRateLimited)
}

// normalizeAccountKey canonicalizes an account identifier the same way
// the cache store does.
func normalizeAccountKey(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}
