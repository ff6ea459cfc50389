// ABOUTME: Classified retry policy wrapping single upstream calls
// ABOUTME: Fatal errors fail fast, rate limits wait fixed, transients back off linearly

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"post-collector/driver"
)

// RetryPolicy decides, per error class, whether a failed upstream call
// is retried and how long to wait before the next attempt.
type RetryPolicy struct {
	baseDelay      time.Duration // linear backoff unit for transient errors
	rateLimitDelay time.Duration // fixed wait after an upstream 429
	logger         *slog.Logger
	sleep          func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy creates a policy with the given delays.
func NewRetryPolicy(baseDelay, rateLimitDelay time.Duration, logger *slog.Logger) *RetryPolicy {
	if logger == nil {
		logger = slog.Default()
	}

	return &RetryPolicy{
		baseDelay:      baseDelay,
		rateLimitDelay: rateLimitDelay,
		logger:         logger,
		sleep:          sleepContext,
	}
}

// Execute runs op up to maxAttempts times. Fatal errors (auth,
// forbidden, not-found) are returned after a single attempt. The
// exhaustion error is annotated with the operation name and attempt
// count and wraps the last error so callers can still classify it.
func (p *RetryPolicy) Execute(ctx context.Context, operation string, maxAttempts int, op func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				p.logger.Info("Operation succeeded after retry",
					"operation", operation,
					"attempt", attempt)
			}
			return nil
		}
		lastErr = err

		if IsFatal(err) {
			p.logger.Error("Operation failed with non-retryable error",
				"operation", operation,
				"attempt", attempt,
				"error", err)
			return err
		}

		if attempt == maxAttempts {
			break
		}

		var delay time.Duration
		if errors.Is(err, driver.ErrRateLimited) {
			delay = p.rateLimitDelay
		} else {
			delay = p.baseDelay * time.Duration(attempt)
		}

		p.logger.Warn("Operation failed, retrying",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"delay", delay,
			"error", err)

		if serr := p.sleep(ctx, delay); serr != nil {
			return serr
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, maxAttempts, lastErr)
}

// IsFatal reports whether the error class forbids retrying.
func IsFatal(err error) bool {
	return errors.Is(err, driver.ErrAuthFailed) ||
		errors.Is(err, driver.ErrForbidden) ||
		errors.Is(err, driver.ErrNotFound)
}
