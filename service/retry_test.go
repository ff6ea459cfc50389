package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"post-collector/driver"
)

func newTestRetryPolicy() (*RetryPolicy, *[]time.Duration) {
	policy := NewRetryPolicy(2*time.Second, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var slept []time.Duration
	policy.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	return policy, &slept
}

func TestRetryPolicy_Execute(t *testing.T) {
	tests := map[string]struct {
		maxAttempts   int
		errs          []error // nil entry means the attempt succeeds
		wantCalls     int
		wantDelays    []time.Duration
		wantErr       bool
		wantErrIs     error
		wantErrSubstr string
	}{
		"succeeds on first attempt": {
			maxAttempts: 3,
			errs:        []error{nil},
			wantCalls:   1,
		},
		"transient error recovers on second attempt": {
			maxAttempts: 3,
			errs:        []error{driver.ErrTemporaryFailure, nil},
			wantCalls:   2,
			wantDelays:  []time.Duration{2 * time.Second},
		},
		"transient errors back off linearly until exhaustion": {
			maxAttempts:   3,
			errs:          []error{driver.ErrTemporaryFailure, driver.ErrTemporaryFailure, driver.ErrTemporaryFailure},
			wantCalls:     3,
			wantDelays:    []time.Duration{2 * time.Second, 4 * time.Second},
			wantErr:       true,
			wantErrIs:     driver.ErrTemporaryFailure,
			wantErrSubstr: "fetch page failed after 3 attempts",
		},
		"rate limit waits the fixed delay": {
			maxAttempts: 2,
			errs:        []error{driver.ErrRateLimited, nil},
			wantCalls:   2,
			wantDelays:  []time.Duration{5 * time.Second},
		},
		"auth failure is not retried": {
			maxAttempts: 3,
			errs:        []error{driver.ErrAuthFailed},
			wantCalls:   1,
			wantErr:     true,
			wantErrIs:   driver.ErrAuthFailed,
		},
		"forbidden is not retried": {
			maxAttempts: 3,
			errs:        []error{driver.ErrForbidden},
			wantCalls:   1,
			wantErr:     true,
			wantErrIs:   driver.ErrForbidden,
		},
		"not found is not retried": {
			maxAttempts: 3,
			errs:        []error{driver.ErrNotFound},
			wantCalls:   1,
			wantErr:     true,
			wantErrIs:   driver.ErrNotFound,
		},
		"zero max attempts still runs once": {
			maxAttempts: 0,
			errs:        []error{nil},
			wantCalls:   1,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			policy, slept := newTestRetryPolicy()

			calls := 0
			err := policy.Execute(context.Background(), "fetch page", tt.maxAttempts, func(_ context.Context) error {
				e := tt.errs[calls]
				calls++
				return e
			})

			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantDelays, *slept)

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
			}
			if tt.wantErrSubstr != "" {
				assert.Contains(t, err.Error(), tt.wantErrSubstr)
			}
		})
	}
}

func TestRetryPolicy_ExecuteCancelledDuringBackoff(t *testing.T) {
	policy, _ := newTestRetryPolicy()
	policy.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	calls := 0
	err := policy.Execute(context.Background(), "fetch page", 3, func(_ context.Context) error {
		calls++
		return driver.ErrTemporaryFailure
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "cancellation during backoff must not trigger another attempt")
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(driver.ErrAuthFailed))
	assert.True(t, IsFatal(driver.ErrForbidden))
	assert.True(t, IsFatal(driver.ErrNotFound))
	assert.False(t, IsFatal(driver.ErrRateLimited))
	assert.False(t, IsFatal(driver.ErrTemporaryFailure))
	assert.False(t, IsFatal(errors.New("something else")))
}
