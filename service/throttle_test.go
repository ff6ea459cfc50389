package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(maxRequests int, window time.Duration) (*ThrottleGate, *time.Time, *[]time.Duration) {
	gate := NewThrottleGate(maxRequests, window, slog.New(slog.NewTextHandler(io.Discard, nil)))

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var slept []time.Duration

	gate.now = func() time.Time { return current }
	gate.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		current = current.Add(d)
		return nil
	}

	return gate, &current, &slept
}

func TestThrottleGate_AcquireWithinQuota(t *testing.T) {
	gate, _, slept := newTestGate(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, gate.Acquire(ctx))
	}

	assert.Empty(t, *slept, "no suspension expected while quota remains")

	status := gate.Status()
	assert.Equal(t, 3, status.Used)
	assert.Equal(t, 0, status.Remaining)
	assert.False(t, status.CanProceed)
}

func TestThrottleGate_SuspendsWhenExhausted(t *testing.T) {
	gate, current, slept := newTestGate(2, time.Minute)
	ctx := context.Background()

	require.NoError(t, gate.Acquire(ctx))
	require.NoError(t, gate.Acquire(ctx))

	// 10s into the window the quota is gone: the third acquire must wait
	// out the remaining 50s plus the safety margin, then take the first
	// slot of the fresh window.
	*current = current.Add(10 * time.Second)
	require.NoError(t, gate.Acquire(ctx))

	require.Len(t, *slept, 1)
	assert.Equal(t, 50*time.Second+gate.safetyMargin, (*slept)[0])

	status := gate.Status()
	assert.Equal(t, 1, status.Used)
	assert.True(t, status.CanProceed)
}

func TestThrottleGate_WindowRollover(t *testing.T) {
	gate, current, slept := newTestGate(2, time.Minute)
	ctx := context.Background()

	require.NoError(t, gate.Acquire(ctx))
	require.NoError(t, gate.Acquire(ctx))

	// After the window lapses the counter resets without any waiting.
	*current = current.Add(61 * time.Second)
	require.NoError(t, gate.Acquire(ctx))

	assert.Empty(t, *slept)
	assert.Equal(t, 1, gate.Status().Used)
}

func TestThrottleGate_RollingWindowInvariant(t *testing.T) {
	gate, _, slept := newTestGate(5, time.Minute)
	ctx := context.Background()

	// 23 acquires against a quota of 5 must suspend on every window
	// boundary; completions per window never exceed the quota.
	for i := 0; i < 23; i++ {
		require.NoError(t, gate.Acquire(ctx))
	}

	assert.Len(t, *slept, 4, "one suspension per exhausted window")
	assert.Equal(t, 3, gate.Status().Used)
}

func TestThrottleGate_StatusDoesNotMutate(t *testing.T) {
	gate, current, _ := newTestGate(2, time.Minute)
	ctx := context.Background()

	require.NoError(t, gate.Acquire(ctx))
	require.NoError(t, gate.Acquire(ctx))

	// A lapsed window reads as fresh, repeatedly, without resetting the
	// stored counters.
	*current = current.Add(2 * time.Minute)
	for i := 0; i < 3; i++ {
		status := gate.Status()
		assert.Equal(t, 0, status.Used)
		assert.True(t, status.CanProceed)
	}
	assert.Equal(t, 2, gate.count, "Status must not touch internal state")
}

func TestThrottleGate_AcquireCancelled(t *testing.T) {
	gate, _, _ := newTestGate(1, time.Minute)
	gate.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, gate.Acquire(ctx))

	cancel()
	err := gate.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestThrottleGate_ConcurrentAcquires(t *testing.T) {
	gate := NewThrottleGate(100, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, gate.Acquire(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, gate.Status().Used)
}
