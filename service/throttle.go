// ABOUTME: Fixed-window throttle gate shared by all collection flows
// ABOUTME: Acquire suspends the caller when the window quota is exhausted

package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ThrottleGate enforces a request quota within a rolling fixed window.
// One instance is shared by every concurrent collection flow; the
// window counters are guarded by a mutex and the gate never sleeps
// while holding it.
type ThrottleGate struct {
	maxRequests  int
	window       time.Duration
	safetyMargin time.Duration
	logger       *slog.Logger

	mu          sync.Mutex
	windowStart time.Time
	count       int

	// Injectable for tests, per the clock collaborator contract.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// GateStatus is a point-in-time read of the gate.
type GateStatus struct {
	Used          int           `json:"used"`
	Remaining     int           `json:"remaining"`
	WindowElapsed time.Duration `json:"window_elapsed"`
	CanProceed    bool          `json:"can_proceed"`
}

// NewThrottleGate creates a gate allowing maxRequests per window.
func NewThrottleGate(maxRequests int, window time.Duration, logger *slog.Logger) *ThrottleGate {
	if logger == nil {
		logger = slog.Default()
	}

	return &ThrottleGate{
		maxRequests:  maxRequests,
		window:       window,
		safetyMargin: 1 * time.Second,
		logger:       logger,
		now:          time.Now,
		sleep:        sleepContext,
	}
}

// Acquire blocks until a request slot is available and records the
// usage. It only fails when the context is cancelled; otherwise it can
// delay but not error.
func (g *ThrottleGate) Acquire(ctx context.Context) error {
	for {
		g.mu.Lock()
		now := g.now()

		if g.windowStart.IsZero() {
			g.windowStart = now
		}
		if now.Sub(g.windowStart) >= g.window {
			g.count = 0
			g.windowStart = now
		}

		if g.count < g.maxRequests {
			g.count++
			used := g.count
			g.mu.Unlock()
			g.logger.Debug("Request slot acquired",
				"used", used,
				"max_requests", g.maxRequests)
			return nil
		}

		wait := g.window - now.Sub(g.windowStart) + g.safetyMargin
		g.mu.Unlock()

		g.logger.Info("Request window exhausted, waiting for rollover",
			"max_requests", g.maxRequests,
			"wait", wait)

		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Status returns the current window state without mutating it. A gate
// whose window has lapsed reports as fresh even though the reset itself
// happens on the next Acquire.
func (g *ThrottleGate) Status() GateStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if g.windowStart.IsZero() || now.Sub(g.windowStart) >= g.window {
		return GateStatus{
			Used:       0,
			Remaining:  g.maxRequests,
			CanProceed: true,
		}
	}

	return GateStatus{
		Used:          g.count,
		Remaining:     g.maxRequests - g.count,
		WindowElapsed: now.Sub(g.windowStart),
		CanProceed:    g.count < g.maxRequests,
	}
}

// sleepContext waits for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
