// ABOUTME: Default slog-backed progress observer for the collector
// ABOUTME: Keeps page-boundary logging out of the collection algorithm

package service

import "log/slog"

// LogObserver logs page events through slog. It is the default observer
// wired into the collector when none is provided.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates a LogObserver.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

// OnPage logs one processed page boundary.
func (o *LogObserver) OnPage(event PageEvent) {
	o.logger.Info("Page processed",
		"account", event.Account,
		"page", event.Page,
		"new_records", event.NewRecords,
		"total_records", event.TotalRecords,
		"has_more", event.HasMore,
		"rate_limit_hits", event.RateLimitHits)
}
