// ABOUTME: This file defines the outcome models of one collection run
// ABOUTME: Metadata and derived stats are computed once and immutable afterwards

package models

import (
	"time"

	"github.com/google/uuid"
)

// StrategyPaginatedBackfill is the fixed strategy label stamped into the
// metadata of every run produced by the paginated collector.
const StrategyPaginatedBackfill = "paginated_backfill"

// CollectionMetadata summarizes one collection run.
type CollectionMetadata struct {
	RunID          uuid.UUID  `json:"run_id"`
	Account        string     `json:"account"`
	TotalCollected int        `json:"total_collected"`
	PagesProcessed int        `json:"pages_processed"`
	OldestPost     *time.Time `json:"oldest_post,omitempty"`
	NewestPost     *time.Time `json:"newest_post,omitempty"`
	TimeSpanDays   int        `json:"time_span_days"`
	HasMoreData    bool       `json:"has_more_data"`
	RateLimitHits  int        `json:"rate_limit_hits"`
	Errors         []string   `json:"errors,omitempty"`
	Strategy       string     `json:"strategy"`
	CollectedAt    time.Time  `json:"collected_at"`
}

// IsPartial reports whether the run ended with recorded errors or with
// upstream pages still unread. Callers decide whether to re-collect.
func (m *CollectionMetadata) IsPartial() bool {
	return len(m.Errors) > 0 || m.HasMoreData
}

// DerivedStats holds aggregate metrics computed once from a finished
// record set.
type DerivedStats struct {
	AvgLikes          float64        `json:"avg_likes"`
	AvgReposts        float64        `json:"avg_reposts"`
	AvgReplies        float64        `json:"avg_replies"`
	AvgEngagement     float64        `json:"avg_engagement"`
	MediaRatioPercent int            `json:"media_ratio_percent"`
	AvgTextLength     float64        `json:"avg_text_length"`
	LanguageHistogram map[string]int `json:"language_histogram"`
}

// CollectionResult is the complete output of one collection run.
type CollectionResult struct {
	Records  []PostRecord       `json:"records"`
	Metadata CollectionMetadata `json:"metadata"`
	Stats    DerivedStats       `json:"stats"`
}

// TotalEngagement sums the engagement of every record in the result.
func (r *CollectionResult) TotalEngagement() int {
	total := 0
	for i := range r.Records {
		total += r.Records[i].Metrics.Total()
	}
	return total
}
