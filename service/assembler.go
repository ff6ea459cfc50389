// ABOUTME: Result assembler joining raw page items with resolved media
// ABOUTME: Computes date range, engagement averages, and language histogram once

package service

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"post-collector/driver"
	"post-collector/models"

	"github.com/google/uuid"
)

// Assembler turns accumulated raw items and the media pool into an
// immutable CollectionResult.
type Assembler struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAssembler creates an assembler.
func NewAssembler(logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{logger: logger, now: time.Now}
}

// Assemble merges items with media by key, stamps the collection
// timestamp, and computes metadata and derived stats. Records keep
// page-arrival order; only the date-range computation sorts a copy.
func (a *Assembler) Assemble(
	account string,
	items []driver.PostItem,
	mediaPool []driver.MediaItem,
	errs []string,
	pagesProcessed int,
	hasMoreData bool,
	rateLimitHits int,
) *models.CollectionResult {
	collectedAt := a.now()

	// Media keyed by id for O(1) resolution.
	mediaIndex := make(map[string]driver.MediaItem, len(mediaPool))
	for _, m := range mediaPool {
		mediaIndex[m.MediaKey] = m
	}

	records := make([]models.PostRecord, 0, len(items))
	danglingRefs := 0
	for i := range items {
		record, dangling := a.buildRecord(&items[i], mediaIndex, collectedAt)
		danglingRefs += dangling
		records = append(records, record)
	}

	if danglingRefs > 0 {
		a.logger.Debug("Dropped unresolved media references",
			"account", account,
			"dangling_refs", danglingRefs)
	}

	metadata := a.buildMetadata(account, records, errs, pagesProcessed, hasMoreData, rateLimitHits, collectedAt)
	stats := a.buildStats(records)

	a.logger.Info("Collection result assembled",
		"account", account,
		"records", len(records),
		"pages_processed", pagesProcessed,
		"time_span_days", metadata.TimeSpanDays,
		"has_more_data", hasMoreData,
		"errors", len(errs))

	return &models.CollectionResult{
		Records:  records,
		Metadata: metadata,
		Stats:    stats,
	}
}

// buildRecord converts one raw item, resolving its media keys against
// the pool. Unresolved keys are dropped silently; the dangling count is
// returned for debug logging only.
func (a *Assembler) buildRecord(item *driver.PostItem, mediaIndex map[string]driver.MediaItem, collectedAt time.Time) (models.PostRecord, int) {
	var media []models.MediaRef
	dangling := 0
	for _, key := range item.Attachments.MediaKeys {
		resolved, ok := mediaIndex[key]
		if !ok {
			dangling++
			continue
		}
		media = append(media, models.MediaRef{
			MediaKey: resolved.MediaKey,
			Type:     resolved.Type,
			URL:      resolved.URL,
			Width:    resolved.Width,
			Height:   resolved.Height,
		})
	}

	var refs []models.PostReference
	for _, ref := range item.ReferencedPosts {
		refs = append(refs, models.PostReference{Type: ref.Type, ID: ref.ID})
	}

	return models.PostRecord{
		ID:        item.ID,
		AuthorID:  item.AuthorID,
		CreatedAt: item.GetCreatedTime(),
		Text:      item.Text,
		Metrics: models.EngagementMetrics{
			Likes:       item.PublicMetrics.LikeCount,
			Reposts:     item.PublicMetrics.RepostCount,
			Replies:     item.PublicMetrics.ReplyCount,
			Quotes:      item.PublicMetrics.QuoteCount,
			Impressions: item.PublicMetrics.ImpressionCount,
		},
		Language:    item.Lang,
		Media:       media,
		References:  refs,
		CollectedAt: collectedAt,
	}, dangling
}

func (a *Assembler) buildMetadata(
	account string,
	records []models.PostRecord,
	errs []string,
	pagesProcessed int,
	hasMoreData bool,
	rateLimitHits int,
	collectedAt time.Time,
) models.CollectionMetadata {
	metadata := models.CollectionMetadata{
		RunID:          uuid.New(),
		Account:        account,
		TotalCollected: len(records),
		PagesProcessed: pagesProcessed,
		HasMoreData:    hasMoreData,
		RateLimitHits:  rateLimitHits,
		Errors:         errs,
		Strategy:       models.StrategyPaginatedBackfill,
		CollectedAt:    collectedAt,
	}

	if len(records) == 0 {
		return metadata
	}

	// Sorted copy of creation timestamps; the records slice itself keeps
	// page-arrival order.
	timestamps := make([]time.Time, len(records))
	for i := range records {
		timestamps[i] = records[i].CreatedAt
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })

	oldest := timestamps[0]
	newest := timestamps[len(timestamps)-1]
	metadata.OldestPost = &oldest
	metadata.NewestPost = &newest
	metadata.TimeSpanDays = int(math.Ceil(newest.Sub(oldest).Hours() / 24))

	return metadata
}

func (a *Assembler) buildStats(records []models.PostRecord) models.DerivedStats {
	stats := models.DerivedStats{
		LanguageHistogram: make(map[string]int),
	}
	if len(records) == 0 {
		return stats
	}

	var likes, reposts, replies, engagement, textLength, withMedia int
	for i := range records {
		r := &records[i]
		likes += r.Metrics.Likes
		reposts += r.Metrics.Reposts
		replies += r.Metrics.Replies
		engagement += r.Metrics.Total()
		textLength += len(r.Text)
		if r.HasMedia() {
			withMedia++
		}

		lang := r.Language
		if lang == "" {
			lang = "unknown"
		}
		stats.LanguageHistogram[lang]++
	}

	count := float64(len(records))
	stats.AvgLikes = float64(likes) / count
	stats.AvgReposts = float64(reposts) / count
	stats.AvgReplies = float64(replies) / count
	stats.AvgEngagement = float64(engagement) / count
	stats.AvgTextLength = float64(textLength) / count
	stats.MediaRatioPercent = int(math.Round(float64(withMedia) / count * 100))

	return stats
}
