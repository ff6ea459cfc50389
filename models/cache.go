// ABOUTME: This file defines the persisted cache entry and store snapshot models
// ABOUTME: Score-relevant fields are denormalized so eviction never walks records

package models

import "time"

// CacheEntry is one cached collection result keyed by normalized account.
// The score-relevant fields are copied out of the result at put time.
type CacheEntry struct {
	Key             string           `json:"key"`
	Result          CollectionResult `json:"result"`
	CollectedAt     time.Time        `json:"collected_at"`
	RecordCount     int              `json:"record_count"`
	TimeSpanDays    int              `json:"time_span_days"`
	TotalEngagement int              `json:"total_engagement"`
}

// NewCacheEntry builds an entry for the given normalized key. The
// collection timestamp falls back to now when the result carries none.
func NewCacheEntry(key string, result CollectionResult, now time.Time) CacheEntry {
	collectedAt := result.Metadata.CollectedAt
	if collectedAt.IsZero() {
		collectedAt = now
	}

	return CacheEntry{
		Key:             key,
		Result:          result,
		CollectedAt:     collectedAt,
		RecordCount:     len(result.Records),
		TimeSpanDays:    result.Metadata.TimeSpanDays,
		TotalEngagement: result.TotalEngagement(),
	}
}

// CacheSnapshot is the full persisted state of the cache store.
type CacheSnapshot struct {
	Entries      map[string]CacheEntry `json:"entries"`
	TotalEntries int                   `json:"total_entries"`
	TotalRecords int                   `json:"total_records"`
	LastUpdated  time.Time             `json:"last_updated"`
	ExpiresAt    time.Time             `json:"expires_at"`
}

// NewCacheSnapshot returns an empty snapshot ready for entries.
func NewCacheSnapshot() *CacheSnapshot {
	return &CacheSnapshot{
		Entries: make(map[string]CacheEntry),
	}
}

// RecomputeTotals refreshes the aggregate counters from the entry set.
func (s *CacheSnapshot) RecomputeTotals() {
	s.TotalEntries = len(s.Entries)
	s.TotalRecords = 0
	for _, entry := range s.Entries {
		s.TotalRecords += entry.RecordCount
	}
}

// CacheStats is the monitoring view of the store.
type CacheStats struct {
	IsValid      bool      `json:"is_valid"`
	TotalEntries int       `json:"total_entries"`
	TotalRecords int       `json:"total_records"`
	SizeBytes    int       `json:"size_bytes"`
	LastUpdated  time.Time `json:"last_updated"`
}
