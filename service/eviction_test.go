package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"post-collector/models"
)

var evictionNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEvictionPolicy(keepFraction float64) *EvictionPolicy {
	policy := NewEvictionPolicy(keepFraction, quietLogger())
	policy.now = func() time.Time { return evictionNow }
	return policy
}

func cacheEntry(key string, age time.Duration, records, spanDays, engagement int) models.CacheEntry {
	return models.CacheEntry{
		Key:             key,
		CollectedAt:     evictionNow.Add(-age),
		RecordCount:     records,
		TimeSpanDays:    spanDays,
		TotalEngagement: engagement,
	}
}

func TestEvictionPolicy_Score(t *testing.T) {
	policy := newTestEvictionPolicy(0.7)

	tests := map[string]struct {
		entry models.CacheEntry
		want  float64
	}{
		"fresh entry earns full recency point": {
			entry: cacheEntry("a", 0, 0, 0, 0),
			want:  1.0,
		},
		"day-old entry has no recency left": {
			entry: cacheEntry("a", 24*time.Hour, 0, 0, 0),
			want:  0.0,
		},
		"recency never goes negative": {
			entry: cacheEntry("a", 72*time.Hour, 0, 0, 0),
			want:  0.0,
		},
		"half-day old": {
			entry: cacheEntry("a", 12*time.Hour, 0, 0, 0),
			want:  0.5,
		},
		"volume component": {
			entry: cacheEntry("a", 24*time.Hour, 500, 0, 0),
			want:  0.5,
		},
		"span component": {
			entry: cacheEntry("a", 24*time.Hour, 0, 365, 0),
			want:  1.0,
		},
		"engagement component": {
			entry: cacheEntry("a", 24*time.Hour, 0, 0, 5000),
			want:  0.5,
		},
		"all components add up": {
			entry: cacheEntry("a", 12*time.Hour, 1000, 365, 10000),
			want:  3.5,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, tt.want, policy.Score(tt.entry), 0.0001)
		})
	}
}

func TestEvictionPolicy_ApplyKeepsSmallSets(t *testing.T) {
	policy := newTestEvictionPolicy(0.7)

	entries := map[string]models.CacheEntry{
		"a": cacheEntry("a", 0, 5, 0, 0),
		"b": cacheEntry("b", 0, 3, 0, 0),
		"c": cacheEntry("c", 0, 1, 0, 0),
	}

	// ceil(0.7 * 3) = 3, so one pass keeps everything.
	survivors := policy.Apply(entries)
	assert.Len(t, survivors, 3)
}

func TestEvictionPolicy_ApplyKeepsTopFraction(t *testing.T) {
	policy := newTestEvictionPolicy(0.7)

	entries := make(map[string]models.CacheEntry, 10)
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("account-%d", i)
		// Record count is the only varying score input, so account-9
		// scores highest and account-0 lowest.
		entries[key] = cacheEntry(key, 24*time.Hour, i*100, 0, 0)
	}

	survivors := policy.Apply(entries)

	require.Len(t, survivors, 7, "ceil(0.7 * 10) = 7")
	for i := 3; i < 10; i++ {
		assert.Contains(t, survivors, fmt.Sprintf("account-%d", i))
	}
	for i := 0; i < 3; i++ {
		assert.NotContains(t, survivors, fmt.Sprintf("account-%d", i))
	}
}

func TestEvictionPolicy_DropLowest(t *testing.T) {
	policy := newTestEvictionPolicy(0.7)

	entries := map[string]models.CacheEntry{
		"high": cacheEntry("high", 0, 900, 0, 0),
		"mid":  cacheEntry("mid", 0, 500, 0, 0),
		"low":  cacheEntry("low", 0, 100, 0, 0),
	}

	survivors := policy.DropLowest(entries)

	assert.Len(t, survivors, 2)
	assert.NotContains(t, survivors, "low")
}

func TestEvictionPolicy_DropLowestSingleEntryNoop(t *testing.T) {
	policy := newTestEvictionPolicy(0.7)

	entries := map[string]models.CacheEntry{
		"only": cacheEntry("only", 0, 1, 0, 0),
	}

	survivors := policy.DropLowest(entries)
	assert.Len(t, survivors, 1)
	assert.Contains(t, survivors, "only")
}

func TestEvictionPolicy_TiesBreakDeterministically(t *testing.T) {
	policy := newTestEvictionPolicy(0.7)

	entries := map[string]models.CacheEntry{
		"a": cacheEntry("a", 0, 100, 0, 0),
		"b": cacheEntry("b", 0, 100, 0, 0),
	}

	// Equal scores rank by key ascending, so "b" is the lowest.
	for i := 0; i < 5; i++ {
		survivors := policy.DropLowest(entries)
		assert.Contains(t, survivors, "a")
		assert.NotContains(t, survivors, "b")
	}
}

func TestNewEvictionPolicy_InvalidFractionFallsBack(t *testing.T) {
	for _, fraction := range []float64{0, -0.5, 1.5} {
		policy := NewEvictionPolicy(fraction, quietLogger())
		assert.Equal(t, 0.7, policy.keepFraction)
	}
}
