// ABOUTME: Scored eviction policy for the cache store
// ABOUTME: Scores entries by recency, volume, span, engagement; keeps top fraction

package service

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"post-collector/models"
)

// Score normalization constants. An entry earns up to one recency point
// (linear decay to zero at 24h) plus volume, span, and engagement
// points scaled by these divisors.
const (
	recencyDecayHours = 24.0
	volumeDivisor     = 1000.0
	spanDivisor       = 365.0
	engagementDivisor = 10000.0
)

// EvictionPolicy discards the lowest-scoring fraction of cache entries.
type EvictionPolicy struct {
	keepFraction float64
	logger       *slog.Logger
	now          func() time.Time
}

// NewEvictionPolicy creates a policy keeping the given fraction per pass.
func NewEvictionPolicy(keepFraction float64, logger *slog.Logger) *EvictionPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	if keepFraction <= 0 || keepFraction > 1 {
		keepFraction = 0.7
	}

	return &EvictionPolicy{
		keepFraction: keepFraction,
		logger:       logger,
		now:          time.Now,
	}
}

// Score rates one entry. Higher is more valuable.
func (p *EvictionPolicy) Score(entry models.CacheEntry) float64 {
	hoursSince := p.now().Sub(entry.CollectedAt).Hours()
	recency := math.Max(0, 1-hoursSince/recencyDecayHours)

	return recency +
		float64(entry.RecordCount)/volumeDivisor +
		float64(entry.TimeSpanDays)/spanDivisor +
		float64(entry.TotalEngagement)/engagementDivisor
}

// Apply performs one eviction pass: entries are sorted descending by
// score and the top ceil(keepFraction*n) survive. With three or fewer
// entries a single pass keeps everything; the store's budget loop
// handles forcing progress in that case.
func (p *EvictionPolicy) Apply(entries map[string]models.CacheEntry) map[string]models.CacheEntry {
	keep := int(math.Ceil(p.keepFraction * float64(len(entries))))
	if keep >= len(entries) {
		return entries
	}

	ranked := p.rank(entries)
	survivors := make(map[string]models.CacheEntry, keep)
	for _, key := range ranked[:keep] {
		survivors[key] = entries[key]
	}

	p.logger.Info("Cache entries evicted",
		"before", len(entries),
		"after", len(survivors))

	return survivors
}

// DropLowest removes the single lowest-scoring entry. Used by the store
// when a scoring pass cannot make progress against the byte budget.
func (p *EvictionPolicy) DropLowest(entries map[string]models.CacheEntry) map[string]models.CacheEntry {
	if len(entries) <= 1 {
		return entries
	}

	ranked := p.rank(entries)
	lowest := ranked[len(ranked)-1]

	survivors := make(map[string]models.CacheEntry, len(entries)-1)
	for key, entry := range entries {
		if key != lowest {
			survivors[key] = entry
		}
	}

	p.logger.Info("Lowest-scoring cache entry dropped", "key", lowest)

	return survivors
}

// rank returns entry keys sorted by descending score, key ascending on
// ties so eviction is deterministic.
func (p *EvictionPolicy) rank(entries map[string]models.CacheEntry) []string {
	keys := make([]string, 0, len(entries))
	scores := make(map[string]float64, len(entries))
	for key, entry := range entries {
		keys = append(keys, key)
		scores[key] = p.Score(entry)
	}

	sort.Slice(keys, func(i, j int) bool {
		if scores[keys[i]] != scores[keys[j]] {
			return scores[keys[i]] > scores[keys[j]]
		}
		return keys[i] < keys[j]
	})

	return keys
}
