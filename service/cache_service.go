// ABOUTME: Size-budgeted cache store for collection results
// ABOUTME: One serialized snapshot per store; eviction runs before any over-budget commit

package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"post-collector/models"
	"post-collector/repository"
)

// storageKey is the single key the snapshot is persisted under.
const storageKey = "post_collector_cache_v1"

// CacheStore persists one CollectionResult per normalized account key
// inside a size-bounded client-side storage backend. All operations are
// serialized by one mutex so the check-evict-commit sequence of Put is
// atomic with respect to other writers.
type CacheStore struct {
	mu       sync.Mutex
	storage  repository.KVStorage
	policy   *EvictionPolicy
	maxBytes int
	duration time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewCacheStore creates a cache store with the given byte budget and
// entry lifetime.
func NewCacheStore(
	storage repository.KVStorage,
	policy *EvictionPolicy,
	maxBytes int,
	duration time.Duration,
	logger *slog.Logger,
) *CacheStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &CacheStore{
		storage:  storage,
		policy:   policy,
		maxBytes: maxBytes,
		duration: duration,
		logger:   logger,
		now:      time.Now,
	}
}

// Put upserts the result under the normalized key, evicts until the
// serialized snapshot fits the byte budget, and commits with a fresh
// expiry.
func (s *CacheStore) Put(key string, result models.CollectionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	snapshot := s.loadLocked()
	if snapshot == nil || s.expired(snapshot, now) {
		snapshot = models.NewCacheSnapshot()
	}

	normalized := normalizeAccountKey(key)
	snapshot.Entries[normalized] = models.NewCacheEntry(normalized, result, now)
	snapshot.LastUpdated = now
	snapshot.ExpiresAt = now.Add(s.duration)
	snapshot.RecomputeTotals()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize cache snapshot: %w", err)
	}

	// Evict before committing whenever the snapshot is over budget. A
	// scoring pass that keeps everything (three entries or fewer) falls
	// back to dropping the lowest scorer so the loop always progresses.
	// A single entry larger than the whole budget still commits.
	for len(data) > s.maxBytes && len(snapshot.Entries) > 1 {
		before := len(snapshot.Entries)
		snapshot.Entries = s.policy.Apply(snapshot.Entries)
		if len(snapshot.Entries) == before {
			snapshot.Entries = s.policy.DropLowest(snapshot.Entries)
		}
		if len(snapshot.Entries) == before {
			break
		}
		snapshot.RecomputeTotals()
		if data, err = json.Marshal(snapshot); err != nil {
			return fmt.Errorf("failed to serialize cache snapshot: %w", err)
		}
	}

	// The backend may still refuse the write; recover by shedding more
	// entries until it fits or only one remains.
	for {
		writeErr := s.storage.Write(storageKey, string(data))
		if writeErr == nil {
			break
		}
		if !errors.Is(writeErr, repository.ErrQuotaExceeded) || len(snapshot.Entries) <= 1 {
			return fmt.Errorf("failed to persist cache snapshot: %w", writeErr)
		}
		s.logger.Warn("Storage quota exceeded, evicting further", "entries", len(snapshot.Entries))
		snapshot.Entries = s.policy.DropLowest(snapshot.Entries)
		snapshot.RecomputeTotals()
		if data, err = json.Marshal(snapshot); err != nil {
			return fmt.Errorf("failed to serialize cache snapshot: %w", err)
		}
	}

	s.logger.Debug("Cache entry stored",
		"key", normalized,
		"entries", snapshot.TotalEntries,
		"records", snapshot.TotalRecords,
		"size_bytes", len(data))

	return nil
}

// Get returns the cached result for the key. Absence, expiry, and
// corruption all surface as a miss; expiry and corruption also clear
// the store.
func (s *CacheStore) Get(key string) (*models.CollectionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.loadLocked()
	if snapshot == nil {
		return nil, false
	}
	if s.expired(snapshot, s.now()) {
		s.logger.Info("Cache expired, clearing store", "expired_at", snapshot.ExpiresAt)
		s.clearLocked()
		return nil, false
	}

	entry, ok := snapshot.Entries[normalizeAccountKey(key)]
	if !ok {
		return nil, false
	}

	result := entry.Result
	return &result, true
}

// GetAll returns the full snapshot, subject to the same expiry and
// corruption handling as Get.
func (s *CacheStore) GetAll() (*models.CacheSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.loadLocked()
	if snapshot == nil {
		return nil, false
	}
	if s.expired(snapshot, s.now()) {
		s.logger.Info("Cache expired, clearing store", "expired_at", snapshot.ExpiresAt)
		s.clearLocked()
		return nil, false
	}

	return snapshot, true
}

// Clear removes all persisted state. Storage errors are logged and
// swallowed; Clear never fails.
func (s *CacheStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// Stats reports the monitoring view of the store.
func (s *CacheStore) Stats() models.CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.storage.Read(storageKey)
	if err != nil {
		return models.CacheStats{}
	}

	var snapshot models.CacheSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return models.CacheStats{SizeBytes: len(raw)}
	}

	return models.CacheStats{
		IsValid:      !s.expired(&snapshot, s.now()),
		TotalEntries: snapshot.TotalEntries,
		TotalRecords: snapshot.TotalRecords,
		SizeBytes:    len(raw),
		LastUpdated:  snapshot.LastUpdated,
	}
}

// loadLocked reads and deserializes the snapshot. A deserialization
// failure is treated as corruption: the store is cleared and callers
// see a miss.
func (s *CacheStore) loadLocked() *models.CacheSnapshot {
	raw, err := s.storage.Read(storageKey)
	if err != nil {
		if !errors.Is(err, repository.ErrKeyNotFound) {
			s.logger.Warn("Cache read failed, treating as empty", "error", err)
		}
		return nil
	}

	var snapshot models.CacheSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		s.logger.Warn("Cache snapshot corrupted, clearing store", "error", err)
		s.clearLocked()
		return nil
	}
	if snapshot.Entries == nil {
		snapshot.Entries = make(map[string]models.CacheEntry)
	}

	return &snapshot
}

func (s *CacheStore) clearLocked() {
	if err := s.storage.Remove(storageKey); err != nil {
		s.logger.Warn("Failed to clear cache storage", "error", err)
	}
}

func (s *CacheStore) expired(snapshot *models.CacheSnapshot, now time.Time) bool {
	return !snapshot.ExpiresAt.IsZero() && now.After(snapshot.ExpiresAt)
}
