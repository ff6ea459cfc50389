// ABOUTME: In-memory KVStorage adapter with optional byte quota
// ABOUTME: Used for tests and for single-session (non-persistent) deployments

package repository

import (
	"fmt"
	"sync"
)

// MemoryStorage is a mutex-guarded in-memory key-value store. A quota of
// zero means unbounded.
type MemoryStorage struct {
	mu       sync.RWMutex
	values   map[string]string
	maxBytes int
}

// NewMemoryStorage creates an in-memory storage with the given byte quota.
func NewMemoryStorage(maxBytes int) *MemoryStorage {
	return &MemoryStorage{
		values:   make(map[string]string),
		maxBytes: maxBytes,
	}
}

// Read returns the stored value or ErrKeyNotFound.
func (s *MemoryStorage) Read(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return value, nil
}

// Write stores the value, enforcing the byte quota across all keys.
func (s *MemoryStorage) Write(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxBytes > 0 {
		total := len(value)
		for k, v := range s.values {
			if k == key {
				continue
			}
			total += len(v)
		}
		if total > s.maxBytes {
			return fmt.Errorf("%w: %d bytes over %d budget", ErrQuotaExceeded, total, s.maxBytes)
		}
	}

	s.values[key] = value
	return nil
}

// Remove deletes the key. Absent keys are ignored.
func (s *MemoryStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

// SizeBytes returns the total stored byte count, for monitoring.
func (s *MemoryStorage) SizeBytes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, v := range s.values {
		total += len(v)
	}
	return total
}
