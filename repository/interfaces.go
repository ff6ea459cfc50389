//go:generate mockgen -source=interfaces.go -destination=../mocks/storage_mocks.go -package=mocks KVStorage

// ABOUTME: This file defines the storage port consumed by the cache store
// ABOUTME: Adapters wrap client-side size-bounded key-value backends

package repository

import "errors"

// Storage layer errors. The cache store recovers from both locally:
// quota errors trigger eviction, everything else on read is treated as
// corruption and clears the store.
var (
	ErrKeyNotFound   = errors.New("storage key not found")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// KVStorage is the client-side key-value storage port. Implementations
// may enforce a byte quota on Write.
type KVStorage interface {
	// Read returns the value for key, or ErrKeyNotFound.
	Read(key string) (string, error)
	// Write stores the value, returning ErrQuotaExceeded when the
	// backend cannot hold it.
	Write(key, value string) error
	// Remove deletes the key. Removing an absent key is not an error.
	Remove(key string) error
}
