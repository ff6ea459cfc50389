package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_ReadWriteRemove(t *testing.T) {
	storage := NewMemoryStorage(0)

	_, err := storage.Read("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, storage.Write("k", "v1"))
	value, err := storage.Read("k")
	require.NoError(t, err)
	assert.Equal(t, "v1", value)

	require.NoError(t, storage.Write("k", "v2"))
	value, _ = storage.Read("k")
	assert.Equal(t, "v2", value)

	require.NoError(t, storage.Remove("k"))
	_, err = storage.Read("k")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// Removing an absent key is not an error.
	assert.NoError(t, storage.Remove("k"))
}

func TestMemoryStorage_Quota(t *testing.T) {
	storage := NewMemoryStorage(10)

	require.NoError(t, storage.Write("a", strings.Repeat("x", 6)))

	err := storage.Write("b", strings.Repeat("y", 6))
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// Overwriting an existing key only counts the new value.
	assert.NoError(t, storage.Write("a", strings.Repeat("z", 10)))

	assert.Equal(t, 10, storage.SizeBytes())
}

func TestMemoryStorage_ZeroQuotaIsUnbounded(t *testing.T) {
	storage := NewMemoryStorage(0)
	assert.NoError(t, storage.Write("big", strings.Repeat("x", 1<<20)))
}
