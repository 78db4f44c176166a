package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoragePutGetRoundTrip(t *testing.T) {
	s, err := NewStorage("", 0, 0)
	require.NoError(t, err)

	id, err := s.Put([]byte("hello"))
	require.NoError(t, err)

	data, ok, err := s.Get(id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("hello"), data)
}

func TestStoragePutTooLarge(t *testing.T) {
	s, err := NewStorage("", 4, 0)
	require.NoError(t, err)

	_, err = s.Put([]byte("too big"))
	require.Error(t, err)
	var tooLarge *ErrObjectTooLarge
	assert.ErrorAs(t, err, &tooLarge)
}

func TestStorageEvictIdempotent(t *testing.T) {
	s, err := NewStorage("", 0, 0)
	require.NoError(t, err)

	id, err := s.Put([]byte("data"))
	require.NoError(t, err)
	assert.True(t, s.Exists(id))

	require.NoError(t, s.Evict(id))
	assert.False(t, s.Exists(id))
	require.NoError(t, s.Evict(id))
}

func TestStorageSpillsOldestFirstWhenOverBudget(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStorage(dir, 0, 5)
	require.NoError(t, err)

	idA, err := s.Put([]byte("aaaaa"))
	require.NoError(t, err)
	idB, err := s.Put([]byte("bbbbb"))
	require.NoError(t, err)

	// Putting B pushes usedBytes over maxTotal, spilling A (the oldest) to
	// disk; both remain readable either way.
	s.mu.Lock()
	_, aOnDisk := s.onDisk[idA]
	_, bInMemory := s.memory[idB]
	s.mu.Unlock()
	assert.True(t, aOnDisk, "the oldest object should have been spilled to disk")
	assert.True(t, bInMemory, "the newest object should still be in memory")

	dataA, ok, err := s.Get(idA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("aaaaa"), dataA)

	dataB, ok, err := s.Get(idB)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("bbbbb"), dataB)
}
