package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"auditgraph/internal/store"
)

// memStore is an in-memory overflow store that counts reads, so tests
// can observe whether the membership filter short-circuited a lookup.
type memStore struct {
	data map[string][]byte
	gets int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Put(key string, value []byte) error {
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *memStore) Get(key string) ([]byte, error) {
	s.gets++
	value, ok := s.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return value, nil
}

func (s *memStore) Delete(key string) error {
	delete(s.data, key)
	return nil
}

func (s *memStore) Close() error { return nil }

func TestPutGetRoundTrip(t *testing.T) {
	backing := newMemStore()
	c, err := New[string](Options{MaxEntries: 8}, backing)
	require.NoError(t, err)

	require.NoError(t, c.Put("k", "v"))
	got, ok, err := c.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", got)
}

func TestEvictionSpillsAndPromotes(t *testing.T) {
	backing := newMemStore()
	c, err := New[int](Options{MaxEntries: 2}, backing)
	require.NoError(t, err)

	require.NoError(t, c.Put("a", 1))
	require.NoError(t, c.Put("b", 2))
	require.NoError(t, c.Put("c", 3))

	// The oldest entry left memory but not the map.
	require.Equal(t, 2, c.Len())
	require.Len(t, backing.data, 1)

	got, ok, err := c.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, got)

	// Promotion removes the overflow copy; the displaced entry spills.
	got, ok, err = c.Get("b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, got)
}

func TestFilterSkipsStoreForUnseenKeys(t *testing.T) {
	backing := newMemStore()
	c, err := New[string](Options{MaxEntries: 2}, backing)
	require.NoError(t, err)

	_, ok, err := c.Get("never-written")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 0, backing.gets)
}

func TestFlushSpillsResidentEntries(t *testing.T) {
	backing := newMemStore()
	c, err := New[int](Options{MaxEntries: 4}, backing)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, c.Put(fmt.Sprintf("k%d", i), i))
	}
	require.NoError(t, c.Flush())
	require.Len(t, backing.data, 4)
	// Entries stay resident; flush only mirrors them.
	require.Equal(t, 4, c.Len())
}

func TestRemoveDropsBothTiers(t *testing.T) {
	backing := newMemStore()
	c, err := New[int](Options{MaxEntries: 1}, backing)
	require.NoError(t, err)

	require.NoError(t, c.Put("a", 1))
	require.NoError(t, c.Put("b", 2))
	require.NoError(t, c.Remove("a"))

	_, ok, err := c.Get("a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFilterRoundTrip(t *testing.T) {
	backing := newMemStore()
	c, err := New[string](Options{MaxEntries: 2}, backing)
	require.NoError(t, err)
	require.NoError(t, c.Put("k", "v"))
	require.NoError(t, c.Flush())

	data, err := c.FilterBytes()
	require.NoError(t, err)

	// A fresh cache over the same backing store stands in for a restart.
	fresh, err := New[string](Options{MaxEntries: 2}, backing)
	require.NoError(t, err)
	require.NoError(t, fresh.RestoreFilter(data, c.HashName()))

	// The restored filter must still answer "present" for a key written
	// before the save, letting the lookup reach the backing store.
	got, ok, err := fresh.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", got)
	require.Greater(t, backing.gets, 0)
}

func TestRestoreFilterRejectsHashMismatch(t *testing.T) {
	c, err := New[string](Options{MaxEntries: 2, HashName: "fnv1a"}, newMemStore())
	require.NoError(t, err)

	data, err := c.FilterBytes()
	require.NoError(t, err)
	require.Error(t, c.RestoreFilter(data, "sha256"))
}

func TestHasherSelection(t *testing.T) {
	for _, name := range []string{"", "fnv1a", "md5", "sha256"} {
		_, err := New[string](Options{MaxEntries: 1, HashName: name}, newMemStore())
		require.NoError(t, err, "hash %q", name)
	}
	_, err := New[string](Options{MaxEntries: 1, HashName: "crc32"}, newMemStore())
	require.Error(t, err)
}
