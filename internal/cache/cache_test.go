package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errAbsent = errors.New("absent")

func put(t *testing.T, c *LRU, scope, key string, v interface{}) {
	t.Helper()
	_, err := c.Get(scope, key, func() (interface{}, error) { return v, nil })
	require.NoError(t, err)
}

// cached reads an entry without loading anything on a miss.
func cached(t *testing.T, c *LRU, scope, key string) (interface{}, bool) {
	t.Helper()
	v, err := c.Get(scope, key, func() (interface{}, error) { return nil, errAbsent })
	if errors.Is(err, errAbsent) {
		return nil, false
	}
	require.NoError(t, err)
	return v, true
}

func TestLRU_ReadThrough(t *testing.T) {
	c, err := NewLRU(8)
	require.NoError(t, err)

	calls := 0
	load := func() (interface{}, error) {
		calls++
		return "value", nil
	}

	v, err := c.Get("Sheet1", "A1", load)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	v, err = c.Get("Sheet1", "A1", load)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.Equal(t, 1, calls, "second read should hit the cache")

	assert.Equal(t, Stats{Entries: 1, Hits: 1, Misses: 1}, c.Stats())
}

func TestLRU_FailedLoadNotCached(t *testing.T) {
	c, err := NewLRU(8)
	require.NoError(t, err)

	_, err = c.Get("s", "k", func() (interface{}, error) { return nil, errors.New("boom") })
	assert.Error(t, err)
	assert.Equal(t, 0, c.Stats().Entries)

	_, ok := cached(t, c, "s", "k")
	assert.False(t, ok)
}

func TestLRU_Invalidate(t *testing.T) {
	c, err := NewLRU(8)
	require.NoError(t, err)

	put(t, c, "Sheet1", "A1", 1)
	put(t, c, "Sheet1", "A2", 2)
	put(t, c, "Sheet2", "A1", 3)

	c.Invalidate("Sheet1", "A1")
	_, ok := cached(t, c, "Sheet1", "A1")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Stats().Entries)

	c.InvalidateScope("Sheet1")
	_, ok = cached(t, c, "Sheet1", "A2")
	assert.False(t, ok)

	v, ok := cached(t, c, "Sheet2", "A1")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	c.Purge()
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestLRU_SameKeyDifferentScope(t *testing.T) {
	c, err := NewLRU(8)
	require.NoError(t, err)

	put(t, c, "a", "x", 1)
	put(t, c, "b", "x", 2)

	v, _ := cached(t, c, "a", "x")
	assert.Equal(t, 1, v)
	v, _ = cached(t, c, "b", "x")
	assert.Equal(t, 2, v)
}

func TestLRU_Eviction(t *testing.T) {
	c, err := NewLRU(2)
	require.NoError(t, err)

	put(t, c, "s", "1", 1)
	put(t, c, "s", "2", 2)
	put(t, c, "s", "3", 3)

	assert.Equal(t, 2, c.Stats().Entries)
	_, ok := cached(t, c, "s", "1")
	assert.False(t, ok, "oldest entry should be evicted")
}

func TestNewLRU_InvalidSize(t *testing.T) {
	_, err := NewLRU(0)
	assert.Error(t, err)
}
