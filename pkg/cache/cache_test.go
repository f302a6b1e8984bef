package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	k1 := Key("/usr/bin/sort", "[3, 1, 2]")
	k2 := Key("/usr/bin/sort", "[3, 1, 2]")
	k3 := Key("/usr/bin/other", "[3, 1, 2]")
	k4 := Key("/usr/bin/sort", "[1, 2, 3]")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.NotEqual(t, k1, k4)

	// Program path and candidate text must not collide via concatenation
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	defer c.Close()

	_, found, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "k1", 12345))

	score, found, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(12345), score)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Entries)
}

func TestMemoryCacheFirstSeenAuthoritative(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k1", 12345))
	require.NoError(t, c.Set(ctx, "k1", 99999))

	score, found, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(12345), score)
}

func TestMemoryCacheEviction(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(3)
	defer c.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), int64(i)))
	}

	// Touch k0 so it becomes most recently used
	_, found, _ := c.Get(ctx, "k0")
	require.True(t, found)

	// Adding a fourth entry evicts the least recently used (k1)
	require.NoError(t, c.Set(ctx, "k3", 3))

	_, found, _ = c.Get(ctx, "k1")
	assert.False(t, found)
	_, found, _ = c.Get(ctx, "k0")
	assert.True(t, found)
	_, found, _ = c.Get(ctx, "k3")
	assert.True(t, found)
}

func TestSQLiteCache(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "measurements.db")

	c, err := NewSQLiteCache(path)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "k1", 987654))

	score, found, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(987654), score)

	// First-seen score is authoritative; re-setting is a no-op
	require.NoError(t, c.Set(ctx, "k1", 111))
	score, _, err = c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, int64(987654), score)

	require.NoError(t, c.Close())

	// Entries survive reopening
	c2, err := NewSQLiteCache(path)
	require.NoError(t, err)
	defer c2.Close()

	score, found, err = c2.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(987654), score)
	assert.Equal(t, int64(1), c2.Stats().Entries)
}

func TestNew(t *testing.T) {
	c, err := New(Config{Type: "memory", MaxEntries: 10})
	require.NoError(t, err)
	require.NotNil(t, c)
	c.Close()

	c, err = New(Config{})
	require.NoError(t, err)
	assert.Nil(t, c, "empty type disables caching")
}
