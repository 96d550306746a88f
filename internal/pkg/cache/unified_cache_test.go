package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
)

func TestUnifiedCache(t *testing.T) {
	c := NewUnifiedCache[[]string](time.Minute, "test", nil)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", []string{"a", "b"})
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, c.Size())

	c.Clear()
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Size())

	m := c.GetMetrics()
	assert.Equal(t, int64(1), m.Hits)
	assert.Equal(t, int64(2), m.Misses)
	assert.Equal(t, int64(1), m.Sets)
}

func TestUnifiedCacheExpiry(t *testing.T) {
	c := NewUnifiedCache[int](20*time.Millisecond, "short", nil)
	c.Set("k", 7)
	time.Sleep(40 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCacheKeyBuilder(t *testing.T) {
	k1, err := NewCacheKeyBuilder().Add("limit", 10).Build()
	require.NoError(t, err)
	k2, err := NewCacheKeyBuilder().Add("limit", 10).Build()
	require.NoError(t, err)
	k3, err := NewCacheKeyBuilder().Add("limit", 20).Build()
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, 32)
}

func TestCacheManagerMetrics(t *testing.T) {
	cm := NewCacheManager(time.Minute, nil)
	cm.Popular.Set("p", []models.LocationStats{{}})
	cm.FilterOptions.Set("f", models.SearchFilterOptions{Types: []string{"bar"}})
	_, _ = cm.Popular.Get("p")
	_, _ = cm.FilterOptions.Get("missing")

	all := cm.GetAllMetrics()
	require.Len(t, all, 2)
	assert.Equal(t, CacheMetrics{Hits: 1, Sets: 1}, all["popular_locations"])
	assert.Equal(t, CacheMetrics{Misses: 1, Sets: 1}, all["search_filters"])
}
