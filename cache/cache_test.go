package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheGetSetHitMiss(t *testing.T) {
	c := New[string, int](10)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 1, 0)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.Equal(t, 1, stats.Size)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](2)

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Get("a") // promote a
	c.Set("c", 3, 0)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")

	_, ok = c.Get("a")
	assert.True(t, ok)

	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCacheUnboundedCapacity(t *testing.T) {
	c := New[int, int](0)
	for i := 0; i < 1000; i++ {
		c.Set(i, i*i, 0)
	}
	assert.Equal(t, 1000, c.Size())
}

func TestCacheTTLExpiry(t *testing.T) {
	c := New[string, int](10)
	c.Set("a", 1, 10*time.Millisecond)

	_, ok := c.Get("a")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestCacheClear(t *testing.T) {
	c := New[string, int](10)
	c.Set("a", 1, 0)
	c.Get("a")
	c.Clear()

	stats := c.Stats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.Size)
}

func TestInternCacheSharesCanonicalValue(t *testing.T) {
	c := NewInterned[string, []string](10)

	c.Set("a", []string{"x", "y"})
	c.Set("b", []string{"x", "y"})

	va, _ := c.Get("a")
	vb, _ := c.Get("b")
	assert.Equal(t, va, vb)
}
