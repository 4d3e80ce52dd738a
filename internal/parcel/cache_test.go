package parcel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelworks/siteatlas/internal/identifier"
)

func TestBoundaryCache_PositiveAndNegative(t *testing.T) {
	c := newBoundaryCache(10, time.Hour)

	_, ok := c.get("k1")
	assert.False(t, ok)

	b := &Boundary{DataType: identifier.TypeLot}
	c.put("k1", b)
	got, ok := c.get("k1")
	require.True(t, ok)
	assert.Same(t, b, got)

	// A cached nil is a hit with a nil boundary.
	c.put("k2", nil)
	got, ok = c.get("k2")
	require.True(t, ok)
	assert.Nil(t, got)
}

func TestBoundaryCache_TTL(t *testing.T) {
	c := newBoundaryCache(10, 20*time.Millisecond)

	c.put("k", &Boundary{})
	_, ok := c.get("k")
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	_, ok = c.get("k")
	assert.False(t, ok)
}

func TestBoundaryCache_LRUEviction(t *testing.T) {
	c := newBoundaryCache(2, time.Hour)

	c.put("a", &Boundary{})
	c.put("b", &Boundary{})

	// Touch "a" so "b" is the eviction candidate.
	_, _ = c.get("a")
	c.put("c", &Boundary{})

	_, ok := c.get("a")
	assert.True(t, ok)
	_, ok = c.get("b")
	assert.False(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
}

func TestCacheKey_Rounds(t *testing.T) {
	assert.Equal(t, cacheKey(114.123451, 22.2, "LOT"), cacheKey(114.123449, 22.2, "LOT"))
	assert.NotEqual(t, cacheKey(114.1234, 22.2, "LOT"), cacheKey(114.1235, 22.2, "LOT"))
	assert.NotEqual(t, cacheKey(114.1, 22.2, "LOT"), cacheKey(114.1, 22.2, "GLA"))
}
