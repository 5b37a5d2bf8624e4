package locations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wpl-go/weather-provider-storage/internal/meteo"
)

func TestExtentCacheRoundTrip(t *testing.T) {
	c := newExtentCache(10, time.Hour)

	_, ok := c.get("Utrecht", "Netherlands")
	assert.False(t, ok)

	extent := meteo.PointExtent(52.09, 5.12)
	c.put("Utrecht", "Netherlands", extent)

	got, ok := c.get("utrecht", "NETHERLANDS")
	assert.True(t, ok, "lookups are case-insensitive")
	assert.Equal(t, extent, got)
}

func TestExtentCacheEvictsOldestWhenFull(t *testing.T) {
	c := newExtentCache(2, 0)

	c.put("A", "X", meteo.PointExtent(1, 1))
	time.Sleep(time.Millisecond)
	c.put("B", "X", meteo.PointExtent(2, 2))
	time.Sleep(time.Millisecond)
	c.put("C", "X", meteo.PointExtent(3, 3))

	_, ok := c.get("A", "X")
	assert.False(t, ok, "the oldest entry is evicted first")
	_, ok = c.get("B", "X")
	assert.True(t, ok)
	_, ok = c.get("C", "X")
	assert.True(t, ok)
}

func TestExtentCacheExpiry(t *testing.T) {
	c := newExtentCache(10, time.Millisecond)
	c.put("A", "X", meteo.PointExtent(1, 1))
	time.Sleep(5 * time.Millisecond)

	_, ok := c.get("A", "X")
	assert.False(t, ok)
}
