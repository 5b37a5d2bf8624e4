package locations

import (
	"strings"
	"sync"
	"time"

	"github.com/wpl-go/weather-provider-storage/internal/meteo"
)

type cacheEntry struct {
	extent   meteo.Extent
	resolved time.Time
}

// extentCache is a concurrency-safe in-memory cache of geocoding results.
// Place coordinates do not move; the TTL only guards against the occasional
// bad answer sticking forever.
type extentCache struct {
	mu sync.RWMutex

	data map[string]cacheEntry

	maxEntries int           // max number of cached places
	maxAge     time.Duration // optional max age for entries
}

// newExtentCache creates a cache with optional limits. If maxEntries is <= 0,
// it is treated as unlimited.
func newExtentCache(maxEntries int, maxAge time.Duration) *extentCache {
	return &extentCache{
		data:       make(map[string]cacheEntry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
	}
}

func cacheKey(city, country string) string {
	return strings.ToLower(city) + "|" + strings.ToLower(country)
}

func (c *extentCache) get(city, country string) (meteo.Extent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[cacheKey(city, country)]
	if !ok {
		return meteo.Extent{}, false
	}
	if c.maxAge > 0 && time.Since(entry.resolved) > c.maxAge {
		return meteo.Extent{}, false
	}
	return entry.extent, true
}

func (c *extentCache) put(city, country string, extent meteo.Extent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Enforce retention by count: drop the oldest entry when full.
	if c.maxEntries > 0 && len(c.data) >= c.maxEntries {
		if _, exists := c.data[cacheKey(city, country)]; !exists {
			var oldestKey string
			var oldest time.Time
			for k, e := range c.data {
				if oldestKey == "" || e.resolved.Before(oldest) {
					oldestKey, oldest = k, e.resolved
				}
			}
			delete(c.data, oldestKey)
		}
	}

	c.data[cacheKey(city, country)] = cacheEntry{extent: extent, resolved: time.Now()}
}
