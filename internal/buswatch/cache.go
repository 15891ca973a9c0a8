package buswatch

import (
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	// FeedCacheTTL bounds how long a raw feed payload may be reused, so a
	// burst of renders within the window does not re-issue upstream calls.
	FeedCacheTTL = 15 * time.Second
	// GeocodeCacheTTL is much longer: addresses rarely change within a
	// session.
	GeocodeCacheTTL = time.Hour

	cacheCleanupInterval = 10 * time.Minute
)

// GetOrFetch returns the cached value for key when still fresh, otherwise
// calls fetch and caches its result for ttl. Fetch errors are never cached.
func GetOrFetch[T any](c *cache.Cache, key string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	if cached, found := c.Get(key); found {
		return cached.(T), nil
	}
	v, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(key, v, ttl)
	return v, nil
}
