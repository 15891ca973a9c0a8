// Package buswatch implements the fetch-normalize-filter-dedupe pipeline
// behind the live bus dashboard: feed payload caching, line filtering,
// coordinate and timestamp cleaning, per-vehicle deduplication and proximity
// ranking around a reference point.
package buswatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/patrickmn/go-cache"

	"buswatch/pkg/api"
)

// Tracker runs refresh cycles against one feed. The raw payload cache is the
// only state that crosses cycles.
type Tracker struct {
	feed  *api.SPPOFeedAPI
	cache *cache.Cache
	log   *slog.Logger
}

func NewTracker(feed *api.SPPOFeedAPI, logger *slog.Logger) *Tracker {
	return &Tracker{
		feed:  feed,
		cache: cache.New(FeedCacheTTL, cacheCleanupInterval),
		log:   logger,
	}
}

// Query describes one refresh cycle's filters. A nil Ref (or non-positive
// RadiusKm) disables proximity filtering and keeps the full deduplicated,
// recency-ordered set.
type Query struct {
	Line     string
	Ref      *LatLon
	RadiusKm float64
}

// Snapshot fetches the raw feed, reusing a payload cached within the last 15
// seconds, and runs the pipeline over it. A failed fetch yields no data for
// this cycle; the next scheduled refresh is the only retry.
func (t *Tracker) Snapshot(ctx context.Context, q Query) ([]Bus, error) {
	raw, err := GetOrFetch(t.cache, t.feed.URL(), FeedCacheTTL, func() ([]api.BusPosition, error) {
		return t.feed.FetchPositions(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching feed: %w", err)
	}

	buses := Process(raw, q.Line, q.Ref, q.RadiusKm)
	t.log.Debug("refresh cycle complete", "raw_records", len(raw), "line", q.Line, "buses", len(buses))
	return buses, nil
}
