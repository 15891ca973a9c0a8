package buswatch

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/muesli/gominatim"
	"github.com/patrickmn/go-cache"
)

// Geocoding failure modes. Callers distinguish a not-found address (try a
// more specific one) from a service error/timeout (fall back to the
// unfiltered view).
var (
	ErrAddressNotFound = errors.New("address not found")
	ErrGeocodeService  = errors.New("geocoding service error")
)

const defaultNominatimServer = "https://nominatim.openstreetmap.org/"

// Geocoder resolves free-text addresses to coordinates through Nominatim,
// caching resolutions for an hour keyed by the address string.
type Geocoder struct {
	cache *cache.Cache
	log   *slog.Logger
}

func NewGeocoder(logger *slog.Logger) *Geocoder {
	gominatim.SetServer(defaultNominatimServer)
	return &Geocoder{
		cache: cache.New(GeocodeCacheTTL, cacheCleanupInterval),
		log:   logger,
	}
}

// SetServer points the geocoder at an alternate Nominatim endpoint.
func (g *Geocoder) SetServer(url string) {
	gominatim.SetServer(url)
}

// Geocode resolves an address to a reference point.
func (g *Geocoder) Geocode(address string) (LatLon, error) {
	return GetOrFetch(g.cache, address, GeocodeCacheTTL, func() (LatLon, error) {
		qry := gominatim.SearchQuery{
			Q: address,
		}
		results, err := qry.Get()
		if err != nil {
			g.log.Warn("geocoding request failed", "address", address, "error", err)
			return LatLon{}, fmt.Errorf("%w: %v", ErrGeocodeService, err)
		}
		if len(results) == 0 {
			return LatLon{}, ErrAddressNotFound
		}

		lat, err := strconv.ParseFloat(results[0].Lat, 64)
		if err != nil {
			return LatLon{}, fmt.Errorf("error parsing latitude: %w", err)
		}
		lon, err := strconv.ParseFloat(results[0].Lon, 64)
		if err != nil {
			return LatLon{}, fmt.Errorf("error parsing longitude: %w", err)
		}

		g.log.Debug("address resolved", "address", address, "display_name", results[0].DisplayName)
		return LatLon{Lat: lat, Lon: lon}, nil
	})
}
