package buswatch

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"buswatch/pkg/api"
)

// Process turns one raw feed payload into the records shown on the map:
//
//  1. keep records whose linha contains lineQuery (case-sensitive)
//  2. parse coordinates, accepting a comma decimal separator
//  3. interpret datahora as epoch milliseconds, displayed in UTC-3
//  4. drop records that fail 2 or 3
//  5. sort by timestamp descending
//  6. keep the most recent sighting per ordem
//  7. with a reference point and positive radius: annotate haversine
//     distance and drop records beyond the radius
//  8. sort by distance ascending when distances were computed, otherwise
//     keep the recency order
//
// Malformed records are filtered out, never propagated as errors: Process is
// total over any input. An empty result is an empty, non-nil slice.
func Process(raw []api.BusPosition, lineQuery string, ref *LatLon, radiusKm float64) []Bus {
	buses := make([]Bus, 0, len(raw))
	for _, p := range raw {
		if !strings.Contains(p.Linha.String(), lineQuery) {
			continue
		}
		lat, err := api.ParseCoordinate(p.Latitude.String())
		if err != nil {
			continue
		}
		lon, err := api.ParseCoordinate(p.Longitude.String())
		if err != nil {
			continue
		}
		ms, err := strconv.ParseInt(p.DataHora.String(), 10, 64)
		if err != nil {
			continue
		}
		buses = append(buses, Bus{
			Ordem:      p.Ordem.String(),
			Linha:      p.Linha.String(),
			Lat:        lat,
			Lon:        lon,
			Time:       time.UnixMilli(ms).In(FeedTimezone),
			Velocidade: p.Velocidade.String(),
		})
	}

	// Most recent sighting first, so the per-vehicle dedup below keeps the
	// newest record for each ordem.
	sort.SliceStable(buses, func(i, j int) bool {
		return buses[i].Time.After(buses[j].Time)
	})

	seen := make(map[string]struct{}, len(buses))
	deduped := make([]Bus, 0, len(buses))
	for _, b := range buses {
		if _, ok := seen[b.Ordem]; ok {
			continue
		}
		seen[b.Ordem] = struct{}{}
		deduped = append(deduped, b)
	}

	if ref == nil || radiusKm <= 0 {
		return deduped
	}

	nearby := make([]Bus, 0, len(deduped))
	for _, b := range deduped {
		d := HaversineKm(ref.Lat, ref.Lon, b.Lat, b.Lon)
		if d > radiusKm {
			continue
		}
		b.DistanceKm = &d
		nearby = append(nearby, b)
	}
	sort.SliceStable(nearby, func(i, j int) bool {
		return *nearby[i].DistanceKm < *nearby[j].DistanceKm
	})

	return nearby
}

// MostRecentSignal returns the newest timestamp across the result set, or the
// zero time for an empty set.
func MostRecentSignal(buses []Bus) time.Time {
	var latest time.Time
	for _, b := range buses {
		if b.Time.After(latest) {
			latest = b.Time
		}
	}
	return latest
}

// Center picks the map center and zoom for a result set: the reference point
// when one resolved, otherwise the mean of the plotted positions.
func Center(buses []Bus, ref *LatLon) (LatLon, int) {
	if ref != nil {
		return *ref, 14
	}
	if len(buses) == 0 {
		return LatLon{Lat: DefaultRefLat, Lon: DefaultRefLon}, 12
	}
	var sumLat, sumLon float64
	for _, b := range buses {
		sumLat += b.Lat
		sumLon += b.Lon
	}
	n := float64(len(buses))
	return LatLon{Lat: sumLat / n, Lon: sumLon / n}, 12
}
