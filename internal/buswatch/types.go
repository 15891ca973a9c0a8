package buswatch

import "time"

// FeedTimezone is the display zone for feed timestamps: the feed delivers
// epoch milliseconds in UTC, shown as Brasília time (fixed UTC-3, no DST).
var FeedTimezone = time.FixedZone("BRT", -3*60*60)

// Defaults when proximity filtering is requested but no reference point has
// resolved yet (Botafogo, Rio de Janeiro).
const (
	DefaultRefLat   = -22.9559
	DefaultRefLon   = -43.1789
	DefaultRadiusKm = 2.0
	DefaultLine     = "112"

	// RefreshInterval is the fixed auto-refresh period of the dashboard.
	RefreshInterval = 25 * time.Second
)

// LatLon is a geographic reference point.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bus is one normalized, deduplicated vehicle as shown on the map. There is
// exactly one Bus per distinct ordem in any pipeline output.
type Bus struct {
	Ordem      string    `json:"ordem"`
	Linha      string    `json:"linha"`
	Lat        float64   `json:"latitude"`
	Lon        float64   `json:"longitude"`
	Time       time.Time `json:"datahora"`
	Velocidade string    `json:"velocidade"`
	// DistanceKm is set only when a reference point was in effect for the
	// cycle that produced this record.
	DistanceKm *float64 `json:"distance_km,omitempty"`
}
