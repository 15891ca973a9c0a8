package buswatch

import (
	"math"
	"testing"
)

func TestHaversineZeroForSamePoint(t *testing.T) {
	if d := HaversineKm(DefaultRefLat, DefaultRefLon, DefaultRefLat, DefaultRefLon); d != 0 {
		t.Errorf("distance from a point to itself = %f, want 0", d)
	}
}

func TestHaversineSymmetric(t *testing.T) {
	ab := HaversineKm(-22.9559, -43.1789, -23.05, -43.30)
	ba := HaversineKm(-23.05, -43.30, -22.9559, -43.1789)
	if ab != ba {
		t.Errorf("distance not symmetric: %f vs %f", ab, ba)
	}
}

func TestHaversineKnownDistances(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		expectedKm             float64
		toleranceKm            float64
	}{
		{
			// one degree of longitude along the equator
			name: "equator degree",
			lat1: 0, lon1: 0, lat2: 0, lon2: 1,
			expectedKm:  111.195,
			toleranceKm: 0.01,
		},
		{
			// one degree of latitude anywhere
			name: "meridian degree",
			lat1: -22, lon1: -43, lat2: -23, lon2: -43,
			expectedKm:  111.195,
			toleranceKm: 0.01,
		},
		{
			// Botafogo to the far side of the Tijuca massif, well outside a
			// 2 km search radius
			name: "across town",
			lat1: -22.9559, lon1: -43.1789, lat2: -23.05, lon2: -43.30,
			expectedKm:  16.2,
			toleranceKm: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := HaversineKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(d-tt.expectedKm) > tt.toleranceKm {
				t.Errorf("HaversineKm() = %f, want %f ± %f", d, tt.expectedKm, tt.toleranceKm)
			}
		})
	}
}
