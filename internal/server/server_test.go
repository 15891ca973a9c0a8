package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/httplog/v2"

	"buswatch/internal/buswatch"
	"buswatch/pkg/api"
)

const feedPayload = `[
	{"ordem":"A63535","linha":"112","latitude":"-22,9559","longitude":"-43,1789","datahora":"1700000000000","velocidade":"35"},
	{"ordem":"B10234","linha":"112","latitude":"-23.05","longitude":"-43.30","datahora":"1700000060000","velocidade":"40"},
	{"ordem":"C55555","linha":"483","latitude":"-22.90","longitude":"-43.20","datahora":"1700000000000","velocidade":"10"}
]`

func newTestServer(t *testing.T) *Server {
	t.Helper()

	feedTS := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedPayload))
	}))
	t.Cleanup(feedTS.Close)

	geoTS := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "Botafogo") {
			w.Write([]byte(`[{"lat":"-22.9559","lon":"-43.1789","display_name":"Botafogo"}]`))
			return
		}
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(geoTS.Close)

	logger := httplog.NewLogger("buswatch-test", httplog.Options{
		LogLevel: slog.LevelError,
		Concise:  true,
	})
	geocoder := buswatch.NewGeocoder(logger.Logger)
	geocoder.SetServer(geoTS.URL)

	return New(Config{
		Tracker:  buswatch.NewTracker(api.NewSPPOFeedAPI(feedTS.URL), logger.Logger),
		Geocoder: geocoder,
		Logger:   logger,
		Line:     "112",
	})
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, Update) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var update Update
	if rec.Code == http.StatusOK && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &update); err != nil {
			t.Fatalf("invalid JSON response for %s %s: %v", method, target, err)
		}
	}
	return rec, update
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec, _ := doJSON(t, s.Router(), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}

func TestVehiclesWithoutReference(t *testing.T) {
	s := newTestServer(t)
	rec, update := doJSON(t, s.Router(), http.MethodGet, "/api/vehicles?line=112", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if update.Count != 2 {
		t.Fatalf("expected both 112 buses, got %d", update.Count)
	}
	for _, b := range update.Buses {
		if b.DistanceKm != nil {
			t.Errorf("distance annotated without a reference for %s", b.Ordem)
		}
	}
	if update.Message == "" {
		t.Error("expected an informational message")
	}
}

func TestVehiclesWithCoordinates(t *testing.T) {
	s := newTestServer(t)
	rec, update := doJSON(t, s.Router(), http.MethodGet,
		"/api/vehicles?line=112&lat=-22.9559&lon=-43.1789&radius=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if update.Count != 1 {
		t.Fatalf("expected only the nearby bus, got %d", update.Count)
	}
	if update.Buses[0].Ordem != "A63535" {
		t.Errorf("expected A63535, got %q", update.Buses[0].Ordem)
	}
	if update.Buses[0].DistanceKm == nil {
		t.Error("expected distance annotation with a reference")
	}
	if update.Reference == nil {
		t.Error("expected the reference echoed in the update")
	}
}

func TestVehiclesWithAddress(t *testing.T) {
	s := newTestServer(t)
	rec, update := doJSON(t, s.Router(), http.MethodGet,
		"/api/vehicles?line=112&address=Botafogo&radius=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if update.Count != 1 {
		t.Fatalf("expected 1 bus near the geocoded address, got %d", update.Count)
	}
}

func TestVehiclesAddressNotFoundFallsBack(t *testing.T) {
	s := newTestServer(t)
	rec, update := doJSON(t, s.Router(), http.MethodGet,
		"/api/vehicles?line=112&address=nowhere&radius=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if update.Warning == "" {
		t.Error("expected a warning for the unresolvable address")
	}
	if update.Count != 2 {
		t.Fatalf("expected the unfiltered set as fallback, got %d buses", update.Count)
	}
}

func TestVehiclesBadCoordinates(t *testing.T) {
	s := newTestServer(t)
	rec, _ := doJSON(t, s.Router(), http.MethodGet, "/api/vehicles?line=112&lat=abc&lon=-43.1", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBrowserLocationRoundTrip(t *testing.T) {
	s := newTestServer(t)
	r := s.Router()

	rec, _ := doJSON(t, r, http.MethodPost, "/api/settings",
		`{"line":"112","mode":"browser","radius_km":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("settings status = %d, want 200", rec.Code)
	}

	// Before the browser answers, the cycle degrades to the unfiltered view.
	_, update := doJSON(t, r, http.MethodGet, "/api/status", "")
	if update.Warning == "" {
		t.Error("expected a pending-location warning")
	}
	if update.Count != 2 {
		t.Fatalf("expected the unfiltered set while pending, got %d", update.Count)
	}

	rec, _ = doJSON(t, r, http.MethodPost, "/api/location",
		`{"status":"success","latitude":-22.9559,"longitude":-43.1789}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("location status = %d, want 204", rec.Code)
	}

	_, update = doJSON(t, r, http.MethodGet, "/api/status", "")
	if update.Warning != "" {
		t.Errorf("unexpected warning after location success: %q", update.Warning)
	}
	if update.Count != 1 {
		t.Fatalf("expected proximity filtering after location success, got %d buses", update.Count)
	}
}

func TestDeviceLocationError(t *testing.T) {
	s := newTestServer(t)
	r := s.Router()

	doJSON(t, r, http.MethodPost, "/api/settings", `{"line":"112","mode":"browser","radius_km":2}`)
	doJSON(t, r, http.MethodPost, "/api/location", `{"status":"error","error":"Permission denied"}`)

	_, update := doJSON(t, r, http.MethodGet, "/api/status", "")
	if !strings.Contains(update.Warning, "Permission denied") {
		t.Errorf("expected the device failure surfaced, got %q", update.Warning)
	}
	if update.Count != 2 {
		t.Fatalf("expected unfiltered fallback, got %d buses", update.Count)
	}
}

func TestSettingsValidation(t *testing.T) {
	s := newTestServer(t)
	r := s.Router()

	rec, _ := doJSON(t, r, http.MethodPost, "/api/settings", `{"mode":"teleport"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status for unknown mode = %d, want 400", rec.Code)
	}

	// Radius clamps to the slider range.
	rec, _ = doJSON(t, r, http.MethodPost, "/api/settings", `{"line":"112","mode":"manual","lat":-22.95,"lon":-43.17,"radius_km":100}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("settings status = %d, want 200", rec.Code)
	}
	var st Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("invalid settings response: %v", err)
	}
	if st.RadiusKm != maxRadiusKm {
		t.Errorf("radius = %g, want clamped to %g", st.RadiusKm, maxRadiusKm)
	}
}

func TestIndexServed(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("index status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Rio bus tracker") {
		t.Error("expected the dashboard page body")
	}
}
