// Package server implements the live dashboard: a chi HTTP server rendering
// the Leaflet map page, a JSON API over the tracker, a browser-geolocation
// bridge and a websocket feed that pushes every refresh cycle's snapshot.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/httprate"

	"buswatch/internal/buswatch"
)

//go:embed static
var staticFS embed.FS

// Reference point modes selectable from the dashboard.
const (
	ModeOff     = "off"
	ModeBrowser = "browser"
	ModeAddress = "address"
	ModeManual  = "manual"
)

const (
	minRadiusKm = 0.5
	maxRadiusKm = 20.0

	rateLimitRequests = 60
)

// Settings is the dashboard's current search configuration. The dashboard is
// single-user; one settings struct drives the refresh loop.
type Settings struct {
	Line     string  `json:"line"`
	Mode     string  `json:"mode"`
	Address  string  `json:"address"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RadiusKm float64 `json:"radius_km"`
	MapStyle string  `json:"map_style"`
}

// Update is one refresh cycle's view, pushed over the websocket and returned
// by the status endpoint.
type Update struct {
	Line            string           `json:"line"`
	Buses           []buswatch.Bus   `json:"buses"`
	Count           int              `json:"count"`
	Center          buswatch.LatLon  `json:"center"`
	Zoom            int              `json:"zoom"`
	Reference       *buswatch.LatLon `json:"reference,omitempty"`
	RadiusKm        float64          `json:"radius_km,omitempty"`
	LastSignal      string           `json:"last_signal,omitempty"`
	Message         string           `json:"message,omitempty"`
	Warning         string           `json:"warning,omitempty"`
	MapStyle        string           `json:"map_style"`
	NextRefreshSecs int              `json:"next_refresh_secs"`
}

// Config carries the dependencies the dashboard server needs.
type Config struct {
	Tracker  *buswatch.Tracker
	Geocoder *buswatch.Geocoder
	Logger   *httplog.Logger
	Line     string
}

type Server struct {
	tracker   *buswatch.Tracker
	geocoder  *buswatch.Geocoder
	locator   *buswatch.DeviceLocator
	refresher *buswatch.Refresher
	hub       *wsHub
	logger    *httplog.Logger

	settings settingsStore
}

func New(cfg Config) *Server {
	line := cfg.Line
	if line == "" {
		line = buswatch.DefaultLine
	}
	s := &Server{
		tracker:   cfg.Tracker,
		geocoder:  cfg.Geocoder,
		locator:   buswatch.NewDeviceLocator(),
		refresher: buswatch.NewRefresher(buswatch.RefreshInterval),
		hub:       newWSHub(cfg.Logger.Logger),
		logger:    cfg.Logger,
	}
	s.settings.set(Settings{
		Line:     line,
		Mode:     ModeOff,
		Lat:      buswatch.DefaultRefLat,
		Lon:      buswatch.DefaultRefLon,
		RadiusKm: buswatch.DefaultRadiusKm,
		MapStyle: "osm",
	})
	return s
}

// Router builds the chi router: request logging, panic recovery and per-IP
// rate limiting in front of the page, API and websocket handlers.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(rateLimitRequests, time.Minute))

	r.Get("/", s.handleIndex)
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/vehicles", s.handleVehicles)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/settings", s.handleGetSettings)
	r.Post("/api/settings", s.handlePostSettings)
	r.Post("/api/location", s.handleLocation)
	r.Post("/api/refresh", s.handleRefresh)
	r.Get("/ws", s.hub.handleWebSocket)

	return r
}

// Run starts the HTTP server and the refresh loop, broadcasting each cycle's
// snapshot to connected websocket clients, until ctx is canceled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.refresher.Run(ctx, func(cctx context.Context) {
		update := s.buildUpdate(cctx, s.settings.get())
		s.hub.broadcast(update)
	})

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "dashboard page missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleVehicles is the request-driven API: filters come from query
// parameters instead of the stored dashboard settings.
func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	line := query.Get("line")
	if line == "" {
		line = s.settings.get().Line
	}

	radius := buswatch.DefaultRadiusKm
	if v := query.Get("radius"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid radius value", http.StatusBadRequest)
			return
		}
		radius = parsed
	}

	var ref *buswatch.LatLon
	var warning string
	switch {
	case query.Get("address") != "":
		point, err := s.geocoder.Geocode(query.Get("address"))
		if err != nil {
			warning = geocodeWarning(err)
		} else {
			ref = &point
		}
	case query.Get("lat") != "" && query.Get("lon") != "":
		lat, err := strconv.ParseFloat(query.Get("lat"), 64)
		if err != nil {
			http.Error(w, "invalid latitude value", http.StatusBadRequest)
			return
		}
		lon, err := strconv.ParseFloat(query.Get("lon"), 64)
		if err != nil {
			http.Error(w, "invalid longitude value", http.StatusBadRequest)
			return
		}
		ref = &buswatch.LatLon{Lat: lat, Lon: lon}
	}

	update := s.snapshotUpdate(r.Context(), line, ref, radius, s.settings.get().MapStyle)
	if warning != "" {
		update.Warning = warning
	}
	writeJSON(w, update)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.buildUpdate(r.Context(), s.settings.get()))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.settings.get())
}

func (s *Server) handlePostSettings(w http.ResponseWriter, r *http.Request) {
	var in Settings
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid settings payload", http.StatusBadRequest)
		return
	}
	switch in.Mode {
	case ModeOff, ModeBrowser, ModeAddress, ModeManual:
	default:
		http.Error(w, fmt.Sprintf("unknown mode %q", in.Mode), http.StatusBadRequest)
		return
	}
	if in.Line == "" {
		in.Line = s.settings.get().Line
	}
	if in.RadiusKm < minRadiusKm {
		in.RadiusKm = minRadiusKm
	}
	if in.RadiusKm > maxRadiusKm {
		in.RadiusKm = maxRadiusKm
	}
	if in.MapStyle == "" {
		in.MapStyle = s.settings.get().MapStyle
	}

	// Switching to browser mode starts a fresh single-shot location request.
	if in.Mode == ModeBrowser && s.settings.get().Mode != ModeBrowser {
		s.locator.Reset()
	}
	s.settings.set(in)
	s.refresher.TriggerNow()
	writeJSON(w, in)
}

// handleLocation is the browser geolocation bridge: the dashboard page runs
// navigator.geolocation and reports the outcome here.
func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status    string  `json:"status"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Error     string  `json:"error"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid location payload", http.StatusBadRequest)
		return
	}
	switch in.Status {
	case "success":
		s.locator.Resolve(buswatch.LatLon{Lat: in.Latitude, Lon: in.Longitude})
	case "error":
		s.locator.Fail(in.Error)
	default:
		http.Error(w, fmt.Sprintf("unknown location status %q", in.Status), http.StatusBadRequest)
		return
	}
	s.refresher.TriggerNow()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refresher.TriggerNow()
	w.WriteHeader(http.StatusAccepted)
}

// buildUpdate resolves the reference point per the stored settings and runs
// one pipeline cycle. Every failure degrades to a narrower but still
// rendered view, never to an error response.
func (s *Server) buildUpdate(ctx context.Context, st Settings) Update {
	ref, warning := s.resolveReference(st)
	update := s.snapshotUpdate(ctx, st.Line, ref, st.RadiusKm, st.MapStyle)
	if warning != "" {
		update.Warning = warning
	}
	return update
}

func (s *Server) resolveReference(st Settings) (*buswatch.LatLon, string) {
	switch st.Mode {
	case ModeManual:
		return &buswatch.LatLon{Lat: st.Lat, Lon: st.Lon}, ""
	case ModeAddress:
		if st.Address == "" {
			return nil, "waiting for an address to geocode"
		}
		point, err := s.geocoder.Geocode(st.Address)
		if err != nil {
			return nil, geocodeWarning(err)
		}
		return &point, ""
	case ModeBrowser:
		res := s.locator.Result()
		switch res.Status {
		case buswatch.LocationSuccess:
			return &res.Point, ""
		case buswatch.LocationError:
			return nil, "device location failed: " + res.Reason
		default:
			return nil, "waiting for browser location permission"
		}
	}
	return nil, ""
}

func (s *Server) snapshotUpdate(ctx context.Context, line string, ref *buswatch.LatLon, radiusKm float64, mapStyle string) Update {
	update := Update{
		Line:            line,
		Buses:           []buswatch.Bus{},
		MapStyle:        mapStyle,
		NextRefreshSecs: int(s.refresher.Remaining().Round(time.Second).Seconds()),
	}

	q := buswatch.Query{Line: line}
	if ref != nil {
		q.Ref = ref
		q.RadiusKm = radiusKm
		update.Reference = ref
		update.RadiusKm = radiusKm
	}

	buses, err := s.tracker.Snapshot(ctx, q)
	if err != nil {
		s.logger.Error("feed fetch failed", "error", err)
		update.Warning = "bus feed unavailable, no data this cycle"
		update.Center, update.Zoom = buswatch.Center(nil, ref)
		return update
	}

	update.Buses = buses
	update.Count = len(buses)
	update.Center, update.Zoom = buswatch.Center(buses, ref)
	if latest := buswatch.MostRecentSignal(buses); !latest.IsZero() {
		update.LastSignal = latest.Format("15:04:05")
	}

	switch {
	case len(buses) == 0 && ref != nil:
		update.Message = fmt.Sprintf("No buses of line %s found within %g km", line, radiusKm)
	case len(buses) == 0:
		update.Message = fmt.Sprintf("No data available for line %s right now", line)
	case ref != nil:
		update.Message = fmt.Sprintf("Showing %d unique buses within %g km", len(buses), radiusKm)
	default:
		update.Message = fmt.Sprintf("Showing all %d buses of line %s", len(buses), line)
	}
	return update
}

func geocodeWarning(err error) string {
	switch {
	case errors.Is(err, buswatch.ErrAddressNotFound):
		return "address not found, try being more specific"
	case errors.Is(err, buswatch.ErrGeocodeService):
		return "geocoding service error, showing unfiltered results"
	default:
		return "could not resolve address, showing unfiltered results"
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "error encoding response", http.StatusInternalServerError)
	}
}

type settingsStore struct {
	mu sync.Mutex
	st Settings
}

func (s *settingsStore) get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

func (s *settingsStore) set(st Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = st
}
