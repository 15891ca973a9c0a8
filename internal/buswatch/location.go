package buswatch

import "sync"

// LocationStatus is the outcome of a device-location request.
type LocationStatus int

const (
	// LocationPending means the device has not answered yet. Consumers
	// treat it as "no reference point this cycle" and check again on the
	// next one; it is never an error.
	LocationPending LocationStatus = iota
	LocationSuccess
	LocationError
)

// LocationResult carries one of the three possible outcomes of a
// device-location request.
type LocationResult struct {
	Status LocationStatus
	Point  LatLon
	// Reason describes the failure when Status is LocationError
	// (permission denied, position unavailable, timeout).
	Reason string
}

// DeviceLocator models a single-shot asynchronous device-location request:
// it starts pending and settles exactly once into success or error, until
// Reset starts a fresh request. The browser bridge reports into it; refresh
// cycles read from it without blocking.
type DeviceLocator struct {
	mu     sync.Mutex
	result LocationResult
}

func NewDeviceLocator() *DeviceLocator {
	return &DeviceLocator{result: LocationResult{Status: LocationPending}}
}

// Resolve records a successful position report.
func (d *DeviceLocator) Resolve(p LatLon) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.result = LocationResult{Status: LocationSuccess, Point: p}
}

// Fail records a device-side failure.
func (d *DeviceLocator) Fail(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.result = LocationResult{Status: LocationError, Reason: reason}
}

// Reset returns the locator to the pending state for a new request.
func (d *DeviceLocator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.result = LocationResult{Status: LocationPending}
}

// Result returns the current outcome without blocking.
func (d *DeviceLocator) Result() LocationResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result
}
