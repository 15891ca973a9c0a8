// Package api provides a client for the Rio de Janeiro SPPO bus GPS feed,
// which publishes the current position of every tracked city bus as a JSON
// array of loosely typed records.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultFeedURL is the public SPPO GPS endpoint.
	DefaultFeedURL = "https://dados.mobilidade.rio/gps/sppo"
	DefaultTimeout = 12 * time.Second
)

// SPPOFeedAPI fetches real-time bus positions from the SPPO GPS feed.
type SPPOFeedAPI struct {
	feedURL    string
	httpClient *http.Client
}

// NewSPPOFeedAPI creates a feed client. An empty feedURL selects the public
// endpoint.
func NewSPPOFeedAPI(feedURL string) *SPPOFeedAPI {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	return &SPPOFeedAPI{
		feedURL: feedURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// URL returns the feed endpoint this client reads from.
func (api *SPPOFeedAPI) URL() string {
	return api.feedURL
}

// FetchPositions fetches the current vehicle positions. Non-200 responses and
// transport errors are returned as errors; callers treat them as "no data for
// this cycle".
func (api *SPPOFeedAPI) FetchPositions(ctx context.Context) ([]BusPosition, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api.feedURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	resp, err := api.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	var positions []BusPosition
	if err := json.Unmarshal(body, &positions); err != nil {
		return nil, fmt.Errorf("error unmarshaling JSON: %w", err)
	}

	return positions, nil
}

// ParseCoordinate parses a latitude or longitude string (with comma or dot
// decimal separator) to float64.
func ParseCoordinate(s string) (float64, error) {
	s = strings.Replace(s, ",", ".", 1)
	m, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}

	return m, nil
}
