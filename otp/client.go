package otp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Provider supplies the planned itinerary for a monitored trip. The trip
// planning service owns itineraries; this core only reads them.
type Provider interface {
	GetItinerary(ctx context.Context, tripID string) (*Itinerary, error)
}

// Client fetches itineraries from the planning service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an itinerary client against the planning service base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetItinerary fetches the planned itinerary JSON for a trip.
func (c *Client) GetItinerary(ctx context.Context, tripID string) (*Itinerary, error) {
	u := fmt.Sprintf("%s/api/secure/monitoredtrip/%s/itinerary", c.baseURL, url.PathEscape(tripID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("otp: fetch itinerary for trip %s: %w", tripID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("otp: HTTP %d fetching itinerary for trip %s", resp.StatusCode, tripID)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var itin Itinerary
	if err := json.Unmarshal(body, &itin); err != nil {
		return nil, fmt.Errorf("otp: decode itinerary for trip %s: %w", tripID, err)
	}
	if err := itin.Validate(); err != nil {
		return nil, err
	}
	return &itin, nil
}
