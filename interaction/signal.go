package interaction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TrafficSignalHandler calls a roadside signal service to request a
// pedestrian phase at the intersection a segment rule is anchored to. A
// traveler whose mobility profile warrants it gets an extended phase.
type TrafficSignalHandler struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewTrafficSignalHandler builds the handler against the signal service URL.
func NewTrafficSignalHandler(url, apiKey string, timeout time.Duration) *TrafficSignalHandler {
	return &TrafficSignalHandler{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type signalCallBody struct {
	IntersectionID string  `json:"intersectionId"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	ExtendedPhase  bool    `json:"extendedPhase"`
	MobilityMode   string  `json:"mobilityMode,omitempty"`
}

func (h *TrafficSignalHandler) Invoke(ctx context.Context, req Request) error {
	if req.Cancel {
		// Signal calls are one-shot; there is nothing upstream to retract.
		return nil
	}
	body := signalCallBody{
		IntersectionID: req.SegmentID,
		Lat:            req.Position.Lat,
		Lon:            req.Position.Lon,
		ExtendedPhase:  req.ExtendedPhase,
		MobilityMode:   req.MobilityMode,
	}
	return postJSON(ctx, h.httpClient, h.url, h.apiKey, body)
}

func postJSON(ctx context.Context, client *http.Client, url, apiKey string, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return nil
}
