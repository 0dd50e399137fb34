package triptracker

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibi-group/otp-middleware-sub001/internal/metrics"
)

func newTestServer(t *testing.T) (*httptest.Server, *trackerFixture) {
	t.Helper()
	f := newTrackerFixture(t)
	collector := metrics.NewCollector()
	srv := NewServer(ServerConfig{Port: 0}, f.tracker, collector.Handler())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, f
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestServerTrackingLifecycle(t *testing.T) {
	ts, f := newTestServer(t)

	resp, body := postJSON(t, ts.URL+"/api/tracking/start", map[string]any{"tripId": "trip-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	journeyID, _ := body["journeyId"].(string)
	require.NotEmpty(t, journeyID)

	resp, body = postJSON(t, ts.URL+"/api/tracking/update", map[string]any{
		"journeyId": journeyID,
		"location": map[string]any{
			"timestamp": f.base.Format("2006-01-02T15:04:05Z"),
			"lat":       walkStart.Lat,
			"lon":       walkStart.Lon,
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ON_SCHEDULE", body["tripStatus"])
	assert.Equal(t, "Head to Oak St", body["instruction"])

	resp, _ = postJSON(t, ts.URL+"/api/tracking/end", map[string]any{"journeyId": journeyID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Further updates against the ended journey conflict.
	resp, _ = postJSON(t, ts.URL+"/api/tracking/update", map[string]any{
		"journeyId": journeyID,
		"location":  map[string]any{"lat": walkStart.Lat, "lon": walkStart.Lon},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServerTrackStartsAndUpdates(t *testing.T) {
	ts, f := newTestServer(t)

	req := map[string]any{
		"tripId": "trip-7",
		"location": map[string]any{
			"timestamp": f.base.Format("2006-01-02T15:04:05Z"),
			"lat":       walkStart.Lat,
			"lon":       walkStart.Lon,
		},
	}
	resp, first := postJSON(t, ts.URL+"/api/tracking/track", req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, first["journeyId"])

	resp, second := postJSON(t, ts.URL+"/api/tracking/track", req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, first["journeyId"], second["journeyId"])
}

func TestServerForceEnd(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := postJSON(t, ts.URL+"/api/tracking/start", map[string]any{"tripId": "trip-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = postJSON(t, ts.URL+"/api/tracking/forciblyend", map[string]any{"tripId": "trip-1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = postJSON(t, ts.URL+"/api/tracking/forciblyend", map[string]any{"tripId": "trip-1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerRejectsBadRequests(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/tracking/start")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/tracking/start", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postJSON(t, ts.URL+"/api/tracking/update", map[string]any{
		"journeyId": "no-such-journey",
		"location":  map[string]any{"lat": 45.52, "lon": -122.3},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerHealthAndMetrics(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)

	mresp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	_ = mresp.Body.Close()
	assert.Equal(t, http.StatusOK, mresp.StatusCode)
}
