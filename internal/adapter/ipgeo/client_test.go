package ipgeo

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/service-match/internal/domain"
	"github.com/couchcryptid/service-match/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seattleBody = `{
	"status": "success",
	"country": "United States",
	"countryCode": "US",
	"region": "WA",
	"regionName": "Washington",
	"city": "Seattle",
	"zip": "98101",
	"lat": 47.6062,
	"lon": -122.3321,
	"timezone": "America/Los_Angeles",
	"query": "203.0.113.7"
}`

func serve(t *testing.T, status int, body string) (*httptest.Server, *int) {
	t.Helper()
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testClient(url string, perMinute int) *Client {
	return NewClient(url, time.Second, perMinute, observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_Locate_Success(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, seattleBody)
	c := testClient(srv.URL, 60)

	fix, err := c.Locate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.Coordinates{Latitude: 47.6062, Longitude: -122.3321}, fix.Coordinates)
	assert.Equal(t, domain.Address{
		City:        "Seattle",
		State:       "Washington",
		Country:     "United States",
		PostalCode:  "98101",
		CountryCode: "US",
	}, fix.Address)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.IPGeoRequests.WithLabelValues("success")))
}

func TestClient_Locate_FailStatus(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, `{"status":"fail","message":"reserved range","query":"10.0.0.1"}`)
	c := testClient(srv.URL, 60)

	_, err := c.Locate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved range")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.IPGeoRequests.WithLabelValues("error")))
}

func TestClient_Locate_HTTPError(t *testing.T) {
	srv, _ := serve(t, http.StatusTooManyRequests, `slow down`)

	_, err := testClient(srv.URL, 60).Locate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestClient_Locate_OutOfRangeCoordinates(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, `{"status":"success","lat":123.4,"lon":10}`)

	_, err := testClient(srv.URL, 60).Locate(context.Background())
	require.ErrorIs(t, err, domain.ErrInvalidCoordinates)
}

func TestClient_Locate_Throttled(t *testing.T) {
	srv, hits := serve(t, http.StatusOK, seattleBody)
	c := testClient(srv.URL, 1)

	_, err := c.Locate(context.Background())
	require.NoError(t, err)
	_, err = c.Locate(context.Background())
	require.ErrorIs(t, err, ErrThrottled)

	assert.Equal(t, 1, *hits, "throttled lookups never reach the service")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.IPGeoRequests.WithLabelValues("throttled")))
}

func TestClient_Locate_ContextCancelled(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, seattleBody)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL, 60).Locate(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
