package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/service-match/internal/domain"
	"github.com/couchcryptid/service-match/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client implements domain.ReverseGeocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// ReverseGeocode converts coordinates to a postal address. A response with
// no features yields an empty Address and a nil error.
func (c *Client) ReverseGeocode(ctx context.Context, coords domain.Coordinates) (domain.Address, error) {
	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", coords.Longitude, coords.Latitude)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"address,postcode,place,region,country"},
	}

	start := time.Now()
	addr, err := c.doRequest(ctx, u+"?"+params.Encode())
	c.metrics.GeocodeAPIDuration.WithLabelValues("reverse").Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues("reverse", "error").Inc()
		c.logger.Debug("mapbox reverse geocode failed", "error", err)
		return domain.Address{}, err
	case addr == (domain.Address{}):
		c.metrics.GeocodeRequests.WithLabelValues("reverse", "empty").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues("reverse", "success").Inc()
	}
	return addr, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.Address, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Address{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Address{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Address{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return domain.Address{}, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 {
		return domain.Address{}, nil
	}
	return mapboxResp.Features[0].address(), nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID        string         `json:"id"` // "<type>.<id>", e.g. "address.123"
	Text      string         `json:"text"`
	Address   string         `json:"address"` // house number, address features only
	PlaceName string         `json:"place_name"`
	ShortCode string         `json:"short_code"`
	Context   []contextEntry `json:"context"`
}

type contextEntry struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	ShortCode string `json:"short_code"`
}

// address flattens the feature and its context hierarchy. The feature itself
// is one level of that hierarchy, so a place feature supplies the city.
func (f feature) address() domain.Address {
	var addr domain.Address
	levels := append([]contextEntry{{ID: f.ID, Text: f.Text, ShortCode: f.ShortCode}}, f.Context...)
	for _, e := range levels {
		kind, _, _ := strings.Cut(e.ID, ".")
		switch kind {
		case "address":
			addr.Street = strings.TrimSpace(f.Address + " " + e.Text)
		case "postcode":
			addr.PostalCode = e.Text
		case "place":
			addr.City = e.Text
		case "region":
			addr.State = e.Text
		case "country":
			addr.Country = e.Text
			addr.CountryCode = strings.ToUpper(e.ShortCode)
		}
	}
	return addr
}
