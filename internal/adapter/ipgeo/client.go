// Package ipgeo resolves the host's approximate position from its public IP
// address using an ip-api.com compatible JSON endpoint.
package ipgeo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/service-match/internal/domain"
	"github.com/couchcryptid/service-match/internal/observability"
	"github.com/couchcryptid/service-match/internal/position"
	"golang.org/x/time/rate"
)

// ErrThrottled is returned when the client's request budget is exhausted.
// Lookups are never queued.
var ErrThrottled = errors.New("ip geolocation rate limit reached")

// Client implements position.NetworkLocator.
type Client struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a client allowing at most perMinute lookups per minute.
func NewClient(url string, timeout time.Duration, perMinute int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		metrics:    metrics,
		logger:     logger,
	}
}

// Locate returns the IP-derived position and the address the service reports
// for it. The address is incomplete when the service omits fields.
func (c *Client) Locate(ctx context.Context) (position.NetworkFix, error) {
	if !c.limiter.Allow() {
		c.metrics.IPGeoRequests.WithLabelValues("throttled").Inc()
		return position.NetworkFix{}, ErrThrottled
	}

	fix, err := c.lookup(ctx)
	if err != nil {
		c.metrics.IPGeoRequests.WithLabelValues("error").Inc()
		return position.NetworkFix{}, err
	}
	c.metrics.IPGeoRequests.WithLabelValues("success").Inc()
	c.logger.Debug("ip geolocation resolved", "city", fix.Address.City, "country_code", fix.Address.CountryCode)
	return fix, nil
}

func (c *Client) lookup(ctx context.Context) (position.NetworkFix, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return position.NetworkFix{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return position.NetworkFix{}, fmt.Errorf("ip geolocation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return position.NetworkFix{}, fmt.Errorf("ip geolocation error: status %d: %s", resp.StatusCode, body)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return position.NetworkFix{}, fmt.Errorf("decode response: %w", err)
	}
	if r.Status != "success" {
		return position.NetworkFix{}, fmt.Errorf("ip geolocation failed: %s", r.Message)
	}

	coords := domain.Coordinates{Latitude: r.Lat, Longitude: r.Lon}
	if err := coords.Validate(); err != nil {
		return position.NetworkFix{}, err
	}
	return position.NetworkFix{
		Coordinates: coords,
		Address: domain.Address{
			City:        r.City,
			State:       r.RegionName,
			Country:     r.Country,
			PostalCode:  r.Zip,
			CountryCode: r.CountryCode,
		},
	}, nil
}

type response struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Zip         string  `json:"zip"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}
