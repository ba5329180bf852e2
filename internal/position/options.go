package position

import (
	"log/slog"
	"time"

	"github.com/couchcryptid/service-match/internal/domain"
	"github.com/couchcryptid/service-match/internal/observability"
	"github.com/jonboulle/clockwork"
)

// DefaultTimeout bounds a single device acquisition.
const DefaultTimeout = 10 * time.Second

// Option configures a Provider.
type Option func(*Provider)

// WithNetworkLocator enables the IP geolocation fallback.
func WithNetworkLocator(n NetworkLocator) Option {
	return func(p *Provider) { p.network = n }
}

// WithGeocoder sets the reverse geocoder used to attach addresses.
func WithGeocoder(g domain.ReverseGeocoder) Option {
	return func(p *Provider) { p.geocoder = g }
}

func WithClock(c clockwork.Clock) Option {
	return func(p *Provider) { p.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(p *Provider) { p.metrics = m }
}

// WithTimeout bounds each device acquisition. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.opts.Timeout = d
		}
	}
}

func WithHighAccuracy(enabled bool) Option {
	return func(p *Provider) { p.opts.HighAccuracy = enabled }
}

// WithCacheTTL sets how long an acquired location stays fresh.
func WithCacheTTL(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.cacheTTL = d
		}
	}
}
