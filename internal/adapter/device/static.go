// Package device provides a position.DeviceLocator for hosts without
// positioning hardware: the position is configured, not sensed.
package device

import (
	"context"
	"time"

	"github.com/couchcryptid/service-match/internal/domain"
	"github.com/couchcryptid/service-match/internal/position"
	"github.com/jonboulle/clockwork"
)

// configuredAccuracyMeters is reported for configured fixes.
const configuredAccuracyMeters = 10.0

// Static reports a fixed, configured position. A Static built without
// coordinates behaves like a device whose location permission was denied, so
// acquisitions fall through to the network locator.
type Static struct {
	coords   *domain.Coordinates
	interval time.Duration
	clock    clockwork.Clock
}

// NewStatic creates a Static device. coords may be nil. Watches re-emit the
// position every interval.
func NewStatic(coords *domain.Coordinates, interval time.Duration, clock clockwork.Clock) *Static {
	if coords != nil {
		c := *coords
		if c.Accuracy == nil {
			acc := configuredAccuracyMeters
			c.Accuracy = &acc
		}
		coords = &c
	}
	return &Static{coords: coords, interval: interval, clock: clock}
}

// QueryPermission implements position.PermissionQuerier.
func (s *Static) QueryPermission(context.Context) (domain.PermissionStatus, error) {
	if s.coords == nil {
		return domain.PermissionDenied, nil
	}
	return domain.PermissionGranted, nil
}

// CurrentPosition returns the configured coordinates.
func (s *Static) CurrentPosition(ctx context.Context, _ position.AcquireOptions) (domain.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return domain.Coordinates{}, err
	}
	if s.coords == nil {
		return domain.Coordinates{}, domain.ErrPermissionDenied
	}
	return *s.coords, nil
}

// Watch emits the configured coordinates immediately and then every interval
// until ctx is done.
func (s *Static) Watch(ctx context.Context, _ position.AcquireOptions) (<-chan position.Reading, error) {
	if s.coords == nil {
		return nil, domain.ErrPermissionDenied
	}

	out := make(chan position.Reading, 1)
	go func() {
		defer close(out)
		ticker := s.clock.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case out <- position.Reading{Coordinates: *s.coords}:
			case <-ctx.Done():
				return
			}
			select {
			case <-ticker.Chan():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
