package position

import (
	"context"
	"time"

	"github.com/couchcryptid/service-match/internal/domain"
)

// AcquireOptions are passed to the device on every acquisition.
type AcquireOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
}

// Reading is one update from a device watch. Exactly one of Coordinates or
// Err is meaningful.
type Reading struct {
	Coordinates domain.Coordinates
	Err         error
}

// DeviceLocator is the platform positioning capability.
type DeviceLocator interface {
	// CurrentPosition returns a single fix. Implementations should return
	// domain.ErrPermissionDenied, domain.ErrPositionUnavailable or the
	// context error so callers can tell failures apart.
	CurrentPosition(ctx context.Context, opts AcquireOptions) (domain.Coordinates, error)

	// Watch streams readings until ctx is done, then closes the channel.
	Watch(ctx context.Context, opts AcquireOptions) (<-chan Reading, error)
}

// PermissionQuerier is implemented by devices that can report location
// permission without acquiring a position.
type PermissionQuerier interface {
	QueryPermission(ctx context.Context) (domain.PermissionStatus, error)
}

// NetworkFix is a coarse position derived from the host's network address.
// Address may be empty when the lookup service does not return place names.
type NetworkFix struct {
	Coordinates domain.Coordinates
	Address     domain.Address
}

// NetworkLocator resolves an approximate position without the device.
type NetworkLocator interface {
	Locate(ctx context.Context) (NetworkFix, error)
}
