package position

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/service-match/internal/domain"
	"github.com/couchcryptid/service-match/internal/observability"
	"github.com/jonboulle/clockwork"
)

var (
	seattle     = domain.Coordinates{Latitude: 47.6062, Longitude: -122.3321}
	spaceNeedle = domain.Coordinates{Latitude: 47.6205, Longitude: -122.3493}
	t0          = time.Date(2024, time.April, 26, 9, 0, 0, 0, time.UTC)
)

// --- fake device ---

type fakeDevice struct {
	mu       sync.Mutex
	coords   domain.Coordinates
	err      error
	calls    int
	opts     AcquireOptions
	block    bool          // wait for ctx instead of answering
	entered  chan struct{} // signalled when CurrentPosition starts, if set
	release  chan struct{} // answered only after close, if set
	inFlight int
	maxSeen  int

	readings   chan Reading
	watchErr   error
	watchCalls int
}

func newFakeDevice(coords domain.Coordinates) *fakeDevice {
	return &fakeDevice{coords: coords, readings: make(chan Reading, 16)}
}

func (d *fakeDevice) CurrentPosition(ctx context.Context, opts AcquireOptions) (domain.Coordinates, error) {
	d.mu.Lock()
	d.calls++
	d.opts = opts
	d.inFlight++
	d.maxSeen = max(d.maxSeen, d.inFlight)
	block, entered, release, coords, err := d.block, d.entered, d.release, d.coords, d.err
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.inFlight--
		d.mu.Unlock()
	}()

	if entered != nil {
		entered <- struct{}{}
	}
	if block {
		<-ctx.Done()
		return domain.Coordinates{}, ctx.Err()
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return domain.Coordinates{}, ctx.Err()
		}
	}
	return coords, err
}

func (d *fakeDevice) Watch(ctx context.Context, _ AcquireOptions) (<-chan Reading, error) {
	d.mu.Lock()
	d.watchCalls++
	err := d.watchErr
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make(chan Reading)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-d.readings:
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (d *fakeDevice) set(coords domain.Coordinates, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.coords, d.err = coords, err
}

func (d *fakeDevice) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// permissionDevice also answers permission queries.
type permissionDevice struct {
	*fakeDevice
	status domain.PermissionStatus
	err    error
}

func (d permissionDevice) QueryPermission(context.Context) (domain.PermissionStatus, error) {
	return d.status, d.err
}

// --- fake network locator ---

type fakeNetwork struct {
	fix   NetworkFix
	err   error
	calls int
}

func (n *fakeNetwork) Locate(context.Context) (NetworkFix, error) {
	n.calls++
	return n.fix, n.err
}

// --- stub geocoder ---

type stubGeocoder struct {
	addr domain.Address
	err  error
}

func (g stubGeocoder) ReverseGeocode(context.Context, domain.Coordinates) (domain.Address, error) {
	return g.addr, g.err
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProvider(device DeviceLocator, opts ...Option) (*Provider, *clockwork.FakeClock, *observability.Metrics) {
	clock := clockwork.NewFakeClockAt(t0)
	metrics := observability.NewMetricsForTesting()
	base := []Option{WithClock(clock), WithLogger(discardLogger()), WithMetrics(metrics)}
	return New(device, append(base, opts...)...), clock, metrics
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
		var zero T
		return zero
	}
}

func assertNothing[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected value: %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}
