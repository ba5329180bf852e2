// Package position acquires, caches and broadcasts the requester's location.
//
// A Provider tries the device first, then an optional network (IP) fallback,
// then its own cache. Each successful acquisition replaces the cached
// Location and is delivered to location listeners in registration order.
// Listeners run synchronously on the acquiring goroutine and must not call
// back into the Provider.
package position

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/service-match/internal/domain"
	"github.com/couchcryptid/service-match/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Provider is a constructible position source. The zero value is not usable;
// create one with New.
type Provider struct {
	device   DeviceLocator
	network  NetworkLocator
	geocoder domain.ReverseGeocoder
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	opts     AcquireOptions
	cacheTTL time.Duration

	// sem admits one acquisition at a time; waiting is cancellable.
	sem chan struct{}
	// commitMu orders cache replacement with listener dispatch across
	// acquisitions and watch readings.
	commitMu sync.Mutex
	cache    atomic.Pointer[domain.Location]

	locations emitter[domain.Location]
	errs      emitter[error]

	watchMu     sync.Mutex
	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// New creates a Provider reading from device.
func New(device DeviceLocator, opts ...Option) *Provider {
	p := &Provider{
		device:   device,
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
		metrics:  observability.NewUnregisteredMetrics(),
		opts:     AcquireOptions{HighAccuracy: true, Timeout: DefaultTimeout},
		cacheTTL: domain.DefaultCacheExpiry,
		sem:      make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(p)
	}

	onPanic := func(kind string) func(any) {
		return func(r any) {
			p.metrics.ListenerPanics.Inc()
			p.logger.Error("listener panicked", "listener", kind, "panic", r)
		}
	}
	p.locations.onPanic = onPanic("location")
	p.errs.onPanic = onPanic("error")
	return p
}

// CheckPermission reports the device's location permission. Devices that
// cannot be queried, or whose query fails, report unknown.
func (p *Provider) CheckPermission(ctx context.Context) domain.PermissionState {
	unknown := domain.PermissionState{State: domain.PermissionUnknown, CanRequest: true}

	q, ok := p.device.(PermissionQuerier)
	if !ok {
		return unknown
	}
	status, err := q.QueryPermission(ctx)
	if err != nil {
		p.logger.Debug("permission query failed", "error", err)
		return unknown
	}

	switch status {
	case domain.PermissionGranted, domain.PermissionDenied, domain.PermissionPrompt:
		return domain.PermissionState{State: status, CanRequest: status != domain.PermissionDenied}
	default:
		return unknown
	}
}

// GetCurrentPosition acquires a fresh position. When the device fails it falls
// back to the network locator, then to a fresh cached location (returned with
// source "cache" and not re-broadcast). If everything fails the error wraps
// domain.ErrNoLocationAvailable and the device error.
//
// Concurrent calls are serialized. A caller whose context ends gets the
// context error and its result is neither cached nor broadcast.
func (p *Provider) GetCurrentPosition(ctx context.Context) (domain.Location, error) {
	if err := p.lock(ctx); err != nil {
		return domain.Location{}, err
	}
	defer p.unlock()

	start := p.clock.Now()
	defer func() { p.metrics.PositionDuration.Observe(p.clock.Since(start).Seconds()) }()

	loc, deviceErr := p.fromDevice(ctx)
	if deviceErr == nil {
		return p.finish(ctx, loc, "device")
	}
	if ctx.Err() != nil {
		return p.abandon(ctx)
	}
	p.logger.Warn("device position failed", "error", deviceErr)

	if p.network != nil {
		loc, err := p.fromNetwork(ctx)
		if err == nil {
			return p.finish(ctx, loc, "network")
		}
		if ctx.Err() != nil {
			return p.abandon(ctx)
		}
		p.logger.Warn("ip fallback failed", "error", fmt.Errorf("%w: %w", domain.ErrIPFallbackFailed, err))
	}

	if cached, ok := p.LastKnown(); ok {
		p.metrics.PositionRequests.WithLabelValues("cache").Inc()
		p.logger.Info("using cached location", "age", p.clock.Since(cached.Timestamp), "source", cached.Source)
		cached.Source = domain.SourceCache
		return cached, nil
	}

	p.metrics.PositionRequests.WithLabelValues("failed").Inc()
	return domain.Location{}, fmt.Errorf("%w: %w", domain.ErrNoLocationAvailable, deviceErr)
}

// SetManualLocation records a user-supplied position. It is validated,
// reverse geocoded, cached and broadcast like any other acquisition.
func (p *Provider) SetManualLocation(ctx context.Context, coords domain.Coordinates) (domain.Location, error) {
	if err := coords.Validate(); err != nil {
		return domain.Location{}, err
	}
	if err := p.lock(ctx); err != nil {
		return domain.Location{}, err
	}
	defer p.unlock()

	return p.finish(ctx, p.locate(ctx, coords, domain.SourceManual), "manual")
}

// LastKnown returns the cached location if it is still fresh.
func (p *Provider) LastKnown() (domain.Location, bool) {
	loc := p.cache.Load()
	if loc == nil || loc.Stale(p.clock.Now(), p.cacheTTL) {
		return domain.Location{}, false
	}
	return *loc, true
}

// ClearCache drops the cached location.
func (p *Provider) ClearCache() {
	p.cache.Store(nil)
}

// OnLocationUpdate registers fn for every successful acquisition.
func (p *Provider) OnLocationUpdate(fn func(domain.Location)) (unsubscribe func()) {
	return p.locations.subscribe(fn)
}

// OnError registers fn for watch reading failures.
func (p *Provider) OnError(fn func(error)) (unsubscribe func()) {
	return p.errs.subscribe(fn)
}

func (p *Provider) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Provider) unlock() { <-p.sem }

func (p *Provider) fromDevice(ctx context.Context) (domain.Location, error) {
	dctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	coords, err := p.device.CurrentPosition(dctx, p.opts)
	if err != nil {
		if ctx.Err() == nil && errors.Is(dctx.Err(), context.DeadlineExceeded) {
			return domain.Location{}, fmt.Errorf("%w after %s: %w", domain.ErrAcquisitionTimeout, p.opts.Timeout, err)
		}
		return domain.Location{}, err
	}
	if err := coords.Validate(); err != nil {
		return domain.Location{}, fmt.Errorf("%w: %w", domain.ErrPositionUnavailable, err)
	}
	return p.locate(ctx, coords, domain.SourceDevice), nil
}

func (p *Provider) fromNetwork(ctx context.Context) (domain.Location, error) {
	fix, err := p.network.Locate(ctx)
	if err != nil {
		return domain.Location{}, err
	}
	if err := fix.Coordinates.Validate(); err != nil {
		return domain.Location{}, err
	}

	coords := fix.Coordinates
	accuracy := domain.NetworkAccuracyMeters
	coords.Accuracy = &accuracy

	if fix.Address == (domain.Address{}) {
		return p.locate(ctx, coords, domain.SourceNetwork), nil
	}
	return domain.Location{
		Coordinates: coords,
		Address:     fix.Address.Complete(),
		Timestamp:   p.clock.Now(),
		Source:      domain.SourceNetwork,
	}, nil
}

// locate attaches an address and timestamp to coords.
func (p *Provider) locate(ctx context.Context, coords domain.Coordinates, source domain.Source) domain.Location {
	return domain.Location{
		Coordinates: coords,
		Address:     domain.ResolveAddress(ctx, coords, p.geocoder, p.logger),
		Timestamp:   p.clock.Now(),
		Source:      source,
	}
}

func (p *Provider) finish(ctx context.Context, loc domain.Location, outcome string) (domain.Location, error) {
	if err := p.commit(ctx, loc); err != nil {
		return p.abandon(ctx)
	}
	p.metrics.PositionRequests.WithLabelValues(outcome).Inc()
	p.logger.Debug("location acquired",
		"source", loc.Source,
		"geohash", loc.Geohash(7),
		"city", loc.Address.City,
	)
	return loc, nil
}

func (p *Provider) abandon(ctx context.Context) (domain.Location, error) {
	p.metrics.PositionRequests.WithLabelValues("abandoned").Inc()
	return domain.Location{}, ctx.Err()
}

// commit replaces the cache and notifies listeners unless ctx has ended.
func (p *Provider) commit(ctx context.Context, loc domain.Location) error {
	p.commitMu.Lock()
	defer p.commitMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	stored := loc
	p.cache.Store(&stored)
	p.locations.emit(loc)
	return nil
}
