package discovery_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/service-match/internal/discovery"
	"github.com/couchcryptid/service-match/internal/domain"
)

var (
	seattle     = domain.Coordinates{Latitude: 47.6062, Longitude: -122.3321}
	spaceNeedle = domain.Coordinates{Latitude: 47.6205, Longitude: -122.3493}
	// 2024-04-26 is a Friday.
	friday8am = time.Date(2024, time.April, 26, 8, 0, 0, 0, time.UTC)
)

// kmPerDegreeLat matches the 6371 km sphere used for distances.
const kmPerDegreeLat = 111.19492664455873

func north(from domain.Coordinates, km float64) domain.Coordinates {
	return domain.Coordinates{Latitude: from.Latitude + km/kmPerDegreeLat, Longitude: from.Longitude}
}

func candidate(id string, coords domain.Coordinates) domain.ProviderCandidate {
	return domain.ProviderCandidate{
		ID:            id,
		Name:          "Provider " + id,
		Coordinates:   coords,
		Category:      "plumbing",
		HourlyRate:    85,
		Rating:        4.5,
		ReviewCount:   40,
		CompletedJobs: 120,
		ResponseTime:  "30 min",
		Availability:  "this week",
	}
}

func locationAt(coords domain.Coordinates, source domain.Source) domain.Location {
	return domain.Location{
		Coordinates: coords,
		Address:     domain.PlaceholderAddress(),
		Timestamp:   friday8am,
		Source:      source,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- fake locator ---

type fakeLocator struct {
	mu       sync.Mutex
	cached   *domain.Location
	results  []error // consumed one per GetCurrentPosition call; nil means success
	current  domain.Location
	calls    int
	manual   []domain.Coordinates
	watchErr error
	watchEnd chan struct{}
	watching bool
	stopped  bool
}

func newFakeLocator(current domain.Location) *fakeLocator {
	return &fakeLocator{current: current}
}

func (l *fakeLocator) LastKnown() (domain.Location, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cached == nil {
		return domain.Location{}, false
	}
	return *l.cached, true
}

func (l *fakeLocator) GetCurrentPosition(context.Context) (domain.Location, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if len(l.results) > 0 {
		err := l.results[0]
		l.results = l.results[1:]
		if err != nil {
			return domain.Location{}, err
		}
	}
	loc := l.current
	l.cached = &loc
	return loc, nil
}

func (l *fakeLocator) SetManualLocation(_ context.Context, coords domain.Coordinates) (domain.Location, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.manual = append(l.manual, coords)
	loc := locationAt(coords, domain.SourceManual)
	l.cached = &loc
	return loc, nil
}

func (l *fakeLocator) StartWatching(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watchErr != nil {
		return l.watchErr
	}
	l.watching = true
	l.watchEnd = make(chan struct{})
	return nil
}

func (l *fakeLocator) WatchDone() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.watchEnd
}

// endWatch simulates the device closing its watch.
func (l *fakeLocator) endWatch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watching = false
	close(l.watchEnd)
}

func (l *fakeLocator) StopWatching() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watching = false
	l.stopped = true
}

func (l *fakeLocator) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func (l *fakeLocator) isWatching() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.watching
}

// --- fake publisher ---

type fakePublisher struct {
	reports []discovery.Report
	err     error
}

func (p *fakePublisher) PublishReport(_ context.Context, r discovery.Report) error {
	p.reports = append(p.reports, r)
	return p.err
}

var errBrokerDown = errors.New("broker unavailable")
