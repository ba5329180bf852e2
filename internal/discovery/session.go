// Package discovery runs discovery requests end to end: it resolves the
// requester's position, applies attribute filters, keeps candidates inside
// the search radius and ranks them.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/couchcryptid/service-match/internal/domain"
	"github.com/couchcryptid/service-match/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrDiscoveryFailed is returned when no usable position could be resolved.
// It wraps the position provider's error.
var ErrDiscoveryFailed = errors.New("discovery failed")

// Locator is the position source a Session depends on. *position.Provider
// implements it.
type Locator interface {
	LastKnown() (domain.Location, bool)
	GetCurrentPosition(ctx context.Context) (domain.Location, error)
	SetManualLocation(ctx context.Context, coords domain.Coordinates) (domain.Location, error)
	StartWatching(ctx context.Context) error
	StopWatching()
	WatchDone() <-chan struct{}
}

// ReportPublisher receives every completed report.
type ReportPublisher interface {
	PublishReport(ctx context.Context, report Report) error
}

// Options are per-request settings.
type Options struct {
	// Origin overrides the acquired position and is recorded as the
	// provider's manual location.
	Origin *domain.Coordinates `json:"origin,omitempty"`
	// MaxRadiusKm overrides the session's search radius when positive.
	MaxRadiusKm  float64             `json:"max_radius_km,omitempty" validate:"gte=0"`
	Urgency      domain.UrgencyLevel `json:"urgency,omitempty" validate:"omitempty,oneof=low medium high emergency"`
	TrafficAware *bool               `json:"traffic_aware,omitempty"`
}

// Report is the outcome of one discovery request.
type Report struct {
	RequestID   string               `json:"request_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Origin      domain.Location      `json:"origin"`
	RadiusKm    float64              `json:"radius_km"`
	Considered  int                  `json:"considered"`
	Filtered    int                  `json:"filtered"`
	OutOfRange  int                  `json:"out_of_range"`
	Results     []domain.MatchResult `json:"results"`
}

// Config holds session-wide defaults.
type Config struct {
	MaxRadiusKm       float64
	PreferredRadiusKm float64
	TrafficAware      bool
	// LocalZone is the requester's time zone. Nil means there is no reliable
	// local time and time-of-day adjustments are neutral.
	LocalZone       *time.Location
	RefreshInterval time.Duration
	Watch           bool
}

// Session orchestrates discovery requests against one Locator.
type Session struct {
	locator   Locator
	cfg       Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	publisher ReportPublisher
	observer  StateObserver
}

// Option configures a Session.
type Option func(*Session)

// WithPublisher sends every completed report to p.
func WithPublisher(p ReportPublisher) Option {
	return func(s *Session) { s.publisher = p }
}

func WithClock(c clockwork.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithStateObserver registers fn for every state transition.
func WithStateObserver(fn StateObserver) Option {
	return func(s *Session) { s.observer = fn }
}

// New creates a Session with the given locator, defaults and observability.
func New(locator Locator, cfg Config, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Session {
	if cfg.MaxRadiusKm <= 0 {
		cfg.MaxRadiusKm = domain.DefaultMaxRadiusKm
	}
	if cfg.PreferredRadiusKm <= 0 {
		cfg.PreferredRadiusKm = domain.DefaultPreferredRadiusKm
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	s := &Session{
		locator: locator,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		clock:   clockwork.NewRealClock(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Discover ranks candidates for the requester. Malformed candidates are
// rejected before any work with domain.ErrInvalidCandidate. An empty result
// is not an error.
func (s *Session) Discover(ctx context.Context, candidates []domain.ProviderCandidate, f Filters, o Options) (Report, error) {
	start := s.clock.Now()
	tr := &tracker{requestID: uuid.NewString(), logger: s.logger, observer: s.observer}
	report := Report{RequestID: tr.requestID, Considered: len(candidates)}

	if err := s.validate(candidates, f, o); err != nil {
		s.metrics.DiscoveryRequests.WithLabelValues("invalid").Inc()
		return report, err
	}

	tr.to(StateAcquiringLocation)
	origin, err := s.origin(ctx, o)
	if err != nil {
		tr.to(StateError)
		s.metrics.DiscoveryRequests.WithLabelValues("no_location").Inc()
		s.logger.Error("discovery failed", "request_id", tr.requestID, "error", err)
		return report, fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
	}
	report.Origin = origin

	tr.to(StateFiltering)
	kept, excluded := f.Apply(candidates)
	report.Filtered = len(candidates) - len(kept)
	report.RadiusKm = s.radius(o)
	near := domain.FilterWithinRadius(kept, origin.Coordinates, report.RadiusKm)
	report.OutOfRange = len(kept) - len(near)

	tr.to(StateRanking)
	report.Results = s.rank(near, f, o)

	tr.to(StateComplete)
	report.GeneratedAt = s.clock.Now()

	s.metrics.DiscoveryRequests.WithLabelValues("ok").Inc()
	s.metrics.DiscoveryDuration.Observe(s.clock.Since(start).Seconds())
	s.metrics.ResultsReturned.Observe(float64(len(report.Results)))
	s.logger.Info("discovery complete",
		"request_id", report.RequestID,
		"source", origin.Source,
		"considered", report.Considered,
		"filtered", report.Filtered,
		"excluded_by", excluded,
		"out_of_range", report.OutOfRange,
		"results", len(report.Results),
	)

	s.publish(ctx, report)
	return report, nil
}

func (s *Session) validate(candidates []domain.ProviderCandidate, f Filters, o Options) error {
	if err := domain.ValidateCandidates(candidates); err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return err
	}
	if o.Origin != nil {
		if err := o.Origin.Validate(); err != nil {
			return fmt.Errorf("origin: %w", err)
		}
	}
	if err := domain.ValidateStruct(o); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilters, err)
	}
	return nil
}

func (s *Session) origin(ctx context.Context, o Options) (domain.Location, error) {
	if o.Origin != nil {
		return s.locator.SetManualLocation(ctx, *o.Origin)
	}
	if loc, ok := s.locator.LastKnown(); ok {
		return loc, nil
	}
	return s.locator.GetCurrentPosition(ctx)
}

func (s *Session) radius(o Options) float64 {
	if o.MaxRadiusKm > 0 {
		return o.MaxRadiusKm
	}
	return s.cfg.MaxRadiusKm
}

// rank scores every candidate and orders them by descending relevance,
// keeping input order among equal scores.
func (s *Session) rank(near []domain.Proximity, f Filters, o Options) []domain.MatchResult {
	ranker := domain.Ranker{
		PreferredRadiusKm: s.cfg.PreferredRadiusKm,
		MaxRadiusKm:       s.radius(o),
		Clock:             domain.NewClockContext(s.clock, s.cfg.LocalZone),
	}
	req := domain.RankRequest{
		Urgency:      o.Urgency,
		Availability: f.Availability,
		TrafficAware: s.cfg.TrafficAware,
	}
	if o.TrafficAware != nil {
		req.TrafficAware = *o.TrafficAware
	}

	type scored struct {
		result domain.MatchResult
		index  int
	}
	all := make([]scored, len(near))
	for i, p := range near {
		all[i] = scored{result: ranker.Score(p, req), index: p.Index}
	}
	slices.SortStableFunc(all, func(a, b scored) int {
		switch {
		case a.result.RelevanceScore > b.result.RelevanceScore:
			return -1
		case a.result.RelevanceScore < b.result.RelevanceScore:
			return 1
		}
		return a.index - b.index
	})

	results := make([]domain.MatchResult, len(all))
	for i, sc := range all {
		results[i] = sc.result
	}
	return results
}

func (s *Session) publish(ctx context.Context, report Report) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishReport(ctx, report); err != nil {
		s.metrics.ReportsPublished.WithLabelValues("error").Inc()
		s.logger.Warn("publish report failed", "request_id", report.RequestID, "error", err)
		return
	}
	s.metrics.ReportsPublished.WithLabelValues("success").Inc()
}
