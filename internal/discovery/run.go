package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

// DefaultRefreshInterval is how often Run re-acquires the position when not
// watching.
const DefaultRefreshInterval = 5 * time.Minute

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// CheckReadiness returns nil once the session holds a fresh location.
func (s *Session) CheckReadiness(_ context.Context) error {
	if _, ok := s.locator.LastKnown(); !ok {
		return errors.New("no fresh location acquired yet")
	}
	return nil
}

// Run keeps the position fresh until ctx is cancelled. With Watch enabled it
// delegates to the locator's watch mode; otherwise, or once the watch ends, it
// re-acquires every RefreshInterval, backing off on failure.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("session started",
		"refresh_interval", s.cfg.RefreshInterval,
		"watch", s.cfg.Watch,
		"max_radius_km", s.cfg.MaxRadiusKm,
	)
	s.metrics.SessionRunning.Set(1)
	defer s.metrics.SessionRunning.Set(0)

	if s.cfg.Watch {
		if err := s.locator.StartWatching(ctx); err != nil {
			s.logger.Warn("position watch unavailable, polling instead", "error", err)
		} else {
			select {
			case <-ctx.Done():
				s.locator.StopWatching()
				s.logger.Info("session stopping", "reason", ctx.Err())
				return nil
			case <-s.locator.WatchDone():
				s.locator.StopWatching()
				s.logger.Warn("position watch ended, polling instead")
			}
		}
	}

	backoff := initialBackoff
	for {
		wait := s.refresh(ctx, &backoff)
		if ctx.Err() != nil || !sleepWithContext(ctx, s.clock, wait) {
			s.logger.Info("session stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// refresh acquires a position once and returns how long to wait before the
// next attempt.
func (s *Session) refresh(ctx context.Context, backoff *time.Duration) time.Duration {
	loc, err := s.locator.GetCurrentPosition(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0
		}
		wait := *backoff
		s.logger.Error("position refresh failed", "error", err, "retry_in", wait)
		*backoff = retry.NextBackoff(*backoff, maxBackoff)
		return wait
	}

	*backoff = initialBackoff
	s.logger.Debug("position refreshed", "source", loc.Source, "geohash", loc.Geohash(7))
	return s.cfg.RefreshInterval
}

// sleepWithContext is retry.SleepWithContext on an injectable clock.
func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
