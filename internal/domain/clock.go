package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// ClockContext is the time source for time-sensitive scoring. It pairs a
// clock with the requester's local time zone. A ClockContext without a zone
// has no reliable local time, and every time-of-day adjustment becomes
// neutral so results are reproducible across hosts.
type ClockContext struct {
	clock clockwork.Clock
	loc   *time.Location
}

// NewClockContext returns a ClockContext reading from clock. Pass a nil loc
// when the requester's local zone is unknown. A nil clock uses real time.
func NewClockContext(clock clockwork.Clock, loc *time.Location) ClockContext {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return ClockContext{clock: clock, loc: loc}
}

// NoLocalTime returns a ClockContext with no reliable local time.
func NoLocalTime(clock clockwork.Clock) ClockContext {
	return NewClockContext(clock, nil)
}

// Now returns the current instant.
func (c ClockContext) Now() time.Time {
	if c.clock == nil {
		return time.Now()
	}
	return c.clock.Now()
}

// LocalTime returns the current wall-clock time in the requester's zone.
// ok is false when no zone is known.
func (c ClockContext) LocalTime() (t time.Time, ok bool) {
	if c.loc == nil {
		return time.Time{}, false
	}
	return c.Now().In(c.loc), true
}
