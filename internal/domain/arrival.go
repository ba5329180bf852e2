package domain

import (
	"math"
	"time"
)

const (
	averageUrbanSpeedKmh   = 30.0
	defaultResponseMinutes = 30
	outOfAreaPenalty       = 1.2
)

// ArrivalEstimator converts distance and provider responsiveness into an
// estimated minutes-to-arrival.
type ArrivalEstimator struct {
	Clock ClockContext
}

// Estimate returns the rounded minutes until the candidate could arrive
// distanceKm away. With trafficAware set, travel time is scaled by the
// requester's local traffic conditions.
func (e ArrivalEstimator) Estimate(c ProviderCandidate, distanceKm float64, trafficAware bool) int {
	travel := distanceKm / averageUrbanSpeedKmh * 60
	response := ResponseMinutes(c.ResponseTime)

	if c.ServiceRadiusKm != nil && distanceKm > *c.ServiceRadiusKm {
		travel *= outOfAreaPenalty
	}
	if trafficAware {
		travel *= e.TrafficFactor()
	}

	return int(math.Round(float64(response) + travel))
}

// ResponseMinutes maps a response-time descriptor to minutes, defaulting to
// 30 for anything unrecognised.
func ResponseMinutes(desc string) int {
	rt := parseResponseTime(desc)
	if !rt.known {
		return defaultResponseMinutes
	}
	return rt.minutes
}

// TrafficFactor is the travel-time multiplier for the requester's local time:
// weekends 0.9, weekday rush hours (07–09, 17–19) 1.5, weekday moderate
// hours (10–16, 20–22) 1.2, otherwise 1.0. It is 1.0 without a local clock.
func (e ArrivalEstimator) TrafficFactor() float64 {
	now, ok := e.Clock.LocalTime()
	if !ok {
		return 1.0
	}
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return 0.9
	}

	h := now.Hour()
	switch {
	case (h >= 7 && h <= 9) || (h >= 17 && h <= 19):
		return 1.5
	case (h >= 10 && h <= 16) || (h >= 20 && h <= 22):
		return 1.2
	default:
		return 1.0
	}
}
