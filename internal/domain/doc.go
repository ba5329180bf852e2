// Package domain models location-aware matching between a requester and
// local service providers.
//
// # Coordinates
//
// All positions are WGS-84 latitude/longitude in decimal degrees. Latitude
// must lie in [-90, 90] and longitude in [-180, 180]. Device-reported extras
// (accuracy in meters, altitude in meters, heading in degrees, speed in m/s)
// are optional and carried as pointers.
//
// Distances use the Haversine formula on a sphere of radius 6371 km
// (3956 miles) and are rounded to two decimals:
//
//	Seattle (47.6062, -122.3321) -> (47.6205, -122.3493) = 2.05 km, bearing ~321°
//
// # Descriptors
//
// Providers describe their response time as free text. Recognised forms:
//
//	"instant", "immediate"      -> 0 minutes
//	"5 min", "15 min", "30 min" -> that many minutes
//	"1 hour", "2 hours"         -> 60 / 120 minutes
//
// Anything else falls back to a 30 minute default for arrival estimates and
// the lowest band for locality scoring. Availability descriptors are bucketed
// into now, today, this_week or flexible.
//
// # Scoring
//
// A MatchResult combines five 0–100 subscores with fixed weights:
//
//	proximity 30%, urgency 20%, availability 20%, quality 15%, locality 15%
//
// The composite is scaled by a time-of-day multiplier, clamped to [0, 100]
// and rounded to two decimals. Time-of-day and traffic adjustments read the
// requester's local clock through a ClockContext; without a known zone they
// are exactly 1.0.
package domain
