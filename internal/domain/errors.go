package domain

import "errors"

// Position acquisition failures. Device-level errors are only surfaced after
// the network fallback and cache check have also failed, wrapped in
// ErrNoLocationAvailable.
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrAcquisitionTimeout  = errors.New("position acquisition timed out")
	ErrNoLocationAvailable = errors.New("no location available")
)

// Recoverable collaborator failures. These are logged and absorbed: a failed
// reverse lookup degrades to PlaceholderAddress and a failed IP lookup falls
// through to the cache check.
var (
	ErrGeocodingFailed  = errors.New("reverse geocoding failed")
	ErrIPFallbackFailed = errors.New("ip geolocation fallback failed")
)

// Input validation failures.
var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrInvalidCandidate   = errors.New("invalid candidate")
)
