package domain

import (
	"time"

	"github.com/mmcloughlin/geohash"
)

// DefaultCacheExpiry is how long an acquired Location stays usable.
const DefaultCacheExpiry = 10 * time.Minute

// NetworkAccuracyMeters is the accuracy reported for IP-derived positions.
const NetworkAccuracyMeters = 10000.0

// Source records how a Location was obtained.
type Source string

const (
	SourceDevice  Source = "device"
	SourceNetwork Source = "network"
	SourceManual  Source = "manual"
	SourceCache   Source = "cache"
)

// Address is a human-readable place produced by reverse geocoding.
type Address struct {
	Street      string `json:"street,omitempty"`
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
	PostalCode  string `json:"postal_code,omitempty"`
	CountryCode string `json:"country_code"`
}

// PlaceholderAddress is used whenever reverse geocoding cannot resolve a
// position. It never blocks position acquisition.
func PlaceholderAddress() Address {
	return Address{
		City:        "Unknown City",
		State:       "Unknown State",
		Country:     "Unknown Country",
		CountryCode: "XX",
	}
}

// IsPlaceholder reports whether a is the placeholder address.
func (a Address) IsPlaceholder() bool {
	return a == PlaceholderAddress()
}

// Location is one successful position acquisition. A newer acquisition
// supersedes it; it is never mutated after creation.
type Location struct {
	Coordinates Coordinates `json:"coordinates"`
	Address     Address     `json:"address"`
	Timestamp   time.Time   `json:"timestamp"`
	Source      Source      `json:"source"`
}

// TimestampMillis returns the acquisition time in Unix milliseconds.
func (l Location) TimestampMillis() int64 {
	return l.Timestamp.UnixMilli()
}

// Stale reports whether the location is older than ttl at now.
func (l Location) Stale(now time.Time, ttl time.Duration) bool {
	return now.Sub(l.Timestamp) > ttl
}

// Geohash returns the location's geohash at the given precision (1–12).
func (l Location) Geohash(precision uint) string {
	return geohash.EncodeWithPrecision(l.Coordinates.Latitude, l.Coordinates.Longitude, precision)
}

// PermissionStatus is the platform's answer to a location permission query.
type PermissionStatus string

const (
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
	PermissionPrompt  PermissionStatus = "prompt"
	PermissionUnknown PermissionStatus = "unknown"
)

// PermissionState is a read-only snapshot of location permission.
type PermissionState struct {
	State      PermissionStatus `json:"state"`
	CanRequest bool             `json:"can_request"`
}
