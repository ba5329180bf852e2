package domain

import "context"

// ReverseGeocoder resolves coordinates to an Address.
type ReverseGeocoder interface {
	// ReverseGeocode converts coordinates to place details. An empty Address
	// with a nil error means the provider had no match.
	ReverseGeocode(ctx context.Context, coords Coordinates) (Address, error)
}
