package domain

import (
	"context"
	"log/slog"
)

// ResolveAddress reverse geocodes coords. If geocoder is nil, fails, or has no
// match, the placeholder address is returned (graceful degradation); the
// failure never propagates to the caller.
func ResolveAddress(ctx context.Context, coords Coordinates, geocoder ReverseGeocoder, logger *slog.Logger) Address {
	if geocoder == nil {
		return PlaceholderAddress()
	}

	addr, err := geocoder.ReverseGeocode(ctx, coords)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", coords.Latitude,
			"lon", coords.Longitude,
			"error", err,
		)
		return PlaceholderAddress()
	}
	if addr == (Address{}) {
		return PlaceholderAddress()
	}
	return addr.Complete()
}

// Complete fills the parts a partial match left empty with the placeholder
// values, so a result without a city still reads sensibly.
func (a Address) Complete() Address {
	ph := PlaceholderAddress()
	if a.City == "" {
		a.City = ph.City
	}
	if a.State == "" {
		a.State = ph.State
	}
	if a.Country == "" {
		a.Country = ph.Country
	}
	if a.CountryCode == "" {
		a.CountryCode = ph.CountryCode
	}
	return a
}
