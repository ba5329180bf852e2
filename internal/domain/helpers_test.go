package domain

import (
	"context"
	"io"
	"log/slog"
	"math"
)

// kmPerDegreeLat is the length of one degree of latitude on the Haversine sphere.
const kmPerDegreeLat = earthRadiusKm * math.Pi / 180

func north(from Coordinates, km float64) Coordinates {
	return Coordinates{Latitude: from.Latitude + km/kmPerDegreeLat, Longitude: from.Longitude}
}

func candidateAt(id string, coords Coordinates) ProviderCandidate {
	return ProviderCandidate{
		ID:           id,
		Coordinates:  coords,
		Category:     "plumbing",
		HourlyRate:   80,
		Rating:       4.5,
		ReviewCount:  50,
		ResponseTime: "30 min",
		Availability: "this week",
	}
}

func ptr[T any](v T) *T { return &v }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- mock geocoder ---

type mockGeocoder struct {
	result Address
	err    error
	calls  int
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _ Coordinates) (Address, error) {
	m.calls++
	return m.result, m.err
}
