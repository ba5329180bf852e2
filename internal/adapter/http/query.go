package http

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/couchcryptid/service-match/internal/discovery"
	"github.com/couchcryptid/service-match/internal/domain"
)

// parseMatchQuery reads GET /v1/matches parameters:
//
//	category, min_rate, max_rate, min_rating, verified_only, availability,
//	urgency, radius_km, traffic_aware, lat + lon (origin override).
//
// Range checks are left to Session.Discover.
func parseMatchQuery(q url.Values) (discovery.Filters, discovery.Options, error) {
	var (
		f   discovery.Filters
		o   discovery.Options
		err error
	)
	f.Category = q.Get("category")
	f.Availability = domain.AvailabilityWindow(q.Get("availability"))
	o.Urgency = domain.UrgencyLevel(q.Get("urgency"))

	if f.MinHourlyRate, err = optionalFloat(q, "min_rate"); err != nil {
		return f, o, err
	}
	if f.MaxHourlyRate, err = optionalFloat(q, "max_rate"); err != nil {
		return f, o, err
	}
	if v, err := optionalFloat(q, "min_rating"); err != nil {
		return f, o, err
	} else if v != nil {
		f.MinRating = *v
	}
	if v, err := optionalFloat(q, "radius_km"); err != nil {
		return f, o, err
	} else if v != nil {
		o.MaxRadiusKm = *v
	}
	if v, err := optionalBool(q, "verified_only"); err != nil {
		return f, o, err
	} else if v != nil {
		f.VerifiedOnly = *v
	}
	if o.TrafficAware, err = optionalBool(q, "traffic_aware"); err != nil {
		return f, o, err
	}

	lat, err := optionalFloat(q, "lat")
	if err != nil {
		return f, o, err
	}
	lon, err := optionalFloat(q, "lon")
	if err != nil {
		return f, o, err
	}
	switch {
	case lat != nil && lon != nil:
		o.Origin = &domain.Coordinates{Latitude: *lat, Longitude: *lon}
	case lat != nil || lon != nil:
		return f, o, fmt.Errorf("%w: lat and lon must be given together", domain.ErrInvalidCoordinates)
	}
	return f, o, nil
}

func optionalFloat(q url.Values, key string) (*float64, error) {
	s := q.Get(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", discovery.ErrInvalidFilters, key)
	}
	return &v, nil
}

func optionalBool(q url.Values, key string) (*bool, error) {
	s := q.Get(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a boolean", discovery.ErrInvalidFilters, key)
	}
	return &v, nil
}
