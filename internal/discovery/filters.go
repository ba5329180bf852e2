package discovery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/service-match/internal/domain"
)

// ErrInvalidFilters is returned when a request's filters contradict each other
// or fall outside their valid ranges.
var ErrInvalidFilters = errors.New("invalid filters")

// Filters are the cheap attribute predicates applied before any geospatial
// work. Zero values disable a filter.
type Filters struct {
	Category      string                    `json:"category,omitempty"`
	MinHourlyRate *float64                  `json:"min_hourly_rate,omitempty" validate:"omitempty,gte=0"`
	MaxHourlyRate *float64                  `json:"max_hourly_rate,omitempty" validate:"omitempty,gte=0"`
	MinRating     float64                   `json:"min_rating,omitempty" validate:"gte=0,lte=5"`
	VerifiedOnly  bool                      `json:"verified_only,omitempty"`
	Availability  domain.AvailabilityWindow `json:"availability,omitempty" validate:"omitempty,oneof=now today this_week"`
}

// Validate checks field ranges and that the price range is not inverted.
func (f Filters) Validate() error {
	if err := domain.ValidateStruct(f); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilters, err)
	}
	if f.MinHourlyRate != nil && f.MaxHourlyRate != nil && *f.MinHourlyRate > *f.MaxHourlyRate {
		return fmt.Errorf("%w: min hourly rate %v exceeds max %v", ErrInvalidFilters, *f.MinHourlyRate, *f.MaxHourlyRate)
	}
	return nil
}

type predicate struct {
	name string
	keep func(domain.ProviderCandidate) bool
}

// predicates returns the active filters in evaluation order: category, price
// range, rating floor, verified flag, availability.
func (f Filters) predicates() []predicate {
	var ps []predicate
	if f.Category != "" {
		ps = append(ps, predicate{"category", func(c domain.ProviderCandidate) bool {
			return strings.EqualFold(strings.TrimSpace(c.Category), strings.TrimSpace(f.Category))
		}})
	}
	if f.MinHourlyRate != nil || f.MaxHourlyRate != nil {
		ps = append(ps, predicate{"price", func(c domain.ProviderCandidate) bool {
			if f.MinHourlyRate != nil && c.HourlyRate < *f.MinHourlyRate {
				return false
			}
			return f.MaxHourlyRate == nil || c.HourlyRate <= *f.MaxHourlyRate
		}})
	}
	if f.MinRating > 0 {
		ps = append(ps, predicate{"rating", func(c domain.ProviderCandidate) bool {
			return c.Rating >= f.MinRating
		}})
	}
	if f.VerifiedOnly {
		ps = append(ps, predicate{"verified", func(c domain.ProviderCandidate) bool {
			return c.Verified
		}})
	}
	if f.Availability != "" {
		ps = append(ps, predicate{"availability", func(c domain.ProviderCandidate) bool {
			return f.Availability.Covers(c.AvailabilityWindow())
		}})
	}
	return ps
}

// Apply returns the candidates passing every active filter, in input order.
// excluded counts rejections per filter name; a candidate is counted against
// the first filter it fails.
func (f Filters) Apply(candidates []domain.ProviderCandidate) (kept []domain.ProviderCandidate, excluded map[string]int) {
	ps := f.predicates()
	kept = make([]domain.ProviderCandidate, 0, len(candidates))
	excluded = make(map[string]int, len(ps))

next:
	for _, c := range candidates {
		for _, p := range ps {
			if !p.keep(c) {
				excluded[p.name]++
				continue next
			}
		}
		kept = append(kept, c)
	}
	return kept, excluded
}
