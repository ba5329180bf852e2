package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ProviderCandidate is an externally supplied service provider. The matching
// core never mutates candidates.
type ProviderCandidate struct {
	ID              string      `json:"id" validate:"required"`
	Name            string      `json:"name,omitempty"`
	Coordinates     Coordinates `json:"coordinates"`
	Category        string      `json:"category" validate:"required"`
	HourlyRate      float64     `json:"hourly_rate" validate:"gte=0"`
	Rating          float64     `json:"rating" validate:"gte=0,lte=5"`
	ReviewCount     int         `json:"review_count" validate:"gte=0"`
	CompletedJobs   int         `json:"completed_jobs" validate:"gte=0"`
	ResponseTime    string      `json:"response_time"`
	Availability    string      `json:"availability"`
	Verified        bool        `json:"verified"`
	IsAvailableNow  bool        `json:"is_available_now"`
	UrgencyTags     []string    `json:"urgency_tags,omitempty"`
	ServiceRadiusKm *float64    `json:"service_radius_km,omitempty" validate:"omitempty,gt=0"`
}

// HasUrgencyTag reports whether the candidate carries tag (case-insensitive).
func (c ProviderCandidate) HasUrgencyTag(tag string) bool {
	for _, t := range c.UrgencyTags {
		if strings.EqualFold(strings.TrimSpace(t), tag) {
			return true
		}
	}
	return false
}

// AvailabilityWindow buckets the candidate's availability.
func (c ProviderCandidate) AvailabilityWindow() AvailabilityWindow {
	if c.IsAvailableNow {
		return WindowNow
	}
	return parseAvailability(c.Availability)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateCandidate checks a single candidate's fields and coordinates.
func ValidateCandidate(c ProviderCandidate) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w %q: %s", ErrInvalidCandidate, c.ID, describeValidation(err))
	}
	if err := c.Coordinates.Validate(); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidCandidate, c.ID, err)
	}
	return nil
}

// ValidateCandidates checks every candidate and reports all failures together.
func ValidateCandidates(candidates []ProviderCandidate) error {
	var errs []error
	for i := range candidates {
		if err := ValidateCandidate(candidates[i]); err != nil {
			errs = append(errs, fmt.Errorf("candidate %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// ValidateStruct runs tag validation on any request-shaped value.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return errors.New(describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
