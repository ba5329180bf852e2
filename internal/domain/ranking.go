package domain

import (
	"math"
	"strings"
)

// Default radii for proximity scoring.
const (
	DefaultPreferredRadiusKm = 5.0
	DefaultMaxRadiusKm       = 25.0
)

// Subscore weights. They sum to 1.
const (
	weightProximity    = 0.30
	weightUrgency      = 0.20
	weightAvailability = 0.20
	weightQuality      = 0.15
	weightLocality     = 0.15
)

// UrgencyLevel is the requester's urgency.
type UrgencyLevel string

const (
	UrgencyNone      UrgencyLevel = ""
	UrgencyLow       UrgencyLevel = "low"
	UrgencyMedium    UrgencyLevel = "medium"
	UrgencyHigh      UrgencyLevel = "high"
	UrgencyEmergency UrgencyLevel = "emergency"
)

var urgencyBase = map[UrgencyLevel]float64{
	UrgencyEmergency: 100,
	UrgencyHigh:      85,
	UrgencyMedium:    65,
	UrgencyLow:       40,
}

// Subscores are the 0–100 inputs to the weighted composite.
type Subscores struct {
	Proximity    float64 `json:"proximity"`
	Urgency      float64 `json:"urgency"`
	Availability float64 `json:"availability"`
	Quality      float64 `json:"quality"`
	Locality     float64 `json:"locality"`
}

// LocalityFactors break down the locality subscore. Only NeighborhoodMatch
// feeds the composite; the rest are reported for transparency.
type LocalityFactors struct {
	NeighborhoodMatch float64 `json:"neighborhood_match"`
	LocalExperience   float64 `json:"local_experience"`
	ResponseTime      float64 `json:"response_time"`
	ProximityBoost    float64 `json:"proximity_boost"`
}

// MatchResult is one ranked candidate. Results are recomputed per request.
type MatchResult struct {
	Candidate               ProviderCandidate `json:"candidate"`
	DistanceKm              float64           `json:"distance_km"`
	BearingDegrees          float64           `json:"bearing_degrees"`
	RelevanceScore          float64           `json:"relevance_score"`
	Subscores               Subscores         `json:"subscores"`
	LocalityFactors         LocalityFactors   `json:"locality_factors"`
	EstimatedArrivalMinutes int               `json:"estimated_arrival_minutes"`
}

// RankRequest carries the requester preferences that affect scoring.
type RankRequest struct {
	Urgency      UrgencyLevel
	Availability AvailabilityWindow
	TrafficAware bool
}

// Ranker computes relevance scores for candidates already inside the search
// radius.
type Ranker struct {
	PreferredRadiusKm float64
	MaxRadiusKm       float64
	Clock             ClockContext
}

// NewRanker returns a Ranker with the default radii.
func NewRanker(clock ClockContext) Ranker {
	return Ranker{
		PreferredRadiusKm: DefaultPreferredRadiusKm,
		MaxRadiusKm:       DefaultMaxRadiusKm,
		Clock:             clock,
	}
}

// Score builds the MatchResult for p.
func (r Ranker) Score(p Proximity, req RankRequest) MatchResult {
	c := p.Candidate
	locality := LocalityScores(c, p.DistanceKm)
	subs := Subscores{
		Proximity:    r.ProximityScore(p.DistanceKm),
		Urgency:      UrgencyScore(c, req.Urgency),
		Availability: AvailabilityScore(c, req.Availability),
		Quality:      QualityScore(c),
		Locality:     locality.NeighborhoodMatch,
	}

	composite := subs.Proximity*weightProximity +
		subs.Urgency*weightUrgency +
		subs.Availability*weightAvailability +
		subs.Quality*weightQuality +
		subs.Locality*weightLocality

	score := clamp(composite*r.TimeOfDayMultiplier(), 0, 100)

	return MatchResult{
		Candidate:               c,
		DistanceKm:              p.DistanceKm,
		BearingDegrees:          p.BearingDegrees,
		RelevanceScore:          round2(score),
		Subscores:               subs,
		LocalityFactors:         locality,
		EstimatedArrivalMinutes: ArrivalEstimator{Clock: r.Clock}.Estimate(c, p.DistanceKm, req.TrafficAware),
	}
}

// ProximityScore is 100 inside the preferred radius, decays linearly to 0 at
// the max radius and is 0 beyond it.
func (r Ranker) ProximityScore(distanceKm float64) float64 {
	preferred, limit := r.radii()
	switch {
	case distanceKm <= preferred:
		return 100
	case distanceKm >= limit:
		return 0
	}
	return 100 * (limit - distanceKm) / (limit - preferred)
}

func (r Ranker) radii() (preferred, limit float64) {
	preferred, limit = r.PreferredRadiusKm, r.MaxRadiusKm
	if preferred <= 0 {
		preferred = DefaultPreferredRadiusKm
	}
	if limit <= preferred {
		limit = math.Max(DefaultMaxRadiusKm, preferred)
	}
	return preferred, limit
}

// TimeOfDayMultiplier scales the composite by local time: peak hours
// (09–11, 14–17) 1.1, moderate hours (06–08, 12–13, 18–20) 1.05, before 06 or
// after 22 0.95, otherwise 1.0. It is exactly 1.0 without a local clock.
func (r Ranker) TimeOfDayMultiplier() float64 {
	now, ok := r.Clock.LocalTime()
	if !ok {
		return 1.0
	}

	h := now.Hour()
	switch {
	case (h >= 9 && h <= 11) || (h >= 14 && h <= 17):
		return 1.1
	case (h >= 6 && h <= 8) || (h >= 12 && h <= 13) || (h >= 18 && h <= 20):
		return 1.05
	case h < 6 || h > 22:
		return 0.95
	default:
		return 1.0
	}
}

// UrgencyScore maps the requested urgency to a base score with bonuses for
// emergency-tagged and immediately available candidates.
func UrgencyScore(c ProviderCandidate, level UrgencyLevel) float64 {
	level = UrgencyLevel(strings.ToLower(string(level)))
	base, ok := urgencyBase[level]
	if !ok {
		return 50
	}

	if level == UrgencyEmergency && c.HasUrgencyTag("emergency") {
		base *= 1.2
	}
	if c.IsAvailableNow && (level == UrgencyEmergency || level == UrgencyHigh) {
		base *= 1.1
	}
	return math.Min(100, base)
}

// AvailabilityScore rewards immediate availability, fast response and a
// match with the requested availability window.
func AvailabilityScore(c ProviderCandidate, requested AvailabilityWindow) float64 {
	score := 50.0
	if c.IsAvailableNow {
		score += 30
	}

	switch parseResponseTime(c.ResponseTime).scale {
	case scaleInstant:
		score += 20
	case scaleMinutes:
		score += 15
	case scaleHours:
		score += 10
	}

	if requested.Covers(c.AvailabilityWindow()) {
		switch requested {
		case WindowNow:
			score += 20
		case WindowToday:
			score += 15
		case WindowThisWeek:
			score += 10
		}
	}
	return math.Min(100, score)
}

// QualityScore combines rating, review volume, job history and verification.
func QualityScore(c ProviderCandidate) float64 {
	score := c.Rating / 5 * 50
	score += math.Min(20, float64(c.ReviewCount)/100*20)
	score += math.Min(20, float64(c.CompletedJobs)/500*20)
	if c.Verified {
		score += 10
	}
	return math.Min(100, score)
}

// LocalityScores computes the four locality factors for a candidate at
// distanceKm.
func LocalityScores(c ProviderCandidate, distanceKm float64) LocalityFactors {
	return LocalityFactors{
		NeighborhoodMatch: neighborhoodMatch(distanceKm),
		LocalExperience:   math.Min(100, float64(c.CompletedJobs)/200*100),
		ResponseTime:      responseTimeBand(c.ResponseTime),
		ProximityBoost:    proximityBoost(distanceKm),
	}
}

func neighborhoodMatch(d float64) float64 {
	switch {
	case d <= 2:
		return 100
	case d <= 5:
		return 80
	case d <= 10:
		return 60
	case d <= 15:
		return 40
	default:
		return 20
	}
}

var responseBands = map[int]float64{0: 100, 5: 90, 15: 80, 30: 70, 60: 60}

func responseTimeBand(desc string) float64 {
	rt := parseResponseTime(desc)
	if !rt.known {
		return 50
	}
	if band, ok := responseBands[rt.minutes]; ok {
		return band
	}
	return 50
}

func proximityBoost(d float64) float64 {
	if d <= 1 {
		return 100
	}
	return math.Max(0, 100-d*10)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
