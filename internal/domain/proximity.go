package domain

import "slices"

// Proximity is a candidate's spatial relationship to a search center.
// Index is the candidate's position in the input slice.
type Proximity struct {
	Candidate      ProviderCandidate
	Index          int
	DistanceKm     float64
	BearingDegrees float64
}

// FilterWithinRadius computes distance and bearing from center for every
// candidate, drops those farther than radiusKm and returns the rest sorted by
// ascending distance. Equal distances keep input order. The input slice is
// not modified.
func FilterWithinRadius(candidates []ProviderCandidate, center Coordinates, radiusKm float64) []Proximity {
	out := make([]Proximity, 0, len(candidates))
	for i, c := range candidates {
		d := DistanceKm(center, c.Coordinates)
		if d > radiusKm {
			continue
		}
		out = append(out, Proximity{
			Candidate:      c,
			Index:          i,
			DistanceKm:     d,
			BearingDegrees: Bearing(center, c.Coordinates),
		})
	}

	slices.SortStableFunc(out, func(a, b Proximity) int {
		switch {
		case a.DistanceKm < b.DistanceKm:
			return -1
		case a.DistanceKm > b.DistanceKm:
			return 1
		}
		return 0
	})
	return out
}
