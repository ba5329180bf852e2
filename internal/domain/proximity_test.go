package domain

import (
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterWithinRadius_ExcludesBeyondRadius(t *testing.T) {
	candidates := []ProviderCandidate{
		candidateAt("near", north(seattle, 1)),
		candidateAt("far", north(seattle, 8)),
	}

	got := FilterWithinRadius(candidates, seattle, 5)

	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].Candidate.ID)
	assert.InDelta(t, 1.0, got[0].DistanceKm, 0.01)
	assert.InDelta(t, 0.0, got[0].BearingDegrees, 1e-6)
}

func TestFilterWithinRadius_SortsByDistance(t *testing.T) {
	candidates := []ProviderCandidate{
		candidateAt("c", north(seattle, 3)),
		candidateAt("a", north(seattle, 0.5)),
		candidateAt("b", north(seattle, 2)),
	}

	got := FilterWithinRadius(candidates, seattle, 10)

	require.Len(t, got, 3)
	ids := []string{got[0].Candidate.ID, got[1].Candidate.ID, got[2].Candidate.ID}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, []int{1, 2, 0}, []int{got[0].Index, got[1].Index, got[2].Index})
}

func TestFilterWithinRadius_TiesKeepInputOrder(t *testing.T) {
	same := north(seattle, 2)
	candidates := []ProviderCandidate{candidateAt("first", same), candidateAt("second", same)}

	got := FilterWithinRadius(candidates, seattle, 10)

	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Candidate.ID)
	assert.Equal(t, "second", got[1].Candidate.ID)
}

func TestFilterWithinRadius_DoesNotMutateInput(t *testing.T) {
	candidates := []ProviderCandidate{
		candidateAt("c", north(seattle, 3)),
		candidateAt("a", north(seattle, 0.5)),
	}
	before := make([]ProviderCandidate, len(candidates))
	copy(before, candidates)

	_ = FilterWithinRadius(candidates, seattle, 10)

	if diff := cmp.Diff(before, candidates); diff != "" {
		t.Fatalf("input mutated (-want +got):\n%s", diff)
	}
}

func TestFilterWithinRadius_EveryResultInsideRadius(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	candidates := make([]ProviderCandidate, 200)
	for i := range candidates {
		candidates[i] = candidateAt("p", Coordinates{
			Latitude:  seattle.Latitude + rng.Float64()*0.4 - 0.2,
			Longitude: seattle.Longitude + rng.Float64()*0.6 - 0.3,
		})
	}

	for _, radius := range []float64{0, 1, 5, 12.5, 25} {
		got := FilterWithinRadius(candidates, seattle, radius)
		inside := 0
		for _, c := range candidates {
			if DistanceKm(seattle, c.Coordinates) <= radius {
				inside++
			}
		}
		assert.Len(t, got, inside, "radius %v", radius)
		for i, p := range got {
			require.LessOrEqual(t, p.DistanceKm, radius)
			if i > 0 {
				require.GreaterOrEqual(t, p.DistanceKm, got[i-1].DistanceKm)
			}
		}
	}
}

func TestFilterWithinRadius_Empty(t *testing.T) {
	got := FilterWithinRadius(nil, seattle, 5)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
