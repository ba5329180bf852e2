// Command validate performs integrity checks on candidate fixtures: schema,
// identity, geography, and ranking reproducibility. When a ranked fixture
// from genmock is given, it is compared against a fresh ranking.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -candidates data/mock/candidates_seattle.json \
//	  -center 47.6062,-122.3321 -max-km 50
//
//	go run ./cmd/validate \
//	  -candidates data/mock/candidates_generated.json \
//	  -ranked data/mock/ranked_generated.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/service-match/internal/adapter/device"
	"github.com/couchcryptid/service-match/internal/discovery"
	"github.com/couchcryptid/service-match/internal/domain"
	"github.com/couchcryptid/service-match/internal/observability"
	"github.com/couchcryptid/service-match/internal/position"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
)

// rankedAt matches genmock so ranked fixtures are reproducible.
var rankedAt = time.Date(2024, time.April, 26, 10, 0, 0, 0, time.UTC)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	candidatesPath := flag.String("candidates", "", "path to candidate fixture JSON")
	rankedPath := flag.String("ranked", "", "optional path to ranked fixture JSON")
	center := flag.String("center", "47.6062,-122.3321", "search center as lat,lon")
	maxKm := flag.Float64("max-km", 0, "fail candidates farther than this from center (0 disables)")
	flag.Parse()

	if *candidatesPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*candidatesPath, *rankedPath, *center, *maxKm); code != 0 {
		os.Exit(code)
	}
}

func run(candidatesPath, rankedPath, centerFlag string, maxKm float64) int {
	fmt.Println("=== Candidate Fixture Validation ===")
	fmt.Println()

	origin, err := parseCenter(centerFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	candidates, err := loadJSON[domain.ProviderCandidate](candidatesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load candidates: %v\n", err)
		return 1
	}

	var ranked []domain.MatchResult
	if rankedPath != "" {
		ranked, err = loadJSON[domain.MatchResult](rankedPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load ranked fixture: %v\n", err)
			return 1
		}
	}

	phases := []*phase{
		validateSchema(candidates),
		validateIdentity(candidates),
		validateGeography(candidates, origin, maxKm),
	}
	// Ranking rejects the whole set on any schema error.
	if phases[0].passed() {
		phases = append(phases, validateRanking(candidates, origin))
		if rankedPath != "" {
			phases = append(phases, validateRankedFixture(candidates, ranked, origin))
		}
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d candidates, %d ranked\n", len(candidates), len(ranked))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

func parseCenter(s string) (domain.Coordinates, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("invalid -center %q: want lat,lon", s)
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err1 != nil || err2 != nil {
		return domain.Coordinates{}, fmt.Errorf("invalid -center %q: want lat,lon", s)
	}
	c := domain.Coordinates{Latitude: lat, Longitude: lon}
	return c, c.Validate()
}

// ── Phase 1: Schema ──

func validateSchema(candidates []domain.ProviderCandidate) *phase {
	p := &phase{name: "Phase 1: Schema"}
	if len(candidates) == 0 {
		p.errorf("fixture has no candidates")
	}
	for i := range candidates {
		if err := domain.ValidateCandidate(candidates[i]); err != nil {
			p.errorf("[%d] %s: %v", i, candidates[i].ID, err)
		}
	}
	return p
}

// ── Phase 2: Identity ──

func validateIdentity(candidates []domain.ProviderCandidate) *phase {
	p := &phase{name: "Phase 2: Identity"}
	seen := make(map[string]int, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if prev, dup := seen[c.ID]; dup {
			p.errorf("[%d] duplicate id %q (first at [%d])", i, c.ID, prev)
		} else {
			seen[c.ID] = i
		}
		if c.Category != strings.ToLower(strings.TrimSpace(c.Category)) {
			p.errorf("[%d] %s: category %q is not normalized", i, c.ID, c.Category)
		}
		if c.Name == "" {
			p.errorf("[%d] %s: missing name", i, c.ID)
		}
		if c.CompletedJobs < c.ReviewCount {
			p.errorf("[%d] %s: completed_jobs=%d < review_count=%d", i, c.ID, c.CompletedJobs, c.ReviewCount)
		}
	}
	return p
}

// ── Phase 3: Geography ──

func validateGeography(candidates []domain.ProviderCandidate, origin domain.Coordinates, maxKm float64) *phase {
	p := &phase{name: "Phase 3: Geography"}
	if maxKm <= 0 {
		return p
	}
	for i := range candidates {
		c := &candidates[i]
		if c.Coordinates.Validate() != nil {
			continue // reported by schema
		}
		if d := domain.DistanceKm(origin, c.Coordinates); d > maxKm {
			p.errorf("[%d] %s: %.2f km from center exceeds %.0f km", i, c.ID, d, maxKm)
		}
	}
	return p
}

// ── Phase 4: Ranking ──

func validateRanking(candidates []domain.ProviderCandidate, origin domain.Coordinates) *phase {
	p := &phase{name: "Phase 4: Ranking reproducibility"}

	first, err := rank(candidates, origin)
	if err != nil {
		p.errorf("first run: %v", err)
		return p
	}
	second, err := rank(candidates, origin)
	if err != nil {
		p.errorf("second run: %v", err)
		return p
	}
	if diff := cmp.Diff(first, second); diff != "" {
		p.errorf("rankings differ between runs (-first +second):\n%s", diff)
	}

	for i, r := range first {
		if r.RelevanceScore < 0 || r.RelevanceScore > 100 {
			p.errorf("#%d %s: score %.2f outside [0, 100]", i+1, r.Candidate.ID, r.RelevanceScore)
		}
		if r.DistanceKm > domain.DefaultMaxRadiusKm {
			p.errorf("#%d %s: distance %.2f beyond search radius", i+1, r.Candidate.ID, r.DistanceKm)
		}
		if i > 0 && first[i-1].RelevanceScore < r.RelevanceScore {
			p.errorf("#%d %s: score %.2f above previous %.2f", i+1, r.Candidate.ID, r.RelevanceScore, first[i-1].RelevanceScore)
		}
	}
	return p
}

// ── Phase 5: Ranked fixture ──

func validateRankedFixture(candidates []domain.ProviderCandidate, ranked []domain.MatchResult, origin domain.Coordinates) *phase {
	p := &phase{name: "Phase 5: Ranked fixture matches ranking"}
	fresh, err := rank(candidates, origin)
	if err != nil {
		p.errorf("rank: %v", err)
		return p
	}
	if diff := cmp.Diff(fresh, ranked, cmpopts.EquateApprox(0, 1e-9), cmpopts.EquateEmpty()); diff != "" {
		p.errorf("ranked fixture is stale (-fresh +fixture):\n%s", diff)
	}
	return p
}

// rank runs a default discovery request from origin at rankedAt.
func rank(candidates []domain.ProviderCandidate, origin domain.Coordinates) ([]domain.MatchResult, error) {
	clock := clockwork.NewFakeClockAt(rankedAt)
	logger := slog.New(slog.DiscardHandler)
	provider := position.New(device.NewStatic(&origin, 0, clock), position.WithClock(clock), position.WithLogger(logger))
	session := discovery.New(provider, discovery.Config{
		TrafficAware: true,
		LocalZone:    time.UTC,
	}, logger, observability.NewUnregisteredMetrics(), discovery.WithClock(clock))

	report, err := session.Discover(context.Background(), candidates, discovery.Filters{}, discovery.Options{})
	if err != nil {
		return nil, err
	}
	return report.Results, nil
}
