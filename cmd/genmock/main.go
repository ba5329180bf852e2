// Command genmock generates candidate fixtures for the matching test suites.
// Candidates come from a CSV export of real providers or, without one, from a
// seeded generator scattered around a center point. The ranked fixture is
// produced with the actual domain package so it matches service behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -center 47.6062,-122.3321 -count 40 -seed 7 \
//	  -out data/mock/candidates_generated.json \
//	  -ranked-out data/mock/ranked_generated.json
//
//	go run ./cmd/genmock -csv providers.csv -out data/mock/candidates_export.json
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/service-match/internal/adapter/device"
	"github.com/couchcryptid/service-match/internal/discovery"
	"github.com/couchcryptid/service-match/internal/domain"
	"github.com/couchcryptid/service-match/internal/observability"
	"github.com/couchcryptid/service-match/internal/position"
	"github.com/jonboulle/clockwork"
)

// rankedAt is the fixed request time for ranked fixtures: a Friday 10:00 UTC.
var rankedAt = time.Date(2024, time.April, 26, 10, 0, 0, 0, time.UTC)

var (
	categories    = []string{"plumbing", "electrical", "hvac", "cleaning", "locksmith", "handyman"}
	responseTimes = []string{"5 min", "15 minutes", "30 min", "1 hour", "2 hours", "same day", "1 day"}
	availability  = []string{"Available now", "Today", "Today after 5pm", "Tomorrow", "This week", "Next week", "By appointment"}
	urgencyTags   = []string{"emergency", "urgent", "24/7", "same-day"}
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "optional CSV export of providers")
	center := flag.String("center", "47.6062,-122.3321", "search center as lat,lon")
	count := flag.Int("count", 40, "number of generated candidates")
	seed := flag.Uint64("seed", 1, "generator seed")
	spreadKm := flag.Float64("spread-km", 30, "maximum generated distance from center")
	out := flag.String("out", "", "output path for candidate fixture")
	rankedOut := flag.String("ranked-out", "", "optional output path for ranked fixture")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	origin, err := parseCenter(*center)
	if err != nil {
		return err
	}

	var candidates []domain.ProviderCandidate
	if *csvPath != "" {
		candidates, err = processCSV(*csvPath)
		if err != nil {
			return fmt.Errorf("processing %s: %w", *csvPath, err)
		}
	} else {
		candidates = generate(origin, *count, *spreadKm, rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15)))
	}
	if err := domain.ValidateCandidates(candidates); err != nil {
		return fmt.Errorf("generated invalid candidates: %w", err)
	}
	log.Printf("candidates: %d", len(candidates))

	if err := writeJSON(*out, candidates); err != nil {
		return fmt.Errorf("writing candidate fixture: %w", err)
	}
	log.Printf("wrote candidate fixture: %s", *out)

	ranked, err := rank(candidates, origin)
	if err != nil {
		return fmt.Errorf("ranking candidates: %w", err)
	}
	if *rankedOut != "" {
		if err := writeJSON(*rankedOut, ranked); err != nil {
			return fmt.Errorf("writing ranked fixture: %w", err)
		}
		log.Printf("wrote ranked fixture: %s", *rankedOut)
	}

	printStats(candidates, ranked)
	return nil
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

// generate scatters candidates uniformly by area within spreadKm of origin.
func generate(origin domain.Coordinates, n int, spreadKm float64, r *rand.Rand) []domain.ProviderCandidate {
	const kmPerDegreeLat = 111.19492664455873
	out := make([]domain.ProviderCandidate, 0, n)
	for i := range n {
		dist := spreadKm * math.Sqrt(r.Float64())
		theta := 2 * math.Pi * r.Float64()
		lat := origin.Latitude + dist*math.Cos(theta)/kmPerDegreeLat
		lon := origin.Longitude + dist*math.Sin(theta)/(kmPerDegreeLat*math.Cos(origin.Latitude*math.Pi/180))

		category := categories[r.IntN(len(categories))]
		c := domain.ProviderCandidate{
			ID:             fmt.Sprintf("gen-%03d", i+1),
			Name:           fmt.Sprintf("%s provider %d", strings.ToUpper(category[:1])+category[1:], i+1),
			Coordinates:    domain.Coordinates{Latitude: round(lat, 6), Longitude: round(lon, 6)},
			Category:       category,
			HourlyRate:     float64(35 + 5*r.IntN(24)),
			Rating:         round(3+2*r.Float64(), 1),
			ReviewCount:    r.IntN(400),
			ResponseTime:   responseTimes[r.IntN(len(responseTimes))],
			Availability:   availability[r.IntN(len(availability))],
			Verified:       r.IntN(3) > 0,
			IsAvailableNow: r.IntN(5) == 0,
		}
		c.CompletedJobs = c.ReviewCount * (2 + r.IntN(3))
		if r.IntN(3) == 0 {
			c.UrgencyTags = []string{urgencyTags[r.IntN(len(urgencyTags))]}
		}
		if r.IntN(2) == 0 {
			radius := float64(10 + 5*r.IntN(5))
			c.ServiceRadiusKm = &radius
		}
		out = append(out, c)
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// processCSV reads providers with the header
// id,name,lat,lon,category,hourly_rate,rating,review_count,completed_jobs,
// response_time,availability,verified,available_now,urgency_tags,service_radius_km.
// urgency_tags is ';'-separated; service_radius_km may be empty.
func processCSV(path string) ([]domain.ProviderCandidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("no data rows")
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[strings.TrimSpace(h)] = i
	}

	out := make([]domain.ProviderCandidate, 0, len(rows)-1)
	for line, row := range rows[1:] {
		c, err := parseRow(row, colIdx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+2, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func parseRow(row []string, idx map[string]int) (domain.ProviderCandidate, error) {
	var errs []string
	num := func(col string) float64 {
		s := get(row, idx, col)
		if s == "" {
			return 0
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			errs = append(errs, col)
		}
		return v
	}
	boolean := func(col string) bool {
		b, _ := strconv.ParseBool(get(row, idx, col))
		return b
	}

	c := domain.ProviderCandidate{
		ID:             get(row, idx, "id"),
		Name:           get(row, idx, "name"),
		Coordinates:    domain.Coordinates{Latitude: num("lat"), Longitude: num("lon")},
		Category:       get(row, idx, "category"),
		HourlyRate:     num("hourly_rate"),
		Rating:         num("rating"),
		ReviewCount:    int(num("review_count")),
		CompletedJobs:  int(num("completed_jobs")),
		ResponseTime:   get(row, idx, "response_time"),
		Availability:   get(row, idx, "availability"),
		Verified:       boolean("verified"),
		IsAvailableNow: boolean("available_now"),
	}
	if tags := get(row, idx, "urgency_tags"); tags != "" {
		c.UrgencyTags = strings.Split(tags, ";")
	}
	if get(row, idx, "service_radius_km") != "" {
		radius := num("service_radius_km")
		c.ServiceRadiusKm = &radius
	}
	if len(errs) > 0 {
		return c, fmt.Errorf("invalid number in %s", strings.Join(errs, ", "))
	}
	return c, nil
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
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

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

type categoryCount struct {
	category string
	count    int
}

func printStats(candidates []domain.ProviderCandidate, ranked []domain.MatchResult) {
	byCategory := map[string]int{}
	var verified, availableNow int
	for i := range candidates {
		c := &candidates[i]
		byCategory[c.Category]++
		if c.Verified {
			verified++
		}
		if c.IsAvailableNow {
			availableNow++
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d (verified=%d, available now=%d)\n", len(candidates), verified, availableNow)

	cc := make([]categoryCount, 0, len(byCategory))
	for k, v := range byCategory {
		cc = append(cc, categoryCount{k, v})
	}
	sort.Slice(cc, func(i, j int) bool {
		if cc[i].count != cc[j].count {
			return cc[i].count > cc[j].count
		}
		return cc[i].category < cc[j].category
	})
	fmt.Print("By category:")
	for _, c := range cc {
		fmt.Printf(" %s=%d", c.category, c.count)
	}
	fmt.Println()

	fmt.Printf("Within %.0f km: %d\n", domain.DefaultMaxRadiusKm, len(ranked))
	for i, r := range ranked[:min(5, len(ranked))] {
		fmt.Printf("  #%d %s score=%.1f distance=%.2fkm eta=%dmin\n",
			i+1, r.Candidate.ID, r.RelevanceScore, r.DistanceKm, r.EstimatedArrivalMinutes)
	}
}
