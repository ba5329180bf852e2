//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/service-match/internal/adapter/device"
	"github.com/couchcryptid/service-match/internal/adapter/kafka"
	"github.com/couchcryptid/service-match/internal/config"
	"github.com/couchcryptid/service-match/internal/discovery"
	"github.com/couchcryptid/service-match/internal/domain"
	"github.com/couchcryptid/service-match/internal/observability"
	"github.com/couchcryptid/service-match/internal/position"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testResultsTopic = "test-reports"

var downtownSeattle = domain.Coordinates{Latitude: 47.6062, Longitude: -122.3321}

type publishedReport struct {
	Report  discovery.Report
	Key     string
	Headers map[string]string
}

func readReport(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedReport {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from results topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var report discovery.Report
	require.NoError(t, json.Unmarshal(msg.Value, &report), "unmarshal report")
	return publishedReport{Report: report, Key: string(msg.Key), Headers: headers}
}

// TestDiscoveryPublishesReports runs discovery over the Seattle fixture with a
// configured device and verifies every report lands on the results topic.
func TestDiscoveryPublishesReports(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testResultsTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaResultsTopic: testResultsTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetricsForTesting()
	provider := position.New(device.NewStatic(&downtownSeattle, time.Minute, clock),
		position.WithClock(clock),
		position.WithLogger(discardLogger()),
		position.WithMetrics(metrics),
	)
	session := discovery.New(provider, discovery.Config{}, discardLogger(), metrics,
		discovery.WithPublisher(writer),
		discovery.WithClock(clock),
	)

	candidates := loadCandidates(t)
	all, err := session.Discover(ctx, candidates, discovery.Filters{}, discovery.Options{})
	require.NoError(t, err)
	plumbing, err := session.Discover(ctx, candidates, discovery.Filters{Category: "plumbing"}, discovery.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ReportsPublished.WithLabelValues("success")))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testResultsTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := map[string]publishedReport{}
	for len(received) < 2 {
		pr := readReport(ctx, t, consumer)
		received[pr.Key] = pr
	}

	first := received[all.RequestID]
	assert.Equal(t, all.RequestID, first.Report.RequestID)
	assert.Equal(t, "device", first.Headers["origin_source"])
	assert.Equal(t, strconv.Itoa(len(all.Results)), first.Headers["result_count"])
	_, err = time.Parse(time.RFC3339, first.Headers["generated_at"])
	assert.NoError(t, err, "generated_at should be valid RFC3339")

	// The Tacoma provider is beyond the default 25 km radius.
	assert.Equal(t, len(candidates)-1, len(first.Report.Results))
	assert.Equal(t, 1, first.Report.OutOfRange)
	for i := 1; i < len(first.Report.Results); i++ {
		assert.GreaterOrEqual(t, first.Report.Results[i-1].RelevanceScore, first.Report.Results[i].RelevanceScore)
	}

	second := received[plumbing.RequestID]
	require.NotEmpty(t, second.Report.Results)
	for _, r := range second.Report.Results {
		assert.Equal(t, "plumbing", r.Candidate.Category)
		assert.LessOrEqual(t, r.DistanceKm, 25.0)
	}
	assert.Equal(t, first.Report.Origin.Coordinates.Latitude, second.Report.Origin.Coordinates.Latitude)
}
