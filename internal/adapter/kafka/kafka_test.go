package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/service-match/internal/config"
	"github.com/couchcryptid/service-match/internal/discovery"
	"github.com/couchcryptid/service-match/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() discovery.Report {
	generated := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	return discovery.Report{
		RequestID:   "4b8f0c1e-2f39-4f7b-9a51-0e4e1c7d2a10",
		GeneratedAt: generated,
		Origin: domain.Location{
			Coordinates: domain.Coordinates{Latitude: 47.6062, Longitude: -122.3321},
			Address:     domain.PlaceholderAddress(),
			Timestamp:   generated.Add(-time.Minute),
			Source:      domain.SourceDevice,
		},
		RadiusKm:   25,
		Considered: 3,
		Filtered:   1,
		Results: []domain.MatchResult{
			{Candidate: domain.ProviderCandidate{ID: "p-1", Name: "Rainier Plumbing"}, DistanceKm: 2.05, RelevanceScore: 95.5},
			{Candidate: domain.ProviderCandidate{ID: "p-2", Name: "Sound Pipes"}, DistanceKm: 6.4, RelevanceScore: 71.2},
		},
	}
}

func TestSerializeToMessage(t *testing.T) {
	report := sampleReport()

	msg, err := serializeToMessage(report)
	require.NoError(t, err)

	assert.Equal(t, []byte(report.RequestID), msg.Key)
	assert.Equal(t, report.GeneratedAt, msg.Time)
	assert.Contains(t, string(msg.Value), `"request_id":"4b8f0c1e-2f39-4f7b-9a51-0e4e1c7d2a10"`)

	require.Len(t, msg.Headers, 3)
	assert.Equal(t, kafkago.Header{Key: "origin_source", Value: []byte("device")}, msg.Headers[0])
	assert.Equal(t, kafkago.Header{Key: "result_count", Value: []byte("2")}, msg.Headers[1])
	assert.Equal(t, kafkago.Header{Key: "generated_at", Value: []byte("2024-04-26T15:10:00Z")}, msg.Headers[2])

	var decoded discovery.Report
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, report.Origin.Source, decoded.Origin.Source)
	require.Len(t, decoded.Results, 2)
	assert.Equal(t, "p-1", decoded.Results[0].Candidate.ID)
	assert.InDelta(t, 95.5, decoded.Results[0].RelevanceScore, 1e-9)
}

func TestSerializeToMessage_EmptyResults(t *testing.T) {
	report := sampleReport()
	report.Results = nil

	msg, err := serializeToMessage(report)
	require.NoError(t, err)
	assert.Equal(t, []byte("0"), msg.Headers[1].Value)
}

func TestNewWriter_UsesResultsTopic(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"b1:9092", "b2:9092"}, KafkaResultsTopic: "reports"}
	w := NewWriter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	assert.Equal(t, "reports", w.writer.Topic)
	assert.Equal(t, kafkago.RequireAll, w.writer.RequiredAcks)
	assert.Equal(t, "b1:9092,b2:9092", w.writer.Addr.String())
}

func TestWriter_PublishAfterClose(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaResultsTopic: "reports"}
	w := NewWriter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, w.Close())

	err := w.PublishReport(context.Background(), sampleReport())
	require.ErrorIs(t, err, io.ErrClosedPipe)
	assert.Contains(t, err.Error(), "4b8f0c1e")
}
