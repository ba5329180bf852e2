package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "info")

	logger.Debug("hidden")
	logger.Info("position acquired", "source", "device")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "position acquired", line["msg"])
	assert.Equal(t, "device", line["source"])
	assert.Equal(t, "service-match", line["service"])
}

func TestNewLogger_TextDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "TEXT", "debug")

	logger.Debug("state transition", "to", "ranking")

	assert.Contains(t, buf.String(), "msg=\"state transition\"")
	assert.Contains(t, buf.String(), "to=ranking")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestMetrics_RegisterOnFreshRegistry(t *testing.T) {
	m := NewMetricsForTesting()
	reg := prometheus.NewRegistry()

	require.NotPanics(t, func() { reg.MustRegister(m.collectors()...) })

	m.PositionRequests.WithLabelValues("device").Inc()
	m.PositionRequests.WithLabelValues("device").Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PositionRequests.WithLabelValues("device")))
}

func TestNewUnregisteredMetrics_NotOnDefaultRegistry(t *testing.T) {
	m := NewUnregisteredMetrics()
	for _, c := range m.collectors() {
		assert.False(t, prometheus.DefaultRegisterer.Unregister(c))
	}
}
