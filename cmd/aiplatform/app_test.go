package main

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiplatform/internal/platform/metrics"
)

func TestWriteMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	m.ObserveRequest(http.MethodGet, 200, 20*time.Millisecond)
	m.ObserveRequest(http.MethodGet, 200, 30*time.Millisecond)
	m.IncRetry("server_error")

	var out bytes.Buffer
	require.NoError(t, writeMetrics(&out, registry))

	got := out.String()
	assert.Contains(t, got, "aiplatform_client_requests_total{method=GET,outcome=2xx} 2\n")
	assert.Contains(t, got, "aiplatform_client_request_duration_seconds{method=GET} 2\n")
	assert.Contains(t, got, "aiplatform_client_retries_total{reason=server_error} 1\n")
	assert.NotContains(t, got, "auth_teardowns", "zero samples are skipped")
}
