package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"eddn-ingester/internal/metrics"
	"eddn-ingester/internal/middleware"
	"eddn-ingester/internal/queue"
	serverHandlers "eddn-ingester/internal/server/handlers"
	"eddn-ingester/internal/shared/config"
	"eddn-ingester/internal/shared/jsoncodec"
	"eddn-ingester/internal/shared/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func setup(t *testing.T, ping pingerFunc, rl config.RateLimitConfig) http.Handler {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.FrameReceived()

	q := queue.New(8, queue.PolicyBlock, m, logger.Discard())
	require.NoError(t, q.Enqueue(context.Background(), queue.Task{}))

	cfg := config.OpsConfig{AllowedOrigins: []string{"*"}, RateLimit: rl}
	limiter := middleware.NewRateLimiter(rl, logger.Discard())
	return NewRoutes(ping, q, reg, limiter, cfg, logger.Discard()).Setup()
}

func TestHealthReportsDatabaseAndQueue(t *testing.T) {
	h := setup(t, func(context.Context) error { return nil }, config.RateLimitConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body serverHandlers.HealthResponse
	require.NoError(t, jsoncodec.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "connected", body.Database)
	assert.Equal(t, 1, body.Queue.Depth)
	assert.Equal(t, 8, body.Queue.Capacity)
	assert.Equal(t, "open", body.Queue.State)
}

func TestHealthDegradedWhenDatabaseDown(t *testing.T) {
	h := setup(t, func(context.Context) error { return errors.New("dial tcp: connection refused") }, config.RateLimitConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"disconnected"`)
}

func TestHealthRejectsPost(t *testing.T) {
	h := setup(t, func(context.Context) error { return nil }, config.RateLimitConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := setup(t, func(context.Context) error { return nil }, config.RateLimitConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "eddn_ingest_feed_frames_received_total 1")
	assert.Contains(t, rec.Body.String(), "eddn_ingest_queue_depth 1")
}

func TestRateLimitRejectsBursts(t *testing.T) {
	h := setup(t, func(context.Context) error { return nil }, config.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 0.001,
		BurstSize:         2,
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
