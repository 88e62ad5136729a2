package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")

	cfg := load()
	require.NoError(t, cfg.validate())

	assert.Equal(t, "zmq", cfg.Feed.Transport)
	assert.Equal(t, "tcp://eddn.edcd.io:9500", cfg.Feed.URL)
	assert.Equal(t, 1000, cfg.Queue.Capacity)
	assert.Equal(t, "block", cfg.Queue.FullPolicy)
	assert.Equal(t, 4, cfg.Worker.Count)
	assert.Equal(t, 3*time.Second, cfg.Database.RetryDelay)
	assert.True(t, cfg.Audit.RecordUnrecognized)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"*"}, cfg.Ops.AllowedOrigins)
	assert.True(t, cfg.Ops.RateLimit.Enabled)
	assert.Equal(t, 10.0, cfg.Ops.RateLimit.RequestsPerSecond)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FEED_TRANSPORT", "nats")
	t.Setenv("FEED_URL", "nats://relay:4222")
	t.Setenv("WORKER_COUNT", "12")
	t.Setenv("QUEUE_FULL_POLICY", "drop")
	t.Setenv("ENVIRONMENT", "production")

	cfg := load()
	require.NoError(t, cfg.validate())

	assert.Equal(t, "nats", cfg.Feed.Transport)
	assert.Equal(t, 12, cfg.Worker.Count)
	assert.Equal(t, "drop", cfg.Queue.FullPolicy)
	assert.True(t, cfg.Logging.JSONFormat)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown transport", map[string]string{"FEED_TRANSPORT": "websocket"}, "FEED_TRANSPORT"},
		{"zero workers", map[string]string{"WORKER_COUNT": "0"}, "WORKER_COUNT"},
		{"bad policy", map[string]string{"QUEUE_FULL_POLICY": "spill"}, "QUEUE_FULL_POLICY"},
		{"negative capacity", map[string]string{"QUEUE_CAPACITY": "-1"}, "QUEUE_CAPACITY"},
		{"zero rate limit", map[string]string{"OPS_RATE_LIMIT_RPS": "0"}, "OPS_RATE_LIMIT_RPS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			err := load().validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConnectionString(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Host: "db", Port: "5432", User: "eddn", Password: "secret", Name: "galaxy", SSLMode: "disable",
	}}

	assert.Equal(t, "host=db port=5432 user=eddn password=secret dbname=galaxy sslmode=disable", cfg.ConnectionString())
}
