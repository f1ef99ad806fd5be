package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"/healthz", "/metrics"}, cfg.AuthSkipPaths())
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("AUTH_SKIP_PATHS", "/healthz;/metrics;/publish-to-play-store")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com;https://admin.example.com")
	t.Setenv("RATE_LIMIT_RPS", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, []string{"/healthz", "/metrics", "/publish-to-play-store"}, cfg.AuthSkipPaths())
	assert.Len(t, cfg.CORSOrigins(), 2)
}
