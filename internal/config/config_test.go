package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	c, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8000/api/", c.GetBaseURL())
	assert.Equal(t, 30*time.Second, c.GetTimeout())
	assert.Equal(t, StoreFile, c.GetStoreBackend())
	assert.NotEmpty(t, c.GetStorePath())
	assert.Equal(t, "analytics:credentials:", c.GetRedisPrefix())
	assert.Equal(t, 168*time.Hour, c.GetRedisTTL())
}

func TestParse_FromEnv(t *testing.T) {
	t.Setenv("ANALYTICS_BASE_URL", "https://analytics.example.com/api")
	t.Setenv("ANALYTICS_TIMEOUT", "5s")
	t.Setenv("ANALYTICS_STORE", "Redis")
	t.Setenv("ANALYTICS_REDIS_ADDR", "redis:6380")
	t.Setenv("ANALYTICS_LOG_LEVEL", "DEBUG")
	t.Setenv("ENV", "prod")

	c, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "https://analytics.example.com/api/", c.GetBaseURL(), "base URL gains a trailing slash")
	assert.Equal(t, 5*time.Second, c.GetTimeout())
	assert.Equal(t, StoreRedis, c.GetStoreBackend())
	assert.Equal(t, "redis:6380", c.GetRedisAddr())
	assert.Equal(t, "debug", c.GetLogLevel())
	assert.Equal(t, "PROD", c.GetEnv())
	assert.False(t, c.IsDev())
}

func TestParse_InvalidStoreBackend(t *testing.T) {
	t.Setenv("ANALYTICS_STORE", "sqlite")

	_, err := Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid StoreBackend")
}

func TestClientSanitize_NonPositiveTimeout(t *testing.T) {
	c := Client{BaseURL: "http://x", Timeout: -1}
	c.sanitize()
	assert.Equal(t, defaultTimeout, c.Timeout)
	assert.Equal(t, "http://x/", c.BaseURL)
}
