package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CACHE_METHODS", "get, head")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mysql", c.Storage)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, 1000, c.MaxIssuePerUser)
	assert.Equal(t, 5*time.Second, c.RequestTimeout)
	assert.Equal(t, 60, c.RateLimit.Capacity)
	assert.True(t, c.Cache.CacheMethod("GET"))
	assert.True(t, c.Cache.CacheMethod("head"))
	assert.False(t, c.Cache.CacheMethod("POST"))
	assert.Equal(t, "localhost:6379", c.Redis.address())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORAGE", "Memory")
	t.Setenv("MAX_ISSUE_PER_USER", "50")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "10s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", c.Storage)
	assert.Equal(t, 50, c.MaxIssuePerUser)
	assert.Equal(t, 50*time.Second, c.RateLimit.TTL)
	assert.Equal(t, "cache:6380", c.Redis.address())
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":  {},
		"unknown storage": {"JWT_SECRET": "x", "STORAGE": "mongo"},
		"half superadmin": {"JWT_SECRET": "x", "SUPERADMIN_EMAIL": "root@example.com"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
