package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghxstship/atlvs-sub007/pkg/authz"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ATLVS_POSTGRES_URL", "postgres://localhost/atlvs")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, authz.DefaultCacheTTL, cfg.Authz.CacheTTL)
	assert.Equal(t, 4096, cfg.Authz.CacheSize)
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("ATLVS_POSTGRES_URL", "postgres://db:5432/atlvs")
	t.Setenv("ATLVS_PORT", "9000")
	t.Setenv("ATLVS_AUTHZ_CACHE_TTL", "90s")
	t.Setenv("ATLVS_AUTHZ_OVERRIDES_FILE", "/etc/atlvs/overrides.yaml")
	t.Setenv("ATLVS_REDIS_ENABLED", "true")
	t.Setenv("ATLVS_REDIS_ADDR", "redis:6379")
	t.Setenv("ATLVS_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Authz.CacheTTL)
	assert.Equal(t, "/etc/atlvs/overrides.yaml", cfg.Authz.OverridesFile)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	t.Setenv("ATLVS_POSTGRES_URL", "postgres://localhost/atlvs")

	t.Run("missing database URL", func(t *testing.T) {
		t.Setenv("ATLVS_POSTGRES_URL", "")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("port collision", func(t *testing.T) {
		t.Setenv("ATLVS_PORT", "9090")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("zero cache ttl", func(t *testing.T) {
		t.Setenv("ATLVS_AUTHZ_CACHE_TTL", "0s")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("conn bounds", func(t *testing.T) {
		t.Setenv("ATLVS_POSTGRES_MAX_CONNS", "2")
		t.Setenv("ATLVS_POSTGRES_MIN_CONNS", "10")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}
