package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("POSTGRES_PASSWORD", "secret")
		t.Setenv("OTEL_EXPORTER_ENDPOINT", "")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "localhost", cfg.Repositories.Postgres.Host)
		assert.Empty(t, cfg.Observability.TraceEndpoint)
		assert.Equal(t, int32(30), cfg.Repositories.Postgres.MaxConns)
		assert.Equal(t, 10, cfg.Discovery.CoVisitorSample)
		assert.Equal(t, 4, cfg.Discovery.CoVisitorConcurrency)
		assert.Equal(t, 5*time.Minute, cfg.Discovery.CacheTTL)
		assert.Equal(t, uint32(5), cfg.Discovery.BreakerFailures)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("POSTGRES_PASSWORD", "secret")
		t.Setenv("DISCOVERY_COVISITOR_SAMPLE", "25")
		t.Setenv("DISCOVERY_CACHE_TTL", "90s")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 25, cfg.Discovery.CoVisitorSample)
		assert.Equal(t, 90*time.Second, cfg.Discovery.CacheTTL)
	})

	t.Run("missing password", func(t *testing.T) {
		t.Setenv("POSTGRES_PASSWORD", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad integer", func(t *testing.T) {
		t.Setenv("POSTGRES_PASSWORD", "secret")
		t.Setenv("DISCOVERY_COVISITOR_SAMPLE", "many")

		_, err := Load()
		assert.ErrorContains(t, err, "DISCOVERY_COVISITOR_SAMPLE")
	})
}
