package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CREWDISPATCH_APP_ENV", "dev")
	t.Setenv("CREWDISPATCH_APP_PORT", "8080")
	t.Setenv("CREWDISPATCH_REDIS_URL", "redis://localhost:6379/0")
}

func TestLoadBuildsDSNFromParts(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CREWDISPATCH_DB_HOST", "db.internal")
	t.Setenv("CREWDISPATCH_DB_USER", "crewdispatch")
	t.Setenv("CREWDISPATCH_DB_PASSWORD", "secret")
	t.Setenv("CREWDISPATCH_DB_NAME", "dispatch")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Contains(t, cfg.DB.DSN, "db.internal:5432")
	assert.Contains(t, cfg.DB.DSN, "sslmode=disable")
}

func TestLoadPrefersExplicitDSN(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CREWDISPATCH_DB_DSN", "postgres://u:p@host:5432/dispatch")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@host:5432/dispatch", cfg.DB.DSN)
}

func TestLoadFailsWithoutDBConfig(t *testing.T) {
	setBaseEnv(t)

	_, err := Load()
	require.Error(t, err)
}

func TestDefaults(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CREWDISPATCH_DB_DSN", "postgres://u:p@host:5432/dispatch")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.Matching.DefaultOfferTimeoutHours)
	assert.Equal(t, 3, cfg.Matching.DefaultMaxNegotiationRounds)
	assert.False(t, cfg.Matching.DefaultProviderAutoAccept)
	assert.Equal(t, "5m0s", cfg.Cron.Interval.String())
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
	assert.True(t, cfg.App.IsDev())
}
