package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("OVERDUE_SWEEP_CRON", "15 2 * * *")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, "15 2 * * *", cfg.OverdueSweepCron)
	require.Equal(t, "30 1 * * *", cfg.GLIntegrityCron)
	require.Equal(t, 10*time.Minute, cfg.DirectoryCacheTTL)
	require.Equal(t, 30*24*time.Hour, cfg.IdempotencyRetention)
	require.False(t, cfg.MigrateOnStart)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("RATE_LIMIT_PER_MINUTE", "60")
	t.Setenv("IDEMPOTENCY_RETENTION", "not-a-duration")
	_, err = LoadConfig()
	require.Error(t, err)
}
