package config_test

import (
	"testing"
	"time"

	"github.com/HibiKier/wuthering-waves/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, 25, cfg.Database.MaxOpenConns)
	require.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	require.Equal(t, 100, cfg.Credential.PoolSize)
	require.Equal(t, 24*time.Hour, cfg.Credential.AccessTokenTTL)
	require.Equal(t, int64(2), cfg.Fetch.Concurrency)
	require.Equal(t, time.Minute, cfg.Refresh.Cooldown)
	require.True(t, cfg.Refresh.SingleFlight)
	require.Equal(t, "always", cfg.Refresh.WritePolicy)
	require.Equal(t, 600*time.Second, cfg.Login.Timeout)
	require.Equal(t, 10, cfg.Login.MaxPending)
	require.Equal(t, "https://api.kurobbs.com", cfg.Kuro.BaseURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", "/tmp/waves.db")
	t.Setenv("FETCH_CONCURRENCY", "4")
	t.Setenv("REFRESH_WRITE_POLICY", "changed-only")
	t.Setenv("NOTIFY_TO", "a@example.com,b@example.com")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, int64(4), cfg.Fetch.Concurrency)
	require.Equal(t, "changed-only", cfg.Refresh.WritePolicy)
	require.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Notify.To)
	require.Contains(t, cfg.Database.DSN(), "/tmp/waves.db?_pragma=foreign_keys(1)")
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("REFRESH_WRITE_POLICY", "sometimes")

	_, err := config.Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid configuration")
}
