package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("CALREMIND_DATABASE_DSN", "postgres://localhost/calremind")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.SyncPeriod)
	assert.Equal(t, time.Minute, cfg.ReminderRefreshPeriod)
	assert.Equal(t, 30, cfg.HorizonDays)
	assert.Equal(t, 30*24*time.Hour, cfg.Horizon())
}

func TestLoadRequiresDatabaseDSN(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "database_dsn: postgres://localhost/calremind\nhorizon_days: 7\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.HorizonDays)
	assert.Equal(t, "postgres://localhost/calremind", cfg.DatabaseDSN)
}
