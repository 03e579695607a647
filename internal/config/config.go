// Package config loads the service's runtime configuration via
// github.com/spf13/viper: a config file (if present) overlaid by
// CALREMIND_-prefixed environment variables, with defaults for every
// value spec.md §9 calls out as configurable.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the service's full runtime configuration.
type Config struct {
	// DatabaseDSN is the PostgreSQL connection string for the
	// Persistence Layer.
	DatabaseDSN string

	// SyncPeriod is the Sync Loop's cadence (spec.md §9: sync_period).
	SyncPeriod time.Duration

	// ReminderRefreshPeriod is the Reminder Scheduler's refresh cadence R
	// (spec.md §4.5, §9: reminder_refresh_period).
	ReminderRefreshPeriod time.Duration

	// HorizonDays bounds how far into the future instances are
	// materialised (spec.md §3 invariant 4, §9: horizon_days, default 30).
	HorizonDays int

	// FetchTimeout bounds a single CalDAV REPORT request.
	FetchTimeout time.Duration
}

// Load reads configuration from configPath (if non-empty) and the
// environment, applying defaults for anything unset.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("sync_period", 15*time.Minute)
	v.SetDefault("reminder_refresh_period", time.Minute)
	v.SetDefault("horizon_days", 30)
	v.SetDefault("fetch_timeout", 30*time.Second)
	v.SetDefault("database_dsn", "")

	v.SetEnvPrefix("calremind")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}

	cfg := &Config{
		DatabaseDSN:           v.GetString("database_dsn"),
		SyncPeriod:            v.GetDuration("sync_period"),
		ReminderRefreshPeriod: v.GetDuration("reminder_refresh_period"),
		HorizonDays:           v.GetInt("horizon_days"),
		FetchTimeout:          v.GetDuration("fetch_timeout"),
	}

	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("config: database_dsn is required")
	}

	return cfg, nil
}

// Horizon returns HorizonDays as a time.Duration.
func (c *Config) Horizon() time.Duration {
	return time.Duration(c.HorizonDays) * 24 * time.Hour
}
