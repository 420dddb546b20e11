package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_DefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  dsn: "file::memory:"
trigger:
  batch_size: 25
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 25, cfg.Trigger.BatchSize)
	assert.Equal(t, "@every 1m", cfg.Trigger.Cron)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Redis.FeedTTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile_EnvOverride(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: sqlite\n  dsn: a.db\n")
	t.Setenv("FREED_DATABASE_DSN", "b.db")
	t.Setenv("FREED_TRIGGER_CRON", "*/5 * * * *")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "b.db", cfg.Database.DSN)
	assert.Equal(t, "*/5 * * * *", cfg.Trigger.Cron)
}

func TestLoadFile_MissingExplicitPath(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "missing dsn", mutate: func(c *Config) { c.Database.DSN = "" }, wantErr: ErrMissingDSN},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: ErrUnknownDriver},
		{name: "bad timezone", mutate: func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, wantErr: ErrInvalidTZ},
		{name: "release without secret", mutate: func(c *Config) { c.Server.Mode = "release" }, wantErr: ErrMissingJWTSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Database: DatabaseConfig{Driver: "sqlite", DSN: "x.db"},
				Schedule: ScheduleConfig{Timezone: "Asia/Shanghai"},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
