package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"TODOBOARD_CONFIG", "PORT", "TODOBOARD_ADDR", "TODOBOARD_BACKEND", "TODOBOARD_DATA_DIR",
	"TODOBOARD_SQLITE_PATH", "DATABASE_URL", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD",
	"DB_NAME", "SESSION_SECRET", "TODOBOARD_LOG_LEVEL", "TODOBOARD_LOG_FORMAT",
	"TODOBOARD_SESSION_TTL", "TODOBOARD_OVERDUE_INTERVAL", "TODOBOARD_BCRYPT_COST",
	"TODOBOARD_SECURE_COOKIES", "TODOBOARD_SCHEDULER", "NODE_ENV",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "todoboard.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "file", cfg.Backend)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, time.Minute, cfg.OverdueInterval)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.True(t, cfg.SchedulerEnabled)
	assert.True(t, cfg.InsecureSecret())
	assert.Empty(t, cfg.Source)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
addr = ":4000"
backend = "sqlite"
data_dir = "/srv/todo"
overdue_interval = "5m"
log_level = "debug"

[postgres]
host = "db.internal"
`)
	t.Setenv("TODOBOARD_ADDR", ":5000")
	t.Setenv("TODOBOARD_OVERDUE_INTERVAL", "2m")
	t.Setenv("DB_NAME", "todo")

	fs := newFlags(t, "--config", path, "--addr", ":6000")
	cfg, err := Load(fs)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, ":6000", cfg.Addr, "flag beats env and file")
	assert.Equal(t, 2*time.Minute, cfg.OverdueInterval, "env beats file")
	assert.Equal(t, "sqlite", cfg.Backend, "file beats default")
	assert.Equal(t, "/srv/todo", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, "todo", cfg.Postgres.Name)
}

func TestLoad_PortEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
}

func TestLoad_SchedulerSwitches(t *testing.T) {
	clearEnv(t)
	t.Setenv("NODE_ENV", "test")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.False(t, cfg.SchedulerEnabled)

	clearEnv(t)
	cfg, err = Load(newFlags(t, "--no-scheduler"))
	require.NoError(t, err)
	assert.False(t, cfg.SchedulerEnabled)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(newFlags(t, "--config", filepath.Join(t.TempDir(), "nope.toml")))
	assert.Error(t, err)
}

func TestLoad_BadDuration(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `session_ttl = "forever"`)

	_, err := Load(newFlags(t, "--config", path))
	assert.ErrorContains(t, err, "session_ttl")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown backend", func(c *Config) { c.Backend = "mongo" }, false},
		{"zero interval", func(c *Config) { c.OverdueInterval = 0 }, false},
		{"negative ttl", func(c *Config) { c.SessionTTL = -time.Second }, false},
		{"cost too low", func(c *Config) { c.BcryptCost = 1 }, false},
		{"cost too high", func(c *Config) { c.BcryptCost = 99 }, false},
		{"blank secret", func(c *Config) { c.SessionSecret = " " }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestConfig_StorageOptions(t *testing.T) {
	cfg := Default()
	cfg.Backend = "sqlite"
	cfg.SQLitePath = "/tmp/x.db"

	opts := cfg.StorageOptions()
	assert.Equal(t, "sqlite", opts.Backend)
	assert.Equal(t, "/tmp/x.db", opts.SQLitePath)
	assert.Equal(t, "data", opts.DataDir)
}
