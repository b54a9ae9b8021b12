// Package config loads todoboard settings. Values are layered: built-in
// defaults, then the TOML file, then environment variables, then flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/abefas/todoboard/database"
)

// DefaultSessionSecret is used when SESSION_SECRET is unset. Serve warns about it.
const DefaultSessionSecret = "dev_secret_change_me"

// DefaultFile is read when no config path is given and it exists.
const DefaultFile = "todoboard.toml"

// Config is the resolved runtime configuration.
type Config struct {
	Addr             string
	Backend          string
	DataDir          string
	SQLitePath       string
	Postgres         database.PostgresConfig
	SessionSecret    string
	SessionTTL       time.Duration
	SecureCookies    bool
	OverdueInterval  time.Duration
	BcryptCost       int
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration
	SchedulerEnabled bool

	// Source is the config file that was read, if any.
	Source string
}

// fileConfig mirrors the TOML layout. Durations are strings like "90s".
type fileConfig struct {
	Addr             *string                 `toml:"addr"`
	Backend          *string                 `toml:"backend"`
	DataDir          *string                 `toml:"data_dir"`
	SQLitePath       *string                 `toml:"sqlite_path"`
	Postgres         database.PostgresConfig `toml:"postgres"`
	SessionSecret    *string                 `toml:"session_secret"`
	SessionTTL       *string                 `toml:"session_ttl"`
	SecureCookies    *bool                   `toml:"secure_cookies"`
	OverdueInterval  *string                 `toml:"overdue_interval"`
	BcryptCost       *int                    `toml:"bcrypt_cost"`
	LogLevel         *string                 `toml:"log_level"`
	LogFormat        *string                 `toml:"log_format"`
	ShutdownTimeout  *string                 `toml:"shutdown_timeout"`
	SchedulerEnabled *bool                   `toml:"scheduler_enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:             ":3000",
		Backend:          database.BackendFile,
		DataDir:          "data",
		SQLitePath:       "data/todoboard.db",
		SessionSecret:    DefaultSessionSecret,
		SessionTTL:       24 * time.Hour,
		OverdueInterval:  time.Minute,
		BcryptCost:       bcrypt.DefaultCost,
		LogLevel:         "info",
		LogFormat:        "text",
		ShutdownTimeout:  30 * time.Second,
		SchedulerEnabled: true,
	}
}

// BindFlags registers the command-line overrides on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a TOML config file")
	fs.String("addr", "", "listen address")
	fs.String("backend", "", "storage backend: file, sqlite or postgres")
	fs.String("data-dir", "", "directory for the file backend")
	fs.String("sqlite-path", "", "database file for the sqlite backend")
	fs.Duration("overdue-interval", 0, "how often the overdue sweep runs")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("log-format", "", "log format: text, json or logfmt")
	fs.Bool("no-scheduler", false, "disable the background overdue sweep")
}

// Load resolves the configuration. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	var explicit string
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			explicit = f.Value.String()
		}
	}
	path, required := resolvePath(explicit)
	if path != "" {
		if err := cfg.loadFile(path, required); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if fs != nil {
		if err := cfg.applyFlags(fs); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePath picks the config file. An explicitly named file must exist.
func resolvePath(explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	if v := os.Getenv("TODOBOARD_CONFIG"); v != "" {
		return v, true
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile, false
	}
	return "", false
}

func (c *Config) loadFile(path string, required bool) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	c.Source = path

	setString(&c.Addr, fc.Addr)
	setString(&c.Backend, fc.Backend)
	setString(&c.DataDir, fc.DataDir)
	setString(&c.SQLitePath, fc.SQLitePath)
	setString(&c.SessionSecret, fc.SessionSecret)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)
	if fc.SecureCookies != nil {
		c.SecureCookies = *fc.SecureCookies
	}
	if fc.BcryptCost != nil {
		c.BcryptCost = *fc.BcryptCost
	}
	if fc.SchedulerEnabled != nil {
		c.SchedulerEnabled = *fc.SchedulerEnabled
	}
	c.Postgres = fc.Postgres

	for _, d := range []struct {
		key string
		raw *string
		dst *time.Duration
	}{
		{"session_ttl", fc.SessionTTL, &c.SessionTTL},
		{"overdue_interval", fc.OverdueInterval, &c.OverdueInterval},
		{"shutdown_timeout", fc.ShutdownTimeout, &c.ShutdownTimeout},
	} {
		if d.raw == nil {
			continue
		}
		v, err := time.ParseDuration(*d.raw)
		if err != nil {
			return fmt.Errorf("config %s: invalid %s: %w", path, d.key, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Addr = ":" + v
	}
	if v := os.Getenv("TODOBOARD_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("TODOBOARD_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("TODOBOARD_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("TODOBOARD_SQLITE_PATH"); v != "" {
		c.SQLitePath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Postgres.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		c.Postgres.Port = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Postgres.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Postgres.Name = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		c.SessionSecret = v
	}
	if v := os.Getenv("TODOBOARD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("TODOBOARD_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("TODOBOARD_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TODOBOARD_SESSION_TTL: %w", err)
		}
		c.SessionTTL = d
	}
	if v := os.Getenv("TODOBOARD_OVERDUE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TODOBOARD_OVERDUE_INTERVAL: %w", err)
		}
		c.OverdueInterval = d
	}
	if v := os.Getenv("TODOBOARD_BCRYPT_COST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TODOBOARD_BCRYPT_COST: %w", err)
		}
		c.BcryptCost = n
	}
	if v := os.Getenv("TODOBOARD_SECURE_COOKIES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TODOBOARD_SECURE_COOKIES: %w", err)
		}
		c.SecureCookies = b
	}
	if os.Getenv("NODE_ENV") == "test" {
		c.SchedulerEnabled = false
	}
	if v := os.Getenv("TODOBOARD_SCHEDULER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TODOBOARD_SCHEDULER: %w", err)
		}
		c.SchedulerEnabled = b
	}
	return nil
}

func (c *Config) applyFlags(fs *pflag.FlagSet) error {
	for flag, dst := range map[string]*string{
		"addr":        &c.Addr,
		"backend":     &c.Backend,
		"data-dir":    &c.DataDir,
		"sqlite-path": &c.SQLitePath,
		"log-level":   &c.LogLevel,
		"log-format":  &c.LogFormat,
	} {
		if fs.Lookup(flag) == nil || !fs.Changed(flag) {
			continue
		}
		v, err := fs.GetString(flag)
		if err != nil {
			return err
		}
		*dst = v
	}
	if fs.Lookup("overdue-interval") != nil && fs.Changed("overdue-interval") {
		d, err := fs.GetDuration("overdue-interval")
		if err != nil {
			return err
		}
		c.OverdueInterval = d
	}
	if fs.Lookup("no-scheduler") != nil && fs.Changed("no-scheduler") {
		off, err := fs.GetBool("no-scheduler")
		if err != nil {
			return err
		}
		c.SchedulerEnabled = !off
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Backend {
	case database.BackendFile, database.BackendSQLite, database.BackendPostgres:
	default:
		return fmt.Errorf("unknown backend %q (want file, sqlite or postgres)", c.Backend)
	}
	if c.OverdueInterval <= 0 {
		return errors.New("overdue_interval must be positive")
	}
	if c.SessionTTL <= 0 {
		return errors.New("session_ttl must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be positive")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if strings.TrimSpace(c.SessionSecret) == "" {
		return errors.New("session_secret must not be empty")
	}
	return nil
}

// InsecureSecret reports whether the built-in development secret is in use.
func (c *Config) InsecureSecret() bool {
	return c.SessionSecret == DefaultSessionSecret
}

// StorageOptions returns the database options for the configured backend.
func (c *Config) StorageOptions() database.Options {
	return database.Options{
		Backend:    c.Backend,
		DataDir:    c.DataDir,
		SQLitePath: c.SQLitePath,
		Postgres:   c.Postgres,
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
