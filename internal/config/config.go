// Package config loads gridedit settings from a config file, GRIDEDIT_*
// environment variables and command-line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"gridedit/internal/core"
)

const (
	configFileName = "gridedit"
	envPrefix      = "GRIDEDIT"

	KeyDialect              = "dialect"
	KeyDSN                  = "dsn"
	KeyConnectionID         = "connection_id"
	KeyBypassValidation     = "bypass_validation"
	KeyTransactional        = "transactional"
	KeyAllowPrimaryKeyEdits = "allow_primary_key_edits"
	KeyDryRun               = "dry_run"
	KeyPageSize             = "page_size"
	KeyTimeout              = "timeout"
	KeyLogLevel             = "log_level"
	KeyFormat               = "format"
)

var defaults = map[string]any{
	KeyDialect:              string(core.DialectPostgreSQL),
	KeyDSN:                  "",
	KeyConnectionID:         "",
	KeyBypassValidation:     false,
	KeyTransactional:        true,
	KeyAllowPrimaryKeyEdits: true,
	KeyDryRun:               false,
	KeyPageSize:             100,
	KeyTimeout:              300,
	KeyLogLevel:             "info",
	KeyFormat:               "sql",
}

// FlagNames maps config keys to the CLI flags that override them.
var FlagNames = map[string]string{
	KeyDialect:              "dialect",
	KeyDSN:                  "dsn",
	KeyConnectionID:         "connection-id",
	KeyBypassValidation:     "bypass-validation",
	KeyTransactional:        "transaction",
	KeyAllowPrimaryKeyEdits: "allow-primary-key-edits",
	KeyDryRun:               "dry-run",
	KeyPageSize:             "page-size",
	KeyTimeout:              "timeout",
	KeyLogLevel:             "log-level",
	KeyFormat:               "format",
}

var formats = []string{"sql", "json", "summary"}

// Config holds every setting of one CLI invocation.
type Config struct {
	Dialect              string `mapstructure:"dialect"`
	DSN                  string `mapstructure:"dsn"`
	ConnectionID         string `mapstructure:"connection_id"`
	BypassValidation     bool   `mapstructure:"bypass_validation"`
	Transactional        bool   `mapstructure:"transactional"`
	AllowPrimaryKeyEdits bool   `mapstructure:"allow_primary_key_edits"`
	DryRun               bool   `mapstructure:"dry_run"`
	PageSize             int    `mapstructure:"page_size"`
	// Timeout is in seconds.
	Timeout  int    `mapstructure:"timeout"`
	LogLevel string `mapstructure:"log_level"`
	Format   string `mapstructure:"format"`
}

// Load reads the configuration. An empty path searches for gridedit.yaml or
// gridedit.toml in the working directory and in $HOME/.config/gridedit; a
// missing file is not an error then. Flags that were set on the command line
// take precedence over everything else.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "gridedit"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for key, name := range FlagNames {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %q: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Dialect = strings.ToLower(strings.TrimSpace(c.Dialect))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if strings.TrimSpace(c.ConnectionID) == "" {
		c.ConnectionID = DeriveConnectionID(core.Dialect(c.Dialect), c.DSN)
	}
}

// Validate checks the settings and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if !core.IsValidDialect(c.Dialect) {
		errs = append(errs, fmt.Errorf("unsupported dialect %q; use one of %v", c.Dialect, core.SupportedDialects()))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page_size must be positive, got %d", c.PageSize))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %d", c.Timeout))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log_level %q", c.LogLevel))
	}
	if !contains(formats, c.Format) {
		errs = append(errs, fmt.Errorf("unsupported format %q; use 'sql', 'json', or 'summary'", c.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// TimeoutDuration returns Timeout as a duration.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Level returns the parsed log level, info when it cannot be parsed.
func (c *Config) Level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// DeriveConnectionID names a connection by dialect and server address so
// metadata of different servers never shares a cache entry. Passwords are
// never part of the id.
func DeriveConnectionID(d core.Dialect, dsn string) string {
	dsn = strings.TrimSpace(dsn)
	switch d {
	case core.DialectPostgreSQL:
		if cfg, err := pgx.ParseConfig(dsn); err == nil {
			return fmt.Sprintf("%s://%s:%d/%s", d, cfg.Host, cfg.Port, cfg.Database)
		}
	case core.DialectMySQL:
		if cfg, err := mysql.ParseDSN(dsn); err == nil {
			return fmt.Sprintf("%s://%s/%s", d, cfg.Addr, cfg.DBName)
		}
	case core.DialectSQLite:
		if dsn != "" {
			path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
			return fmt.Sprintf("%s://%s", d, filepath.Clean(path))
		}
	}
	return string(d)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
