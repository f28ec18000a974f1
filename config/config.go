// Package config loads connection and logging settings for a tabula DB.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/shrek82/tabula/core"
	"github.com/shrek82/tabula/dialect"
	"github.com/shrek82/tabula/logger"
)

// EnvPrefix prefixes every environment override, e.g. TABULA_DSN.
const EnvPrefix = "TABULA"

// Config represents the tabula configuration
type Config struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ManualCommit    bool          `mapstructure:"manual_commit"`
	Log             LogConfig     `mapstructure:"log"`

	output io.Writer
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	Backend string `mapstructure:"backend"`

	// SlowThreshold, when positive, also reports slower statements at Warn.
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

// Load reads path when it is not empty, otherwise tabula.yml or
// tabula.yaml from the working directory if present. Environment variables
// override both.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("driver", "sqlite3")
	v.SetDefault("dsn", "")
	v.SetDefault("max_open_conns", 0)
	v.SetDefault("max_idle_conns", 0)
	v.SetDefault("conn_max_lifetime", "0s")
	v.SetDefault("manual_commit", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", string(logger.LogFormatText))
	v.SetDefault("log.backend", "std")
	v.SetDefault("log.slow_threshold", "0s")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tabula")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the driver, pool limits and log settings.
func (c *Config) Validate() error {
	if _, ok := dialect.Get(c.Driver); !ok {
		return fmt.Errorf("driver %q: %w (known: %s)", c.Driver, core.ErrUnknownDialect, strings.Join(dialect.Names(), ", "))
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("connection limits must not be negative")
	}
	if c.ConnMaxLifetime < 0 {
		return fmt.Errorf("conn_max_lifetime must not be negative, got %s", c.ConnMaxLifetime)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch logger.LogFormat(c.Log.Format) {
	case logger.LogFormatText, logger.LogFormatJSON:
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	switch c.Log.Backend {
	case "std", "zap":
	default:
		return fmt.Errorf("log.backend must be std or zap, got %q", c.Log.Backend)
	}
	return nil
}

// NewLogger builds the logger the config describes.
func (c *Config) NewLogger() (logger.Logger, error) {
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	var l logger.Logger
	if c.Log.Backend == "zap" {
		l = logger.NewZapLogger(zap.NewNop())
	} else {
		l = logger.NewStdLogger()
	}
	l.SetLevel(level)
	l.SetFormat(logger.LogFormat(c.Log.Format))
	out := c.output
	if out == nil {
		out = os.Stderr
	}
	l.SetOutput(out)
	return logger.NewSlowLogger(l, c.Log.SlowThreshold), nil
}

// Options converts the pool settings to core.Options, with l as logger.
func (c *Config) Options(l logger.Logger) *core.Options {
	return &core.Options{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ManualCommit:    c.ManualCommit,
		Logger:          l,
	}
}

// Open connects using cfg.
func Open(cfg *Config) (*core.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	return core.Open(cfg.Driver, cfg.DSN, cfg.Options(l))
}
