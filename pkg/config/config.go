// Package config loads rfaccess settings from an optional YAML file and then
// from RFACCESS_* environment variables, which take precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. RFACCESS_STORAGE_DRIVER.
const EnvPrefix = "rfaccess"

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

type Config struct {
	LinkScheme string          `yaml:"linkScheme" split_words:"true"`
	Storage    StorageConfig   `yaml:"storage"`
	Emulation  EmulationConfig `yaml:"emulation"`
	HTTP       HTTPConfig      `yaml:"http"       envconfig:"http"`
	Metrics    MetricsConfig   `yaml:"metrics"`
	Log        LogConfig       `yaml:"log"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	// Path is the SQLite file or the Badger directory. Unused for memory.
	Path string `yaml:"path"`
}

type EmulationConfig struct {
	// DefaultImage serves the built-in 1K image when nothing is persisted.
	DefaultImage bool `yaml:"defaultImage" split_words:"true"`
	SignalBuffer int  `yaml:"signalBuffer" split_words:"true"`
}

type HTTPConfig struct {
	ListenAddr string `yaml:"listenAddr" split_words:"true"`
}

type MetricsConfig struct {
	// ListenAddr serves /metrics; empty disables it.
	ListenAddr string `yaml:"listenAddr" split_words:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LinkScheme: "rfaccess",
		Storage: StorageConfig{
			Driver: DriverSQLite,
			Path:   "rfaccess.db",
		},
		Emulation: EmulationConfig{
			SignalBuffer: 64,
		},
		HTTP:    HTTPConfig{ListenAddr: "127.0.0.1:8080"},
		Metrics: MetricsConfig{ListenAddr: "127.0.0.1:9100"},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

// Load starts from Default, applies the YAML file at path when path is not
// empty, then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated fields and bounds.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite, DriverBadger:
	default:
		errs = append(errs, fmt.Errorf("invalid storage.driver %q (must be %s, %s or %s)",
			c.Storage.Driver, DriverMemory, DriverSQLite, DriverBadger))
	}
	if c.Storage.Driver == DriverSQLite && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required for the sqlite driver"))
	}
	if c.Emulation.SignalBuffer <= 0 {
		errs = append(errs, fmt.Errorf("emulation.signalBuffer must be positive, got %d", c.Emulation.SignalBuffer))
	}
	if c.LinkScheme == "" || strings.ContainsAny(c.LinkScheme, ":/?#") {
		errs = append(errs, fmt.Errorf("invalid linkScheme %q", c.LinkScheme))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("invalid log.format %q (must be json or text)", c.Log.Format))
	}

	return errors.Join(errs...)
}

// SlogLevel maps Level onto slog.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log.level %q", l.Level)
	}
}

type contextKey struct{}

// WithContext stores cfg on ctx for subcommands.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext returns the Config stored by WithContext, or nil.
func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(contextKey{}).(*Config)
	if !ok {
		return nil
	}
	return cfg
}
