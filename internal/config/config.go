// Package config resolves permstore settings.
//
// Resolution order, later wins:
//  1. built-in defaults
//  2. a YAML file (unknown keys are rejected)
//  3. PERMSTORE_* environment variables
//
// The result is then checked against an embedded CUE schema.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/permstore/internal/cache"
	"github.com/roach88/permstore/internal/lifecycle"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PERMSTORE_"

// Config is the resolved configuration.
type Config struct {
	Dir            string        `yaml:"dir" env:"DIR"`
	BlockedTimeout time.Duration `yaml:"blocked_timeout" env:"BLOCKED_TIMEOUT"`
	PollInterval   time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	BusyTimeout    time.Duration `yaml:"busy_timeout" env:"BUSY_TIMEOUT"`
	LogLevel       string        `yaml:"log_level" env:"LOG_LEVEL"`

	HTTP HTTP `yaml:"http" envPrefix:"HTTP_"`

	// TextStore and AudioStore name the stores used by the loaders.
	TextStore  string `yaml:"text_store" env:"TEXT_STORE"`
	AudioStore string `yaml:"audio_store" env:"AUDIO_STORE"`
	// AudioURL is the audio address template; "{id}" is replaced by the
	// sentence identifier.
	AudioURL string `yaml:"audio_url" env:"AUDIO_URL"`
}

// HTTP configures the fetchers.
type HTTP struct {
	RetryMax     int           `yaml:"retry_max" env:"RETRY_MAX"`
	RetryWaitMin time.Duration `yaml:"retry_wait_min" env:"RETRY_WAIT_MIN"`
	RetryWaitMax time.Duration `yaml:"retry_wait_max" env:"RETRY_WAIT_MAX"`
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// Default returns the built-in configuration. Databases live under the
// user cache directory.
func Default() Config {
	return Config{
		Dir:            DefaultDir(),
		BlockedTimeout: lifecycle.DefaultBlockedTimeout,
		PollInterval:   lifecycle.DefaultPollInterval,
		BusyTimeout:    lifecycle.DefaultBusyTimeout,
		LogLevel:       "info",
		HTTP: HTTP{
			RetryMax:     3,
			RetryWaitMin: 500 * time.Millisecond,
			RetryWaitMax: 5 * time.Second,
			Timeout:      30 * time.Second,
		},
		TextStore:  "texts",
		AudioStore: "sounds",
	}
}

// DefaultDir is <user cache dir>/permstore, or a temp directory when the
// platform has no cache directory.
func DefaultDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "permstore")
}

// Load resolves the configuration. path may be empty to skip the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// LifecycleOptions converts the configuration for lifecycle.Open and store.New.
func (c *Config) LifecycleOptions(logger *slog.Logger) lifecycle.Options {
	return lifecycle.Options{
		Dir:            c.Dir,
		BlockedTimeout: c.BlockedTimeout,
		PollInterval:   c.PollInterval,
		BusyTimeout:    c.BusyTimeout,
		Logger:         logger,
	}
}

// HTTPOptions converts the configuration for cache.NewHTTPFetcher.
func (c *Config) HTTPOptions(logger *slog.Logger) cache.HTTPOptions {
	return cache.HTTPOptions{
		RetryMax:     c.HTTP.RetryMax,
		RetryWaitMin: c.HTTP.RetryWaitMin,
		RetryWaitMax: c.HTTP.RetryWaitMax,
		Timeout:      c.HTTP.Timeout,
		Logger:       logger,
	}
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
