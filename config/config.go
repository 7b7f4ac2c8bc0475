// Copyright © 2024 The ELPS authors

// Package config loads typecov settings from the config file, TYPECOV_*
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. TYPECOV_HACK_TIMEOUT.
const EnvPrefix = "TYPECOV"

// HackConfig configures the hh_client provider.
type HackConfig struct {
	ClientPath string        `mapstructure:"client_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OTLPConfig configures trace export.
type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config holds the runtime configuration.
type Config struct {
	// Enabled is the initial state of the coverage toggle.
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
	Hack     HackConfig    `mapstructure:"hack"`
	Log      LogConfig     `mapstructure:"log"`
	OTLP     OTLPConfig    `mapstructure:"otlp"`
	Metrics  MetricsConfig `mapstructure:"metrics"`
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("enabled", true)
	v.SetDefault("debounce", 300*time.Millisecond)
	v.SetDefault("hack.client_path", "hh_client")
	v.SetDefault("hack.timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("otlp.endpoint", "")
	v.SetDefault("otlp.insecure", false)
	v.SetDefault("metrics.addr", "")
}

// BindEnv makes TYPECOV_* variables override file values on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes and validates the configuration held by v. A nil v uses the
// global viper instance.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	var errs []error
	if c.Debounce < 0 {
		errs = append(errs, fmt.Errorf("debounce must not be negative, got %s", c.Debounce))
	}
	if c.Hack.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("hack.timeout must be positive, got %s", c.Hack.Timeout))
	}
	if c.Hack.ClientPath == "" {
		errs = append(errs, errors.New("hack.client_path must not be empty"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ErrNoConfigFile is returned by Watch when v was not read from a file.
var ErrNoConfigFile = errors.New("config: no config file to watch")

// Watch calls fn with the reloaded configuration each time v's config file
// is written. Reloads that fail validation are logged and skipped.
func Watch(v *viper.Viper, logger *slog.Logger, fn func(Config)) error {
	if v == nil {
		v = viper.GetViper()
	}
	if v.ConfigFileUsed() == "" {
		return ErrNoConfigFile
	}
	if logger == nil {
		logger = slog.Default()
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(v)
		if err != nil {
			logger.Warn("ignoring config change", "file", e.Name, "error", err)
			return
		}
		logger.Debug("config reloaded", "file", e.Name)
		fn(cfg)
	})
	v.WatchConfig()
	return nil
}
