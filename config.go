package ioring

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config holds the runtime's static configuration. Grounded on
// marmos91-dittofs's pkg/config/config.go: the same
// viper-New/SetEnvPrefix/AutomaticEnv/Unmarshal-with-decode-hooks
// pattern, scaled down to this module's much smaller knob set.
//
// Precedence, highest to lowest: environment variables (IORING_*),
// config file, struct defaults below.
type Config struct {
	// PoolDepth is the configured operation metadata pool depth. It is
	// loaded but not passed to opcore.NewPool, whose slab pages have a
	// fixed size.
	PoolDepth int `mapstructure:"pool_depth"`

	// RingEntries is the completion-port submission queue depth.
	RingEntries uint32 `mapstructure:"ring_entries"`

	// DrainTimeout is the configured drain timeout. It is loaded but not
	// consulted by Ring.Drain: Drain(true) blocks until at least one
	// completion arrives, with no time limit.
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`

	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls internal/logging's output.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// MetricsConfig holds the Prometheus metrics settings. They are loaded
// but not read by cmd/ioringd, which starts no metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// DefaultConfig returns the runtime's built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		PoolDepth:    DefaultPoolDepth,
		RingEntries:  DefaultRingEntries,
		DrainTimeout: time.Second,
		Logging:      LoggingConfig{Level: "info"},
		Metrics:      MetricsConfig{Enabled: false, Addr: ":9090"},
	}
}

// LoadConfig loads configuration from built-in defaults, an optional
// file, and environment variables prefixed IORING_, in that order of
// increasing precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("IORING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows, so every key
	// is registered with its default for IORING_* variables to reach
	// Unmarshal even when no config file is given.
	defaults := DefaultConfig()
	v.SetDefault("pool_depth", defaults.PoolDepth)
	v.SetDefault("ring_entries", defaults.RingEntries)
	v.SetDefault("drain_timeout", defaults.DrainTimeout)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.development", defaults.Logging.Development)
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.addr", defaults.Metrics.Addr)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("ioring: read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	))); err != nil {
		return nil, fmt.Errorf("ioring: unmarshal config: %w", err)
	}

	return cfg, nil
}

// durationDecodeHook lets config files and environment variables use
// human-readable durations ("30s", "5m") for time.Duration fields.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}
