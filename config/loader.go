package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. KYM_TIMEOUT_SECONDS.
const EnvPrefix = "KYM"

// fileConfig mirrors the documented option names used in config files and env vars.
type fileConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	ListingPath       string `mapstructure:"listing_path"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	UserAgent         string `mapstructure:"user_agent"`
	MaxRetries        int    `mapstructure:"max_retries"`
	RetryBackoffMs    int    `mapstructure:"retry_backoff_ms"`
	RetryBackoffMaxMs int    `mapstructure:"retry_backoff_max_ms"`
}

// Load reads configuration from defaults, an optional file and KYM_* environment variables.
// Priority (highest to lowest): env vars > config file > defaults. CLI flags are applied by the caller.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("kym")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".kym"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.BaseURL = fc.BaseURL
	cfg.ListingPath = fc.ListingPath
	cfg.Timeout = time.Duration(fc.TimeoutSeconds) * time.Second
	cfg.UserAgent = fc.UserAgent
	cfg.MaxRetries = fc.MaxRetries
	cfg.RetryBackoff = time.Duration(fc.RetryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(fc.RetryBackoffMaxMs) * time.Millisecond
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("base_url", cfg.BaseURL)
	v.SetDefault("listing_path", cfg.ListingPath)
	v.SetDefault("timeout_seconds", int(cfg.Timeout/time.Second))
	v.SetDefault("user_agent", cfg.UserAgent)
	v.SetDefault("max_retries", cfg.MaxRetries)
	v.SetDefault("retry_backoff_ms", int(cfg.RetryBackoff/time.Millisecond))
	v.SetDefault("retry_backoff_max_ms", int(cfg.RetryBackoffMax/time.Millisecond))
}
