// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultBaseURL   = "http://localhost:11434"
	defaultTimeoutMS = 300000 // 5 minutes, Ollama can be slow on first load
	defaultLogLevel  = "info"
)

// Config stores all configuration of the application.
// The values are read by viper from environment variables.
type Config struct {
	// BaseURL is the address of the Ollama daemon.
	BaseURL string `mapstructure:"base_url"`
	// TimeoutMS is the per-request backend timeout in milliseconds.
	TimeoutMS int `mapstructure:"timeout_ms"`
	// LogLevel is a zerolog level string (trace..panic).
	LogLevel string `mapstructure:"log_level"`
}

// Load reads configuration from the environment, applying defaults for
// anything unset. OLLAMA_BASE_URL and OLLAMA_TIMEOUT are the supported
// overrides.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("base_url", defaultBaseURL)
	v.SetDefault("timeout_ms", defaultTimeoutMS)
	v.SetDefault("log_level", defaultLogLevel)

	if err := v.BindEnv("base_url", "OLLAMA_BASE_URL"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("timeout_ms", "OLLAMA_TIMEOUT"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("log_level", "OLLAMA_MCP_LOG_LEVEL"); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base URL %q: %w", c.BaseURL, err)
	}
	if c.TimeoutMS <= 0 {
		return fmt.Errorf("timeout must be positive, got %dms", c.TimeoutMS)
	}
	return nil
}

// Timeout returns the backend timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}
