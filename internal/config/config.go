// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration shared by the API and refresher roles.
type Config struct {
	HTTPAddr    string
	HTTPTimeout time.Duration

	ValkeyURI string

	OneFrameBaseURL    string
	OneFrameToken      string
	OneFrameTimeout    time.Duration
	OneFrameMaxRetries int

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables. A .env file in
// the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:           ":8080",
		HTTPTimeout:        30 * time.Second,
		ValkeyURI:          os.Getenv("VALKEY_URI"),
		OneFrameBaseURL:    os.Getenv("ONEFRAME_BASE_URL"),
		OneFrameToken:      os.Getenv("ONEFRAME_TOKEN"),
		OneFrameTimeout:    5 * time.Second,
		OneFrameMaxRetries: 3,
		LogLevel:           os.Getenv("LOG_LEVEL"),
		LogFormat:          os.Getenv("LOG_FORMAT"),
	}

	if addr := strings.TrimSpace(os.Getenv("HTTP_ADDR")); addr != "" {
		cfg.HTTPAddr = addr
	}
	if timeout := strings.TrimSpace(os.Getenv("HTTP_TIMEOUT")); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.HTTPTimeout = d
		}
	}
	if timeout := strings.TrimSpace(os.Getenv("ONEFRAME_TIMEOUT")); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.OneFrameTimeout = d
		}
	}
	if retries := strings.TrimSpace(os.Getenv("ONEFRAME_MAX_RETRIES")); retries != "" {
		if n, err := strconv.Atoi(retries); err == nil && n >= 0 {
			cfg.OneFrameMaxRetries = n
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present.
func (c *Config) validate() error {
	var errs []string

	if c.ValkeyURI == "" {
		errs = append(errs, "VALKEY_URI is required")
	}
	if c.OneFrameBaseURL == "" {
		errs = append(errs, "ONEFRAME_BASE_URL is required")
	} else if !strings.HasPrefix(c.OneFrameBaseURL, "http://") && !strings.HasPrefix(c.OneFrameBaseURL, "https://") {
		errs = append(errs, "ONEFRAME_BASE_URL must use http:// or https:// scheme")
	}
	if c.OneFrameToken == "" {
		errs = append(errs, "ONEFRAME_TOKEN is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
