package provider

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds AI provider connection and retry policy parameters.
type Config struct {
	Endpoint       string `toml:"endpoint"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	RequestTimeout string `toml:"request_timeout"`
	MaxRetries     int    `toml:"max_retries"`
	BackoffBase    string `toml:"backoff_base"`
	BackoffCap     string `toml:"backoff_cap"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Endpoint       string
	APIKey         string
	Model          string
	RequestTimeout string
	MaxRetries     string
}

// RequestTimeoutDuration returns RequestTimeout as a time.Duration.
// A bare integer is read as seconds, so AI_REQUEST_TIMEOUT=30 and
// AI_REQUEST_TIMEOUT=30s are equivalent.
func (c *Config) RequestTimeoutDuration() time.Duration {
	d, _ := parseTimeout(c.RequestTimeout)
	return d
}

func parseTimeout(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid duration: %s", v)
}

// BackoffBaseDuration returns BackoffBase as a time.Duration.
func (c *Config) BackoffBaseDuration() time.Duration {
	d, _ := time.ParseDuration(c.BackoffBase)
	return d
}

// BackoffCapDuration returns BackoffCap as a time.Duration.
func (c *Config) BackoffCapDuration() time.Duration {
	d, _ := time.ParseDuration(c.BackoffCap)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.RequestTimeout != "" {
		c.RequestTimeout = overlay.RequestTimeout
	}
	if overlay.MaxRetries != 0 {
		c.MaxRetries = overlay.MaxRetries
	}
	if overlay.BackoffBase != "" {
		c.BackoffBase = overlay.BackoffBase
	}
	if overlay.BackoffCap != "" {
		c.BackoffCap = overlay.BackoffCap
	}
}

func (c *Config) loadDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = "gpt-3.5-turbo"
	}
	if c.RequestTimeout == "" {
		c.RequestTimeout = "30s"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BackoffBase == "" {
		c.BackoffBase = "500ms"
	}
	if c.BackoffCap == "" {
		c.BackoffCap = "8s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Endpoint != "" {
		if v := os.Getenv(env.Endpoint); v != "" {
			c.Endpoint = v
		}
	}
	if env.APIKey != "" {
		if v := os.Getenv(env.APIKey); v != "" {
			c.APIKey = v
		}
	}
	if env.Model != "" {
		if v := os.Getenv(env.Model); v != "" {
			c.Model = v
		}
	}
	if env.RequestTimeout != "" {
		if v := os.Getenv(env.RequestTimeout); v != "" {
			c.RequestTimeout = v
		}
	}
	if env.MaxRetries != "" {
		if v := os.Getenv(env.MaxRetries); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxRetries = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api key required")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1")
	}
	if _, err := parseTimeout(c.RequestTimeout); err != nil {
		return fmt.Errorf("invalid request_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.BackoffBase); err != nil {
		return fmt.Errorf("invalid backoff_base: %w", err)
	}
	if _, err := time.ParseDuration(c.BackoffCap); err != nil {
		return fmt.Errorf("invalid backoff_cap: %w", err)
	}
	return nil
}
