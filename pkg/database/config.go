package database

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds MongoDB connection parameters.
type Config struct {
	URL         string `toml:"url"`
	Database    string `toml:"database"`
	ConnTimeout string `toml:"conn_timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	URL         string
	Database    string
	ConnTimeout string
}

// ConnTimeoutDuration returns ConnTimeout as a time.Duration.
func (c *Config) ConnTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnTimeout)
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
	if overlay.URL != "" {
		c.URL = overlay.URL
	}
	if overlay.Database != "" {
		c.Database = overlay.Database
	}
	if overlay.ConnTimeout != "" {
		c.ConnTimeout = overlay.ConnTimeout
	}
}

func (c *Config) loadDefaults() {
	if c.URL == "" {
		c.URL = "mongodb://localhost:27017"
	}
	if c.Database == "" {
		c.Database = "quill"
	}
	if c.ConnTimeout == "" {
		c.ConnTimeout = "10s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.URL != "" {
		if v := os.Getenv(env.URL); v != "" {
			c.URL = v
		}
	}
	if env.Database != "" {
		if v := os.Getenv(env.Database); v != "" {
			c.Database = v
		}
	}
	if env.ConnTimeout != "" {
		if v := os.Getenv(env.ConnTimeout); v != "" {
			c.ConnTimeout = v
		}
	}
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.URL, "mongodb://") && !strings.HasPrefix(c.URL, "mongodb+srv://") {
		return fmt.Errorf("invalid mongodb url: %s", c.URL)
	}
	if c.Database == "" {
		return fmt.Errorf("database name required")
	}
	if _, err := time.ParseDuration(c.ConnTimeout); err != nil {
		return fmt.Errorf("invalid conn_timeout: %w", err)
	}
	return nil
}
