package listener

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// Config holds the background listener's bind address and capacity limits.
type Config struct {
	Enabled       *bool  `toml:"enabled"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	QueueCapacity int    `toml:"queue_capacity"`
	Workers       int    `toml:"workers"`
	DrainGrace    string `toml:"drain_grace"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled string
	Port    string
}

// IsEnabled reports whether the listener should run. Unset means enabled.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Addr returns the host:port bind address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DrainGraceDuration returns DrainGrace as a time.Duration.
func (c *Config) DrainGraceDuration() time.Duration {
	d, _ := time.ParseDuration(c.DrainGrace)
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
	if overlay.Enabled != nil {
		c.Enabled = overlay.Enabled
	}
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	if overlay.QueueCapacity != 0 {
		c.QueueCapacity = overlay.QueueCapacity
	}
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.DrainGrace != "" {
		c.DrainGrace = overlay.DrainGrace
	}
}

func (c *Config) loadDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8001
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = 256
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.DrainGrace == "" {
		c.DrainGrace = "10s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Enabled != "" {
		if v := os.Getenv(env.Enabled); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.Enabled = &b
			}
		}
	}
	if env.Port != "" {
		if v := os.Getenv(env.Port); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Port = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be positive")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive")
	}
	if _, err := time.ParseDuration(c.DrainGrace); err != nil {
		return fmt.Errorf("invalid drain_grace: %w", err)
	}
	return nil
}
