// Package config loads ferrix's YAML configuration file: the server
// timeouts, the set of entrypoints to bind, and the metrics endpoint
// settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/plexsphere/ferrix/internal/metrics"
)

// ServerConfig holds the http.Server timeouts shared by every entrypoint
// listener.
type ServerConfig struct {
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// Default server timeouts.
const (
	DefaultReadTimeout  = 15 * time.Second
	DefaultWriteTimeout = 15 * time.Second
	DefaultIdleTimeout  = 60 * time.Second
)

// ApplyDefaults sets default values for zero-valued fields.
func (c *ServerConfig) ApplyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
}

// Validate checks that configuration values are acceptable.
func (c *ServerConfig) Validate() error {
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		return errors.New("config: server: timeouts must not be negative")
	}
	return nil
}

// EntryPoint names one listener ferrix binds: a port and, per spec.md §9,
// a reserved (unwired) secure flag.
type EntryPoint struct {
	Name   string `yaml:"name"`
	Port   int    `yaml:"port"`
	Secure bool   `yaml:"secure"` // reserved; never dereferenced by the proxy hook or dialer
}

// Config is the top-level YAML document ferrix loads at startup.
type Config struct {
	Server      ServerConfig   `yaml:"server"`
	EntryPoints []EntryPoint   `yaml:"entry_points"`
	Metrics     metrics.Config `yaml:"metrics"`
}

// ApplyDefaults sets default values for zero-valued fields, recursively.
func (c *Config) ApplyDefaults() {
	c.Server.ApplyDefaults()
	c.Metrics.ApplyDefaults()
}

// Validate checks that configuration values are acceptable, including
// entrypoint name uniqueness and port ranges.
func (c *Config) Validate() error {
	if len(c.EntryPoints) == 0 {
		return errors.New("config: at least one entry_points entry is required")
	}
	seen := make(map[string]bool, len(c.EntryPoints))
	for _, ep := range c.EntryPoints {
		if ep.Name == "" {
			return errors.New("config: entry_points: name must not be empty")
		}
		if seen[ep.Name] {
			return fmt.Errorf("config: entry_points: duplicate name %q", ep.Name)
		}
		seen[ep.Name] = true
		if ep.Port <= 0 || ep.Port > 65535 {
			return fmt.Errorf("config: entry_points: %q: port %d out of range", ep.Name, ep.Port)
		}
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	return c.Metrics.Validate()
}

// EntryPointNames returns every configured entrypoint's name, for
// building the reconcile.Dispatcher.
func (c *Config) EntryPointNames() []string {
	names := make([]string, len(c.EntryPoints))
	for i, ep := range c.EntryPoints {
		names[i] = ep.Name
	}
	return names
}

// ParseConfig reads and validates the YAML config file at path.
func ParseConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}
