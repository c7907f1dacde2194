// Package metrics exposes the reconcile and proxy activity counters this
// core collects, served pull-style over a Prometheus /metrics endpoint
// rather than pushed to any control plane.
package metrics

import "errors"

// DefaultListen is the default address the metrics endpoint binds to.
const DefaultListen = "0.0.0.0:9090"

// Config holds the configuration for the metrics endpoint.
type Config struct {
	// Enabled controls whether the metrics endpoint is started.
	Enabled bool

	// Listen is the address the metrics HTTP server binds to.
	Listen string
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
}

// Validate checks that configuration values are acceptable.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Listen == "" {
		return errors.New("metrics: config: Listen must not be empty")
	}
	return nil
}
