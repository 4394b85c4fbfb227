// ABOUTME: Environment-driven configuration for the opusd server
// ABOUTME: Loaded via go-envconfig with OPUSD_-prefixed variables
package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// ServerConfig is the full environment configuration of the server
// binary. Command-line flags override individual fields after loading.
type ServerConfig struct {
	Port       int    `env:"OPUSD_PORT, default=8720"`
	Name       string `env:"OPUSD_NAME"`
	EnableMDNS bool   `env:"OPUSD_MDNS, default=true"`
	Debug      bool   `env:"OPUSD_DEBUG, default=false"`
}

// Load reads the server configuration from the process environment.
func Load(ctx context.Context) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("processing environment config: %w", err)
	}
	return &cfg, nil
}
