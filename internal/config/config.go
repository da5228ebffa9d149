// Package config loads process configuration from STARCORE_* environment
// variables. Command-line flags override the values loaded here.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server configures `starcore serve`.
type Server struct {
	Addr               string        `env:"STARCORE_ADDR" envDefault:":8080"`
	DBPath             string        `env:"STARCORE_DB"`
	SchemasDir         string        `env:"STARCORE_SCHEMAS"`
	CheckpointInterval time.Duration `env:"STARCORE_CHECKPOINT_INTERVAL" envDefault:"30s"`
	Modules            []string      `env:"STARCORE_MODULES" envSeparator:","`
}

// Client configures `starcore connect`.
type Client struct {
	URL        string        `env:"STARCORE_URL" envDefault:"ws://localhost:8080/hub"`
	ClientType string        `env:"STARCORE_CLIENT_TYPE" envDefault:"desktop"`
	MaxBackoff time.Duration `env:"STARCORE_MAX_BACKOFF" envDefault:"30s"`
	SchemasDir string        `env:"STARCORE_SCHEMAS"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServer returns the server configuration from the environment.
func LoadServer() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return Server{}, err
	}
	if cfg.CheckpointInterval < 0 {
		return Server{}, fmt.Errorf("STARCORE_CHECKPOINT_INTERVAL must not be negative")
	}
	return cfg, nil
}

// LoadClient returns the client configuration from the environment.
func LoadClient() (Client, error) {
	var cfg Client
	if err := ParseEnv(&cfg); err != nil {
		return Client{}, err
	}
	return cfg, nil
}
