// Package relay carries engine frames between machines: a websocket pipe
// for real deployments, an in-memory pipe pair for tests, and the accept
// loop a game server runs while its clients connect.
package relay

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ServerConfig is read from the environment, one variable per knob.
type ServerConfig struct {
	// Addr is the listen address for the websocket endpoint.
	Addr string `env:"STAGECRAFT_ADDR" envDefault:":8023"`
	// Clients is how many players the server waits for before starting.
	Clients int `env:"STAGECRAFT_CLIENTS" envDefault:"2"`
	// TickRate is game frames per second.
	TickRate int `env:"STAGECRAFT_TICK_RATE" envDefault:"10"`
	// AcceptTimeout bounds how long the server waits for a full lobby.
	AcceptTimeout time.Duration `env:"STAGECRAFT_ACCEPT_TIMEOUT" envDefault:"60s"`
	// JournalPath, when set, records every accepted message to a sqlite
	// database at this path.
	JournalPath string `env:"STAGECRAFT_JOURNAL"`
}

// LoadConfig parses the environment and validates the result.
func LoadConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server can't run with.
func (c ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.Clients < 1 {
		return fmt.Errorf("client count must be at least 1, got %d", c.Clients)
	}
	if c.TickRate < 1 {
		return fmt.Errorf("tick rate must be at least 1, got %d", c.TickRate)
	}
	if c.AcceptTimeout <= 0 {
		return fmt.Errorf("accept timeout must be positive, got %s", c.AcceptTimeout)
	}
	return nil
}

// TickInterval converts the tick rate to a frame duration.
func (c ServerConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}
