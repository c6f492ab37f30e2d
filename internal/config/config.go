// Package config loads process configuration from the environment (with an
// optional .env file) and the optional YAML plugin file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config is the process configuration read from the environment
type Config struct {
	ChatURL        string        `env:"CHAT_URL,required,notEmpty"`
	ChatToken      string        `env:"CHAT_TOKEN,required,notEmpty"`
	Rooms          []string      `env:"CHAT_ROOMS" envSeparator:","`
	CommandPrefix  string        `env:"COMMAND_PREFIX" envDefault:"!!"`
	StorageDriver  string        `env:"STORAGE_DRIVER" envDefault:"memory"`
	StorageDSN     string        `env:"STORAGE_DSN"`
	APIPort        int           `env:"API_PORT" envDefault:"8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	PluginConfig   string        `env:"PLUGIN_CONFIG" envDefault:"plugins.yaml"`
	LogDevelopment bool          `env:"LOG_DEVELOPMENT"`
}

// Load reads envFiles (".env" when none are given) into the process
// environment and parses it. A missing env file only logs a warning.
// Variables already set in the environment win over the file.
func Load(logger *zap.Logger, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		logger.Warn("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values env tags cannot express
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case "memory":
	case "sqlite", "postgres":
		if c.StorageDSN == "" {
			return fmt.Errorf("STORAGE_DSN is required for storage driver %q", c.StorageDriver)
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.APIPort < 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT out of range: %d", c.APIPort)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if strings.TrimSpace(c.CommandPrefix) == "" {
		return fmt.Errorf("COMMAND_PREFIX cannot be blank")
	}

	rooms := c.Rooms[:0]
	for _, room := range c.Rooms {
		if room = strings.TrimSpace(room); room != "" {
			rooms = append(rooms, room)
		}
	}
	c.Rooms = rooms
	return nil
}
