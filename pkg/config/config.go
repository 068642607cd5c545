// Package config loads application configuration from the environment,
// with an optional .env file for development.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Addr          string        `envconfig:"ADDR" default:":8080"`
	DBPath        string        `envconfig:"DB_PATH" default:"bankcore.db"`
	JWTSecret     string        `envconfig:"JWT_SECRET" required:"true"`
	TokenExpiry   time.Duration `envconfig:"TOKEN_EXPIRY" default:"24h"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	MatureEvery   time.Duration `envconfig:"MATURE_EVERY" default:"1h"`
	RequestBudget time.Duration `envconfig:"REQUEST_BUDGET" default:"10s"`
}

// Load reads BANKCORE_* variables, after merging a .env file if one is
// present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("BANKCORE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}
