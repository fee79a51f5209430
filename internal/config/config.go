// Package config loads the static runtime configuration from the
// environment, optionally seeded from a .env file.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Config holds everything needed to run the service.
type Config struct {
	Address  string `env:"ADDRESS" envDefault:":8080"`
	GoEnv    string `env:"GO_ENV" envDefault:"development"`
	InitMode bool   `env:"INITMODE" envDefault:"false"` // provision the schema and exit

	MongoURI string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	DBName   string `env:"DB_NAME" envDefault:"omega"`

	JWTSecret    string        `env:"JWT_SECRET,required"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	SyncDebounce time.Duration `env:"SYNC_DEBOUNCE" envDefault:"1500ms"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // text or json
}

// Load reads an optional .env file and parses the environment.
func Load(files ...string) (*Config, error) {
	// Missing .env files are fine; real deployments set the environment
	// directly.
	godotenv.Load(files...)

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
