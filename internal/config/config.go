// internal/config/config.go
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every environment-driven knob of the server. Values come
// from the environment (optionally seeded by a .env file via the
// godotenv autoload import in main).
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	RedisAddr  string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB    int    `env:"REDIS_DB" envDefault:"0"`
	NotifyList string `env:"NOTIFY_QUEUE_NAME"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Key material shared with the auth service that mints session tokens.
	// When unset the server generates a throwaway pair and only tokens it
	// minted itself will verify.
	JWTPublicKeyPath  string `env:"JWT_PUBLIC_KEY_PATH"`
	JWTPrivateKeyPath string `env:"JWT_PRIVATE_KEY_PATH"`

	// SweepInterval drives the periodic purge of finished sessions.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var c Config
	err := env.Parse(&c)
	return c, err
}
