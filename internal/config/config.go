// Package config reads server settings from the environment. A .env file in
// the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr            string        `env:"BATTLE_ADDR" envDefault:":3001"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Roster  RosterConfig
	Redis   RedisConfig
	History HistoryConfig
	WS      WSConfig
}

type RosterConfig struct {
	BaseURL          string        `env:"ROSTER_BASE_URL" envDefault:"https://pokeapi.co/api/v2"`
	MaxID            int           `env:"ROSTER_MAX_ID" envDefault:"898"`
	Timeout          time.Duration `env:"ROSTER_TIMEOUT" envDefault:"5s"`
	OptionsPerPlayer int           `env:"OPTIONS_PER_PLAYER" envDefault:"3"`
}

// RedisConfig enables the move-detail cache when Addr is set.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	MoveTTL  time.Duration `env:"MOVE_CACHE_TTL" envDefault:"24h"`
}

// HistoryConfig enables the battle ledger when DSN is set.
type HistoryConfig struct {
	Driver string `env:"HISTORY_DRIVER" envDefault:"sqlite"`
	DSN    string `env:"HISTORY_DSN"`
}

type WSConfig struct {
	IdleTimeout  time.Duration `env:"WS_IDLE_TIMEOUT" envDefault:"5m"`
	WriteTimeout time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"3s"`
	// Origins are extra host patterns allowed to open a socket, e.g. "localhost:*".
	Origins []string `env:"WS_ORIGINS" envSeparator:","`
}

// Load reads .env (if any) and then parses the environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Roster.MaxID < 1 {
		return Config{}, fmt.Errorf("ROSTER_MAX_ID must be positive, got %d", cfg.Roster.MaxID)
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
