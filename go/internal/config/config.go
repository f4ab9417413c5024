package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the settings shared by the server and the tools.
type Config struct {
	Port            string        `env:"STILLPOINT_PORT" envDefault:"8080"`
	LogLevel        string        `env:"STILLPOINT_LOG_LEVEL" envDefault:"info"`
	TickInterval    time.Duration `env:"STILLPOINT_TICK_INTERVAL" envDefault:"100ms"`
	ProgramsFile    string        `env:"STILLPOINT_PROGRAMS_FILE"`
	CuesFile        string        `env:"STILLPOINT_CUES_FILE"`
	NATSURL         string        `env:"NATS_URL"`
	StreamName      string        `env:"STILLPOINT_STREAM_NAME" envDefault:"SESSION_EVENTS"`
	ShutdownTimeout time.Duration `env:"STILLPOINT_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.TickInterval < 0 {
		return Config{}, fmt.Errorf("STILLPOINT_TICK_INTERVAL must not be negative, got %s", cfg.TickInterval)
	}
	return cfg, nil
}

// BusEnabled reports whether events should also go to NATS.
func (c Config) BusEnabled() bool {
	return c.NATSURL != ""
}

// SetupLogging routes the global logger to a console writer on stderr.
func SetupLogging(level string) error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return fmt.Errorf("parse log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
