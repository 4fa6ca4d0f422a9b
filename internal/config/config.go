package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string     `env:"PORT" envDefault:"8080"`
	Environment string     `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    slog.Level `env:"-"`
	RawLogLevel string     `env:"LOG_LEVEL" envDefault:"info"`

	RedisURL       string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	RedisKeyPrefix string        `env:"REDIS_KEY_PREFIX" envDefault:"papal-schism"`
	SaveTTL        time.Duration `env:"SAVE_TTL" envDefault:"720h"`

	// StoryFile is resolved against DataDir unless absolute. Empty means the
	// built-in story.
	StoryFile string `env:"STORY_FILE"`
	DataDir   string `env:"DATA_DIR" envDefault:"data/stories"`

	TickInterval   time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	PersistTimeout time.Duration `env:"PERSIST_TIMEOUT" envDefault:"5s"`
	StrictChoices  bool          `env:"STRICT_CHOICES" envDefault:"false"`
	// SessionIdleTimeout evicts live sessions unused for this long. Zero disables.
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.RawLogLevel)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("TICK_INTERVAL must be positive, got %s", c.TickInterval))
	}
	if c.PersistTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PERSIST_TIMEOUT must be positive, got %s", c.PersistTimeout))
	}
	if c.SaveTTL < 0 {
		errs = append(errs, fmt.Errorf("SAVE_TTL must not be negative, got %s", c.SaveTTL))
	}
	if c.SessionIdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("SESSION_IDLE_TIMEOUT must not be negative, got %s", c.SessionIdleTimeout))
	}
	return errors.Join(errs...)
}

// StoryPath returns the story file to load, or "" for the built-in story.
func (c *Config) StoryPath() string {
	if c.StoryFile == "" || filepath.IsAbs(c.StoryFile) {
		return c.StoryFile
	}
	return filepath.Join(c.DataDir, c.StoryFile)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
