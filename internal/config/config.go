// Package config loads the bot's configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr          string `env:"ADDR" envDefault:":8080"`
	DSN           string `env:"DSN" envDefault:"arenabot.db?_journal_mode=WAL"`
	MigrationsURL string `env:"MIGRATIONS_URL" envDefault:"file://migrations"`

	// OwnerID may report wins past the cooldown and run guild resets.
	OwnerID string `env:"OWNER_ID"`

	CheckInWindow time.Duration `env:"CHECK_IN_WINDOW" envDefault:"5m"`
	StepTimeout   time.Duration `env:"STEP_TIMEOUT" envDefault:"10m"`
	ConfirmWindow time.Duration `env:"CONFIRM_WINDOW" envDefault:"1m"`
	WinCooldown   time.Duration `env:"WIN_COOLDOWN" envDefault:"10m"`

	SessionLifetime time.Duration `env:"SESSION_LIFETIME" envDefault:"24h"`

	// FightersFile points at a roster file with one fighter per line.
	// Empty means the built-in roster.
	FightersFile string `env:"FIGHTERS_FILE"`

	DiscordKey         string `env:"DISCORD_KEY"`
	DiscordSecret      string `env:"DISCORD_SECRET"`
	DiscordCallbackURL string `env:"DISCORD_CALLBACK_URL"`
}

// Load reads .env if present, then parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
