package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"unicode/utf8"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/infodancer/maildirs/maildir"
)

// Config is read from the environment, after an optional .env file.
type Config struct {
	Root      string `env:"MAILDIR_ROOT,required"`
	MaildirPP bool   `env:"MAILDIR_MAILDIRPP" envDefault:"true"`
	Separator string `env:"MAILDIR_SEPARATOR" envDefault:":"`
	LogLevel  string `env:"MAILDIR_LOG_LEVEL" envDefault:"info"`
}

// loadConfig loads envFile when it exists and parses the environment.
// A missing default .env is not an error; a missing explicit file is.
func loadConfig(envFile string, explicit bool) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// options turns the configuration into engine options.
func (c *Config) options() ([]maildir.Option, error) {
	sep, size := utf8.DecodeRuneInString(c.Separator)
	if size == 0 || size != len(c.Separator) {
		return nil, fmt.Errorf("MAILDIR_SEPARATOR must be a single character, got %q", c.Separator)
	}
	if err := maildir.ValidateSeparator(sep); err != nil {
		return nil, fmt.Errorf("MAILDIR_SEPARATOR: %w", err)
	}
	return []maildir.Option{
		maildir.WithMaildirPP(c.MaildirPP),
		maildir.WithSeparator(sep),
	}, nil
}

func (c *Config) logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("MAILDIR_LOG_LEVEL: %w", err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}
