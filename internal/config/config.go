// Package config loads service configuration in layers: built-in defaults,
// then an optional YAML file, then REVIEWD_* environment variables, then
// command-line flags. Later layers win.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "REVIEWD_"

// Config holds everything the service needs to run.
type Config struct {
	Listen string `koanf:"listen" validate:"required"` // HTTP listen address
	DB     string `koanf:"db" validate:"required"`     // SQLite database path
	Decks  string `koanf:"decks"`                      // local deck directory to register on startup
	Repos  string `koanf:"repos" validate:"required"`  // checkout directory for git deck sources
	Sync   bool   `koanf:"sync"`                       // sync the catalog on startup

	SessionTTL      time.Duration `koanf:"session_ttl"`
	SweepInterval   time.Duration `koanf:"sweep_interval" validate:"gt=0"`
	WriteRetries    int           `koanf:"write_retries" validate:"min=0"`
	WriteBackoff    time.Duration `koanf:"write_backoff" validate:"min=0"`
	MaxIntervalDays int           `koanf:"max_interval_days" validate:"min=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:        ":8080",
		DB:            "reviewd.db",
		Repos:         "repos",
		SessionTTL:    30 * time.Minute,
		SweepInterval: 5 * time.Minute,
		WriteRetries:  3,
		WriteBackoff:  500 * time.Millisecond,
	}
}

// Load builds the effective configuration. The YAML file path comes from
// the "config" flag; an empty path skips the file layer.
func Load(flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path, _ := flags.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// REVIEWD_SESSION_TTL=1h becomes session_ttl: 1h.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	// Flags changed on the command line override everything.
	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load flags: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
