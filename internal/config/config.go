// Package config loads shopstate settings from the environment.
//
// Values come from SHOPSTATE_* variables, optionally seeded from a .env
// file. Command-line flags override them in the CLI.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Remote drivers.
const (
	DriverMemory    = "memory"
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
	DriverFirestore = "firestore"
)

// Config is the process configuration.
type Config struct {
	// DBPath is the device database holding the local store and journal.
	DBPath string `env:"SHOPSTATE_DB,default=shopstate.db" json:"db_path"`

	// RemoteDriver selects the authoritative favorites store.
	RemoteDriver string `env:"SHOPSTATE_REMOTE,default=sqlite" json:"remote_driver"`

	// RemoteDSN is the Postgres connection string.
	RemoteDSN string `env:"SHOPSTATE_REMOTE_DSN" json:"-"`

	FirestoreProject     string `env:"SHOPSTATE_FIRESTORE_PROJECT" json:"firestore_project,omitempty"`
	FirestoreCredentials string `env:"SHOPSTATE_FIRESTORE_CREDENTIALS" json:"firestore_credentials,omitempty"`
	FirestoreCollection  string `env:"SHOPSTATE_FIRESTORE_COLLECTION,default=favorites" json:"firestore_collection,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"SHOPSTATE_LOG_LEVEL,default=info" json:"log_level"`
}

// Load reads envFile when it is non-empty, then decodes the environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "shopstate.db"
	}
	if c.RemoteDriver == "" {
		c.RemoteDriver = DriverSQLite
	}
	if c.FirestoreCollection == "" {
		c.FirestoreCollection = "favorites"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.RemoteDriver = strings.ToLower(strings.TrimSpace(c.RemoteDriver))
}

// Validate checks that the selected driver has what it needs.
func (c Config) Validate() error {
	switch c.RemoteDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.RemoteDSN == "" {
			return errors.New("SHOPSTATE_REMOTE_DSN is required for the postgres driver")
		}
	case DriverFirestore:
		if c.FirestoreProject == "" {
			return errors.New("SHOPSTATE_FIRESTORE_PROJECT is required for the firestore driver")
		}
	default:
		return fmt.Errorf("unknown remote driver %q (want memory, sqlite, postgres or firestore)", c.RemoteDriver)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the configured slog level.
func (c Config) Level() slog.Level {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel parses a log level name.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
