// Package config provides configuration loading for the custody command.
//
// Configuration is loaded from a single YAML file specified by the
// CUSTODY_CONFIG environment variable or the --config flag. A .env file in the
// working directory is loaded into the environment first, so CUSTODY_CONFIG may
// be set there.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the configuration of the custody command.
type Config struct {
	// Directory is where the database is stored.
	Directory string `yaml:"directory"`

	// Program is the name or hex identifier of the program that owns the
	// custody accounts.
	Program string `yaml:"program"`

	// Capacity is the default number of entries a new custody account can hold.
	Capacity int `yaml:"capacity"`

	// Decimals is the number of decimals used to display and parse amounts.
	Decimals int32 `yaml:"decimals"`

	// Journal configures the invocation journal.
	Journal JournalConfig `yaml:"journal"`

	// Events configures event publishing.
	Events EventsConfig `yaml:"events"`

	// Log configures logging.
	Log LogConfig `yaml:"log"`
}

// JournalConfig configures the invocation journal.
type JournalConfig struct {
	// Retention is the number of journal events kept. Zero keeps all events.
	Retention int `yaml:"retention"`

	// Interval is the interval of journal cleanings.
	Interval time.Duration `yaml:"interval"`
}

// EventsConfig configures event publishing.
type EventsConfig struct {
	// Brokers are the kafka brokers. Publishing is disabled if empty.
	Brokers []string `yaml:"brokers"`

	// Topic is the kafka topic.
	Topic string `yaml:"topic"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn and error.
	Level string `yaml:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Directory: "custody.db",
		Program:   "custody",
		Capacity:  256,
		Decimals:  0,
		Journal: JournalConfig{
			Retention: 0,
			Interval:  time.Minute,
		},
		Events: EventsConfig{
			Topic: "custody.committed",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the CUSTODY_CONFIG environment variable after
// loading a .env file if present. Defaults are returned if CUSTODY_CONFIG is
// not set.
func Load() (*Config, error) {
	// load .env
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	// check variable
	path := os.Getenv("CUSTODY_CONFIG")
	if path == "" {
		return Default(), nil
	}

	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path. Values in the file
// override the defaults.
func LoadFile(path string) (*Config, error) {
	// read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// parse file over defaults
	cfg := Default()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	// validate
	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Directory == "" {
		return errors.New("directory is required")
	}
	if c.Program == "" {
		return errors.New("program is required")
	}
	if c.Capacity < 0 {
		return fmt.Errorf("capacity must not be negative, got %d", c.Capacity)
	}
	if c.Decimals < 0 || c.Decimals > 18 {
		return fmt.Errorf("decimals must be between 0 and 18, got %d", c.Decimals)
	}
	if c.Journal.Retention < 0 {
		return fmt.Errorf("journal retention must not be negative, got %d", c.Journal.Retention)
	}
	if c.Journal.Retention > 0 && c.Journal.Interval <= 0 {
		return errors.New("journal interval is required with a retention")
	}
	_, err := ParseLevel(c.Log.Level)
	return err
}

// ParseLevel parses a log level name.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(name))
	if err != nil {
		return level, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}
