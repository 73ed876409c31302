// Package config loads the revisit CLI configuration from a YAML or JSON file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendPair   = "pair"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Defaults applied to keys the file leaves out.
const (
	DefaultBackend      = BackendFile
	DefaultStatePath    = "revisit.json"
	DefaultLogPath      = "attempt_log.json"
	DefaultQueuePath    = "review_queue.json"
	DefaultSQLitePath   = "revisit.db"
	DefaultSQLiteDriver = "sqlite"
	DefaultBaseMinutes  = 15
	DefaultLogLevel     = "warn"
	DefaultSchedule     = "@every 1m"
)

type Config struct {
	Storage    StorageConfig    `json:"storage"`
	Scheduling SchedulingConfig `json:"scheduling"`
	Logging    LoggingConfig    `json:"logging"`
	Trace      TraceConfig      `json:"trace"`
	Watch      WatchConfig      `json:"watch"`
}

type StorageConfig struct {
	// Backend is one of file, pair, sqlite, memory.
	Backend string `json:"backend"`
	// Path is the state file (file) or database (sqlite).
	Path      string `json:"path"`
	LogPath   string `json:"log_path"`
	QueuePath string `json:"queue_path"`
	// Driver is the database/sql driver name for the sqlite backend.
	Driver string `json:"driver"`
}

type SchedulingConfig struct {
	BaseIntervalMinutes int `json:"base_interval_minutes"`
}

type LoggingConfig struct {
	Level string `json:"level"`
}

type TraceConfig struct {
	// Path of the JSON Lines trace file. Empty disables tracing.
	Path string `json:"path"`
}

type WatchConfig struct {
	// Schedule is a cron expression or descriptor such as "@every 1m".
	Schedule string `json:"schedule"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads path, decodes it strictly and fills in defaults.
// Files ending in .yaml or .yml are parsed as YAML, anything else as JSON.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(path, b)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes config bytes. The name only selects the format.
func Parse(name string, data []byte) (*Config, error) {
	cfg := &Config{}
	if len(bytes.TrimSpace(data)) > 0 {
		jb, _, err := coerceToJSONBytes(name, data)
		if err != nil {
			return nil, err
		}
		if err := decodeStrict(jb, cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeStrict(jb []byte, cfg *Config) error {
	// YAML documents with no content coerce to "null".
	if bytes.Equal(bytes.TrimSpace(jb), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("invalid config: trailing data")
		}
		return err
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultBackend
	}
	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Path == "" {
			c.Storage.Path = DefaultStatePath
		}
	case BackendSQLite:
		if c.Storage.Path == "" {
			c.Storage.Path = DefaultSQLitePath
		}
		if c.Storage.Driver == "" {
			c.Storage.Driver = DefaultSQLiteDriver
		}
	}
	if c.Storage.LogPath == "" {
		c.Storage.LogPath = DefaultLogPath
	}
	if c.Storage.QueuePath == "" {
		c.Storage.QueuePath = DefaultQueuePath
	}
	if c.Scheduling.BaseIntervalMinutes == 0 {
		c.Scheduling.BaseIntervalMinutes = DefaultBaseMinutes
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Watch.Schedule == "" {
		c.Watch.Schedule = DefaultSchedule
	}
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendPair, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("invalid config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Scheduling.BaseIntervalMinutes < 0 {
		return fmt.Errorf("invalid config: scheduling.base_interval_minutes must not be negative, got %d",
			c.Scheduling.BaseIntervalMinutes)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ParseLevel maps a level name (debug, info, warn, error) to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}
