package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/execq/execq"
)

// Config is the daemon configuration, loaded from a YAML file with
// environment-variable overrides for deployment secrets.
type Config struct {
	Listen string       `yaml:"listen"`
	Log    LogConfig    `yaml:"log"`
	Store  StoreConfig  `yaml:"store"`
	Worker WorkerConfig `yaml:"worker"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// StoreConfig selects and configures the backend.
type StoreConfig struct {
	// Driver is one of: memory, sqlite, redis, postgres, mongo.
	Driver string `yaml:"driver"`
	// DSN is the connection string for postgres/mongo, the file path for
	// sqlite, and the address for redis.
	DSN string `yaml:"dsn"`
	// Database is the mongo database name.
	Database string `yaml:"database"`
}

// WorkerConfig controls the worker pool. Zero values fall back to the
// engine defaults.
type WorkerConfig struct {
	// Enabled starts an in-process worker pool alongside the gateway.
	Enabled         bool     `yaml:"enabled"`
	Concurrency     int      `yaml:"concurrency"`
	PollInterval    Duration `yaml:"poll_interval"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	CompleteRetries int      `yaml:"complete_retries"`
	// ClaimRate caps claims per second across the pool; zero disables
	// the limiter.
	ClaimRate  float64 `yaml:"claim_rate"`
	ClaimBurst int     `yaml:"claim_burst"`
	// JobTimeout kills commands that run longer; zero means no limit.
	JobTimeout Duration `yaml:"job_timeout"`
}

// Duration wraps time.Duration so config files can say "30s" or "1m";
// yaml.v3 has no native duration decoding.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func defaultConfig() Config {
	base := execq.DefaultConfig()
	return Config{
		Listen: ":8080",
		Log:    LogConfig{Level: "info", Format: "text"},
		Store:  StoreConfig{Driver: "memory"},
		Worker: WorkerConfig{
			Enabled:         true,
			Concurrency:     base.Concurrency,
			PollInterval:    Duration(base.PollInterval),
			ShutdownTimeout: Duration(base.ShutdownTimeout),
			CompleteRetries: base.CompleteRetries,
		},
	}
}

// loadConfig reads the YAML file at path (if non-empty) over the
// defaults, then applies environment overrides.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Environment overrides, so secrets stay out of the config file.
	if v := os.Getenv("EXECQ_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("EXECQ_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("EXECQ_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("EXECQ_STORE_DATABASE"); v != "" {
		cfg.Store.Database = v
	}
	if v := os.Getenv("EXECQ_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	return cfg, nil
}
