package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for configuration fields.
const (
	DefaultDatabase         = "careplatform"
	DefaultLockTTL          = 5 * time.Minute
	DefaultOperationTimeout = 30 * time.Second
	DefaultFormat           = "text"
)

// Config holds the application configuration loaded from file, environment, and flags.
type Config struct {
	MongoURI         string
	Database         string
	LockTTL          time.Duration
	OperationTimeout time.Duration
	Format           string
}

// yamlConfig is the raw YAML file representation with string durations.
type yamlConfig struct {
	MongoURI         string `yaml:"mongo_uri"`
	Database         string `yaml:"database"`
	LockTTL          string `yaml:"lock_ttl"`
	OperationTimeout string `yaml:"operation_timeout"`
	Format           string `yaml:"format"`
}

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		Database:         DefaultDatabase,
		LockTTL:          DefaultLockTTL,
		OperationTimeout: DefaultOperationTimeout,
		Format:           DefaultFormat,
	}
}

// Load reads a YAML configuration file and returns a Config.
// If allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// fromYAML converts the raw YAML representation to a Config with defaults applied.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	if raw.MongoURI != "" {
		cfg.MongoURI = raw.MongoURI
	}

	if raw.Database != "" {
		cfg.Database = raw.Database
	}

	if raw.LockTTL != "" {
		d, err := time.ParseDuration(raw.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("parsing lock_ttl %q: %w", raw.LockTTL, err)
		}

		cfg.LockTTL = d
	}

	if raw.OperationTimeout != "" {
		d, err := time.ParseDuration(raw.OperationTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing operation_timeout %q: %w", raw.OperationTimeout, err)
		}

		cfg.OperationTimeout = d
	}

	if raw.Format != "" {
		cfg.Format = raw.Format
	}

	return cfg, nil
}

// MergeEnv overrides config fields from MIGRATE_* environment variables.
func MergeEnv(cfg *Config) {
	if v := os.Getenv("MIGRATE_MONGO_URI"); v != "" {
		cfg.MongoURI = v
	}

	if v := os.Getenv("MIGRATE_DATABASE"); v != "" {
		cfg.Database = v
	}

	if v := os.Getenv("MIGRATE_LOCK_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LockTTL = d
		}
	}

	if v := os.Getenv("MIGRATE_OPERATION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.OperationTimeout = d
		}
	}
}
