// Package config loads reasoningbank CLI settings from an optional YAML file
// and REASONINGBANK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap/zapcore"

	"github.com/liliang-cn/reasoningbank/pkg/core"
)

// EnvPrefix marks environment variables read by Load
const EnvPrefix = "REASONINGBANK_"

// Config is the full CLI configuration
type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// DatabaseConfig selects and tunes the SQLite store
type DatabaseConfig struct {
	Path       string `koanf:"path"`
	DisableFTS bool   `koanf:"disable_fts"`
	MaxBulkIDs int    `koanf:"max_bulk_ids"`
}

// RetrievalConfig holds search defaults
type RetrievalConfig struct {
	K          int    `koanf:"k"`
	Tolerance  int    `koanf:"tolerance"`
	Oversample int    `koanf:"oversample"`
	Ontology   string `koanf:"ontology"`
}

// LoggingConfig controls the zap logger
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:       "reasoningbank.db",
			MaxBulkIDs: 500,
		},
		Retrieval: RetrievalConfig{
			K:          5,
			Tolerance:  1,
			Oversample: 3,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load reads path, if given, then applies environment overrides such as
// REASONINGBANK_DATABASE_PATH -> database.path. Unset values take their
// defaults. A path that does not exist is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Split on the first underscore only so field names keep theirs:
	// DATABASE_DISABLE_FTS -> database.disable_fts
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		section, field, ok := strings.Cut(lower, "_")
		if !ok {
			return lower
		}
		return section + "." + field
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// keys absent from every source keep their defaults
	cfg := *Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// applyDefaults replaces values explicitly set to empty
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Database.Path == "" {
		cfg.Database.Path = def.Database.Path
	}
	if cfg.Database.MaxBulkIDs == 0 {
		cfg.Database.MaxBulkIDs = def.Database.MaxBulkIDs
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = def.Retrieval.K
	}
	if cfg.Retrieval.Oversample == 0 {
		cfg.Retrieval.Oversample = def.Retrieval.Oversample
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
}

// Validate rejects values the CLI cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Database.MaxBulkIDs < 0 {
		errs = append(errs, fmt.Errorf("database.max_bulk_ids must be positive, got %d", c.Database.MaxBulkIDs))
	}
	if c.Retrieval.K < 0 {
		errs = append(errs, fmt.Errorf("retrieval.k must not be negative, got %d", c.Retrieval.K))
	}
	if c.Retrieval.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("retrieval.tolerance must not be negative, got %d", c.Retrieval.Tolerance))
	}
	if c.Retrieval.Oversample < 1 {
		errs = append(errs, fmt.Errorf("retrieval.oversample must be at least 1, got %d", c.Retrieval.Oversample))
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// StoreConfig converts the database section into a core.Config
func (c *Config) StoreConfig(logger core.Logger) core.Config {
	sc := core.DefaultConfig()
	sc.Path = c.Database.Path
	sc.DisableFTS = c.Database.DisableFTS
	sc.MaxBulkIDs = c.Database.MaxBulkIDs
	if logger != nil {
		sc.Logger = logger
	}
	return sc
}
