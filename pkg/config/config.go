// Package config handles MuninDB configuration via YAML files and
// environment variables.
//
// Configuration loads in two layers: an optional YAML file, then
// MUNINDB_-prefixed environment variables on top. Either layer can be
// used alone; the environment always wins.
//
// Example Usage:
//
//	cfg, err := config.Load("munindb.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
// Environment Variables:
//   - MUNINDB_DATA_DIR="./data"
//   - MUNINDB_RECURSION_LIMIT=1
//   - MUNINDB_PROPAGATION_LIMIT=0 (0 means unlimited)
//   - MUNINDB_LOG_LEVEL="info"
//   - MUNINDB_CSV_DELIMITER=","
//   - MUNINDB_SCORER_URL="http://localhost:9090"
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all MuninDB settings.
type Config struct {
	// DataDir is where snapshots persist.
	DataDir string `yaml:"data_dir"`

	// RecursionLimit caps re-entrant writes to one entity within a
	// propagation chain.
	RecursionLimit int `yaml:"recursion_limit"`

	// PropagationLimit caps total writes per chain; 0 means
	// unlimited.
	PropagationLimit int `yaml:"propagation_limit"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// CSVDelimiter separates fields in dataset import/export.
	CSVDelimiter string `yaml:"csv_delimiter"`

	// ScorerURL is the base URL of the triple-scoring service, empty
	// to run without one.
	ScorerURL string `yaml:"scorer_url"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		DataDir:        "./data",
		RecursionLimit: 1,
		LogLevel:       "info",
		CSVDelimiter:   ",",
	}
}

// Load reads the YAML file at path (skipped when path is empty or the
// file does not exist) and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// File layer is optional.
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.loadFromEnv()
	return cfg, nil
}

// LoadFromEnv returns the defaults with environment overrides applied,
// no file layer.
func LoadFromEnv() *Config {
	cfg := Default()
	cfg.loadFromEnv()
	return cfg
}

func (c *Config) loadFromEnv() {
	setString(&c.DataDir, "MUNINDB_DATA_DIR")
	setInt(&c.RecursionLimit, "MUNINDB_RECURSION_LIMIT")
	setInt(&c.PropagationLimit, "MUNINDB_PROPAGATION_LIMIT")
	setString(&c.LogLevel, "MUNINDB_LOG_LEVEL")
	setString(&c.CSVDelimiter, "MUNINDB_CSV_DELIMITER")
	setString(&c.ScorerURL, "MUNINDB_SCORER_URL")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.RecursionLimit < 0 {
		return fmt.Errorf("recursion_limit must be >= 0, got %d", c.RecursionLimit)
	}
	if c.PropagationLimit < 0 {
		return fmt.Errorf("propagation_limit must be >= 0, got %d", c.PropagationLimit)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if len([]rune(c.CSVDelimiter)) != 1 {
		return fmt.Errorf("csv_delimiter must be a single rune, got %q", c.CSVDelimiter)
	}
	return nil
}

// Delimiter returns the CSV delimiter as a rune.
func (c *Config) Delimiter() rune {
	for _, r := range c.CSVDelimiter {
		return r
	}
	return ','
}

func (c *Config) String() string {
	return fmt.Sprintf("data_dir=%s recursion_limit=%d propagation_limit=%d log_level=%s",
		c.DataDir, c.RecursionLimit, c.PropagationLimit, c.LogLevel)
}

// ZapLevel maps LogLevel onto a zap level string, for logger setup.
func (c *Config) ZapLevel() string {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		return c.LogLevel
	default:
		return "info"
	}
}
