// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads sift configuration from defaults, an optional YAML
// file and SIFT_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level sift configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// StorageConfig controls the Badger store.
type StorageConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string `yaml:"path"`

	// InMemory keeps all data in memory. Nothing survives Close.
	InMemory bool `yaml:"inMemory"`

	// MemTableSize is Badger's memtable size in bytes. Zero keeps Badger's default.
	MemTableSize int64 `yaml:"memTableSize"`

	// MaxConflictRetries bounds how often a write transaction that lost a
	// conflict is re-run before the write fails.
	MaxConflictRetries int `yaml:"maxConflictRetries"`
}

// IngestionConfig controls the ingestion pipeline.
type IngestionConfig struct {
	// PoolSize is the number of word extraction workers. Zero picks a
	// size from the number of CPUs.
	PoolSize int `yaml:"poolSize"`

	// ParallelThreshold is the batch size from which word extraction is
	// spread over the pool.
	ParallelThreshold int `yaml:"parallelThreshold"`

	// BatchSize is the number of records the CLIs and the reindexer commit
	// per transaction.
	BatchSize int `yaml:"batchSize"`
}

// SearchConfig controls query execution.
type SearchConfig struct {
	// CacheEnabled turns on the query result cache.
	CacheEnabled bool `yaml:"cacheEnabled"`

	// CacheSize is the number of query results kept by the cache.
	CacheSize int `yaml:"cacheSize"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithPath sets the database directory.
func WithPath(path string) ConfigOption {
	return func(c *Config) {
		c.Storage.Path = path
	}
}

// WithInMemory keeps the database in memory.
func WithInMemory(inMemory bool) ConfigOption {
	return func(c *Config) {
		c.Storage.InMemory = inMemory
	}
}

// WithMaxConflictRetries sets the write conflict retry bound.
func WithMaxConflictRetries(n int) ConfigOption {
	return func(c *Config) {
		c.Storage.MaxConflictRetries = n
	}
}

// WithPoolSize sets the number of word extraction workers.
func WithPoolSize(size int) ConfigOption {
	return func(c *Config) {
		c.Ingestion.PoolSize = size
	}
}

// WithBatchSize sets the number of records committed per transaction.
func WithBatchSize(size int) ConfigOption {
	return func(c *Config) {
		c.Ingestion.BatchSize = size
	}
}

// WithCache enables the query result cache with the given size.
func WithCache(size int) ConfigOption {
	return func(c *Config) {
		c.Search.CacheEnabled = true
		c.Search.CacheSize = size
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) ConfigOption {
	return func(c *Config) {
		c.Logging.Level = level
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(enabled bool) ConfigOption {
	return func(c *Config) {
		c.Metrics.Enabled = enabled
	}
}

// DefaultConfig returns a Config with defaults for a local on-disk database.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:               "./sift.db",
			MaxConflictRetries: 5,
		},
		Ingestion: IngestionConfig{
			ParallelThreshold: 256,
			BatchSize:         1000,
		},
		Search: SearchConfig{
			CacheEnabled: true,
			CacheSize:    1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: ":9464",
		},
	}
}

// NewConfig creates a Config with the default values and applies opts.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Load reads a YAML config file (if path is not empty) over the defaults and
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides reads SIFT_* environment variables.
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}

	str("SIFT_STORAGE_PATH", &cfg.Storage.Path)
	boolean("SIFT_STORAGE_IN_MEMORY", &cfg.Storage.InMemory)
	integer("SIFT_STORAGE_MAX_CONFLICT_RETRIES", &cfg.Storage.MaxConflictRetries)
	integer("SIFT_INGESTION_POOL_SIZE", &cfg.Ingestion.PoolSize)
	integer("SIFT_INGESTION_PARALLEL_THRESHOLD", &cfg.Ingestion.ParallelThreshold)
	integer("SIFT_INGESTION_BATCH_SIZE", &cfg.Ingestion.BatchSize)
	boolean("SIFT_SEARCH_CACHE_ENABLED", &cfg.Search.CacheEnabled)
	integer("SIFT_SEARCH_CACHE_SIZE", &cfg.Search.CacheSize)
	str("SIFT_LOGGING_LEVEL", &cfg.Logging.Level)
	str("SIFT_LOGGING_FORMAT", &cfg.Logging.Format)
	boolean("SIFT_METRICS_ENABLED", &cfg.Metrics.Enabled)
	str("SIFT_METRICS_ADDR", &cfg.Metrics.Addr)

	if len(errs) > 0 {
		return fmt.Errorf("environment overrides: %w", errors.Join(errs...))
	}
	return nil
}

// Normalize puts the configuration in canonical form.
func (c *Config) Normalize() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Storage.Path = strings.TrimSpace(c.Storage.Path)
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration first.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Storage.Path == "" && !c.Storage.InMemory {
		return errors.New("sift config: storage.path is required unless storage.inMemory is set")
	}
	if c.Storage.MemTableSize < 0 {
		return errors.New("sift config: storage.memTableSize must not be negative")
	}
	if c.Storage.MaxConflictRetries < 0 {
		return errors.New("sift config: storage.maxConflictRetries must not be negative")
	}
	if c.Ingestion.PoolSize < 0 {
		return errors.New("sift config: ingestion.poolSize must not be negative")
	}
	if c.Ingestion.ParallelThreshold < 1 {
		return errors.New("sift config: ingestion.parallelThreshold must be at least 1")
	}
	if c.Ingestion.BatchSize < 1 {
		return errors.New("sift config: ingestion.batchSize must be at least 1")
	}
	if c.Search.CacheEnabled && c.Search.CacheSize < 1 {
		return errors.New("sift config: search.cacheSize must be at least 1 when the cache is enabled")
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("sift config: %w", err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("sift config: logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}
