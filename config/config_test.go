package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "./sift.db", cfg.Storage.Path)
	assert.False(t, cfg.Storage.InMemory)
	assert.Equal(t, 5, cfg.Storage.MaxConflictRetries)
	assert.Equal(t, 256, cfg.Ingestion.ParallelThreshold)
	assert.Equal(t, 1000, cfg.Ingestion.BatchSize)
	assert.True(t, cfg.Search.CacheEnabled)
	assert.Equal(t, 1024, cfg.Search.CacheSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.False(t, cfg.Metrics.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		assert.Equal(t, DefaultConfig(), NewConfig())
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithPath("/tmp/x"),
			WithInMemory(true),
			WithMaxConflictRetries(9),
			WithPoolSize(3),
			WithBatchSize(50),
			WithCache(10),
			WithLogLevel("debug"),
			WithMetrics(true),
		)

		assert.Equal(t, "/tmp/x", cfg.Storage.Path)
		assert.True(t, cfg.Storage.InMemory)
		assert.Equal(t, 9, cfg.Storage.MaxConflictRetries)
		assert.Equal(t, 3, cfg.Ingestion.PoolSize)
		assert.Equal(t, 50, cfg.Ingestion.BatchSize)
		assert.True(t, cfg.Search.CacheEnabled)
		assert.Equal(t, 10, cfg.Search.CacheSize)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.True(t, cfg.Metrics.Enabled)
	})
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("yaml overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sift.yaml")
		data := []byte(`
storage:
  path: /var/lib/sift
  maxConflictRetries: 2
search:
  cacheEnabled: false
logging:
  format: json
`)
		require.NoError(t, os.WriteFile(path, data, 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/sift", cfg.Storage.Path)
		assert.Equal(t, 2, cfg.Storage.MaxConflictRetries)
		assert.False(t, cfg.Search.CacheEnabled)
		assert.Equal(t, "json", cfg.Logging.Format)
		// Untouched keys keep their defaults.
		assert.Equal(t, 1000, cfg.Ingestion.BatchSize)
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("environment overrides yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sift.yaml")
		require.NoError(t, os.WriteFile(path, []byte("storage:\n  path: /from/file\n"), 0o600))
		t.Setenv("SIFT_STORAGE_PATH", "/from/env")
		t.Setenv("SIFT_SEARCH_CACHE_SIZE", "77")
		t.Setenv("SIFT_METRICS_ENABLED", "true")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/from/env", cfg.Storage.Path)
		assert.Equal(t, 77, cfg.Search.CacheSize)
		assert.True(t, cfg.Metrics.Enabled)
	})

	t.Run("malformed environment value", func(t *testing.T) {
		t.Setenv("SIFT_INGESTION_BATCH_SIZE", "lots")
		_, err := Load("")
		assert.ErrorContains(t, err, "SIFT_INGESTION_BATCH_SIZE")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("storage: [unterminated"), 0o600))
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"in memory without path", func(c *Config) { c.Storage.Path = ""; c.Storage.InMemory = true }, false},
		{"no path on disk", func(c *Config) { c.Storage.Path = "  " }, true},
		{"negative retries", func(c *Config) { c.Storage.MaxConflictRetries = -1 }, true},
		{"negative memtable", func(c *Config) { c.Storage.MemTableSize = -1 }, true},
		{"negative pool", func(c *Config) { c.Ingestion.PoolSize = -2 }, true},
		{"zero threshold", func(c *Config) { c.Ingestion.ParallelThreshold = 0 }, true},
		{"zero batch", func(c *Config) { c.Ingestion.BatchSize = 0 }, true},
		{"enabled cache without size", func(c *Config) { c.Search.CacheSize = 0 }, true},
		{"disabled cache without size", func(c *Config) { c.Search.CacheEnabled = false; c.Search.CacheSize = 0 }, false},
		{"upper case level", func(c *Config) { c.Logging.Level = " DEBUG " }, false},
		{"unknown level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"unknown format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggingConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("dropped")
	logger.Warn("kept", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"k":"v"`)
}
