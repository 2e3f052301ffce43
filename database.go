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


// Package sift is an embedded full-text search engine over field-structured
// records, answering prefix and substring queries from a word index and a
// suffix fragment index kept in BadgerDB.
package sift

import (
	"context"
	"io"
	"log/slog"

	"github.com/poiesic/sift/config"
	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/ingestion"
	"github.com/poiesic/sift/metrics"
	"github.com/poiesic/sift/reindex"
	"github.com/poiesic/sift/search"
	"github.com/poiesic/sift/storage"
	"github.com/poiesic/sift/storage/badger"
	"github.com/prometheus/client_golang/prometheus"
)

type Database struct {
	backend    *badger.Backend
	recordRepo storage.RecordRepository
	wordRepo   storage.WordIndexRepository
	metaRepo   storage.MetaRepository
	config     *config.Config
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	config   *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
}

// WithConfig sets the configuration. Its storage path is replaced by the
// path given to NewDatabase.
func WithConfig(cfg *config.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.config = cfg
	}
}

// WithLogger sets the logger used by the database and the components it creates.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// WithMetricsRegistry registers sift's collectors with reg and turns metrics on.
func WithMetricsRegistry(reg *prometheus.Registry) DatabaseOption {
	return func(o *databaseOptions) {
		o.registry = reg
	}
}

// Open opens the database described by cfg.
func Open(cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	return NewDatabase(cfg.Storage.Path, append([]DatabaseOption{WithConfig(cfg)}, opts...)...)
}

// NewDatabase opens or creates the database at filePath.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		config: config.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	cfg := *options.config
	cfg.Storage.Path = filePath
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend, err := badger.OpenBackend(cfg.Storage.Path, cfg.Storage.InMemory,
		badger.WithBackendLogger(options.logger),
		badger.WithMemTableSize(cfg.Storage.MemTableSize),
		badger.WithMaxConflictRetries(cfg.Storage.MaxConflictRetries),
	)
	if err != nil {
		return nil, err
	}

	registry := options.registry
	if registry == nil && cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
	}
	var m *metrics.Metrics
	if registry != nil {
		m = metrics.New(registry)
	}

	db := &Database{
		backend:    backend,
		recordRepo: badger.NewRecordRepository(backend),
		wordRepo:   badger.NewWordIndexRepository(backend),
		metaRepo:   badger.NewMetaRepository(backend),
		config:     &cfg,
		registry:   registry,
		metrics:    m,
		logger:     options.logger,
	}

	ctx := context.Background()
	if err := reindex.StampEmpty(ctx, db.metaRepo, db.recordRepo); err != nil {
		backend.Close()
		return nil, err
	}
	needs, err := db.NeedsReindex(ctx)
	if err != nil {
		backend.Close()
		return nil, err
	}
	if needs {
		db.logger.Warn("index schema is out of date, run reindex", "path", cfg.Storage.Path)
	}

	return db, nil
}

func (db *Database) Close() error {
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) RecordRepository() storage.RecordRepository {
	return db.recordRepo
}

func (db *Database) WordIndexRepository() storage.WordIndexRepository {
	return db.wordRepo
}

func (db *Database) MetaRepository() storage.MetaRepository {
	return db.metaRepo
}

// Config returns the effective configuration.
func (db *Database) Config() *config.Config {
	return db.config
}

// Metrics returns the database's collectors, or nil when metrics are off.
func (db *Database) Metrics() *metrics.Metrics {
	return db.metrics
}

// Gatherer returns the registry holding the database's collectors, or nil
// when metrics are off.
func (db *Database) Gatherer() prometheus.Gatherer {
	if db.registry == nil {
		return nil
	}
	return db.registry
}

// NewIngestionPipeline creates a pipeline configured from the database
// configuration. opts are applied after the configured ones.
func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{
		ingestion.WithParallelThreshold(db.config.Ingestion.ParallelThreshold),
		ingestion.WithMetrics(db.metrics),
		ingestion.WithLogger(db.logger),
	}
	if db.config.Ingestion.PoolSize > 0 {
		base = append(base, ingestion.WithPoolSize(db.config.Ingestion.PoolSize))
	}
	return ingestion.NewPipeline(db.recordRepo, db.wordRepo, append(base, opts...)...)
}

// NewSearcher creates a searcher configured from the database configuration.
// opts are applied after the configured ones.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	base := []search.Option{
		search.WithMetrics(db.metrics),
		search.WithLogger(db.logger),
	}
	if db.config.Search.CacheEnabled {
		base = append(base, search.WithCache(db.config.Search.CacheSize))
	}
	return search.NewSearcher(db.recordRepo, db.wordRepo, append(base, opts...)...)
}

// NewReindexer creates a reindexer writing through ingester, typically a
// pipeline from NewIngestionPipeline. progress may be nil.
func (db *Database) NewReindexer(ingester reindex.Ingester, progress io.Writer) (*reindex.Reindexer, error) {
	cfg := reindex.DefaultConfig()
	cfg.BatchSize = db.config.Ingestion.BatchSize
	return reindex.NewReindexer(db.recordRepo, db.wordRepo, db.metaRepo, ingester, cfg, progress)
}

// Stats describes the size of the store.
type Stats struct {
	Records int64
	Words   int64
	Meta    *core.IndexMeta // nil if never recorded
}

// Stats counts records and index words and updates the size gauges.
func (db *Database) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := db.backend.WithSnapshot(ctx, func(ctx context.Context) error {
		var err error
		if stats.Records, err = db.recordRepo.CountRecords(ctx); err != nil {
			return err
		}
		if stats.Words, err = db.wordRepo.CountWords(ctx); err != nil {
			return err
		}
		stats.Meta, err = db.metaRepo.LoadMeta(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	db.metrics.SetIndexSize(stats.Records, stats.Words)
	return stats, nil
}

// NeedsReindex reports whether the indices were built under another schema
// version and must be rebuilt with a Reindexer.
func (db *Database) NeedsReindex(ctx context.Context) (bool, error) {
	return reindex.NeedsReindex(ctx, db.metaRepo, db.recordRepo)
}
